package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clausehound/citex/internal/application/refresh"
)

// RefreshHandler exposes staleness inspection and re-extraction for a
// search context's jobs.
type RefreshHandler struct {
	coordinator refresh.Coordinator
}

// NewRefreshHandler constructs the refresh handler.
func NewRefreshHandler(coordinator refresh.Coordinator) *RefreshHandler {
	return &RefreshHandler{coordinator: coordinator}
}

// Stale lists the jobs whose claim hash or parser version is out of date.
func (h *RefreshHandler) Stale(c *gin.Context) {
	stale, err := h.coordinator.StaleJobs(c.Request.Context(), c.Param("searchContextId"))
	if err != nil {
		respondError(c, err)
		return
	}
	ids := make([]string, 0, len(stale))
	for _, j := range stale {
		ids = append(ids, j.ID)
	}
	c.JSON(http.StatusOK, gin.H{"staleJobIds": ids, "total": len(ids)})
}

// Refresh supersedes every stale job of the search context with a fresh run.
// Per-job failures are omitted from the mapping rather than failing the call.
func (h *RefreshHandler) Refresh(c *gin.Context) {
	refreshed, err := h.coordinator.RefreshStale(c.Request.Context(), c.Param("searchContextId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if refreshed == nil {
		refreshed = map[string]string{}
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": refreshed, "total": len(refreshed)})
}
