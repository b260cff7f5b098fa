package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clausehound/citex/internal/application/citation"
	"github.com/clausehound/citex/internal/domain/job"
)

// JobHandler exposes the citation-job lifecycle: queueing an extraction,
// polling job state, and reading the derived citation matches.
type JobHandler struct {
	pipeline citation.Service
	repo     job.Repository
	matches  job.MatchStore
}

// NewJobHandler constructs the job handler.
func NewJobHandler(pipeline citation.Service, repo job.Repository, matches job.MatchStore) *JobHandler {
	return &JobHandler{pipeline: pipeline, repo: repo, matches: matches}
}

// QueueJobRequest is the body of POST /citation-jobs.
type QueueJobRequest struct {
	SearchContextID string `json:"searchContextId" binding:"required"`
	ReferenceNumber string `json:"referenceNumber"`
}

// Queue creates a PENDING job and starts the pipeline in the background.
// The response is the freshly created row; callers poll Get for progress.
func (h *JobHandler) Queue(c *gin.Context) {
	var req QueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidParam(c, "searchContextId is required")
		return
	}

	j, err := h.pipeline.QueueExtraction(c.Request.Context(), req.SearchContextID, req.ReferenceNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, j)
}

// Get returns the current state of one job.
func (h *JobHandler) Get(c *gin.Context) {
	j, err := h.pipeline.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// ListByContext returns every job of a search context, newest first.
func (h *JobHandler) ListByContext(c *gin.Context) {
	jobs, err := h.repo.ListBySearchContext(c.Request.Context(), c.Param("searchContextId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if jobs == nil {
		jobs = []*job.CitationJob{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

// Matches returns the citation matches derived from a job's deep analysis.
// The job is looked up first so a missing job reads as 404, not an empty list.
func (h *JobHandler) Matches(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := h.pipeline.GetJob(c.Request.Context(), jobID); err != nil {
		respondError(c, err)
		return
	}

	records, err := h.matches.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []job.MatchRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"matches": records, "total": len(records)})
}
