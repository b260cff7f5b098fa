// Package http wires the Gin router and HTTP server for the citation API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clausehound/citex/internal/application/citation"
	"github.com/clausehound/citex/internal/application/refresh"
	"github.com/clausehound/citex/internal/domain/job"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/internal/interfaces/http/handlers"
	"github.com/clausehound/citex/internal/interfaces/http/middleware"
)

// RouterDeps holds everything the router needs. Metrics and MetricsHandler
// are optional; when nil the metrics middleware and /metrics route are
// simply not mounted.
type RouterDeps struct {
	Pipeline citation.Service
	Refresh  refresh.Coordinator
	Jobs     job.Repository
	Matches  job.MatchStore

	Logger   logging.Logger
	Metrics  middleware.HTTPMetrics
	Checkers []handlers.HealthChecker

	// MetricsHandler serves GET /metrics (Prometheus exposition).
	MetricsHandler http.Handler

	CORS middleware.CORSConfig

	// Mode is the Gin mode: "debug", "release" or "test".
	Mode string
}

// SetupRouter builds the full route table with the standard middleware chain.
func SetupRouter(deps RouterDeps) *gin.Engine {
	switch deps.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogging(logger, middleware.DefaultLoggingConfig()))
	r.Use(middleware.CORS(deps.CORS))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	healthHandler := handlers.NewHealthHandler(deps.Checkers...)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	jobHandler := handlers.NewJobHandler(deps.Pipeline, deps.Jobs, deps.Matches)
	refreshHandler := handlers.NewRefreshHandler(deps.Refresh)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/citation-jobs", jobHandler.Queue)
		v1.GET("/citation-jobs/:id", jobHandler.Get)
		v1.GET("/citation-jobs/:id/matches", jobHandler.Matches)

		v1.GET("/search-contexts/:searchContextId/citation-jobs", jobHandler.ListByContext)

		v1.GET("/claims/:searchContextId/stale-jobs", refreshHandler.Stale)
		v1.POST("/claims/:searchContextId/refresh", refreshHandler.Refresh)
	}

	return r
}
