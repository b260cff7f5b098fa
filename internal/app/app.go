// Package app assembles the citation pipeline's dependency graph from
// configuration. The API server, the worker, and the CLI all build the same
// graph; they differ only in which surface they run on top of it.
package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clausehound/citex/internal/application/citation"
	"github.com/clausehound/citex/internal/application/refresh"
	"github.com/clausehound/citex/internal/config"
	"github.com/clausehound/citex/internal/domain/claim"
	"github.com/clausehound/citex/internal/domain/job"
	"github.com/clausehound/citex/internal/infrastructure/database/postgres"
	"github.com/clausehound/citex/internal/infrastructure/database/postgres/repositories"
	redisdb "github.com/clausehound/citex/internal/infrastructure/database/redis"
	"github.com/clausehound/citex/internal/infrastructure/llm"
	"github.com/clausehound/citex/internal/infrastructure/messaging/kafka"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/prometheus"
	"github.com/clausehound/citex/internal/infrastructure/searchapi"
	httpapi "github.com/clausehound/citex/internal/interfaces/http"
	"github.com/clausehound/citex/internal/interfaces/http/handlers"
	"github.com/clausehound/citex/internal/interfaces/http/middleware"
)

// App is the assembled dependency graph.
type App struct {
	Config *config.Config
	Logger logging.Logger

	Pool     *pgxpool.Pool
	Redis    *redisdb.Client
	Cache    redisdb.Cache
	Producer *kafka.Producer
	Metrics  *prometheus.PipelineMetrics

	Jobs    job.Repository
	Matches job.MatchStore
	Claims  claim.Source

	Pipeline citation.Service
	Refresh  refresh.Coordinator
}

// NewLogger builds the process logger from the log section of the config.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	outputs := []string{"stdout"}
	if cfg.Output != "" {
		outputs = []string{cfg.Output}
	}
	return logging.NewLogger(logging.LogConfig{
		Level:       cfg.Level,
		Format:      cfg.Format,
		OutputPaths: outputs,
	})
}

// Build assembles the full graph. Redis and Kafka are optional: an empty
// redis addr disables caching, an empty broker list disables event
// publishing. Postgres is required.
func Build(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: prometheus.NewPipelineMetrics(),
	}

	pool, err := postgres.NewPool(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	jobRepo := repositories.NewJobRepository(pool, logger)
	a.Jobs = jobRepo
	a.Matches = repositories.NewMatchRepository(pool, logger)
	a.Claims = repositories.NewClaimRepository(pool, logger)

	if cfg.Redis.Addr != "" {
		rc, err := redisdb.NewClient(cfg.Redis, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rc
		cacheOpts := []redisdb.CacheOption{}
		if cfg.Redis.KeyPrefix != "" {
			cacheOpts = append(cacheOpts, redisdb.WithPrefix(cfg.Redis.KeyPrefix))
		}
		if cfg.Redis.DefaultTTL > 0 {
			cacheOpts = append(cacheOpts, redisdb.WithDefaultTTL(cfg.Redis.DefaultTTL))
		}
		a.Cache = redisdb.NewCache(rc, logger, cacheOpts...)
		a.Jobs = redisdb.NewCachedJobRepository(jobRepo, a.Cache, logger)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Producer = producer
	}

	searchClient, err := searchapi.NewClient(cfg.SearchAPI, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	llmClient, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	validator := citation.NewSuggestionValidator(citation.ValidatorDeps{
		Search:         searchClient,
		LLM:            llmClient,
		Metrics:        a.Metrics,
		Logger:         logger,
		RelevanceFloor: cfg.Pipeline.ValidationRelevanceFloor,
	})
	engine := citation.NewAnalysisEngine(citation.EngineDeps{
		LLM:                    llmClient,
		Validator:              validator,
		Metrics:                a.Metrics,
		Logger:                 logger,
		MaxValidatedAmendments: cfg.Pipeline.MaxValidatedAmendments,
		TwoPhase:               cfg.Pipeline.TwoPhaseValidation,
	})
	consolidator := citation.NewConsolidator(cfg.Pipeline.TopCitationsPerElement, logger)

	var publisher citation.EventPublisher
	var enqueuer citation.ExtractionEnqueuer
	if a.Producer != nil {
		publisher = a.Producer
		enqueuer = a.Producer
	}

	a.Pipeline = citation.NewService(citation.Deps{
		Repo:               a.Jobs,
		Matches:            a.Matches,
		Claims:             a.Claims,
		Search:             searchClient,
		Engine:             engine,
		Consolidator:       consolidator,
		Publisher:          publisher,
		Enqueuer:           enqueuer,
		EnqueueOnly:        cfg.Pipeline.EnqueueOnly,
		Metrics:            a.Metrics,
		Logger:             logger,
		ExtractionTimeout:  cfg.Pipeline.ExtractionTimeout,
		AnalysisTimeout:    cfg.Pipeline.AnalysisTimeout,
		ExaminerEnrichment: cfg.Pipeline.ExaminerEnrichment,
	})

	a.Refresh = refresh.NewCoordinator(refresh.Deps{
		Repo:         a.Jobs,
		Claims:       a.Claims,
		Pipeline:     a.Pipeline,
		Logger:       logger,
		AnalysisWait: cfg.Pipeline.RefreshAnalysisWait,
	})

	return a, nil
}

// Router builds the HTTP handler over the assembled graph.
func (a *App) Router() http.Handler {
	checkers := []handlers.HealthChecker{
		handlers.HealthCheckFunc{CheckName: "postgres", Fn: func(ctx context.Context) error {
			return postgres.HealthCheck(ctx, a.Pool)
		}},
	}
	if a.Cache != nil {
		checkers = append(checkers, handlers.HealthCheckFunc{CheckName: "redis", Fn: a.Cache.Ping})
	}

	return httpapi.SetupRouter(httpapi.RouterDeps{
		Pipeline:       a.Pipeline,
		Refresh:        a.Refresh,
		Jobs:           a.Jobs,
		Matches:        a.Matches,
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		Checkers:       checkers,
		MetricsHandler: a.Metrics.Handler(),
		CORS:           middleware.CORSConfig{AllowAllOrigins: true},
		Mode:           a.Config.Server.Mode,
	})
}

// Consumer builds the worker-side consumer subscribed to extraction
// requests. Each request is handled by running the full pipeline for the
// referenced job.
func (a *App) Consumer() (*kafka.Consumer, error) {
	opts := kafka.ConsumerOpts{
		DeadLetter:   a.Producer,
		MaxRetries:   a.Config.Worker.MaxRetries,
		RetryBackoff: a.Config.Worker.RetryBackoff,
	}
	consumer, err := kafka.NewConsumer(a.Config.Kafka, []string{kafka.TopicExtractionRequested}, opts, a.Logger)
	if err != nil {
		return nil, err
	}
	consumer.Subscribe(kafka.TopicExtractionRequested, a.handleExtractionRequested)
	return consumer, nil
}

func (a *App) handleExtractionRequested(ctx context.Context, env *kafka.EventEnvelope) error {
	var payload kafka.ExtractionRequestedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	if a.Config.Worker.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Config.Worker.HandlerTimeout)
		defer cancel()
	}
	return a.Pipeline.ProcessJob(ctx, payload.JobID)
}

// Close releases every held resource in reverse dependency order. Safe on a
// partially-built App.
func (a *App) Close() {
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.Logger.Warn("kafka producer close failed", logging.Err(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("redis close failed", logging.Err(err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
