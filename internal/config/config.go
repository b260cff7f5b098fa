// Package config defines all configuration structures for the citex backend.
// No I/O or parsing logic lives here — only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters for the aggregation cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer/consumer parameters for the job event
// stream and the extraction-request queue.
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	AutoOffsetReset string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	ProducerRetries int      `mapstructure:"producer_retries"`
	BatchSize       int      `mapstructure:"batch_size"`
}

// SearchAPIConfig holds connection parameters for the external semantic
// citation-search service.
type SearchAPIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`

	// RequestTimeout bounds a single submit or poll HTTP call; it is distinct
	// from the overall polling budget below.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxPollingAttempts and PollingInterval together form the hard ceiling
	// on extraction latency (default 30 × 10s ≈ 5 minutes).
	MaxPollingAttempts int           `mapstructure:"max_polling_attempts"`
	PollingInterval    time.Duration `mapstructure:"polling_interval"`

	// DefaultThreshold is the relevance threshold sent with submissions when
	// the caller does not specify one.
	DefaultThreshold float64 `mapstructure:"default_threshold"`
}

// LLMConfig holds connection and model parameters for the chat-completion
// provider used by deep analysis and suggestion validation.
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

// PipelineConfig holds citation-pipeline behaviour tunables.
type PipelineConfig struct {
	// TopCitationsPerElement caps how many matches per claim element survive
	// consolidation before the LLM prompt is built.
	TopCitationsPerElement int `mapstructure:"top_citations_per_element"`

	// MaxValidatedAmendments caps how many candidate amendments enter
	// phase-2 validation, bounding its cost.
	MaxValidatedAmendments int `mapstructure:"max_validated_amendments"`

	// TwoPhaseValidation enables the propose-then-validate analysis loop.
	TwoPhaseValidation bool `mapstructure:"two_phase_validation"`

	// ExaminerEnrichment enables the secondary examiner-style analysis pass.
	ExaminerEnrichment bool `mapstructure:"examiner_enrichment"`

	// ValidationRelevanceFloor is the minimum match score for a citation to
	// count as potential disclosure evidence during validation.
	ValidationRelevanceFloor float64 `mapstructure:"validation_relevance_floor"`

	// ExtractionTimeout bounds the detached background extraction task.
	ExtractionTimeout time.Duration `mapstructure:"extraction_timeout"`

	// AnalysisTimeout bounds the detached background deep-analysis task.
	AnalysisTimeout time.Duration `mapstructure:"analysis_timeout"`

	// RefreshAnalysisWait bounds how long a refresh waits for the new job's
	// deepAnalysisJson to appear before giving up on that reference.
	RefreshAnalysisWait time.Duration `mapstructure:"refresh_analysis_wait"`

	// EnqueueOnly makes the API hand extraction work to the worker over the
	// request topic instead of running the pipeline in-process.
	EnqueueOnly bool `mapstructure:"enqueue_only"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// Config is the root configuration structure for the backend.  Every
// infrastructure component and application service reads its settings from
// the relevant sub-struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	SearchAPI SearchAPIConfig `mapstructure:"search_api"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	// Search API
	if c.SearchAPI.BaseURL == "" {
		return fmt.Errorf("config: search_api.base_url is required")
	}
	if c.SearchAPI.MaxPollingAttempts < 1 {
		return fmt.Errorf("config: search_api.max_polling_attempts must be >= 1, got %d", c.SearchAPI.MaxPollingAttempts)
	}
	if c.SearchAPI.PollingInterval <= 0 {
		return fmt.Errorf("config: search_api.polling_interval must be positive")
	}
	if c.SearchAPI.DefaultThreshold < 0 || c.SearchAPI.DefaultThreshold > 1 {
		return fmt.Errorf("config: search_api.default_threshold %v is out of range [0, 1]", c.SearchAPI.DefaultThreshold)
	}

	// LLM
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("config: llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("config: llm.model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("config: llm.temperature %v is out of range [0, 2]", c.LLM.Temperature)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("config: llm.max_retries must be >= 0, got %d", c.LLM.MaxRetries)
	}

	// Pipeline
	if c.Pipeline.TopCitationsPerElement < 1 {
		return fmt.Errorf("config: pipeline.top_citations_per_element must be >= 1, got %d", c.Pipeline.TopCitationsPerElement)
	}
	if c.Pipeline.MaxValidatedAmendments < 1 {
		return fmt.Errorf("config: pipeline.max_validated_amendments must be >= 1, got %d", c.Pipeline.MaxValidatedAmendments)
	}
	if c.Pipeline.ValidationRelevanceFloor < 0 || c.Pipeline.ValidationRelevanceFloor > 1 {
		return fmt.Errorf("config: pipeline.validation_relevance_floor %v is out of range [0, 1]", c.Pipeline.ValidationRelevanceFloor)
	}

	// Worker
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
