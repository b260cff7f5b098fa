// Package config provides configuration loading, defaults, and validation for
// the citex backend.
package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "citex"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisTTL       = 15 * time.Minute
	DefaultRedisKeyPrefix = "citex:"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "citex-workers"

	// Polling budget defaults: 30 attempts at 10s gives the ~5 minute hard
	// ceiling on extraction latency.
	DefaultMaxPollingAttempts   = 30
	DefaultPollingInterval      = 10 * time.Second
	DefaultSearchRequestTimeout = 15 * time.Second
	DefaultSearchThreshold      = 0.3

	DefaultLLMModel          = "gpt-4.1"
	DefaultLLMTemperature    = 0.2
	DefaultLLMMaxTokens      = 8000
	DefaultLLMRequestTimeout = 60 * time.Second
	DefaultLLMMaxRetries     = 3
	DefaultLLMRetryDelay     = 2 * time.Second

	DefaultTopCitationsPerElement   = 3
	DefaultMaxValidatedAmendments   = 7
	DefaultValidationRelevanceFloor = 0.7
	DefaultExtractionTimeout        = 45 * time.Second
	DefaultAnalysisTimeout          = 3 * time.Minute
	DefaultRefreshAnalysisWait      = 60 * time.Second

	DefaultWorkerConcurrency    = 4
	DefaultWorkerHandlerTimeout = 5 * time.Minute
	DefaultWorkerMaxRetries     = 3
	DefaultWorkerRetryBackoff   = time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the platform
// default.  Fields already set by the caller are left unchanged so explicit
// configuration always wins.  It must be called after unmarshalling and
// before Validate so that optional-but-defaulted fields are never seen as
// missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// Server
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Kafka
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}

	// Search API
	if cfg.SearchAPI.MaxPollingAttempts == 0 {
		cfg.SearchAPI.MaxPollingAttempts = DefaultMaxPollingAttempts
	}
	if cfg.SearchAPI.PollingInterval == 0 {
		cfg.SearchAPI.PollingInterval = DefaultPollingInterval
	}
	if cfg.SearchAPI.RequestTimeout == 0 {
		cfg.SearchAPI.RequestTimeout = DefaultSearchRequestTimeout
	}
	if cfg.SearchAPI.DefaultThreshold == 0 {
		cfg.SearchAPI.DefaultThreshold = DefaultSearchThreshold
	}

	// LLM
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = DefaultLLMTemperature
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = DefaultLLMMaxTokens
	}
	if cfg.LLM.RequestTimeout == 0 {
		cfg.LLM.RequestTimeout = DefaultLLMRequestTimeout
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = DefaultLLMMaxRetries
	}
	if cfg.LLM.RetryDelay == 0 {
		cfg.LLM.RetryDelay = DefaultLLMRetryDelay
	}

	// Pipeline
	if cfg.Pipeline.TopCitationsPerElement == 0 {
		cfg.Pipeline.TopCitationsPerElement = DefaultTopCitationsPerElement
	}
	if cfg.Pipeline.MaxValidatedAmendments == 0 {
		cfg.Pipeline.MaxValidatedAmendments = DefaultMaxValidatedAmendments
	}
	if cfg.Pipeline.ValidationRelevanceFloor == 0 {
		cfg.Pipeline.ValidationRelevanceFloor = DefaultValidationRelevanceFloor
	}
	if cfg.Pipeline.ExtractionTimeout == 0 {
		cfg.Pipeline.ExtractionTimeout = DefaultExtractionTimeout
	}
	if cfg.Pipeline.AnalysisTimeout == 0 {
		cfg.Pipeline.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if cfg.Pipeline.RefreshAnalysisWait == 0 {
		cfg.Pipeline.RefreshAnalysisWait = DefaultRefreshAnalysisWait
	}

	// Worker
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.HandlerTimeout == 0 {
		cfg.Worker.HandlerTimeout = DefaultWorkerHandlerTimeout
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = DefaultWorkerMaxRetries
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = DefaultWorkerRetryBackoff
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
