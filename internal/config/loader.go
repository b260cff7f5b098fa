package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all citex settings.
const envPrefix = "CITEX"

// newViper builds a pre-configured Viper instance with the standard settings:
// YAML file type, CITEX_ env prefix, automatic env binding, and a key
// replacer that maps "." → "_" so nested keys like "search_api.api_key"
// resolve to "CITEX_SEARCH_API_API_KEY".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Viper only unmarshals keys it knows about; binding the full key set
	// makes env-only configuration work without a config file.
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// configKeys is the full set of dotted configuration keys.  Keep in sync with
// the struct tags in config.go.
var configKeys = []string{
	"server.port", "server.mode", "server.read_timeout", "server.write_timeout",
	"server.shutdown_timeout",
	"database.host", "database.port", "database.user", "database.password",
	"database.db_name", "database.ssl_mode", "database.max_conns",
	"database.min_conns", "database.conn_max_lifetime",
	"database.conn_max_idle_time", "database.migration_path",
	"redis.addr", "redis.password", "redis.db", "redis.pool_size",
	"redis.min_idle_conns", "redis.dial_timeout", "redis.read_timeout",
	"redis.write_timeout", "redis.default_ttl", "redis.key_prefix",
	"kafka.brokers", "kafka.group_id", "kafka.auto_offset_reset",
	"kafka.producer_retries", "kafka.batch_size",
	"search_api.base_url", "search_api.api_key", "search_api.request_timeout",
	"search_api.max_polling_attempts", "search_api.polling_interval",
	"search_api.default_threshold",
	"llm.base_url", "llm.api_key", "llm.model", "llm.temperature",
	"llm.max_tokens", "llm.request_timeout", "llm.max_retries", "llm.retry_delay",
	"pipeline.top_citations_per_element", "pipeline.max_validated_amendments",
	"pipeline.two_phase_validation", "pipeline.examiner_enrichment",
	"pipeline.validation_relevance_floor", "pipeline.extraction_timeout",
	"pipeline.analysis_timeout", "pipeline.refresh_analysis_wait",
	"pipeline.enqueue_only",
	"worker.concurrency", "worker.handler_timeout", "worker.max_retries",
	"worker.retry_backoff",
	"log.level", "log.format", "log.output",
}

// Load reads the YAML file at configPath, merges any CITEX_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.  It returns a fully-populated *Config or a descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from CITEX_* environment variables,
// with no config file required.  This is the preferred loading strategy for
// containerised (12-factor) deployments.
//
// Environment variable naming convention:
//
//	CITEX_<SECTION>_<FIELD>   e.g.  CITEX_DATABASE_HOST, CITEX_LLM_API_KEY
func LoadFromEnv() (*Config, error) {
	v := newViper()
	// No config file — rely solely on env vars and defaults.
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
