package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Config that passes Validate, for mutation in tests.
func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Database.User = "citex"
	return cfg
}

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultMaxPollingAttempts, cfg.SearchAPI.MaxPollingAttempts)
	assert.Equal(t, DefaultPollingInterval, cfg.SearchAPI.PollingInterval)
	assert.Equal(t, DefaultTopCitationsPerElement, cfg.Pipeline.TopCitationsPerElement)
	assert.Equal(t, DefaultMaxValidatedAmendments, cfg.Pipeline.MaxValidatedAmendments)
	assert.Equal(t, DefaultValidationRelevanceFloor, cfg.Pipeline.ValidationRelevanceFloor)
	assert.Equal(t, DefaultExtractionTimeout, cfg.Pipeline.ExtractionTimeout)
	assert.Equal(t, DefaultAnalysisTimeout, cfg.Pipeline.AnalysisTimeout)
	assert.Equal(t, DefaultRedisTTL, cfg.Redis.DefaultTTL)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestApplyDefaults_DoesNotOverrideExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.SearchAPI.MaxPollingAttempts = 5
	cfg.SearchAPI.PollingInterval = 2 * time.Second
	cfg.Pipeline.TwoPhaseValidation = true

	ApplyDefaults(cfg)

	assert.Equal(t, 5, cfg.SearchAPI.MaxPollingAttempts)
	assert.Equal(t, 2*time.Second, cfg.SearchAPI.PollingInterval)
	assert.True(t, cfg.Pipeline.TwoPhaseValidation)
}

func TestApplyDefaults_NilIsSafe(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.SearchAPI.BaseURL = "https://search.example.com"
	cfg.LLM.BaseURL = "https://llm.example.com/v1"
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg := validConfig()
		cfg.SearchAPI.BaseURL = "https://search.example.com"
		cfg.LLM.BaseURL = "https://llm.example.com/v1"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"bad server mode", func(c *Config) { c.Server.Mode = "production" }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"missing db user", func(c *Config) { c.Database.User = "" }},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"no kafka brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"missing search base url", func(c *Config) { c.SearchAPI.BaseURL = "" }},
		{"zero polling attempts", func(c *Config) { c.SearchAPI.MaxPollingAttempts = 0 }},
		{"negative polling interval", func(c *Config) { c.SearchAPI.PollingInterval = -time.Second }},
		{"threshold above one", func(c *Config) { c.SearchAPI.DefaultThreshold = 1.5 }},
		{"missing llm base url", func(c *Config) { c.LLM.BaseURL = "" }},
		{"missing llm model", func(c *Config) { c.LLM.Model = "" }},
		{"temperature out of range", func(c *Config) { c.LLM.Temperature = 3 }},
		{"zero citation cap", func(c *Config) { c.Pipeline.TopCitationsPerElement = 0 }},
		{"relevance floor above one", func(c *Config) { c.Pipeline.ValidationRelevanceFloor = 1.2 }},
		{"zero worker concurrency", func(c *Config) { c.Worker.Concurrency = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
