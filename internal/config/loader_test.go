package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  port: 9090
  mode: test
database:
  host: db.internal
  user: citex
  password: secret
search_api:
  base_url: https://citations.example.com
  api_key: sk-search
  max_polling_attempts: 10
  polling_interval: 5s
llm:
  base_url: https://llm.example.com/v1
  api_key: sk-llm
  model: gpt-4.1
pipeline:
  two_phase_validation: true
  max_validated_amendments: 5
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ParsesFileAndAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 10, cfg.SearchAPI.MaxPollingAttempts)
	assert.Equal(t, 5*time.Second, cfg.SearchAPI.PollingInterval)
	assert.True(t, cfg.Pipeline.TwoPhaseValidation)
	assert.Equal(t, 5, cfg.Pipeline.MaxValidatedAmendments)

	// Unset fields picked up defaults.
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, DefaultTopCitationsPerElement, cfg.Pipeline.TopCitationsPerElement)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidConfigFailsValidation(t *testing.T) {
	bad := testYAML + "\nlog:\n  level: shouty\n"
	_, err := Load(writeTempConfig(t, bad))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CITEX_DATABASE_USER", "citex")
	t.Setenv("CITEX_SEARCH_API_BASE_URL", "https://citations.example.com")
	t.Setenv("CITEX_LLM_BASE_URL", "https://llm.example.com/v1")
	t.Setenv("CITEX_SEARCH_API_MAX_POLLING_ATTEMPTS", "3")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "citex", cfg.Database.User)
	assert.Equal(t, "https://citations.example.com", cfg.SearchAPI.BaseURL)
	assert.Equal(t, 3, cfg.SearchAPI.MaxPollingAttempts)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "absent.yaml")) })
}
