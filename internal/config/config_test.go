package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "imgfetch/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, DefaultImageURL, cfg.Fetch.DefaultURL)
	assert.Equal(t, 10, cfg.Fetch.MaxIdleConnsPerHost)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.InDelta(t, 0, cfg.Batch.RatePerHost, 0.001)
	assert.Equal(t, "json", cfg.Batch.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
fetch:
  user_agent: gallery-bot/2.0
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - https://gallery.example.com
batch:
  concurrency: 3
  rate_per_host: 2.5
  format: yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gallery-bot/2.0", cfg.Fetch.UserAgent)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://gallery.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 3, cfg.Batch.Concurrency)
	assert.InDelta(t, 2.5, cfg.Batch.RatePerHost, 0.001)
	assert.Equal(t, "yaml", cfg.Batch.Format)
	// Defaults still apply for unset values
	assert.Equal(t, DefaultImageURL, cfg.Fetch.DefaultURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
fetch:
  user_agent: from-file
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("IMGFETCH_FETCH_USER_AGENT", "from-env")
	t.Setenv("IMGFETCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "from-env", cfg.Fetch.UserAgent)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("IMGFETCH_SERVER_PORT", "3000")
	t.Setenv("IMGFETCH_BATCH_CONCURRENCY", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Batch.Concurrency)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("fetch: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Fetch.DefaultURL = DefaultImageURL
	cfg.Fetch.MaxIdleConnsPerHost = 10
	cfg.Batch.Concurrency = 8
	cfg.Batch.Format = "json"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"fetch", "batch", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateFetch_DefaultURLNotChecked(t *testing.T) {
	// An explicit url argument overrides the default, so a bad default only
	// fails once it is bound.
	cfg := validDefaults()
	cfg.Fetch.DefaultURL = "ftp://example.com/a.png"

	assert.NoError(t, cfg.Validate("fetch"))
}

func TestValidateFetch_EmptyDefaultURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Fetch.DefaultURL = ""

	assert.NoError(t, cfg.Validate("fetch"))
}

func TestValidateBatch_Bounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.Concurrency = 0
	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 256")

	cfg.Batch.Concurrency = MaxBatchConcurrency + 1
	assert.Error(t, cfg.Validate("batch"))

	cfg.Batch.Concurrency = MaxBatchConcurrency
	assert.NoError(t, cfg.Validate("batch"))

	cfg.Batch.RatePerHost = -1
	err = cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate_per_host")
}

func TestValidateBatch_Format(t *testing.T) {
	cfg := validDefaults()
	cfg.Batch.Format = "xml"

	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.format must be json or yaml")

	cfg.Batch.Format = "yaml"
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Batch.Concurrency = 0
	cfg.Batch.Format = "csv"
	cfg.Fetch.MaxIdleConnsPerHost = -1

	err := cfg.Validate("batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency")
	assert.Contains(t, err.Error(), "batch.format")
	assert.Contains(t, err.Error(), "max_idle_conns_per_host")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
