package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "data/dartlink.db", cfg.DBPath)
	assert.Equal(t, []string{"DARTSLIVE", "DARTS"}, cfg.DevicePatterns)
	assert.Equal(t, "6e40fff6-b5a3-f393-e0a9-e50e24dcca9e", cfg.NotifyCharUUID)

	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 3, cfg.ScanRetryMax)
	assert.Equal(t, 5*time.Second, cfg.ScanRetryDelay)

	assert.Equal(t, 15*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 3, cfg.ConnectRetryMax)
	assert.Equal(t, 3*time.Second, cfg.ConnectRetryDelay)

	assert.Equal(t, 1000, cfg.QueueCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.DequeueTimeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.RetryBackoff)
	assert.Equal(t, 5*time.Second, cfg.CleanupTimeout)

	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero queue capacity", func(c *Config) { c.QueueCapacity = 0 }},
		{"negative queue capacity", func(c *Config) { c.QueueCapacity = -1 }},
		{"zero scan retries", func(c *Config) { c.ScanRetryMax = 0 }},
		{"zero connect retries", func(c *Config) { c.ConnectRetryMax = 0 }},
		{"no device patterns", func(c *Config) { c.DevicePatterns = nil }},
		{"zero scan timeout", func(c *Config) { c.ScanTimeout = 0 }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DARTLINK_LOG_LEVEL", "debug")
	t.Setenv("DARTLINK_SCAN_TIMEOUT", "2s")
	t.Setenv("DARTLINK_QUEUE_CAPACITY", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 50, cfg.QueueCapacity)

	// Untouched keys keep their defaults
	assert.Equal(t, 15*time.Second, cfg.ConnectTimeout)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dartlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"db_path: /tmp/test.db\nscan_retry_max: 5\npoll_interval: 250ms\n"), 0o644))

	t.Setenv(EnvConfigPath, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.ScanRetryMax)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dartlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	t.Setenv(EnvConfigPath, path)
	t.Setenv("DARTLINK_LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("DARTLINK_QUEUE_CAPACITY", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := New()
	cfg.LogLevel = "debug"

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, "debug", logger.GetLevel().String())

	cfg.LogLevel = "not-a-level"
	_, err = cfg.NewLogger()
	assert.Error(t, err)
}
