// Package config defines the process configuration and its loading order.
package config

import (
	"fmt"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
)

// Config holds the full configuration surface. Every timeout in the pipeline
// is finite and set here; no component carries an unconditional infinite wait.
type Config struct {
	LogLevel string `koanf:"log_level" default:"info"`

	// DBPath locates the SQLite throw database.
	DBPath string `koanf:"db_path" default:"data/dartlink.db"`

	// MetricsAddr enables the Prometheus listener when non-empty, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// DevicePatterns are matched case-insensitively as substrings of the
	// advertised device name.
	DevicePatterns []string `koanf:"device_patterns"`

	// NotifyCharUUID is the GATT characteristic carrying throw notifications.
	NotifyCharUUID string `koanf:"notify_char_uuid" default:"6e40fff6-b5a3-f393-e0a9-e50e24dcca9e"`

	ScanTimeout    time.Duration `koanf:"scan_timeout" default:"10s"`
	ScanRetryMax   int           `koanf:"scan_retry_max" default:"3"`
	ScanRetryDelay time.Duration `koanf:"scan_retry_delay" default:"5s"`

	ConnectTimeout    time.Duration `koanf:"connect_timeout" default:"15s"`
	ConnectRetryMax   int           `koanf:"connect_retry_max" default:"3"`
	ConnectRetryDelay time.Duration `koanf:"connect_retry_delay" default:"3s"`

	// QueueCapacity bounds the ingest queue between the notification callback
	// and the worker.
	QueueCapacity int `koanf:"queue_capacity" default:"1000"`

	// DequeueTimeout is the worker's idle tick while waiting for samples.
	DequeueTimeout time.Duration `koanf:"dequeue_timeout" default:"500ms"`

	// PollInterval is how often the supervisor probes link liveness while
	// connected.
	PollInterval time.Duration `koanf:"poll_interval" default:"1s"`

	// RetryBackoff is the fixed delay before re-entering the scan phase after
	// a failed cycle.
	RetryBackoff time.Duration `koanf:"retry_backoff" default:"5s"`

	// CleanupTimeout bounds best-effort teardown during Stop.
	CleanupTimeout time.Duration `koanf:"cleanup_timeout" default:"5s"`
}

// New returns a Config populated with defaults.
func New() *Config {
	c := new(Config)
	defaults.SetDefaults(c)
	c.DevicePatterns = []string{"DARTSLIVE", "DARTS"}
	return c
}

// Validate checks invariants not expressible as defaults.
func (c *Config) Validate() error {
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.ScanRetryMax < 1 || c.ConnectRetryMax < 1 {
		return fmt.Errorf("retry counts must be at least 1")
	}
	if len(c.DevicePatterns) == 0 {
		return fmt.Errorf("device_patterns must not be empty")
	}
	if c.ScanTimeout <= 0 || c.ConnectTimeout <= 0 || c.DequeueTimeout <= 0 ||
		c.PollInterval <= 0 || c.CleanupTimeout <= 0 {
		return fmt.Errorf("all timeouts must be positive")
	}
	return nil
}

// NewLogger creates a logger configured from LogLevel.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}
