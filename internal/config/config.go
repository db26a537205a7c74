// Package config loads pipeline configuration from the environment with an
// optional YAML file overlay. Core logic never reads configuration ad hoc:
// everything is resolved here once and passed down as explicit parameters.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all pipeline configuration.
type Config struct {
	App     AppConfig
	Queue   QueueConfig
	Flush   FlushConfig
	Retry   RetryConfig
	IDs     IDConfig
	Logging LogConfig
}

// AppConfig holds ingestion endpoint configuration.
type AppConfig struct {
	URL    string `envconfig:"ARCLIGHT_APP_URL" yaml:"url" default:"https://api.arclight.dev"`
	APIKey string `envconfig:"ARCLIGHT_API_KEY" yaml:"api_key"`
}

// QueueConfig holds delivery queue configuration.
type QueueConfig struct {
	MaxSize  int  `envconfig:"ARCLIGHT_QUEUE_MAX_SIZE" yaml:"max_size" default:"6000"`
	Blocking bool `envconfig:"ARCLIGHT_QUEUE_BLOCKING" yaml:"blocking" default:"false"`
}

// FlushConfig holds worker cadence and batch sizing.
type FlushConfig struct {
	Interval      time.Duration `envconfig:"ARCLIGHT_FLUSH_INTERVAL" yaml:"interval" default:"1s"`
	MaxBatchItems int           `envconfig:"ARCLIGHT_MAX_BATCH_ITEMS" yaml:"max_batch_items" default:"100"`
	MaxBatchBytes int           `envconfig:"ARCLIGHT_MAX_BATCH_BYTES" yaml:"max_batch_bytes" default:"10485760"`
}

// RetryConfig holds delivery retry configuration.
type RetryConfig struct {
	Budget         int           `envconfig:"ARCLIGHT_RETRY_BUDGET" yaml:"budget" default:"3"`
	AttemptTimeout time.Duration `envconfig:"ARCLIGHT_ATTEMPT_TIMEOUT" yaml:"attempt_timeout" default:"30s"`
	MinWait        time.Duration `envconfig:"ARCLIGHT_RETRY_MIN_WAIT" yaml:"min_wait" default:"1s"`
	MaxWait        time.Duration `envconfig:"ARCLIGHT_RETRY_MAX_WAIT" yaml:"max_wait" default:"30s"`
}

// IDConfig selects the identifier scheme.
type IDConfig struct {
	// OTelCompat switches span/trace ids to the OpenTelemetry hex format,
	// required for the distributed context bridge.
	OTelCompat bool `envconfig:"ARCLIGHT_OTEL_COMPAT" yaml:"otel_compat" default:"false"`
}

// LogConfig holds SDK diagnostic logging configuration.
type LogConfig struct {
	Level       string `envconfig:"ARCLIGHT_LOG_LEVEL" yaml:"level" default:"warn"`
	Development bool   `envconfig:"ARCLIGHT_LOG_DEV" yaml:"development" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from the environment, then overlays values
// from a YAML file. File values win over environment values.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns default configuration, ignoring the environment.
func Default() *Config {
	return &Config{
		App:     AppConfig{URL: "https://api.arclight.dev"},
		Queue:   QueueConfig{MaxSize: 6000},
		Flush:   FlushConfig{Interval: time.Second, MaxBatchItems: 100, MaxBatchBytes: 10 << 20},
		Retry:   RetryConfig{Budget: 3, AttemptTimeout: 30 * time.Second, MinWait: time.Second, MaxWait: 30 * time.Second},
		Logging: LogConfig{Level: "warn"},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.App.URL == "" {
		return fmt.Errorf("app URL must not be empty")
	}
	if c.Queue.MaxSize <= 0 {
		return fmt.Errorf("queue max size must be positive, got %d", c.Queue.MaxSize)
	}
	if c.Flush.Interval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %s", c.Flush.Interval)
	}
	if c.Retry.Budget < 0 {
		return fmt.Errorf("retry budget must not be negative, got %d", c.Retry.Budget)
	}
	return nil
}
