package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Queue.MaxSize)
	assert.False(t, cfg.Queue.Blocking)
	assert.Equal(t, time.Second, cfg.Flush.Interval)
	assert.Equal(t, 100, cfg.Flush.MaxBatchItems)
	assert.Equal(t, 3, cfg.Retry.Budget)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ARCLIGHT_QUEUE_MAX_SIZE", "42")
	t.Setenv("ARCLIGHT_FLUSH_INTERVAL", "250ms")
	t.Setenv("ARCLIGHT_OTEL_COMPAT", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Queue.MaxSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Flush.Interval)
	assert.True(t, cfg.IDs.OTelCompat)
}

func TestLoadFileOverlay(t *testing.T) {
	t.Setenv("ARCLIGHT_QUEUE_MAX_SIZE", "42")

	path := filepath.Join(t.TempDir(), "arclight.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"queue:\n  max_size: 7\nflush:\n  max_batch_items: 5\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Queue.MaxSize, "file values win over environment")
	assert.Equal(t, 5, cfg.Flush.MaxBatchItems)
	assert.Equal(t, 3, cfg.Retry.Budget, "untouched values keep their defaults")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(*Config) {}, false},
		{"empty url", func(c *Config) { c.App.URL = "" }, true},
		{"zero queue", func(c *Config) { c.Queue.MaxSize = 0 }, true},
		{"zero interval", func(c *Config) { c.Flush.Interval = 0 }, true},
		{"negative budget", func(c *Config) { c.Retry.Budget = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
