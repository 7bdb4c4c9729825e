package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.topstepx.com/api", cfg.ProjectX.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.ProjectX.Timeout)
	assert.Equal(t, 23*time.Hour, cfg.ProjectX.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Trading.DedupTTL)
	assert.Equal(t, 200, cfg.Runner.Workers)
	assert.Equal(t, 10*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "legacy", cfg.Monitor.ShortMode)
	assert.Equal(t, 0.01, cfg.Trading.DefaultTickSize)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	body := []byte(`
projectx:
  timeout: 2s
runner:
  workers: 16
monitor:
  interval: 3s
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	t.Setenv("TRADER_RUNNER_WORKERS", "32")
	t.Setenv("TS_USERNAME", "operator")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.ProjectX.Timeout)
	assert.Equal(t, 32, cfg.Runner.Workers)
	assert.Equal(t, 3*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, "operator", cfg.ProjectX.UserName)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("TRADER_STORAGE_DRIVER", "redis")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("TRADER_STORAGE_DRIVER", "postgres")
	t.Setenv("TRADER_STORAGE_DSN", "")
	t.Setenv("DATABASE_DSN", "")

	_, err := Load("")
	require.Error(t, err)
}
