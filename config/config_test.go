package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: \"file::memory:\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.CacheTTL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 10.0, cfg.Ledger.TolerancePercent)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.False(t, cfg.Push.Enabled())
	assert.Equal(t, time.UTC, cfg.Ledger.Location())
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  cache_ttl_seconds: 5
database:
  driver: sqlite
  dsn: "outputs.db"
ledger:
  timezone: "Africa/Lagos"
  tolerance_percent: 7.5
  seed_reference: true
worker_pool:
  size: 3
mqtt:
  enabled: true
  broker: "tcp://broker:1883"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.CacheTTL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 7.5, cfg.Ledger.TolerancePercent)
	assert.True(t, cfg.Ledger.SeedReference)
	assert.Equal(t, "Africa/Lagos", cfg.Ledger.Location().String())
	assert.Equal(t, 3, cfg.WorkerPool.Size)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "outputd", cfg.MQTT.ClientID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
