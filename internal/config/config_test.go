package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
database:
  dsn: postgres://u:p@localhost:5432/consorcio
jobs:
  batch_size: 250
  claim_ttl: 10m
administrators:
  Santander:
    source: csv
    encoding: iso-8859-1
    header_row: 1
  porto:
    source: api
    base_url: https://partner.example.com
    rate_limit: 2.5
sync:
  schedules:
    santander: "0 6 * * *"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoadConfigDefaultsAndValues(t *testing.T) {
	cfg, err := LoadConfigFrom(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Jobs.BatchSize)
	assert.Equal(t, 10*time.Minute, cfg.Jobs.ClaimTTL)
	assert.Equal(t, 6, cfg.Jobs.LookbackMonths, "default")
	assert.Equal(t, 3, cfg.Jobs.MinAssemblies, "default")
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "log", cfg.Events.Backend)
	assert.Equal(t, time.Hour, cfg.Lock.TTL)

	porto, ok := cfg.Administrator("PORTO")
	require.True(t, ok)
	assert.Equal(t, "api", porto.Source)
	assert.Equal(t, 2.5, porto.RateLimit)

	// viper 的 map key 统一为小写
	santander, ok := cfg.Administrator("santander")
	require.True(t, ok)
	assert.Equal(t, 1, santander.HeaderRow)
	assert.Equal(t, "0 6 * * *", cfg.Sync.Schedules["santander"])

	_, ok = cfg.Administrator("bradesco")
	assert.False(t, ok)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://env@db:5432/consorcio")
	t.Setenv("PORTO_API_TOKEN", "secret-token")
	t.Setenv("SANTANDER_XLSX_PASSWORD", "pwd")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfigFrom(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env@db:5432/consorcio", cfg.Database.DSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "secret-token", cfg.Administrators["porto"].AuthToken)
	assert.Equal(t, "pwd", cfg.Administrators["santander"].Password)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfigFrom(t.TempDir())
	assert.Error(t, err)
}
