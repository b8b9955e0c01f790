package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ormkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  dialect: sqlite
  dsn: ":memory:"
  pool:
    maxOpenConns: 3
logging:
  level: debug
  format: json
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Dialect)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Database.Pool.MaxOpenConns)
	// Unset pool knobs keep their defaults.
	assert.Equal(t, 5, cfg.Database.Pool.MaxIdleConns)
	assert.Equal(t, time.Hour, cfg.Database.Pool.ConnMaxLifetime)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, `
database:
  dialect: sqlite
  dsn: ":memory:"
`)
	t.Setenv("ORMKIT_DATABASE_DSN", "file:songs.db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file:songs.db", cfg.Database.DSN)
}

func TestLoadConfigValidation(t *testing.T) {
	path := writeConfig(t, `
database:
  dialect: sqlite
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
