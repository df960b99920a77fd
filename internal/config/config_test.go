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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTP.Address)
	assert.Equal(t, ":8081", cfg.Server.WebSocket.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.HTTP.ReadTimeout)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "replays", cfg.Replay.SaveDir)
	assert.True(t, cfg.Replay.AutoRecord)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTP.Address)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  http:
    address: ":9999"
database:
  enabled: true
  host: db.internal
  port: 5433
logging:
  level: debug
  format: json
replay:
  save_dir: /var/lib/ygopen/replays
  auto_record: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.HTTP.Address)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/var/lib/ygopen/replays", cfg.Replay.SaveDir)
	assert.False(t, cfg.Replay.AutoRecord)

	// Defaults survive for keys the file omits.
	assert.Equal(t, ":8081", cfg.Server.WebSocket.Address)
}

func TestDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "ygopen",
		Password: "secret",
		Database: "duels",
		SSLMode:  "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=ygopen password=secret dbname=duels sslmode=disable",
		cfg.DSN())
}
