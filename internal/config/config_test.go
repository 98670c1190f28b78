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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultRoles, cfg.Roles)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Contains(t, cfg.DBPath, "mail.db")
	assert.Equal(t, time.Second, cfg.WatchInterval())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
db_path: /tmp/custom.db
log_level: debug
roles:
  - Alice
  - Bob
watch:
  interval: 250ms
  retention_schedule: "0 3 * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"Alice", "Bob"}, cfg.Roles)
	assert.Equal(t, 250*time.Millisecond, cfg.WatchInterval())
	assert.Equal(t, "0 3 * * *", cfg.Watch.RetentionSchedule)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("AGENT_MAIL_DB_PATH", "/tmp/env.db")
	t.Setenv("AGENT_MAIL_WATCH__INTERVAL", "5s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.WatchInterval())
}

func TestBadIntervalFallsBack(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Interval: "sideways"}}
	assert.Equal(t, time.Second, cfg.WatchInterval())
}
