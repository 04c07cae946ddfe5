package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Autosave.Debounce.Duration)
	assert.Equal(t, 15*time.Minute, cfg.Cache.CleanupInterval.Duration)
	assert.Equal(t, 30*time.Minute, cfg.Cache.MaxAge.Duration)
	assert.Equal(t, 5, cfg.Realtime.MaxAttempts)
}

func TestLoadFileParsesDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[server]
addr = "0.0.0.0:9000"
session_ttl = "12h"

[autosave]
debounce = "750ms"

[client]
default_project = "abc"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, 12*time.Hour, cfg.Server.SessionTTL.Duration)
	assert.Equal(t, 750*time.Millisecond, cfg.Autosave.Debounce.Duration)
	assert.Equal(t, "abc", cfg.Client.DefaultProject)
	// untouched sections keep defaults
	assert.Equal(t, 300, cfg.Server.RateLimit.RequestsPerMinute)
}

func TestLoadFileRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[autosave]\ndebounce = \"soon\"\n"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PLANHAUS_SERVER_URL", "http://example.test")
	t.Setenv("PLANHAUS_LOG_LEVEL", "debug")
	t.Setenv("PLANHAUS_NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "http://example.test", cfg.Client.ServerURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATSURL)
}

func TestSaveFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.Client.DefaultProject = "p-1"
	cfg.Cache.MaxAge = Duration{45 * time.Minute}
	require.NoError(t, SaveFile(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.Client.DefaultProject)
	assert.Equal(t, 45*time.Minute, got.Cache.MaxAge.Duration)
}

func TestDatabasePath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join(DataDir(), "planhaus.db"), DatabasePath(cfg))

	cfg.Server.Database = "/tmp/x.db"
	assert.Equal(t, "/tmp/x.db", DatabasePath(cfg))

	t.Setenv("PLANHAUS_DB", "/tmp/env.db")
	assert.Equal(t, "/tmp/env.db", DatabasePath(cfg))
}

func TestLoadFileTrustedProxies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[server.rate_limit]\ntrusted_proxies = [\"10.0.0.0/8\", \"127.0.0.1\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.RateLimit.TrustedProxies)
	assert.Equal(t, 300, cfg.Server.RateLimit.RequestsPerMinute)
}
