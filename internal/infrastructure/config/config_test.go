package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Terminal config
	assert.Equal(t, 10000, cfg.Terminal.HistoryChunks)
	assert.Equal(t, 1000, cfg.Terminal.ReplayChunks)
	assert.Equal(t, 4096, cfg.Terminal.BatchMaxBytes)
	assert.Equal(t, 2*time.Millisecond, cfg.Terminal.BatchDelay.Duration)
	assert.Equal(t, 5*time.Second, cfg.Terminal.StatsInterval.Duration)
	assert.Zero(t, cfg.Terminal.DetachedTTL.Duration)
	assert.Equal(t, 5, cfg.Terminal.SpawnBreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.Terminal.SpawnBreakerCooldown.Duration)

	// WebSocket config
	assert.Equal(t, 25*time.Second, cfg.WebSocket.PingInterval.Duration)
	assert.True(t, cfg.WebSocket.Compression)

	require.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                    "9000",
		"HOST":                    "127.0.0.1",
		"LOG_LEVEL":               "debug",
		"LOG_DEV":                 "true",
		"RATE_LIMIT_RPS":          "500",
		"RATE_LIMIT_ENABLED":      "false",
		"TERMINAL_SHELL":          "/bin/zsh",
		"WORKSPACE_DIR":           "/srv/workspace",
		"TERMINAL_BATCH_DELAY":    "5ms",
		"TERMINAL_MAX_SESSIONS":   "32",
		"TERMINAL_DETACHED_TTL":   "1h",
		"WS_PING_INTERVAL":        "15s",
		"WS_COMPRESSION":          "false",
		"TERMINAL_HISTORY_CHUNKS": "2000",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)

	assert.Equal(t, "/bin/zsh", cfg.Terminal.Shell)
	assert.Equal(t, "/srv/workspace", cfg.Terminal.WorkspaceDir)
	assert.Equal(t, 5*time.Millisecond, cfg.Terminal.BatchDelay.Duration)
	assert.Equal(t, 32, cfg.Terminal.MaxSessions)
	assert.Equal(t, time.Hour, cfg.Terminal.DetachedTTL.Duration)
	assert.Equal(t, 2000, cfg.Terminal.HistoryChunks)
	assert.Equal(t, 1000, cfg.Terminal.ReplayChunks)

	assert.Equal(t, 15*time.Second, cfg.WebSocket.PingInterval.Duration)
	assert.False(t, cfg.WebSocket.Compression)
}

func TestLoadWithInvalidDuration(t *testing.T) {
	t.Setenv("TERMINAL_BATCH_DELAY", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webterm.yaml")
	content := `
server:
  port: "7000"
terminal:
  shell: /bin/sh
  batchDelay: 4ms
  replayChunks: 500
websocket:
  sendBuffer: 64
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "keys absent from the file keep their defaults")
	assert.Equal(t, "/bin/sh", cfg.Terminal.Shell)
	assert.Equal(t, 4*time.Millisecond, cfg.Terminal.BatchDelay.Duration)
	assert.Equal(t, 500, cfg.Terminal.ReplayChunks)
	assert.Equal(t, 4096, cfg.Terminal.BatchMaxBytes)
	assert.Equal(t, 64, cfg.WebSocket.SendBuffer)
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webterm.toml")
	content := `
[logging]
level = "warn"

[terminal]
statsInterval = "10s"
maxSessionsPerOwner = 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 10*time.Second, cfg.Terminal.StatsInterval.Duration)
	assert.Equal(t, 4, cfg.Terminal.MaxSessionsPerOwner)
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webterm.ini")
	require.NoError(t, os.WriteFile(path, []byte("port=1"), 0o600))

	err := Default().LoadFile(path)
	assert.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webterm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"7000\"\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7100", cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero history", func(c *Config) { c.Terminal.HistoryChunks = 0 }},
		{"replay larger than history", func(c *Config) { c.Terminal.ReplayChunks = c.Terminal.HistoryChunks + 1 }},
		{"zero batch size", func(c *Config) { c.Terminal.BatchMaxBytes = 0 }},
		{"zero batch delay", func(c *Config) { c.Terminal.BatchDelay = D(0) }},
		{"negative session limit", func(c *Config) { c.Terminal.MaxSessions = -1 }},
		{"negative breaker threshold", func(c *Config) { c.Terminal.SpawnBreakerFailures = -1 }},
		{"zero send buffer", func(c *Config) { c.WebSocket.SendBuffer = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte(" 250ms ")))
	assert.Equal(t, 250*time.Millisecond, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "250ms", string(text))
}
