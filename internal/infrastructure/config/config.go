package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rateLimit" toml:"rateLimit"`
	Terminal  TerminalConfig  `yaml:"terminal" toml:"terminal"`
	WebSocket WebSocketConfig `yaml:"websocket" toml:"websocket"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string   `envconfig:"PORT" yaml:"port" toml:"port"`
	Host            string   `envconfig:"HOST" yaml:"host" toml:"host"`
	ShutdownTimeout Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdownTimeout" toml:"shutdownTimeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds HTTP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// TerminalConfig holds PTY session settings.
type TerminalConfig struct {
	// Shell is the login shell; empty falls back to $SHELL, then /bin/bash.
	Shell        string `envconfig:"TERMINAL_SHELL" yaml:"shell" toml:"shell"`
	WorkspaceDir string `envconfig:"WORKSPACE_DIR" yaml:"workspaceDir" toml:"workspaceDir"`

	HistoryChunks int      `envconfig:"TERMINAL_HISTORY_CHUNKS" yaml:"historyChunks" toml:"historyChunks"`
	ReplayChunks  int      `envconfig:"TERMINAL_REPLAY_CHUNKS" yaml:"replayChunks" toml:"replayChunks"`
	BatchMaxBytes int      `envconfig:"TERMINAL_BATCH_BYTES" yaml:"batchBytes" toml:"batchBytes"`
	BatchDelay    Duration `envconfig:"TERMINAL_BATCH_DELAY" yaml:"batchDelay" toml:"batchDelay"`
	StatsInterval Duration `envconfig:"TERMINAL_STATS_INTERVAL" yaml:"statsInterval" toml:"statsInterval"`

	// Zero means unlimited.
	MaxSessions         int `envconfig:"TERMINAL_MAX_SESSIONS" yaml:"maxSessions" toml:"maxSessions"`
	MaxSessionsPerOwner int `envconfig:"TERMINAL_MAX_SESSIONS_PER_OWNER" yaml:"maxSessionsPerOwner" toml:"maxSessionsPerOwner"`

	// DetachedTTL of zero keeps detached sessions until the process exits.
	DetachedTTL  Duration `envconfig:"TERMINAL_DETACHED_TTL" yaml:"detachedTTL" toml:"detachedTTL"`
	ReapSchedule string   `envconfig:"TERMINAL_REAP_SCHEDULE" yaml:"reapSchedule" toml:"reapSchedule"`

	PromptNudge Duration `envconfig:"TERMINAL_PROMPT_NUDGE" yaml:"promptNudge" toml:"promptNudge"`
	KillGrace   Duration `envconfig:"TERMINAL_KILL_GRACE" yaml:"killGrace" toml:"killGrace"`

	// Consecutive OS resource-limit spawn failures that pause spawning for
	// SpawnBreakerCooldown. Zero disables the breaker.
	SpawnBreakerFailures int      `envconfig:"TERMINAL_SPAWN_BREAKER_FAILURES" yaml:"spawnBreakerFailures" toml:"spawnBreakerFailures"`
	SpawnBreakerCooldown Duration `envconfig:"TERMINAL_SPAWN_BREAKER_COOLDOWN" yaml:"spawnBreakerCooldown" toml:"spawnBreakerCooldown"`
}

// WebSocketConfig holds duplex channel settings.
type WebSocketConfig struct {
	ReadLimit      int64    `envconfig:"WS_READ_LIMIT" yaml:"readLimit" toml:"readLimit"`
	SendBuffer     int      `envconfig:"WS_SEND_BUFFER" yaml:"sendBuffer" toml:"sendBuffer"`
	PingInterval   Duration `envconfig:"WS_PING_INTERVAL" yaml:"pingInterval" toml:"pingInterval"`
	PongTimeout    Duration `envconfig:"WS_PONG_TIMEOUT" yaml:"pongTimeout" toml:"pongTimeout"`
	WriteTimeout   Duration `envconfig:"WS_WRITE_TIMEOUT" yaml:"writeTimeout" toml:"writeTimeout"`
	Compression    bool     `envconfig:"WS_COMPRESSION" yaml:"compression" toml:"compression"`
	MessageRate    int      `envconfig:"WS_MESSAGE_RATE" yaml:"messageRate" toml:"messageRate"`
	MessageBurst   int      `envconfig:"WS_MESSAGE_BURST" yaml:"messageBurst" toml:"messageBurst"`
	MaxInputBytes  int      `envconfig:"WS_MAX_INPUT_BYTES" yaml:"maxInputBytes" toml:"maxInputBytes"`
	IdentityHeader string   `envconfig:"IDENTITY_HEADER" yaml:"identityHeader" toml:"identityHeader"`
}

// Duration is a time.Duration that decodes from "2ms" style text in
// environment variables, YAML and TOML alike.
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration literal.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load builds configuration from defaults, an optional CONFIG_FILE overlay,
// and environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile overlays values from a YAML or TOML file onto cfg. Keys absent
// from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the terminal subsystem cannot run with.
func (c *Config) Validate() error {
	t := c.Terminal
	switch {
	case t.HistoryChunks <= 0:
		return fmt.Errorf("terminal history capacity must be positive, got %d", t.HistoryChunks)
	case t.ReplayChunks <= 0 || t.ReplayChunks > t.HistoryChunks:
		return fmt.Errorf("terminal replay window must be within 1..%d, got %d", t.HistoryChunks, t.ReplayChunks)
	case t.BatchMaxBytes <= 0:
		return fmt.Errorf("terminal batch size must be positive, got %d", t.BatchMaxBytes)
	case t.BatchDelay.Duration <= 0:
		return fmt.Errorf("terminal batch delay must be positive, got %s", t.BatchDelay)
	case t.StatsInterval.Duration <= 0:
		return fmt.Errorf("terminal stats interval must be positive, got %s", t.StatsInterval)
	case t.MaxSessions < 0 || t.MaxSessionsPerOwner < 0:
		return fmt.Errorf("terminal session limits must not be negative")
	case t.SpawnBreakerFailures < 0:
		return fmt.Errorf("terminal spawn breaker threshold must not be negative")
	case c.WebSocket.SendBuffer <= 0:
		return fmt.Errorf("websocket send buffer must be positive, got %d", c.WebSocket.SendBuffer)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: D(10 * time.Second),
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Terminal: TerminalConfig{
			HistoryChunks: 10000,
			ReplayChunks:  1000,
			BatchMaxBytes: 4096,
			BatchDelay:    D(2 * time.Millisecond),
			StatsInterval: D(5 * time.Second),
			ReapSchedule:  "@every 1m",
			KillGrace:     D(2 * time.Second),

			SpawnBreakerFailures: 5,
			SpawnBreakerCooldown: D(30 * time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadLimit:      1 << 20,
			SendBuffer:     512,
			PingInterval:   D(25 * time.Second),
			PongTimeout:    D(60 * time.Second),
			WriteTimeout:   D(10 * time.Second),
			Compression:    true,
			MessageRate:    200,
			MessageBurst:   400,
			MaxInputBytes:  64 * 1024,
			IdentityHeader: "X-Owner-Identity",
		},
	}
}
