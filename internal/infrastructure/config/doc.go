// Package config provides 12-factor configuration management for the WebTerm backend.
//
// Values are layered: Default() first, then an optional YAML or TOML file named
// by CONFIG_FILE, then environment variables. CLI flags in cmd/server override
// the result.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, shutdown timeout)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting for the REST surface
//   - Terminal: Shell, workspace, history, batching and session limits
//   - WebSocket: Keepalive, buffering, compression and inbound rate limits
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Example File (webterm.yaml):
//
//	server:
//	  port: "8080"
//	terminal:
//	  shell: /bin/zsh
//	  batchDelay: 5ms
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - TERMINAL_SHELL, WORKSPACE_DIR, TERMINAL_HISTORY_CHUNKS, TERMINAL_REPLAY_CHUNKS
//   - TERMINAL_BATCH_BYTES, TERMINAL_BATCH_DELAY, TERMINAL_STATS_INTERVAL
//   - TERMINAL_MAX_SESSIONS, TERMINAL_MAX_SESSIONS_PER_OWNER
//   - TERMINAL_DETACHED_TTL, TERMINAL_REAP_SCHEDULE, TERMINAL_PROMPT_NUDGE, TERMINAL_KILL_GRACE
//   - WS_READ_LIMIT, WS_SEND_BUFFER, WS_PING_INTERVAL, WS_PONG_TIMEOUT, WS_WRITE_TIMEOUT
//   - WS_COMPRESSION, WS_MESSAGE_RATE, WS_MESSAGE_BURST, WS_MAX_INPUT_BYTES, IDENTITY_HEADER
package config
