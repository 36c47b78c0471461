// Package main is the entry point for the WebTerm terminal backend.
//
// The server runs interactive shells on pseudo-terminals and bridges them
// to browser tabs over websockets. Shells outlive the tabs that opened
// them: a reconnecting client lists its sessions and reattaches, receiving
// recent output as history.
//
// Architecture:
//
//	Browser (xterm) ⇄ WebSocket /terminal → Session Registry → PTY shell
//	                 REST /sessions       ↗
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - Optional YAML or TOML file via CONFIG_FILE or -config
//   - CLI flags override both
//
// Usage:
//
//	# Production mode
//	WORKSPACE_DIR=/srv/workspace ./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown; every shell is hung up
package main
