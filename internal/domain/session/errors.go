package session

import "errors"

var (
	// ErrNotFound covers unknown ids, terminated sessions and sessions owned
	// by someone else.
	ErrNotFound = errors.New("session not found")

	// ErrSpawnFailure means the OS refused to start the shell.
	ErrSpawnFailure = errors.New("failed to spawn shell")

	// ErrResourceExhausted means a configured session limit was reached.
	ErrResourceExhausted = errors.New("session limit reached")

	// ErrTransportInterrupted marks a channel that dropped without an
	// explicit close. Its sessions are detached, never killed.
	ErrTransportInterrupted = errors.New("transport interrupted")
)
