package session

import (
	"github.com/GriffinCanCode/WebTerm/backend/internal/providers/terminal"
	"github.com/GriffinCanCode/WebTerm/backend/internal/shared/protocol"
)

// Channel is one live duplex connection a session can be bound to.
//
// Send must not block and must not call back into the Registry: sessions
// call it while holding their own lock. A channel that cannot keep up should
// fail the send and tear itself down asynchronously.
type Channel interface {
	ID() string
	Send(msg *protocol.Message) error
}

// Process is the part of a PTY shell a session drives.
type Process interface {
	Pid() int
	Write(data []byte) error
	Resize(cols, rows int) error
	Kill() error
	Done() <-chan struct{}
}

// Spawner starts a shell process with callbacks fixed at spawn time.
type Spawner func(opts terminal.Options, events terminal.Events) (Process, error)

// PTYSpawner starts real shells on pseudo-terminals.
func PTYSpawner(opts terminal.Options, events terminal.Events) (Process, error) {
	proc, err := terminal.Spawn(opts, events)
	if err != nil {
		return nil, err
	}
	return proc, nil
}
