package terminal

import (
	"errors"
	"os"
	"time"
)

// ErrProcessTerminated is returned by Write and Resize once the shell has exited.
var ErrProcessTerminated = errors.New("process terminated")

// Options configures one shell process.
type Options struct {
	Shell string
	Args  []string
	Dir   string
	Cols  int
	Rows  int

	// Env entries are applied on top of the sanitized server environment.
	Env map[string]string

	// PromptNudge, when positive, writes a single newline that long after
	// start so shells that wait for input still paint a prompt.
	PromptNudge time.Duration

	// KillGrace is how long Kill waits after SIGHUP before SIGKILL.
	KillGrace time.Duration
}

// Events are fixed at spawn time. Callbacks run on supervisor goroutines and
// must not block for long.
type Events struct {
	// OnOutput receives each raw chunk read from the PTY, in order. The slice
	// is owned by the callee.
	OnOutput func(chunk []byte)

	// OnExit fires exactly once, after the last OnOutput call.
	OnExit func(code int)

	// OnError reports asynchronous write failures.
	OnError func(err error)
}

const (
	defaultCols      = 80
	defaultRows      = 24
	defaultKillGrace = 2 * time.Second

	// exitDrainGrace bounds how long exit waits for the reader to see EOF.
	// Background jobs that keep the slave open would otherwise hold it forever.
	exitDrainGrace = 500 * time.Millisecond

	readBufferSize = 32 * 1024
)

// DefaultShell resolves $SHELL, then bash, then sh.
func DefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash"
	}
	return "/bin/sh"
}

func (o Options) withDefaults() Options {
	if o.Shell == "" {
		o.Shell = DefaultShell()
	}
	if o.Dir == "" {
		if wd, err := os.Getwd(); err == nil {
			o.Dir = wd
		}
	}
	if o.Cols <= 0 {
		o.Cols = defaultCols
	}
	if o.Rows <= 0 {
		o.Rows = defaultRows
	}
	if o.KillGrace <= 0 {
		o.KillGrace = defaultKillGrace
	}
	return o
}
