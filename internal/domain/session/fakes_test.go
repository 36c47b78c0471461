package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/WebTerm/backend/internal/providers/terminal"
	"github.com/GriffinCanCode/WebTerm/backend/internal/shared/protocol"
)

// fakeProcess stands in for a PTY shell. Output and exit are driven by the
// test goroutine.
type fakeProcess struct {
	pid    int
	opts   terminal.Options
	events terminal.Events

	mu      sync.Mutex
	written []byte
	cols    int
	rows    int
	kills   int
	exited  bool
	done    chan struct{}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return terminal.ErrProcessTerminated
	}
	p.written = append(p.written, data...)
	return nil
}

func (p *fakeProcess) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cols, p.rows = cols, rows
	return nil
}

// Kill exits the fake with 129 like a shell hung up by SIGHUP.
func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.kills++
	p.mu.Unlock()
	p.exit(129)
	return nil
}

func (p *fakeProcess) Done() <-chan struct{} {
	return p.done
}

func (p *fakeProcess) output(s string) {
	p.events.OnOutput([]byte(s))
}

func (p *fakeProcess) exit(code int) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	p.mu.Unlock()
	p.events.OnExit(code)
	close(p.done)
}

func (p *fakeProcess) killCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kills
}

func (p *fakeProcess) input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.written)
}

type fakeSpawner struct {
	mu    sync.Mutex
	procs []*fakeProcess
	err   error
}

func (f *fakeSpawner) spawn(opts terminal.Options, events terminal.Events) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &fakeProcess{pid: 1000 + len(f.procs), opts: opts, events: events, done: make(chan struct{})}
	f.procs = append(f.procs, p)
	return p, nil
}

func (f *fakeSpawner) last() *fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.procs[len(f.procs)-1]
}

// recordingChannel keeps every message sent to it.
type recordingChannel struct {
	id string

	mu   sync.Mutex
	msgs []*protocol.Message
}

func newRecordingChannel(id string) *recordingChannel {
	return &recordingChannel{id: id}
}

func (c *recordingChannel) ID() string { return c.id }

func (c *recordingChannel) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *recordingChannel) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m.Type)
	}
	return out
}

func (c *recordingChannel) ofType(msgType string) []*protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*protocol.Message
	for _, m := range c.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// outputFor concatenates every output frame sent for sessionID.
func (c *recordingChannel) outputFor(t *testing.T, sessionID string) string {
	t.Helper()
	var out []byte
	for _, m := range c.ofType(protocol.TypeOutput) {
		var p protocol.OutputPayload
		require.NoError(t, m.DecodePayload(&p))
		if p.SessionID == sessionID {
			out = append(out, p.Data...)
		}
	}
	return string(out)
}
