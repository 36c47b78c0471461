package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Process is one shell running on a pseudo-terminal. It is the only handle
// to the OS process; callers write, resize and kill through it.
type Process struct {
	pid    int
	cmd    *exec.Cmd
	ptmx   *os.File
	opts   Options
	events Events

	// mu guards exited, reaped, queue and the ptmx size. reaped is set as
	// soon as cmd.Wait returns, before the output drain finishes.
	mu     sync.Mutex
	cond   *sync.Cond
	exited bool
	reaped bool
	queue  [][]byte

	// deliverMu orders OnOutput calls before OnExit.
	deliverMu sync.Mutex
	delivered bool

	readDone chan struct{}
	done     chan struct{}
	exitCode int

	killOnce sync.Once
}

// Spawn starts a shell on a new PTY with the requested geometry. It fails
// without starting anything when the working directory is unusable.
func Spawn(opts Options, events Events) (*Process, error) {
	opts = opts.withDefaults()

	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working directory %s is not a directory", opts.Dir)
	}

	cmd := exec.Command(opts.Shell, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = Environment(os.Environ(), opts.Env)

	// pty.Start puts the shell in its own session, so its pid is also the
	// process group id used by Kill.
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(opts.Rows),
		Cols: uint16(opts.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	p := &Process{
		pid:      cmd.Process.Pid,
		cmd:      cmd,
		ptmx:     ptmx,
		opts:     opts,
		events:   events,
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	go p.readOutput()
	go p.writeInput()
	go p.monitorProcess()

	if opts.PromptNudge > 0 {
		time.AfterFunc(opts.PromptNudge, func() {
			_ = p.Write([]byte("\n"))
		})
	}

	return p, nil
}

// Pid returns the shell's process id.
func (p *Process) Pid() int {
	return p.pid
}

// Done is closed after OnExit has been delivered.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode is valid once Done is closed. Signal deaths report 128+signal.
func (p *Process) ExitCode() int {
	<-p.done
	return p.exitCode
}

// Write queues input for the shell and returns immediately. Bytes are
// applied in call order. Write failures are reported through OnError.
func (p *Process) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return ErrProcessTerminated
	}
	p.queue = append(p.queue, buf)
	p.cond.Signal()
	return nil
}

// Resize changes the terminal geometry.
func (p *Process) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return ErrProcessTerminated
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// Kill sends SIGHUP to the shell's process group and escalates to SIGKILL if
// the shell is still alive after KillGrace. It does not wait for the exit;
// OnExit still fires once the process is reaped. Repeated calls are no-ops.
func (p *Process) Kill() error {
	var err error
	p.killOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}

		if err = p.signal(unix.SIGHUP); err != nil {
			return
		}

		go func() {
			timer := time.NewTimer(p.opts.KillGrace)
			defer timer.Stop()
			select {
			case <-p.done:
			case <-timer.C:
				_ = p.signal(unix.SIGKILL)
			}
		}()
	})
	return err
}

// signal delivers sig to the process group unless the shell was already
// reaped, after which its pid may belong to someone else.
func (p *Process) signal(sig unix.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reaped {
		return nil
	}
	return signalGroup(p.pid, sig)
}

func signalGroup(pgid int, sig unix.Signal) error {
	err := unix.Kill(-pgid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("signal %s to process group %d: %w", unix.SignalName(sig), pgid, err)
	}
	return nil
}

// readOutput pushes every PTY read to OnOutput until the master closes.
func (p *Process) readOutput() {
	defer close(p.readDone)

	buf := make([]byte, readBufferSize)
	for {
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.deliver(chunk)
		}
		if err != nil {
			// EIO is how Linux reports a hung-up slave; EOF elsewhere.
			return
		}
	}
}

func (p *Process) deliver(chunk []byte) {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()
	if p.delivered || p.events.OnOutput == nil {
		return
	}
	p.events.OnOutput(chunk)
}

// writeInput drains the input queue into the PTY in order.
func (p *Process) writeInput() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.exited {
			p.cond.Wait()
		}
		if p.exited {
			p.queue = nil
			p.mu.Unlock()
			return
		}
		batch := p.queue
		p.queue = nil
		p.mu.Unlock()

		for _, data := range batch {
			if _, err := p.ptmx.Write(data); err != nil {
				if p.events.OnError != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
					p.events.OnError(fmt.Errorf("write to pty: %w", err))
				}
				break
			}
		}
	}
}

// monitorProcess reaps the shell, lets the reader drain, then reports exit.
func (p *Process) monitorProcess() {
	code := exitCode(p.cmd.Wait())

	p.mu.Lock()
	p.reaped = true
	p.mu.Unlock()

	timer := time.NewTimer(exitDrainGrace)
	select {
	case <-p.readDone:
	case <-timer.C:
	}
	timer.Stop()

	p.mu.Lock()
	p.exited = true
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	p.ptmx.Close()

	p.deliverMu.Lock()
	p.delivered = true
	p.deliverMu.Unlock()

	p.exitCode = code
	if p.events.OnExit != nil {
		p.events.OnExit(code)
	}
	close(p.done)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}
