package batching

import (
	"time"

	"k8s.io/utils/clock"
)

// Config bounds a batch by size and by quiescence delay.
type Config struct {
	MaxBytes int
	Delay    time.Duration
}

// DefaultConfig returns the interactive-shell tuning: 4 KiB or 2 ms.
func DefaultConfig() Config {
	return Config{
		MaxBytes: 4096,
		Delay:    2 * time.Millisecond,
	}
}

// Reason records why a frame left the accumulator.
type Reason string

const (
	ReasonSize  Reason = "size"
	ReasonTimer Reason = "timer"
	ReasonDrain Reason = "drain"
)

// Deadline identifies one scheduled flush. A deadline that fires after the
// batch it was armed for has already been flushed or rescheduled is stale and
// Expire ignores it.
type Deadline struct {
	generation uint64
}

// Batcher coalesces output chunks into frames.
//
// A Batcher is not safe for concurrent use: the owner serializes Add, Expire,
// Flush and Reset (the session does this under its own mutex). When the
// quiescence timer fires, the Batcher does not flush on its own. It hands the
// Deadline to onDeadline, and the owner calls Expire with it while holding
// the same lock that guards Add.
type Batcher struct {
	cfg        Config
	clock      clock.WithDelayedExecution
	onDeadline func(Deadline)

	pending    []byte
	timer      clock.Timer
	generation uint64
}

// New creates a Batcher. A zero MaxBytes or Delay falls back to DefaultConfig.
func New(cfg Config, clk clock.WithDelayedExecution, onDeadline func(Deadline)) *Batcher {
	def := DefaultConfig()
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.Delay <= 0 {
		cfg.Delay = def.Delay
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Batcher{
		cfg:        cfg,
		clock:      clk,
		onDeadline: onDeadline,
	}
}

// Add appends chunk to the accumulator. When the accumulated size reaches
// MaxBytes the pending timer is cancelled and the whole batch is returned for
// immediate delivery. Otherwise the flush deadline is pushed out to Delay
// from now and Add returns nil.
func (b *Batcher) Add(chunk []byte) []byte {
	if len(chunk) == 0 {
		return nil
	}

	b.pending = append(b.pending, chunk...)
	if len(b.pending) >= b.cfg.MaxBytes {
		b.cancel()
		return b.take()
	}

	b.schedule()
	return nil
}

// Expire returns the pending batch if d is the current deadline. The firing
// timer is not touched here, since Expire runs from inside its callback.
func (b *Batcher) Expire(d Deadline) []byte {
	if d.generation != b.generation || b.timer == nil {
		return nil
	}
	b.timer = nil
	b.generation++
	return b.take()
}

// Flush cancels any pending timer and returns whatever is accumulated.
func (b *Batcher) Flush() []byte {
	b.cancel()
	return b.take()
}

// Reset discards the accumulator and cancels the timer.
func (b *Batcher) Reset() {
	b.cancel()
	b.pending = nil
}

// Pending reports the number of accumulated bytes.
func (b *Batcher) Pending() int {
	return len(b.pending)
}

// Armed reports whether a flush timer is outstanding.
func (b *Batcher) Armed() bool {
	return b.timer != nil
}

func (b *Batcher) schedule() {
	b.cancel()
	d := Deadline{generation: b.generation}
	b.timer = b.clock.AfterFunc(b.cfg.Delay, func() {
		if b.onDeadline != nil {
			b.onDeadline(d)
		}
	})
}

func (b *Batcher) cancel() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.generation++
}

func (b *Batcher) take() []byte {
	if len(b.pending) == 0 {
		return nil
	}
	frame := b.pending
	b.pending = nil
	return frame
}
