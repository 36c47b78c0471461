package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/WebTerm/backend/internal/domain/batching"
	"github.com/GriffinCanCode/WebTerm/backend/internal/domain/telemetry"
	"github.com/GriffinCanCode/WebTerm/backend/internal/providers/terminal"
	"github.com/GriffinCanCode/WebTerm/backend/internal/shared/protocol"
)

// Session is one PTY shell plus its history, counters and binding.
//
// All mutable fields are guarded by mu. The PTY output callback, the batch
// timer and every client operation addressed to the session take mu, which
// serializes them per session and keeps output in OS order.
type Session struct {
	ID         string
	Owner      string
	Name       string
	WorkingDir string
	CreatedAt  time.Time

	registry *Registry
	logger   *zap.Logger
	counters *telemetry.Counters

	mu         sync.Mutex
	state      State
	channel    Channel
	proc       Process
	history    *History
	batcher    *batching.Batcher
	cols       int
	rows       int
	detachedAt time.Time

	// exitWatcher is the channel that was bound when another requester
	// killed the session. It gets the terminated notice once the shell exits.
	exitWatcher Channel
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Summary describes the session for listings.
func (s *Session) Summary() protocol.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() protocol.SessionSummary {
	return protocol.SessionSummary{
		ID:               s.ID,
		Name:             s.Name,
		StartedAt:        s.CreatedAt,
		WorkingDirectory: s.WorkingDir,
		Running:          s.state != StateTerminated,
		State:            s.state.String(),
		Cols:             s.cols,
		Rows:             s.rows,
	}
}

// Stats returns a telemetry snapshot at now.
func (s *Session) Stats(now time.Time) telemetry.Snapshot {
	return s.counters.Snapshot(now)
}

// onOutput is the supervisor's output callback. Every chunk goes to history
// first; only an Active session feeds the batcher.
func (s *Session) onOutput(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return
	}
	s.history.Append(chunk)
	s.counters.Record(len(chunk))

	if s.state != StateActive {
		return
	}
	if frame := s.batcher.Add(chunk); frame != nil {
		s.emitLocked(frame, batching.ReasonSize)
	}
}

// onDeadline runs when the batch timer fires.
func (s *Session) onDeadline(d batching.Deadline) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return
	}
	if frame := s.batcher.Expire(d); frame != nil {
		s.emitLocked(frame, batching.ReasonTimer)
	}
}

// onExit handles a shell that exited on its own. A bound client gets the
// remaining output and a terminated notice before the entry is removed.
func (s *Session) onExit(code int) {
	s.mu.Lock()
	if s.state == StateTerminated {
		if s.exitWatcher != nil {
			s.sendTo(s.exitWatcher, protocol.TypeTerminated, protocol.TerminatedPayload{
				SessionID: s.ID,
				ExitCode:  code,
			})
			s.exitWatcher = nil
		}
		s.mu.Unlock()
		return
	}
	if s.state == StateActive {
		if frame := s.batcher.Flush(); frame != nil {
			s.emitLocked(frame, batching.ReasonDrain)
		}
		s.sendLocked(protocol.TypeTerminated, protocol.TerminatedPayload{
			SessionID: s.ID,
			ExitCode:  code,
		})
	}
	s.terminateLocked("exited")
	s.mu.Unlock()

	s.logger.Info("Shell exited", zap.Int("exit_code", code))
	s.registry.remove(s)
}

func (s *Session) onError(err error) {
	if errors.Is(err, terminal.ErrProcessTerminated) {
		return
	}
	s.logger.Warn("PTY write failed", zap.Error(err))
}

func (s *Session) emitLocked(frame []byte, reason batching.Reason) {
	if s.channel == nil {
		return
	}
	s.registry.metrics.RecordOutputFrame(len(frame), string(reason))
	s.sendLocked(protocol.TypeOutput, protocol.OutputPayload{
		SessionID: s.ID,
		Data:      frame,
	})
}

func (s *Session) sendLocked(msgType string, payload interface{}) {
	s.sendTo(s.channel, msgType, payload)
}

// sendTo delivers one message to ch. Callers hold mu.
func (s *Session) sendTo(ch Channel, msgType string, payload interface{}) {
	if ch == nil {
		return
	}
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		s.logger.Error("Failed to build message", zap.String("type", msgType), zap.Error(err))
		return
	}
	if err := ch.Send(msg); err != nil {
		s.logger.Debug("Send to channel failed",
			zap.String("type", msgType),
			zap.String("channel_id", ch.ID()),
			zap.Error(err),
		)
	}
}

// bindLocked attaches ch and returns the channel it displaced, if any.
func (s *Session) bindLocked(ch Channel) Channel {
	prev := s.channel
	s.batcher.Reset()
	s.channel = ch
	s.detachedAt = time.Time{}
	s.setStateLocked(StateActive)
	return prev
}

func (s *Session) detachLocked(now time.Time) {
	s.batcher.Reset()
	s.channel = nil
	s.detachedAt = now
	s.setStateLocked(StateDetached)
}

func (s *Session) terminateLocked(reason string) {
	s.batcher.Reset()
	s.channel = nil
	s.setStateLocked(StateTerminated)
	s.registry.metrics.IncSessionsTerminated(reason)
}

func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	s.registry.metrics.SessionTransition(s.state.String(), next.String())
	s.state = next
}
