package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/GriffinCanCode/WebTerm/backend/internal/domain/batching"
	"github.com/GriffinCanCode/WebTerm/backend/internal/domain/telemetry"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/WebTerm/backend/internal/providers/terminal"
	"github.com/GriffinCanCode/WebTerm/backend/internal/shared/id"
	"github.com/GriffinCanCode/WebTerm/backend/internal/shared/protocol"
)

// Config holds registry-wide session settings.
type Config struct {
	Shell        string
	WorkspaceDir string
	Env          map[string]string

	HistoryChunks int
	ReplayChunks  int
	Batch         batching.Config

	// Zero means unlimited.
	MaxSessions         int
	MaxSessionsPerOwner int

	PromptNudge time.Duration
	KillGrace   time.Duration
}

// DefaultConfig returns registry defaults.
func DefaultConfig() Config {
	return Config{
		HistoryChunks: 10000,
		ReplayChunks:  1000,
		Batch:         batching.DefaultConfig(),
	}
}

// CreateRequest carries the client's parameters for a new session.
type CreateRequest struct {
	Cols       int
	Rows       int
	Name       string
	ClientRef  string
	WorkingDir string // empty uses the configured workspace
}

// ReattachRequest carries the client's parameters for a reattach.
type ReattachRequest struct {
	Encoding string // "" or protocol.EncodingGzip
}

// Registry is the single source of truth for live sessions.
//
// The registry lock guards only the id → session map and is never held while
// a session lock is being acquired. Check-then-act on a session (reattach vs.
// exit, close vs. close) happens under that session's own lock.
type Registry struct {
	cfg     Config
	spawn   Spawner
	clock   clock.WithDelayedExecution
	logger  *zap.Logger
	metrics *monitoring.Metrics
	breaker *resilience.Breaker

	mu       sync.RWMutex
	sessions map[string]*Session
	pending  map[string]int // owner → creates in flight
	named    map[string]int // owner → sessions ever created
}

// NewRegistry creates a registry that spawns real PTY shells.
func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	def := DefaultConfig()
	if cfg.HistoryChunks <= 0 {
		cfg.HistoryChunks = def.HistoryChunks
	}
	if cfg.ReplayChunks <= 0 || cfg.ReplayChunks > cfg.HistoryChunks {
		cfg.ReplayChunks = min(def.ReplayChunks, cfg.HistoryChunks)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:      cfg,
		spawn:    PTYSpawner,
		clock:    clock.RealClock{},
		logger:   logger,
		sessions: make(map[string]*Session),
		pending:  make(map[string]int),
		named:    make(map[string]int),
	}
}

// WithMetrics attaches a metrics collector.
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	return r
}

// WithClock replaces the clock used for batch timers and detach times.
func (r *Registry) WithClock(clk clock.WithDelayedExecution) *Registry {
	r.clock = clk
	return r
}

// WithBreaker guards spawning with a circuit breaker. While it is open,
// Create fails with ErrResourceExhausted without forking.
func (r *Registry) WithBreaker(breaker *resilience.Breaker) *Registry {
	r.breaker = breaker
	return r
}

// WithSpawner replaces the process spawner.
func (r *Registry) WithSpawner(spawn Spawner) *Registry {
	r.spawn = spawn
	return r
}

// Create spawns a shell and registers it Active, bound to ch. The created
// notice is sent to ch before any output can be.
func (r *Registry) Create(owner string, req CreateRequest, ch Channel) (*Session, error) {
	name, err := r.reserve(owner, req.Name)
	if err != nil {
		return nil, err
	}

	dir := req.WorkingDir
	if dir == "" {
		dir = r.cfg.WorkspaceDir
	}

	now := r.clock.Now()
	sessionID := id.NewSessionID().String()
	s := &Session{
		ID:         sessionID,
		Owner:      owner,
		Name:       name,
		WorkingDir: dir,
		CreatedAt:  now,
		registry:   r,
		logger:     r.logger.With(zap.String("session_id", sessionID), zap.String("owner", owner)),
		counters:   telemetry.NewCounters(now),
		state:      StateActive,
		channel:    ch,
		history:    NewHistory(r.cfg.HistoryChunks),
		cols:       req.Cols,
		rows:       req.Rows,
	}
	s.batcher = batching.New(r.cfg.Batch, r.clock, s.onDeadline)

	// Callbacks block on s.mu until the session is registered.
	s.mu.Lock()
	defer s.mu.Unlock()

	proc, err := r.spawnGuarded(terminal.Options{
		Shell:       r.cfg.Shell,
		Dir:         dir,
		Cols:        req.Cols,
		Rows:        req.Rows,
		Env:         r.cfg.Env,
		PromptNudge: r.cfg.PromptNudge,
		KillGrace:   r.cfg.KillGrace,
	}, terminal.Events{
		OnOutput: s.onOutput,
		OnExit:   s.onExit,
		OnError:  s.onError,
	})
	if err != nil {
		r.release(owner)
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			r.logger.Warn("Shell spawning paused", zap.String("owner", owner))
			return nil, fmt.Errorf("%w: shell spawning paused: %v", ErrResourceExhausted, err)
		}
		r.metrics.IncSpawnFailures()
		r.logger.Warn("Failed to spawn shell",
			zap.String("owner", owner),
			zap.String("dir", dir),
			zap.Error(err),
		)
		if IsResourceLimit(err) {
			return nil, fmt.Errorf("%w: %w: %v", ErrSpawnFailure, ErrResourceExhausted, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}
	s.proc = proc

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.releaseLocked(owner)
	r.mu.Unlock()

	r.metrics.IncSessionsCreated()
	r.metrics.SessionTransition("", StateActive.String())
	s.sendLocked(protocol.TypeCreated, protocol.CreatedPayload{
		SessionID: s.ID,
		Name:      s.Name,
		ClientRef: req.ClientRef,
	})

	s.logger.Info("Session created",
		zap.String("name", s.Name),
		zap.Int("pid", proc.Pid()),
		zap.String("dir", dir),
		zap.Int("cols", req.Cols),
		zap.Int("rows", req.Rows),
	)
	return s, nil
}

// reserve enforces session limits and picks a default name.
func (r *Registry) reserve(owner, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.MaxSessions > 0 {
		total := len(r.sessions)
		for _, n := range r.pending {
			total += n
		}
		if total >= r.cfg.MaxSessions {
			return "", fmt.Errorf("%w: %d sessions", ErrResourceExhausted, r.cfg.MaxSessions)
		}
	}
	if r.cfg.MaxSessionsPerOwner > 0 {
		owned := r.pending[owner]
		for _, s := range r.sessions {
			if s.Owner == owner {
				owned++
			}
		}
		if owned >= r.cfg.MaxSessionsPerOwner {
			return "", fmt.Errorf("%w: %d sessions per owner", ErrResourceExhausted, r.cfg.MaxSessionsPerOwner)
		}
	}

	r.pending[owner]++
	r.named[owner]++
	if name == "" {
		name = fmt.Sprintf("Terminal %d", r.named[owner])
	}
	return name, nil
}

func (r *Registry) release(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(owner)
}

func (r *Registry) releaseLocked(owner string) {
	if r.pending[owner]--; r.pending[owner] <= 0 {
		delete(r.pending, owner)
	}
}

func (r *Registry) spawnGuarded(opts terminal.Options, events terminal.Events) (Process, error) {
	if r.breaker == nil {
		return r.spawn(opts, events)
	}
	var proc Process
	err := r.breaker.Execute(func() error {
		var err error
		proc, err = r.spawn(opts, events)
		return err
	})
	return proc, err
}

// IsResourceLimit reports OS errors that mean the host is out of processes,
// descriptors or memory rather than misconfigured.
func IsResourceLimit(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ENOMEM)
}

// lookup resolves id for owner. Sessions of other owners are reported as
// not found.
func (r *Registry) lookup(owner, sessionID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok || s.Owner != owner {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return s, nil
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.ID]; ok && cur == s {
		delete(r.sessions, s.ID)
	}
	r.mu.Unlock()
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// ListByOwner returns every non-terminated session of owner, oldest first.
func (r *Registry) ListByOwner(owner string) []protocol.SessionSummary {
	var list []protocol.SessionSummary
	for _, s := range r.snapshot() {
		if s.Owner != owner {
			continue
		}
		s.mu.Lock()
		if s.state != StateTerminated {
			list = append(list, s.summaryLocked())
		}
		s.mu.Unlock()
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	if list == nil {
		list = []protocol.SessionSummary{}
	}
	return list
}

// Get returns one of owner's sessions.
func (r *Registry) Get(owner, sessionID string) (*Session, error) {
	s, err := r.lookup(owner, sessionID)
	if err != nil {
		return nil, err
	}
	if s.State() == StateTerminated {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return s, nil
}

// Reattach binds ch to a live session and replays its recent history.
// A session Active on another channel is taken over; the old channel stops
// receiving output for it but is not closed.
func (r *Registry) Reattach(owner, sessionID string, req ReattachRequest, ch Channel) (*Session, error) {
	s, err := r.lookup(owner, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	history := s.history.Tail(r.cfg.ReplayChunks)
	payload := protocol.ReattachedPayload{
		SessionID: s.ID,
		Name:      s.Name,
		History:   history,
	}
	if req.Encoding == protocol.EncodingGzip {
		compressed, err := protocol.CompressHistory(history)
		if err != nil {
			return nil, err
		}
		payload.History = compressed
		payload.Encoding = protocol.EncodingGzip
	}

	prev := s.bindLocked(ch)
	displaced := prev != nil && prev.ID() != ch.ID()
	r.metrics.ObserveReplay(len(payload.History), displaced)
	s.sendLocked(protocol.TypeReattached, payload)

	fields := []zap.Field{
		zap.String("channel_id", ch.ID()),
		zap.Int("history_bytes", len(history)),
	}
	if displaced {
		fields = append(fields, zap.String("displaced_channel_id", prev.ID()))
	}
	s.logger.Info("Session reattached", fields...)
	return s, nil
}

// Close detaches the session (keepAlive) or kills its shell and removes it.
// Closing an unknown or already killed session returns ErrNotFound.
//
// requester, when not nil, receives the closed acknowledgment. A different
// channel still bound to the session is told as well: closed for a detach,
// terminated once the killed shell has exited.
func (r *Registry) Close(owner, sessionID string, keepAlive bool, requester Channel) error {
	s, err := r.lookup(owner, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	ack := protocol.ClosedPayload{SessionID: s.ID, KeepAlive: keepAlive}
	bound := s.channel
	if bound != nil && requester != nil && bound.ID() == requester.ID() {
		bound = nil
	}

	if keepAlive {
		if s.state == StateActive {
			s.detachLocked(r.clock.Now())
		}
		s.sendTo(bound, protocol.TypeClosed, ack)
		s.sendTo(requester, protocol.TypeClosed, ack)
		s.mu.Unlock()
		s.logger.Info("Session detached")
		return nil
	}

	s.terminateLocked("closed")
	s.exitWatcher = bound
	s.sendTo(requester, protocol.TypeClosed, ack)
	proc := s.proc
	s.mu.Unlock()

	r.remove(s)
	if err := proc.Kill(); err != nil {
		s.logger.Warn("Failed to kill shell", zap.Error(err))
	}
	s.logger.Info("Session closed")
	return nil
}

// DetachChannel moves every session bound to ch to Detached. It is called
// when the transport drops without an explicit close.
func (r *Registry) DetachChannel(ch Channel) int {
	now := r.clock.Now()
	detached := 0
	for _, s := range r.snapshot() {
		s.mu.Lock()
		if s.state == StateActive && s.channel != nil && s.channel.ID() == ch.ID() {
			s.detachLocked(now)
			detached++
		}
		s.mu.Unlock()
	}
	if detached > 0 {
		r.logger.Info("Detached sessions from dropped channel",
			zap.String("channel_id", ch.ID()),
			zap.Int("sessions", detached),
		)
	}
	return detached
}

// Input forwards bytes to the session's shell. Writes after the shell has
// exited are dropped; the terminated notice reports that.
func (r *Registry) Input(owner, sessionID string, data []byte) error {
	proc, err := r.liveProcess(owner, sessionID)
	if err != nil {
		return err
	}
	if err := proc.Write(data); err != nil && !errors.Is(err, terminal.ErrProcessTerminated) {
		return err
	}
	return nil
}

// Resize changes the session's terminal geometry.
func (r *Registry) Resize(owner, sessionID string, cols, rows int) error {
	s, err := r.lookup(owner, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	s.cols, s.rows = cols, rows
	proc := s.proc
	s.mu.Unlock()

	if err := proc.Resize(cols, rows); err != nil && !errors.Is(err, terminal.ErrProcessTerminated) {
		return err
	}
	return nil
}

func (r *Registry) liveProcess(owner, sessionID string) (Process, error) {
	s, err := r.lookup(owner, sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return s.proc, nil
}

// PublishStats pushes a stats message to every Active session's channel.
func (r *Registry) PublishStats(now time.Time) {
	for _, s := range r.snapshot() {
		s.mu.Lock()
		if s.state == StateActive {
			snap := s.counters.Snapshot(now)
			s.sendLocked(protocol.TypeStats, protocol.StatsPayload{
				SessionID:  s.ID,
				Throughput: snap.Throughput,
				Messages:   snap.Messages,
				RuntimeMs:  snap.Runtime.Milliseconds(),
			})
		}
		s.mu.Unlock()
	}
}

// ReapDetached kills sessions that have been detached for at least ttl.
func (r *Registry) ReapDetached(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	reaped := 0
	for _, s := range r.snapshot() {
		s.mu.Lock()
		expired := s.state == StateDetached && now.Sub(s.detachedAt) >= ttl
		var proc Process
		if expired {
			s.terminateLocked("reaped")
			proc = s.proc
		}
		s.mu.Unlock()

		if !expired {
			continue
		}
		r.remove(s)
		if err := proc.Kill(); err != nil {
			s.logger.Warn("Failed to kill reaped shell", zap.Error(err))
		}
		s.logger.Info("Reaped detached session", zap.Duration("ttl", ttl))
		reaped++
	}
	return reaped
}

// Counts returns the number of sessions per state.
func (r *Registry) Counts() map[string]int {
	counts := map[string]int{
		StateActive.String():   0,
		StateDetached.String(): 0,
	}
	for _, s := range r.snapshot() {
		st := s.State()
		if st != StateTerminated {
			counts[st.String()]++
		}
	}
	return counts
}

// Shutdown kills every session and waits for the shells to exit or for ctx
// to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	var procs []Process
	for _, s := range r.snapshot() {
		s.mu.Lock()
		if s.state != StateTerminated {
			s.terminateLocked("shutdown")
			procs = append(procs, s.proc)
		}
		s.mu.Unlock()
		r.remove(s)
	}

	for _, proc := range procs {
		if err := proc.Kill(); err != nil {
			r.logger.Warn("Failed to kill shell during shutdown", zap.Error(err))
		}
	}
	for _, proc := range procs {
		select {
		case <-proc.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.logger.Info("All sessions terminated", zap.Int("count", len(procs)))
	return nil
}
