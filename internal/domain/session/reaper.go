package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Reaper periodically kills sessions left detached longer than a TTL.
// A zero TTL disables it, keeping detached shells for the process lifetime.
type Reaper struct {
	registry *Registry
	ttl      time.Duration
	schedule string
	clock    clock.PassiveClock
	logger   *zap.Logger
	cron     *cron.Cron
}

// NewReaper creates a reaper running on a cron schedule such as "@every 1m".
func NewReaper(registry *Registry, ttl time.Duration, schedule string, logger *zap.Logger) *Reaper {
	if schedule == "" {
		schedule = "@every 1m"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{
		registry: registry,
		ttl:      ttl,
		schedule: schedule,
		clock:    clock.RealClock{},
		logger:   logger,
	}
}

// WithClock replaces the clock used to age detached sessions.
func (rp *Reaper) WithClock(clk clock.PassiveClock) *Reaper {
	rp.clock = clk
	return rp
}

// Enabled reports whether a TTL is configured.
func (rp *Reaper) Enabled() bool {
	return rp.ttl > 0
}

// Start schedules Sweep. It is a no-op when the reaper is disabled.
func (rp *Reaper) Start() error {
	if !rp.Enabled() {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(rp.schedule, func() { rp.Sweep() }); err != nil {
		return fmt.Errorf("invalid reap schedule %q: %w", rp.schedule, err)
	}
	c.Start()
	rp.cron = c

	rp.logger.Info("Detached session reaper started",
		zap.Duration("ttl", rp.ttl),
		zap.String("schedule", rp.schedule),
	)
	return nil
}

// Sweep reaps expired sessions once and returns how many were killed.
func (rp *Reaper) Sweep() int {
	n := rp.registry.ReapDetached(rp.clock.Now(), rp.ttl)
	if n > 0 {
		rp.logger.Info("Reaped detached sessions", zap.Int("count", n))
	}
	return n
}

// Stop halts the schedule and waits for a running sweep to finish or ctx
// to expire.
func (rp *Reaper) Stop(ctx context.Context) {
	if rp.cron == nil {
		return
	}
	select {
	case <-rp.cron.Stop().Done():
	case <-ctx.Done():
	}
}
