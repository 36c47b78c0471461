package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Publisher pushes a stats snapshot for every session that has a live
// channel. Detached sessions are skipped by the publisher.
type Publisher interface {
	PublishStats(now time.Time)
}

// Reporter drives a Publisher on a fixed interval.
type Reporter struct {
	clock     clock.WithTicker
	interval  time.Duration
	publisher Publisher
	logger    *zap.Logger
}

// NewReporter creates a reporter. A nil clock uses the wall clock.
func NewReporter(publisher Publisher, interval time.Duration, clk clock.WithTicker, logger *zap.Logger) *Reporter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		clock:     clk,
		interval:  interval,
		publisher: publisher,
		logger:    logger,
	}
}

// Run ticks until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Debug("Telemetry reporter started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Telemetry reporter stopped")
			return
		case now := <-ticker.C():
			r.publisher.PublishStats(now)
		}
	}
}
