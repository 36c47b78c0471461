package telemetry

import (
	"math"
	"sync/atomic"
	"time"
)

// Counters track one session's output volume. They are monotonic for the
// life of the session and are never reset on reattach.
type Counters struct {
	createdAt time.Time
	bytes     atomic.Int64
	messages  atomic.Int64
}

// NewCounters starts counting at createdAt.
func NewCounters(createdAt time.Time) *Counters {
	return &Counters{createdAt: createdAt}
}

// Record accounts for one chunk of PTY output.
func (c *Counters) Record(n int) {
	c.bytes.Add(int64(n))
	c.messages.Add(1)
}

// Snapshot is a point-in-time view of Counters.
type Snapshot struct {
	Bytes      int64
	Messages   int64
	Runtime    time.Duration
	Throughput int64 // bytes per second since creation, rounded
}

// Snapshot computes throughput as total bytes over wall time since creation.
func (c *Counters) Snapshot(now time.Time) Snapshot {
	s := Snapshot{
		Bytes:    c.bytes.Load(),
		Messages: c.messages.Load(),
		Runtime:  now.Sub(c.createdAt),
	}
	if s.Runtime < 0 {
		s.Runtime = 0
	}
	if secs := s.Runtime.Seconds(); secs > 0 {
		s.Throughput = int64(math.Round(float64(s.Bytes) / secs))
	}
	return s
}
