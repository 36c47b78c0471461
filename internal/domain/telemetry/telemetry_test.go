package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestSnapshotThroughput(t *testing.T) {
	start := time.Unix(1700000000, 0)
	c := NewCounters(start)

	c.Record(4096)
	c.Record(904)

	s := c.Snapshot(start.Add(2 * time.Second))
	assert.Equal(t, int64(5000), s.Bytes)
	assert.Equal(t, int64(2), s.Messages)
	assert.Equal(t, 2*time.Second, s.Runtime)
	assert.Equal(t, int64(2500), s.Throughput)
}

func TestSnapshotAtCreation(t *testing.T) {
	start := time.Unix(1700000000, 0)
	c := NewCounters(start)
	c.Record(10)

	s := c.Snapshot(start)
	assert.Zero(t, s.Throughput)
	assert.Zero(t, s.Runtime)

	s = c.Snapshot(start.Add(-time.Second))
	assert.Zero(t, s.Runtime, "clock skew never yields negative runtime")
}

func TestSnapshotRounds(t *testing.T) {
	start := time.Unix(1700000000, 0)
	c := NewCounters(start)
	c.Record(10)

	s := c.Snapshot(start.Add(3 * time.Second))
	assert.Equal(t, int64(3), s.Throughput)
}

type mockPublisher struct {
	mock.Mock
	mu    sync.Mutex
	calls int
}

func (m *mockPublisher) PublishStats(now time.Time) {
	m.Called(now)
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestReporterTicks(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Unix(1700000000, 0))
	pub := &mockPublisher{}
	pub.On("PublishStats", mock.Anything).Return()

	r := NewReporter(pub, 5*time.Second, clk, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)

	clk.Step(5 * time.Second)
	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, time.Millisecond)

	clk.Step(5 * time.Second)
	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, time.Millisecond)

	cancel()
	<-done
	pub.AssertNumberOfCalls(t, "PublishStats", 2)
}
