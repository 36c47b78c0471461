package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
//
// Every recording method is safe to call on a nil *Metrics, so components
// can run without monitoring wired in.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	Sessions        *prometheus.GaugeVec
	SessionsCreated prometheus.Counter
	SessionsEnded   *prometheus.CounterVec
	SpawnFailures   prometheus.Counter
	Reattachments   *prometheus.CounterVec
	ReplayBytes     prometheus.Histogram
	OutputBytes     prometheus.Counter
	OutputFrames    *prometheus.CounterVec
	OutputFrameSize prometheus.Histogram

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
	WSDropped     *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON API.
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"totalRequests"`
	TotalErrors       int64   `json:"totalErrors"`
	ActiveConnections int64   `json:"activeConnections"`
	SessionsCreated   int64   `json:"sessionsCreated"`
	OutputBytes       int64   `json:"outputBytes"`
	UptimeSeconds     float64 `json:"uptimeSeconds"`
}

// NewMetrics creates a collector backed by its own registry, so several
// instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webterm_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Session metrics
		Sessions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "webterm_sessions",
				Help: "Number of live terminal sessions by state",
			},
			[]string{"state"},
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webterm_sessions_created_total",
				Help: "Total number of terminal sessions created",
			},
		),
		SessionsEnded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_sessions_terminated_total",
				Help: "Total number of terminal sessions terminated",
			},
			[]string{"reason"},
		),
		SpawnFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webterm_spawn_failures_total",
				Help: "Total number of shells that failed to start",
			},
		),
		Reattachments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_reattachments_total",
				Help: "Total number of session reattachments",
			},
			[]string{"displaced"},
		),
		ReplayBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webterm_replay_bytes",
				Help:    "Size of history replayed on reattach",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
		),
		OutputBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webterm_output_bytes_total",
				Help: "Total PTY output bytes delivered to clients",
			},
		),
		OutputFrames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_output_frames_total",
				Help: "Total output frames by flush reason",
			},
			[]string{"reason"},
		),
		OutputFrameSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webterm_output_frame_bytes",
				Help:    "Size of batched output frames",
				Buckets: prometheus.ExponentialBuckets(16, 2, 10),
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "webterm_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
		WSDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_ws_dropped_total",
				Help: "Inbound messages rejected or connections dropped",
			},
			[]string{"reason"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "webterm_uptime_seconds",
			Help: "Backend uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the Prometheus exposition format for this collector.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SessionTransition moves one session between state gauges. An empty from
// means a new session; terminated sessions leave the gauges.
func (m *Metrics) SessionTransition(from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.Sessions.WithLabelValues(from).Dec()
	}
	if to != "terminated" {
		m.Sessions.WithLabelValues(to).Inc()
	}
}

// IncSessionsCreated increments the sessions created counter.
func (m *Metrics) IncSessionsCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.mu.Lock()
	m.snapshot.SessionsCreated++
	m.mu.Unlock()
}

// IncSessionsTerminated counts a terminated session by reason.
func (m *Metrics) IncSessionsTerminated(reason string) {
	if m == nil {
		return
	}
	m.SessionsEnded.WithLabelValues(reason).Inc()
}

// IncSpawnFailures increments the spawn failure counter.
func (m *Metrics) IncSpawnFailures() {
	if m == nil {
		return
	}
	m.SpawnFailures.Inc()
}

// ObserveReplay records one reattach and the size of its replay.
func (m *Metrics) ObserveReplay(bytes int, displaced bool) {
	if m == nil {
		return
	}
	label := "false"
	if displaced {
		label = "true"
	}
	m.Reattachments.WithLabelValues(label).Inc()
	m.ReplayBytes.Observe(float64(bytes))
}

// RecordOutputFrame records one batched output frame.
func (m *Metrics) RecordOutputFrame(bytes int, reason string) {
	if m == nil {
		return
	}
	m.OutputBytes.Add(float64(bytes))
	m.OutputFrames.WithLabelValues(reason).Inc()
	m.OutputFrameSize.Observe(float64(bytes))

	m.mu.Lock()
	m.snapshot.OutputBytes += int64(bytes)
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message.
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// RecordWSDrop records a rejected message or a dropped connection.
func (m *Metrics) RecordWSDrop(reason string) {
	if m == nil {
		return
	}
	m.WSDropped.WithLabelValues(reason).Inc()
}

// IncWSConnections increments WebSocket connections.
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections.
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns current values for the JSON API.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
