package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WebTerm/backend/internal/api/middleware"
	"github.com/GriffinCanCode/WebTerm/backend/internal/domain/session"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/WebTerm/backend/internal/shared/protocol"
)

// Config holds per-connection transport settings.
type Config struct {
	ReadLimit     int64
	SendBuffer    int
	PingInterval  time.Duration
	PongTimeout   time.Duration
	WriteTimeout  time.Duration
	Compression   bool
	MessageRate   float64
	MessageBurst  int
	MaxInputBytes int
}

// DefaultConfig returns transport defaults.
func DefaultConfig() Config {
	return Config{
		ReadLimit:     1 << 20,
		SendBuffer:    512,
		PingInterval:  25 * time.Second,
		PongTimeout:   60 * time.Second,
		WriteTimeout:  10 * time.Second,
		Compression:   true,
		MessageRate:   200,
		MessageBurst:  400,
		MaxInputBytes: 64 * 1024,
	}
}

// Handler upgrades HTTP requests to terminal websockets and binds them to
// the session registry.
type Handler struct {
	registry *session.Registry
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// NewHandler creates a new WebSocket handler.
func NewHandler(registry *session.Registry, cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Handler {
	def := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= cfg.PingInterval {
		cfg.PongTimeout = 2 * cfg.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MessageRate <= 0 {
		cfg.MessageRate = def.MessageRate
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = def.MessageBurst
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		registry: registry,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			EnableCompression: cfg.Compression,
			CheckOrigin: func(r *http.Request) bool {
				return true // Origin policy is enforced by the CORS layer
			},
		},
		logger:  logger,
		metrics: metrics,
		conns:   make(map[*Conn]struct{}),
	}
}

// HandleConnection upgrades the request and serves it until the client
// goes away. Sessions still bound to the connection are then detached,
// never killed.
func (h *Handler) HandleConnection(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing owner identity"})
		return
	}

	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	if h.cfg.Compression {
		wsConn.EnableWriteCompression(true)
	}

	logger := h.logger
	if traceID := tracing.GetTraceID(c.Request.Context()); traceID != "" {
		logger = logger.With(zap.String("trace_id", string(traceID)))
	}
	conn := newConn(wsConn, identity, h.cfg, logger, h.metrics)
	h.track(conn)
	h.metrics.IncWSConnections()
	conn.logger.Info("WebSocket connected", zap.String("remote", c.ClientIP()))

	conn.reply(protocol.TypeConnected, protocol.ConnectedPayload{
		ConnectionID: conn.ID(),
		Identity:     identity,
	})

	go conn.writePump()
	conn.readPump(func(raw []byte) {
		h.dispatch(conn, raw)
	})

	conn.shutdown()
	h.untrack(conn)
	detached := h.registry.DetachChannel(conn)
	h.metrics.DecWSConnections()
	conn.logger.Info("WebSocket disconnected", zap.Int("detached_sessions", detached))
}

// Connections returns the number of open connections.
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll sends a close frame on every open connection. http.Server
// shutdown does not reach hijacked websocket connections.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.shutdown()
	}
}

func (h *Handler) track(conn *Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Handler) untrack(conn *Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}
