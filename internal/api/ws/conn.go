package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/WebTerm/backend/internal/domain/session"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WebTerm/backend/internal/shared/protocol"
)

// ErrConnClosed is returned by Send after the connection has shut down.
var ErrConnClosed = errors.New("connection closed")

// Conn is one browser tab's websocket. It implements session.Channel.
//
// Outbound frames go through a bounded queue drained by writePump, so Send
// never blocks the session that calls it. A full queue closes the
// connection; its sessions are then detached and can be reattached.
type Conn struct {
	id       string
	identity string
	ws       *websocket.Conn
	cfg      Config
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	limiter  *rate.Limiter

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, identity string, cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Conn {
	connID := uuid.NewString()
	return &Conn{
		id:       connID,
		identity: identity,
		ws:       ws,
		cfg:      cfg,
		logger:   logger.With(zap.String("channel_id", connID), zap.String("owner", identity)),
		metrics:  metrics,
		limiter:  rate.NewLimiter(rate.Limit(cfg.MessageRate), cfg.MessageBurst),
		send:     make(chan []byte, cfg.SendBuffer),
		closed:   make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// Identity returns the owner identity the connection was opened with.
func (c *Conn) Identity() string {
	return c.identity
}

// Send queues msg for delivery without blocking.
func (c *Conn) Send(msg *protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- data:
		c.metrics.RecordWSMessage("out", msg.Type)
		return nil
	default:
		c.logger.Warn("Send queue full, dropping slow consumer",
			zap.Int("buffer", cap(c.send)),
			zap.String("type", msg.Type),
		)
		c.metrics.RecordWSDrop("slow_consumer")
		c.shutdown()
		return fmt.Errorf("%w: send queue full", session.ErrTransportInterrupted)
	}
}

// shutdown signals both pumps to stop. Safe to call from any goroutine.
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// readPump delivers inbound frames to handle until the socket fails or the
// connection shuts down.
func (c *Conn) readPump(handle func(raw []byte)) {
	c.ws.SetReadLimit(c.cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		msgType, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			} else {
				c.logger.Debug("WebSocket closed", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		// Any frame from the client proves liveness.
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))

		if !c.limiter.Allow() {
			c.metrics.RecordWSDrop("rate_limited")
			c.sendError("", protocol.ErrRateLimited, "message rate limit exceeded")
			continue
		}
		handle(raw)
	}
}

// writePump owns all writes to the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.shutdown()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(c.cfg.WriteTimeout))
			return
		}
	}
}

func (c *Conn) reply(msgType string, payload interface{}) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		c.logger.Error("Failed to build message", zap.String("type", msgType), zap.Error(err))
		return
	}
	_ = c.Send(msg)
}

func (c *Conn) sendError(sessionID, code, reason string) {
	msg, err := protocol.NewErrorMessage(sessionID, code, reason)
	if err != nil {
		c.logger.Error("Failed to build error message", zap.String("code", code), zap.Error(err))
		return
	}
	_ = c.Send(msg)
}
