package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/WebTerm/backend/internal/api/middleware"
	"github.com/GriffinCanCode/WebTerm/backend/internal/domain/session"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/monitoring"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	registry  *session.Registry
	metrics   *monitoring.Metrics
	startTime time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(registry *session.Registry, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		registry:  registry,
		metrics:   metrics,
		startTime: time.Now(),
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "WebTerm Terminal Service (Go)",
		"version": "0.1.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.registry.Counts(),
		"uptime":   time.Since(h.startTime).Seconds(),
	})
}

// ListSessions returns the caller's live sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	owner := middleware.GetIdentity(c)
	c.JSON(http.StatusOK, gin.H{
		"sessions": h.registry.ListByOwner(owner),
	})
}

// CloseSession detaches (keepAlive=true) or kills a session
func (h *Handlers) CloseSession(c *gin.Context) {
	owner := middleware.GetIdentity(c)
	sessionID := c.Param("id")

	keepAlive := false
	if raw := c.Query("keepAlive"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "keepAlive must be a boolean"})
			return
		}
		keepAlive = parsed
	}

	if err := h.registry.Close(owner, sessionID, keepAlive, nil); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": sessionID,
		"keepAlive": keepAlive,
	})
}

// SessionStats returns the current telemetry snapshot of a session
func (h *Handlers) SessionStats(c *gin.Context) {
	owner := middleware.GetIdentity(c)
	sessionID := c.Param("id")

	s, err := h.registry.Get(owner, sessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	summary := s.Summary()
	snap := s.Stats(time.Now())
	c.JSON(http.StatusOK, gin.H{
		"sessionId":  sessionID,
		"name":       summary.Name,
		"state":      summary.State,
		"cols":       summary.Cols,
		"rows":       summary.Rows,
		"bytes":      snap.Bytes,
		"messages":   snap.Messages,
		"throughput": snap.Throughput,
		"runtimeMs":  snap.Runtime.Milliseconds(),
	})
}

// MetricsSnapshot returns headline counters as JSON
func (h *Handlers) MetricsSnapshot(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics disabled"})
		return
	}
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
