package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/GriffinCanCode/WebTerm/backend/internal/api/http"
	"github.com/GriffinCanCode/WebTerm/backend/internal/api/middleware"
	"github.com/GriffinCanCode/WebTerm/backend/internal/api/ws"
	"github.com/GriffinCanCode/WebTerm/backend/internal/domain/batching"
	"github.com/GriffinCanCode/WebTerm/backend/internal/domain/session"
	"github.com/GriffinCanCode/WebTerm/backend/internal/domain/telemetry"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/tracing"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *nethttp.Server
	registry  *session.Registry
	wsHandler *ws.Handler
	reporter  *telemetry.Reporter
	reaper    *session.Reaper
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics

	// mu orders startJobs against Shutdown.
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	jobs     sync.WaitGroup
	stopOnce sync.Once
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewDefault()
	}

	workspace, err := resolveWorkspace(cfg.Terminal.WorkspaceDir)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing WebTerm Server",
		zap.String("port", cfg.Server.Port),
		zap.String("workspace", workspace),
		zap.String("shell", cfg.Terminal.Shell),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("webterm", logger.Component("http"))

	registry := session.NewRegistry(session.Config{
		Shell:         cfg.Terminal.Shell,
		WorkspaceDir:  workspace,
		HistoryChunks: cfg.Terminal.HistoryChunks,
		ReplayChunks:  cfg.Terminal.ReplayChunks,
		Batch: batching.Config{
			MaxBytes: cfg.Terminal.BatchMaxBytes,
			Delay:    cfg.Terminal.BatchDelay.Duration,
		},
		MaxSessions:         cfg.Terminal.MaxSessions,
		MaxSessionsPerOwner: cfg.Terminal.MaxSessionsPerOwner,
		PromptNudge:         cfg.Terminal.PromptNudge.Duration,
		KillGrace:           cfg.Terminal.KillGrace.Duration,
	}, logger.Component("registry")).WithMetrics(metrics)

	if cfg.Terminal.SpawnBreakerFailures > 0 {
		registry.WithBreaker(newSpawnBreaker(cfg.Terminal, logger.Component("breaker")))
	}

	reporter := telemetry.NewReporter(registry, cfg.Terminal.StatsInterval.Duration, clock.RealClock{}, logger.Component("telemetry"))
	reaper := session.NewReaper(registry, cfg.Terminal.DetachedTTL.Duration, cfg.Terminal.ReapSchedule, logger.Component("reaper"))

	wsHandler := ws.NewHandler(registry, ws.Config{
		ReadLimit:     cfg.WebSocket.ReadLimit,
		SendBuffer:    cfg.WebSocket.SendBuffer,
		PingInterval:  cfg.WebSocket.PingInterval.Duration,
		PongTimeout:   cfg.WebSocket.PongTimeout.Duration,
		WriteTimeout:  cfg.WebSocket.WriteTimeout.Duration,
		Compression:   cfg.WebSocket.Compression,
		MessageRate:   float64(cfg.WebSocket.MessageRate),
		MessageBurst:  cfg.WebSocket.MessageBurst,
		MaxInputBytes: cfg.WebSocket.MaxInputBytes,
	}, logger.Component("ws"), metrics)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.WebSocket.IdentityHeader)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := http.NewHandlers(registry, metrics)
	identity := middleware.Identity(cfg.WebSocket.IdentityHeader)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Session endpoints
	sessions := router.Group("/sessions", identity)
	sessions.GET("", handlers.ListSessions)
	sessions.DELETE("/:id", handlers.CloseSession)
	sessions.GET("/:id/stats", handlers.SessionStats)

	// WebSocket
	router.GET("/terminal", identity, wsHandler.HandleConnection)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/metrics/json", handlers.MetricsSnapshot)

	logger.Info("Server initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		router: router,
		http: &nethttp.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ctx:       ctx,
		cancel:    cancel,
		registry:  registry,
		wsHandler: wsHandler,
		reporter:  reporter,
		reaper:    reaper,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() nethttp.Handler {
	return s.router
}

// Registry exposes the session registry.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Run starts the background jobs and serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.startJobs(); err != nil {
		ln.Close()
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) startJobs() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return nethttp.ErrServerClosed
	}
	if err := s.reaper.Start(); err != nil {
		return err
	}
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.reporter.Run(s.ctx)
	}()
	return nil
}

// Shutdown stops accepting connections, disconnects websocket clients,
// stops background jobs and kills every shell.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		if herr := s.http.Shutdown(ctx); herr != nil {
			s.logger.Warn("HTTP shutdown incomplete", zap.Error(herr))
			err = herr
		}
		s.wsHandler.CloseAll()

		s.mu.Lock()
		s.cancel()
		s.mu.Unlock()
		s.jobs.Wait()
		s.reaper.Stop(ctx)

		if rerr := s.registry.Shutdown(ctx); rerr != nil {
			s.logger.Error("Failed to terminate all sessions", zap.Error(rerr))
			err = errors.Join(err, rerr)
		}

		// Sync logger before exit
		_ = s.logger.Sync()
	})
	return err
}

func newSpawnBreaker(cfg config.TerminalConfig, logger *zap.Logger) *resilience.Breaker {
	threshold := uint32(cfg.SpawnBreakerFailures)
	return resilience.New("spawn", resilience.Settings{
		Timeout:   cfg.SpawnBreakerCooldown.Duration,
		IsFailure: session.IsResourceLimit,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// resolveWorkspace picks the default working directory for new shells:
// the configured one, else ./workspace if present, else the current
// directory.
func resolveWorkspace(configured string) (string, error) {
	if configured != "" {
		abs, err := filepath.Abs(configured)
		if err != nil {
			return "", fmt.Errorf("invalid workspace directory: %w", err)
		}
		return abs, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	candidate := filepath.Join(wd, "workspace")
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, nil
	}
	return wd, nil
}
