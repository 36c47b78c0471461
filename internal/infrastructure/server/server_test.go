package server

import (
	"context"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/WebTerm/backend/internal/infrastructure/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.Terminal.WorkspaceDir = t.TempDir()
	cfg.Terminal.DetachedTTL = config.D(time.Hour)
	return cfg
}

func get(t *testing.T, srv *Server, path, identity string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(nethttp.MethodGet, path, nil)
	if identity != "" {
		req.Header.Set("X-Owner-Identity", identity)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	srv, err := NewServer(testConfig(t), logging.NewNop())
	require.NoError(t, err)

	assert.Equal(t, nethttp.StatusOK, get(t, srv, "/", "").Code)
	assert.Equal(t, nethttp.StatusOK, get(t, srv, "/health", "").Code)
	assert.Equal(t, nethttp.StatusUnauthorized, get(t, srv, "/sessions", "").Code)
	assert.Equal(t, nethttp.StatusOK, get(t, srv, "/sessions", "alice").Code)
	assert.Equal(t, nethttp.StatusNotFound, get(t, srv, "/sessions/term_missing/stats", "alice").Code)

	w := get(t, srv, "/health", "")
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	w = get(t, srv, "/metrics", "")
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "webterm_http_requests_total")
}

func TestServeAndShutdown(t *testing.T) {
	srv, err := NewServer(testConfig(t), logging.NewNop())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := nethttp.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == nethttp.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}

	// A second Shutdown is a no-op.
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestInvalidReapScheduleFailsServe(t *testing.T) {
	cfg := testConfig(t)
	cfg.Terminal.ReapSchedule = "whenever"
	srv, err := NewServer(cfg, logging.NewNop())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Error(t, srv.Serve(ln))
}

func TestResolveWorkspace(t *testing.T) {
	dir := t.TempDir()
	got, err := resolveWorkspace(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	wd, err := os.Getwd()
	require.NoError(t, err)
	got, err = resolveWorkspace("")
	require.NoError(t, err)
	if info, statErr := os.Stat(filepath.Join(wd, "workspace")); statErr == nil && info.IsDir() {
		assert.Equal(t, filepath.Join(wd, "workspace"), got)
	} else {
		assert.Equal(t, wd, got)
	}
}
