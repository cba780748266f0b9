package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konitys/antennes-api/internal/config"
	"github.com/konitys/antennes-api/internal/lib/events"
)

type stateFunc func() events.State

func (f stateFunc) State() events.State { return f() }

func newHealthHandler(checks ...dependencyCheck) *HealthHandler {
	return &HealthHandler{Handler: NewHandler(newTestServer()), checks: checks, timeout: time.Second}
}

func serveHealth(t *testing.T, h *HealthHandler) (int, map[string]any) {
	t.Helper()
	e := newTestEcho(h.server)
	e.GET("/health", h.CheckHealth)
	rec := request(e, http.MethodGet, "/health", "")
	return rec.Code, decode[map[string]any](t, rec)
}

func healthy(context.Context) (string, error) { return "", nil }

func TestCheckHealth_AllHealthy(t *testing.T) {
	h := newHealthHandler(
		dependencyCheck{name: "database", critical: true, probe: healthy},
		dependencyCheck{name: "amqp", probe: publisherProbe(stateFunc(func() events.State { return events.Connected }))},
	)

	code, body := serveHealth(t, h)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, statusHealthy, body["status"])
	assert.Equal(t, config.ServiceName, body["service"])
	assert.NotEmpty(t, body["timestamp"])

	checks := body["checks"].(map[string]any)
	amqp := checks["amqp"].(map[string]any)
	assert.Equal(t, statusHealthy, amqp["status"])
	assert.Equal(t, "connected", amqp["state"])
}

func TestCheckHealth_DegradedDependencyStaysHealthy(t *testing.T) {
	h := newHealthHandler(
		dependencyCheck{name: "database", critical: true, probe: healthy},
		dependencyCheck{name: "redis", probe: func(context.Context) (string, error) {
			return "", errors.New("dial tcp: connection refused")
		}},
		dependencyCheck{name: "amqp", probe: publisherProbe(stateFunc(func() events.State { return events.Connecting }))},
	)

	code, body := serveHealth(t, h)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, statusHealthy, body["status"])

	checks := body["checks"].(map[string]any)
	assert.Equal(t, statusUnhealthy, checks["redis"].(map[string]any)["status"])
	amqp := checks["amqp"].(map[string]any)
	assert.Equal(t, statusUnhealthy, amqp["status"])
	assert.Equal(t, "connecting", amqp["state"])
}

func TestCheckHealth_DatabaseDown(t *testing.T) {
	h := newHealthHandler(dependencyCheck{name: "database", critical: true, probe: func(context.Context) (string, error) {
		return "", errors.New("failed to connect")
	}})

	code, body := serveHealth(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, statusUnhealthy, body["status"])

	db := body["checks"].(map[string]any)["database"].(map[string]any)
	assert.Equal(t, "failed to connect", db["error"])
}

func TestCheckHealth_ProbeTimeout(t *testing.T) {
	h := newHealthHandler(dependencyCheck{name: "database", critical: true, probe: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}})
	h.timeout = 10 * time.Millisecond

	code, _ := serveHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestNewHealthHandler_SkipsAbsentDependencies(t *testing.T) {
	s := newTestServer()
	s.Config.Observability.HealthChecks.Checks = []string{"database"}

	h := NewHealthHandler(s)
	require.Len(t, h.checks, 1)
	assert.Equal(t, "database", h.checks[0].name)
	assert.True(t, h.checks[0].critical)
}

func TestServeOpenAPIUI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "openapi.html")
	require.NoError(t, os.WriteFile(path, []byte("<html>docs</html>"), 0o600))

	h := NewOpenAPIHandler(newTestServer())
	h.uiPath = path

	e := newTestEcho(h.server)
	e.GET("/docs", h.ServeOpenAPIUI)

	rec := request(e, http.MethodGet, "/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "<html>docs</html>", rec.Body.String())

	h.uiPath = filepath.Join(dir, "missing.html")
	rec = request(e, http.MethodGet, "/docs", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
