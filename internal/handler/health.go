package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/konitys/antennes-api/internal/config"
	"github.com/konitys/antennes-api/internal/lib/events"
	"github.com/konitys/antennes-api/internal/middleware"
	"github.com/konitys/antennes-api/internal/server"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// dependencyCheck probes one dependency. Only critical failures make the
// service unhealthy; redis and amqp degrade gracefully.
type dependencyCheck struct {
	name     string
	critical bool
	probe    func(ctx context.Context) (detail string, err error)
}

// HealthHandler reports the state of the database, redis and the event
// exchange connection.
type HealthHandler struct {
	Handler
	checks  []dependencyCheck
	timeout time.Duration
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	obs := s.Config.Observability
	h := &HealthHandler{
		Handler: NewHandler(s),
		timeout: obs.HealthChecks.Timeout,
	}

	if obs.HealthCheckEnabled("database") {
		h.checks = append(h.checks, dependencyCheck{
			name:     "database",
			critical: true,
			probe: func(ctx context.Context) (string, error) {
				return "", s.DB.Ping(ctx)
			},
		})
	}

	if s.Redis != nil && obs.HealthCheckEnabled("redis") {
		h.checks = append(h.checks, dependencyCheck{
			name: "redis",
			probe: func(ctx context.Context) (string, error) {
				return "", s.Redis.Ping(ctx).Err()
			},
		})
	}

	if s.Events != nil && obs.HealthCheckEnabled("amqp") {
		h.checks = append(h.checks, dependencyCheck{
			name:  "amqp",
			probe: publisherProbe(s.Events),
		})
	}

	return h
}

func publisherProbe(p interface{ State() events.State }) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		state := p.State()
		if state != events.Connected {
			return state.String(), fmt.Errorf("event publisher is %s", state)
		}
		return state.String(), nil
	}
}

// CheckHealth answers 200 when every critical dependency is reachable and
// 503 otherwise.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	timeout := h.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	checks := make(map[string]any, len(h.checks))
	isHealthy := true

	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		checkStart := time.Now()
		detail, err := check.probe(ctx)
		cancel()

		result := map[string]any{
			"status":        statusHealthy,
			"response_time": time.Since(checkStart).String(),
		}
		if detail != "" {
			result["state"] = detail
		}

		if err != nil {
			result["status"] = statusUnhealthy
			result["error"] = err.Error()
			if check.critical {
				isHealthy = false
			}

			logger.Error().
				Err(err).
				Str("check", check.name).
				Dur("response_time", time.Since(checkStart)).
				Msg("health check failed")

			h.recordFailure(check.name, err, time.Since(checkStart))
		}

		checks[check.name] = result
	}

	response := map[string]any{
		"status":      statusHealthy,
		"service":     config.ServiceName,
		"timestamp":   time.Now().UTC(),
		"environment": h.server.Config.Primary.Env,
		"checks":      checks,
	}

	if !isHealthy {
		response["status"] = statusUnhealthy
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("service unhealthy")
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	logger.Debug().Dur("total_duration", time.Since(start)).Msg("health check passed")
	return c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) recordFailure(check string, err error, elapsed time.Duration) {
	if app := h.server.LoggerService.GetApplication(); app != nil {
		app.RecordCustomEvent("HealthCheckError", map[string]any{
			"check_type":       check,
			"operation":        "health_check",
			"error_type":       check + "_unhealthy",
			"response_time_ms": elapsed.Milliseconds(),
			"error_message":    err.Error(),
		})
	}
}
