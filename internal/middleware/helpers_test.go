package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/konitys/antennes-api/internal/config"
	"github.com/konitys/antennes-api/internal/errs"
	"github.com/konitys/antennes-api/internal/server"
)

func testConfig() *config.Config {
	return &config.Config{
		Primary: config.Primary{Env: "production"},
		Server:  config.ServerConfig{Port: "3002", RateLimitPerMinute: 3},
		Auth: config.AuthConfig{
			KeycloakURL: "http://keycloak:8080",
			PublicURL:   "http://localhost:8080",
			Realm:       "konitys",
			ClientID:    "konitys-api",
		},
		Observability: config.DefaultObservabilityConfig(),
	}
}

func newTestServer(cfg *config.Config) *server.Server {
	logger := zerolog.Nop()
	return &server.Server{Config: cfg, Logger: &logger}
}

// newTestEcho wires the global error handler so responses have their final shape.
func newTestEcho(s *server.Server) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = NewGlobalMiddlewares(s).GlobalErrorHandler
	return e
}

func ok(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"user_id": GetUserID(c)})
}

func do(e *echo.Echo, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errs.HTTPError {
	t.Helper()
	var body errs.HTTPError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
