package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konitys/antennes-api/internal/errs"
)

func TestGlobalErrorHandler(t *testing.T) {
	s := newTestServer(testConfig())
	e := newTestEcho(s)

	e.GET("/http-error", func(echo.Context) error {
		return errs.NewBadRequestError("Validation failed", true, nil, []errs.FieldError{{Field: "prenom", Error: "is required"}}, nil)
	})
	e.GET("/pg-error", func(echo.Context) error {
		return &pgconn.PgError{Code: "23505", TableName: "antennes", ConstraintName: "antennes_siret_key"}
	})
	e.GET("/plain", func(echo.Context) error {
		return errors.New("dial tcp 10.0.0.3:5432: connection refused")
	})
	e.GET("/echo-error", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "body too large")
	})

	t.Run("http error keeps its fields", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/http-error", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		body := decodeError(t, rec)
		assert.False(t, body.Success)
		assert.True(t, body.Override)
		assert.Equal(t, "BAD_REQUEST", body.Code)
		assert.Equal(t, []errs.FieldError{{Field: "prenom", Error: "is required"}}, body.Errors)
	})

	t.Run("driver error is classified", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/pg-error", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ANTENNE_ALREADY_EXISTS", decodeError(t, rec).Code)
	})

	t.Run("unknown error is an opaque 500", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/plain", nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})

	t.Run("echo error", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/echo-error", nil)
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "body too large", decodeError(t, rec).Message)
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/nope", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, msgRouteNotFound, decodeError(t, rec).Message)
	})
}

func TestRequestLogger_UsesErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	s := newTestServer(testConfig())
	s.Logger = &logger
	e := newTestEcho(s)
	e.Use(RequestID(), NewContextEnhancer(s).EnhanceContext(), NewGlobalMiddlewares(s).RequestLogger())
	e.GET("/missing", func(echo.Context) error {
		return errs.NewNotFoundError("Antenne non trouvée", true, nil)
	})

	rec := do(e, http.MethodGet, "/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Contains(t, buf.String(), `"status":404`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"message":"API"`)
}

func TestRequestIDAndContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	s := newTestServer(testConfig())
	s.Logger = &logger
	e := newTestEcho(s)
	e.Use(RequestID(), NewContextEnhancer(s).EnhanceContext())
	e.GET("/api/antennes/:id", func(c echo.Context) error {
		LoggerFromContext(c.Request().Context()).Info().Msg("from context")
		return c.NoContent(http.StatusNoContent)
	})

	rec := do(e, http.MethodGet, "/api/antennes/3", http.Header{RequestIDHeader: []string{"req-123"}})
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), `"path":"/api/antennes/:id"`)

	rec = do(e, http.MethodGet, "/api/antennes/3", nil)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}
