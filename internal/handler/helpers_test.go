package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/konitys/antennes-api/internal/config"
	"github.com/konitys/antennes-api/internal/errs"
	"github.com/konitys/antennes-api/internal/middleware"
	"github.com/konitys/antennes-api/internal/model"
	"github.com/konitys/antennes-api/internal/server"
	"github.com/konitys/antennes-api/internal/service"
)

func newTestServer() *server.Server {
	logger := zerolog.Nop()
	return &server.Server{
		Config: &config.Config{
			Primary:       config.Primary{Env: "test"},
			Observability: config.DefaultObservabilityConfig(),
		},
		Logger: &logger,
	}
}

func newTestEcho(s *server.Server) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.NewGlobalMiddlewares(s).GlobalErrorHandler
	return e
}

func request(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var body T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func notFound() error {
	return errs.NewNotFoundError(service.MsgAntenneNotFound, true, nil)
}

// fakeAntennes records the arguments it receives and answers with canned
// values.
type fakeAntennes struct {
	page    *service.AntennePage
	antenne *model.Antenne
	list    []model.Antenne
	stats   model.Stats
	err     error

	gotFilters model.Filters
	gotPage    model.Pagination
	gotID      int64
	gotVille   string
	gotNew     model.NewAntenne
	gotPatch   model.AntennePatch
	calls      int
}

func (f *fakeAntennes) List(_ context.Context, filters model.Filters, page model.Pagination) (*service.AntennePage, error) {
	f.calls++
	f.gotFilters, f.gotPage = filters, page
	return f.page, f.err
}

func (f *fakeAntennes) Get(_ context.Context, id int64) (*model.Antenne, error) {
	f.calls++
	f.gotID = id
	return f.antenne, f.err
}

func (f *fakeAntennes) Create(_ context.Context, in model.NewAntenne) (*model.Antenne, error) {
	f.calls++
	f.gotNew = in
	return f.antenne, f.err
}

func (f *fakeAntennes) Update(_ context.Context, id int64, patch model.AntennePatch) (*model.Antenne, error) {
	f.calls++
	f.gotID, f.gotPatch = id, patch
	return f.antenne, f.err
}

func (f *fakeAntennes) Delete(_ context.Context, id int64) error {
	f.calls++
	f.gotID = id
	return f.err
}

func (f *fakeAntennes) ListByCity(_ context.Context, ville string) ([]model.Antenne, error) {
	f.calls++
	f.gotVille = ville
	return f.list, f.err
}

func (f *fakeAntennes) Stats(context.Context) (model.Stats, error) {
	f.calls++
	return f.stats, f.err
}

var _ AntenneService = (*fakeAntennes)(nil)

func newAntenneEcho(fake *fakeAntennes) *echo.Echo {
	s := newTestServer()
	e := newTestEcho(s)
	mountAntennes(e, NewAntenneHandler(s, fake))
	return e
}

func mountAntennes(e *echo.Echo, h *AntenneHandler) {
	g := e.Group("/api/antennes")
	g.GET("", Handle(h.List, http.StatusOK))
	g.GET("/stats", Handle(h.Stats, http.StatusOK))
	g.GET("/ville/:ville", Handle(h.ListByCity, http.StatusOK))
	g.GET("/:id", Handle(h.Get, http.StatusOK))
	g.POST("", Handle(h.Create, http.StatusCreated))
	g.PUT("/:id", Handle(h.Update, http.StatusOK))
	g.DELETE("/:id", Handle(h.Delete, http.StatusOK))
}
