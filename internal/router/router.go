// Package router initializes the HTTP router (using Echo).
//
// It registers the middlewares and defines the API route groups,
// mapping specific paths to their corresponding handlers
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/konitys/antennes-api/internal/handler"
	"github.com/konitys/antennes-api/internal/middleware"
	"github.com/konitys/antennes-api/internal/server"
)

func NewRouter(s *server.Server, h *handler.Handlers, mws *middleware.Middlewares) *echo.Echo {
	router := echo.New()
	router.HideBanner = true
	router.HidePort = true

	router.HTTPErrorHandler = mws.Global.GlobalErrorHandler

	router.Use(
		mws.RateLimit.Limit(),
		mws.Global.CORS(),
		mws.Global.Secure(),
		middleware.RequestID(),
		mws.Tracing.NewRelicMiddleware(),
		mws.Tracing.EnhanceTracing(),
		mws.ContextEnhancer.EnhanceContext(),
		mws.Global.RequestLogger(),
		mws.Global.Recover(),
	)

	registerSystemRoutes(router, h)

	api := router.Group("/api")
	registerAntenneRoutes(api, h.Antenne, mws.Auth)

	return router
}

func registerAntenneRoutes(api *echo.Group, h *handler.AntenneHandler, auth *middleware.AuthMiddleware) {
	antennes := api.Group("/antennes", auth.RequireAuth)

	antennes.GET("", handler.Handle(h.List, http.StatusOK))
	antennes.GET("/stats", handler.Handle(h.Stats, http.StatusOK))
	antennes.GET("/ville/:ville", handler.Handle(h.ListByCity, http.StatusOK))
	antennes.GET("/:id", handler.Handle(h.Get, http.StatusOK))
	antennes.POST("", handler.Handle(h.Create, http.StatusCreated))
	antennes.PUT("/:id", handler.Handle(h.Update, http.StatusOK))
	antennes.DELETE("/:id", handler.Handle(h.Delete, http.StatusOK))
}
