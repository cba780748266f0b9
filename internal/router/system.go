package router

import (
	"github.com/labstack/echo/v4"

	"github.com/konitys/antennes-api/internal/handler"
)

// registerSystemRoutes registers endpoints that are not part of the antenne
// API: health probes and the OpenAPI documentation.
func registerSystemRoutes(r *echo.Echo, h *handler.Handlers) {
	r.GET("/health", h.Health.CheckHealth)
	r.GET("/status", h.Health.CheckHealth)

	// openapi.json and the UI assets.
	r.Static("/static", "static")

	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)
}
