package handler

import (
	"github.com/konitys/antennes-api/internal/server"
	"github.com/konitys/antennes-api/internal/service"
)

// Handlers groups every HTTP handler so router setup receives one value.
type Handlers struct {
	Antenne *AntenneHandler
	Health  *HealthHandler
	OpenAPI *OpenAPIHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Antenne: NewAntenneHandler(s, services.Antennes),
		Health:  NewHealthHandler(s),
		OpenAPI: NewOpenAPIHandler(s),
	}
}
