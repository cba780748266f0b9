package middleware

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/konitys/antennes-api/internal/server"
)

// Middlewares groups every middleware component so router setup receives a
// single value.
type Middlewares struct {
	Global          *GlobalMiddlewares
	Auth            *AuthMiddleware
	ContextEnhancer *ContextEnhancer
	Tracing         *TracingMiddleware
	RateLimit       *RateLimitMiddleware
}

// NewMiddlewares builds the middleware components. Signing keys are fetched
// from Keycloak unless authentication is bypassed; ctx bounds their refresh.
func NewMiddlewares(ctx context.Context, s *server.Server) (*Middlewares, error) {
	var kf jwt.Keyfunc
	if s.Config.AuthBypassed() {
		s.Logger.Warn().Msg("authentication disabled, every request runs as dev-user")
	} else {
		var err error
		kf, err = NewKeycloakKeyfunc(ctx, s.Config.Auth)
		if err != nil {
			return nil, err
		}
	}

	return &Middlewares{
		Global:          NewGlobalMiddlewares(s),
		Auth:            NewAuthMiddleware(s, kf),
		ContextEnhancer: NewContextEnhancer(s),
		Tracing:         NewTracingMiddleware(s, s.LoggerService.GetApplication()),
		RateLimit:       NewRateLimitMiddleware(s),
	}, nil
}
