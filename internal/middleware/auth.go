package middleware

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/konitys/antennes-api/internal/config"
	"github.com/konitys/antennes-api/internal/errs"
	"github.com/konitys/antennes-api/internal/server"
)

const (
	// ClaimsKey stores the verified *Claims in Echo context.
	ClaimsKey = "claims"

	bearerPrefix = "Bearer "

	msgMissingToken     = "Token d'authentification manquant"
	msgInvalidToken     = "Token invalide ou expiré"
	msgNotAuthenticated = "Non authentifié"
	msgForbidden        = "Permissions insuffisantes"
)

// RoleSet is the `{"roles": [...]}` object Keycloak uses for realm and
// client roles.
type RoleSet struct {
	Roles []string `json:"roles"`
}

// Claims are the Keycloak access token claims the service relies on.
type Claims struct {
	jwt.RegisteredClaims
	PreferredUsername string             `json:"preferred_username"`
	Email             string             `json:"email"`
	RealmAccess       RoleSet            `json:"realm_access"`
	ResourceAccess    map[string]RoleSet `json:"resource_access"`
}

// HasRole reports whether role is granted at realm level or for clientID.
func (c *Claims) HasRole(clientID, role string) bool {
	if slices.Contains(c.RealmAccess.Roles, role) {
		return true
	}
	return slices.Contains(c.ResourceAccess[clientID].Roles, role)
}

// devClaims is the principal injected when authentication is bypassed.
func devClaims() *Claims {
	return &Claims{
		RegisteredClaims:  jwt.RegisteredClaims{Subject: "dev-user"},
		PreferredUsername: "developer",
		Email:             "dev@konitys.local",
		RealmAccess:       RoleSet{Roles: []string{"admin"}},
	}
}

// NewKeycloakKeyfunc fetches and refreshes the realm's signing keys in the
// background until ctx is done.
func NewKeycloakKeyfunc(ctx context.Context, cfg config.AuthConfig) (jwt.Keyfunc, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.JWKSURL()})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", cfg.JWKSURL(), err)
	}
	return k.Keyfunc, nil
}

// AuthMiddleware verifies RS256 bearer tokens issued by the configured realm.
type AuthMiddleware struct {
	server  *server.Server
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewAuthMiddleware builds the middleware. keyfunc may be nil when
// authentication is bypassed.
func NewAuthMiddleware(s *server.Server, kf jwt.Keyfunc) *AuthMiddleware {
	return &AuthMiddleware{
		server:  s,
		keyfunc: kf,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(s.Config.Auth.Issuer()),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// verified claims in Echo context.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if auth.server.Config.AuthBypassed() {
			auth.authenticate(c, devClaims())
			return next(c)
		}

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, bearerPrefix) {
			return errs.NewUnauthorizedError(msgMissingToken, true)
		}

		start := time.Now()
		claims := &Claims{}
		_, err := auth.parser.ParseWithClaims(strings.TrimPrefix(header, bearerPrefix), claims, auth.keyfunc)
		if err != nil {
			GetLogger(c).Warn().
				Err(err).
				Str("function", "RequireAuth").
				Dur("duration", time.Since(start)).
				Msg("token verification failed")

			return errs.NewUnauthorizedError(msgInvalidToken, true)
		}

		auth.authenticate(c, claims)
		return next(c)
	}
}

func (auth *AuthMiddleware) authenticate(c echo.Context, claims *Claims) {
	c.Set(ClaimsKey, claims)
	c.Set(UserIDKey, claims.Subject)
	c.Set(UserRoleKey, strings.Join(claims.RealmAccess.Roles, ","))

	// The request logger was built before authentication ran.
	logger := GetLogger(c).With().Str("user_id", claims.Subject).Logger()
	setLogger(c, &logger)
}

// RequireRole admits principals holding role as a realm role or as a role of
// the configured client. It must run after RequireAuth.
func (auth *AuthMiddleware) RequireRole(role string) echo.MiddlewareFunc {
	clientID := auth.server.Config.Auth.ClientID

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := GetClaims(c)
			if claims == nil {
				return errs.NewUnauthorizedError(msgNotAuthenticated, true)
			}
			if !claims.HasRole(clientID, role) {
				return errs.NewForbiddenError(msgForbidden, true)
			}
			return next(c)
		}
	}
}

// GetClaims returns the verified claims, nil before RequireAuth.
func GetClaims(c echo.Context) *Claims {
	claims, _ := c.Get(ClaimsKey).(*Claims)
	return claims
}
