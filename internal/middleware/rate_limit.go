package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/konitys/antennes-api/internal/errs"
	"github.com/konitys/antennes-api/internal/server"
)

const (
	rateLimitWindow    = time.Minute
	rateLimitKeyPrefix = "antennes:ratelimit:"
	rateLimitTimeout   = 500 * time.Millisecond
)

// RedisRateLimiterStore is a fixed one-minute window counter shared by every
// instance of the service. Redis failures let the request through.
type RedisRateLimiterStore struct {
	client *redis.Client
	limit  int
	logger *zerolog.Logger
	now    func() time.Time
}

func NewRedisRateLimiterStore(client *redis.Client, perMinute int, logger *zerolog.Logger) *RedisRateLimiterStore {
	return &RedisRateLimiterStore{
		client: client,
		limit:  perMinute,
		logger: logger,
		now:    time.Now,
	}
}

// Allow implements middleware.RateLimiterStore.
func (s *RedisRateLimiterStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), rateLimitTimeout)
	defer cancel()

	window := s.now().Truncate(rateLimitWindow).Unix()
	key := rateLimitKeyPrefix + identifier + ":" + strconv.FormatInt(window, 10)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*rateLimitWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error().Err(err).Str("identifier", identifier).Msg("rate limit store unavailable, allowing request")
		return true, nil
	}

	return incr.Val() <= int64(s.limit), nil
}

// RateLimitMiddleware limits requests per client IP.
type RateLimitMiddleware struct {
	server *server.Server
}

func NewRateLimitMiddleware(s *server.Server) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		server: s,
	}
}

// Store picks the Redis store when Redis is configured and the per-process
// memory store otherwise.
func (r *RateLimitMiddleware) Store() middleware.RateLimiterStore {
	perMinute := r.server.Config.Server.RateLimitPerMinute

	if r.server.Redis != nil {
		return NewRedisRateLimiterStore(r.server.Redis, perMinute, r.server.Logger)
	}

	return middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / rateLimitWindow.Seconds()),
		Burst:     perMinute,
		ExpiresIn: 3 * rateLimitWindow,
	})
}

// Limit returns the rate limiting middleware; a zero limit disables it.
func (r *RateLimitMiddleware) Limit() echo.MiddlewareFunc {
	if r.server.Config.Server.RateLimitPerMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: r.Store(),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return fmt.Errorf("rate limit identifier: %w", err)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			r.RecordRateLimitHit(c.Path())
			GetLogger(c).Warn().Str("identifier", identifier).Msg("rate limit exceeded")
			return errs.NewTooManyRequestsError("Trop de requêtes, réessayez plus tard")
		},
	})
}

// RecordRateLimitHit records a New Relic custom event for a denied request.
func (r *RateLimitMiddleware) RecordRateLimitHit(endpoint string) {
	if app := r.server.LoggerService.GetApplication(); app != nil {
		app.RecordCustomEvent("RateLimitHit", map[string]any{
			"endpoint": endpoint,
		})
	}
}
