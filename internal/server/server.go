// Package server defines the Server container that composes the service's
// main dependencies and owns their lifecycle.
//
// It holds:
//   - configuration
//   - logger + optional New Relic service wrapper
//   - database pool
//   - optional redis client (rate limiting)
//   - the event publisher
//   - http.Server
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/konitys/antennes-api/internal/config"
	"github.com/konitys/antennes-api/internal/database"
	"github.com/konitys/antennes-api/internal/lib/events"
	loggerPkg "github.com/konitys/antennes-api/internal/logger"
)

// Server is the application container. It is not the HTTP server itself.
type Server struct {
	Config        *config.Config
	Logger        *zerolog.Logger
	LoggerService *loggerPkg.LoggerService
	DB            *database.Database

	// Redis is nil when no address is configured.
	Redis *redis.Client

	Events *events.Publisher

	httpServer *http.Server
}

// New constructs a Server and initializes core dependencies.
//
// The database is mandatory and pinged here. Redis is optional: a failed ping
// is logged and startup continues. The event publisher is created but only
// connects once Start is called.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	db, err := database.New(cfg, logger, loggerService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	server := &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		DB:            db,
		Redis:         newRedisClient(cfg, logger, loggerService),
		Events: events.NewPublisher(events.Options{
			URL:            cfg.AMQP.URL,
			Exchange:       cfg.AMQP.Exchange,
			ReconnectDelay: cfg.AMQP.ReconnectDelay,
		}, logger),
	}

	return server, nil
}

func newRedisClient(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Address,
	})

	if loggerService.GetApplication() != nil {
		redisClient.AddHook(nrredis.NewHook(redisClient.Options()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error().Err(err).Msg("Failed to connect to Redis, continuing without Redis")
	}

	return redisClient
}

// SetupHTTPServer configures the internal net/http server around handler.
func (s *Server) SetupHTTPServer(handler http.Handler) {
	s.httpServer = &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}
}

// Start connects the event publisher in the background and serves HTTP until
// Shutdown. It requires SetupHTTPServer to be called first.
func (s *Server) Start(ctx context.Context) error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	s.Events.Start(ctx)

	if queue := s.Config.AMQP.AuditQueue; queue != "" {
		if err := events.NewAuditConsumer(s.Logger).Register(ctx, s.Events, queue); err != nil {
			return fmt.Errorf("failed to register audit consumer: %w", err)
		}
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Msg("starting server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops HTTP first so in-flight requests can still publish, then
// closes the publisher, the pool and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown HTTP server: %w", err))
		}
	}

	if s.Events != nil {
		if err := s.Events.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database connection: %w", err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}

	return errors.Join(errs...)
}
