package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/konitys/antennes-api/internal/config"
	"github.com/konitys/antennes-api/internal/database"
	"github.com/konitys/antennes-api/internal/handler"
	"github.com/konitys/antennes-api/internal/logger"
	"github.com/konitys/antennes-api/internal/middleware"
	"github.com/konitys/antennes-api/internal/repository"
	"github.com/konitys/antennes-api/internal/router"
	"github.com/konitys/antennes-api/internal/server"
	"github.com/konitys/antennes-api/internal/service"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService, err := logger.NewLoggerService(cfg.Observability)
	if err != nil {
		panic(err)
	}
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(cfg, &log, loggerService).ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		loggerService.Shutdown()
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config, log *zerolog.Logger, loggerService *logger.LoggerService) *cobra.Command {
	root := &cobra.Command{
		Use:           "antennes",
		Short:         "Antennes API: CRUD service for antennes with change events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var skipMigrations bool
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !skipMigrations {
				if err := database.Migrate(cmd.Context(), log, cfg); err != nil {
					return err
				}
			}
			return runServer(cmd.Context(), cfg, log, loggerService)
		},
	}
	serve.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply database migrations on startup")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create the antennes schema and seed default rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return database.Migrate(cmd.Context(), log, cfg)
		},
	}

	root.AddCommand(serve, migrate)
	return root
}

func runServer(ctx context.Context, cfg *config.Config, log *zerolog.Logger, loggerService *logger.LoggerService) error {
	srv, err := server.New(cfg, log, loggerService)
	if err != nil {
		return err
	}

	mws, err := middleware.NewMiddlewares(ctx, srv)
	if err != nil {
		_ = srv.Shutdown(context.Background())
		return err
	}

	repos := repository.NewRepositories(srv)
	services := service.NewServices(srv, repos)
	handlers := handler.NewHandlers(srv, services)
	r := router.NewRouter(srv, handlers, mws)

	srv.SetupHTTPServer(r)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start(ctx)
	}()

	select {
	case err = <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("server forced to shutdown")
		return errors.Join(err, shutdownErr)
	}

	log.Info().Msg("server exited properly")
	return err
}
