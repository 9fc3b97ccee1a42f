package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/segyhp/loan-tracker/internal/config"
	"github.com/segyhp/loan-tracker/internal/handler"
	"github.com/segyhp/loan-tracker/internal/repository"
	"github.com/segyhp/loan-tracker/internal/service"
	applog "github.com/segyhp/loan-tracker/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := applog.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	log.Logger = logger

	// Initialize store
	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.Health.Timeout)
	store, err := repository.Open(startCtx, cfg)
	cancelStart()
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to initialize store")
	}
	defer store.Close()

	// Initialize service
	loanService := service.NewLoanService(store.Loans, store.Payments, cfg, logger)
	loanHandler := handler.NewLoanHandler(loanService, store.Changes, logger)

	healthHandler := handler.NewHealthHandler(cfg.Health.Timeout)
	if store.DB != nil {
		healthHandler.WithDB(store.DB)
	}
	if store.Redis != nil {
		healthHandler.WithRedis(store.Redis)
	}

	// Setup routes
	router := handler.NewRouter(loanHandler, healthHandler, logger, cfg.Server.CORSOrigins)

	// Start server
	server := newServer(cfg, router)

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", server.Addr).Str("driver", cfg.Database.Driver).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
