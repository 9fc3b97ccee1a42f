package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/segyhp/loan-tracker/internal/config"
	"github.com/segyhp/loan-tracker/internal/notify"
	"github.com/segyhp/loan-tracker/internal/repository"
	"github.com/segyhp/loan-tracker/internal/scheduler"
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
	logger.Info().Msg("starting reminder scheduler")

	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.Health.Timeout)
	store, err := repository.Open(startCtx, cfg)
	cancelStart()
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to initialize store")
	}
	defer store.Close()

	loanService := service.NewLoanService(store.Loans, store.Payments, cfg, logger)

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if store.Redis != nil {
		notifier = notify.NewRedisNotifier(store.Redis)
	}

	job := scheduler.NewReminderJob(loanService, notifier, logger)
	s, err := scheduler.New(cfg.Scheduler.ReminderCron, cfg.GetSchedulerLocation(), cfg.Scheduler.JobTimeout, job, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule reminder job")
	}

	// Start the scheduler
	s.Start()
	logger.Info().
		Str("schedule", cfg.Scheduler.ReminderCron).
		Str("timezone", cfg.Scheduler.Timezone).
		Msg("scheduler started")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down scheduler")
	<-s.Stop().Done()
	logger.Info().Msg("scheduler stopped")
}
