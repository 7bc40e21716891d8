package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/worklens/worklens/internal/aggregator"
	"github.com/worklens/worklens/internal/api"
	"github.com/worklens/worklens/internal/config"
	"github.com/worklens/worklens/internal/logging"
	"github.com/worklens/worklens/internal/metrics"
	"github.com/worklens/worklens/internal/resilience"
	"github.com/worklens/worklens/internal/scheduler"
	"github.com/worklens/worklens/internal/server"
	"github.com/worklens/worklens/internal/storage"
	"github.com/worklens/worklens/internal/summarizer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting worklens")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence is optional; without DATABASE_URL runs execute but are not
	// recorded.
	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = storage.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := storage.EnsureSchema(ctx, db); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected")
	} else {
		logger.Warn("DATABASE_URL not set, runs will not be persisted")
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to create metrics collector", "error", err)
		os.Exit(1)
	}

	executor := resilience.NewExecutor(
		logging.ForComponent(logger, "executor"),
		resilience.WithObserver(collector),
	)
	agg := aggregator.FromConfig(cfg, executor, logging.ForComponent(logger, "aggregator"), collector)

	var narrator summarizer.Narrator
	if openaiNarrator, err := summarizer.NewOpenAINarrator(cfg.Summarizer, logging.ForComponent(logger, "summarizer")); err != nil {
		logger.Warn("narrator unavailable, using mock", "error", err)
		narrator = summarizer.NewMockNarrator()
	} else {
		narrator = openaiNarrator
	}

	mux := http.NewServeMux()
	if err := api.SetupRoutes(mux, agg, db, narrator, cfg.Auth, logging.ForComponent(logger, "api")); err != nil {
		logger.Error("failed to set up routes", "error", err)
		os.Exit(1)
	}
	mux.Handle("/metrics", collector.Handler())

	if cfg.Scheduler.Enabled {
		var repo *storage.RunRepository
		if db != nil {
			repo = storage.NewRunRepository(db)
		}
		sched := scheduler.NewRunScheduler(agg, repo, cfg.Scheduler.TimeOfDay, logging.ForComponent(logger, "scheduler"))
		go sched.Start(ctx)
		defer sched.Stop()
	}

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("worklens stopped")
}
