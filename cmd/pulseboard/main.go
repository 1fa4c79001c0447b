package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	corecfg "github.com/harshkumar1663/PulseBoard/internal/core/config"
	"github.com/harshkumar1663/PulseBoard/internal/core/storage/postgres"
	"github.com/harshkumar1663/PulseBoard/internal/dispatch"
	"github.com/harshkumar1663/PulseBoard/internal/ingestion"
	"github.com/harshkumar1663/PulseBoard/internal/migrations"
	"github.com/harshkumar1663/PulseBoard/internal/processing"
	"github.com/harshkumar1663/PulseBoard/internal/server"
)

func main() {
	configPath := flag.String("config", "pulseboard.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	baseDelay, err := cfg.Processing.RetryBaseDelayDuration()
	if err != nil {
		slog.Error("Invalid retry base delay", "value", cfg.Processing.RetryBaseDelay, "error", err)
		os.Exit(1)
	}
	softTimeout, err := cfg.Processing.SoftTimeoutDuration()
	if err != nil {
		slog.Error("Invalid soft timeout", "value", cfg.Processing.SoftTimeout, "error", err)
		os.Exit(1)
	}
	hardTimeout, err := cfg.Processing.HardTimeoutDuration()
	if err != nil {
		slog.Error("Invalid hard timeout", "value", cfg.Processing.HardTimeout, "error", err)
		os.Exit(1)
	}

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Processing Pipeline
	shapes := processing.NewShapeValidator(cfg.Processing.MaxPayloadBytes, cfg.Processing.MaxDepth)
	normalizer := processing.NewNormalizer()
	processor := processing.NewProcessor(dbAdapter, shapes, normalizer)

	retryController := processing.NewRetryController(processing.RetryOptions{
		MaxAttempts: cfg.Processing.MaxRetries,
		BaseDelay:   baseDelay,
		SoftBudget:  softTimeout,
		HardBudget:  hardTimeout,
	}, processor)

	// 4. Initialize Dispatcher (worker pool)
	dispatcher := dispatch.NewDispatcher(
		processor,
		retryController,
		cfg.Processing.WorkerCount,
		cfg.Processing.QueueSize,
	)

	slog.Info("Dispatcher initialized",
		"worker_count", cfg.Processing.WorkerCount,
		"queue_size", cfg.Processing.QueueSize,
		"max_retries", cfg.Processing.MaxRetries,
		"retry_base_delay", baseDelay,
	)

	// 5. Initialize Submission API
	ingestionSvc := ingestion.NewService(
		dbAdapter,
		dispatcher,
		cfg.Server.MaxBodySizeMB,
		cfg.Processing.BatchMaxEvents,
	)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		if err := dispatcher.Start(ctx); err != nil {
			slog.Error("Dispatcher stopped with error", "error", err)
		}
	}()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	// Wait for the worker pool to drain queued tasks.
	<-dispatcherDone

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
