package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/poolparty/internal/database"
	"github.com/hugh/poolparty/internal/events"
	"github.com/hugh/poolparty/internal/invites"
	"github.com/hugh/poolparty/internal/notify"
	"github.com/hugh/poolparty/internal/tasks"
	"github.com/hugh/poolparty/pkg/config"
	"github.com/hugh/poolparty/pkg/crypto"
	"github.com/hugh/poolparty/pkg/queue"
	"github.com/hugh/poolparty/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env, "poolparty-worker")
	slog.SetDefault(logger)

	logger.Info("starting Friday Pool Party worker", "concurrency", cfg.Worker.Concurrency)

	if cfg.Encryption.Key == "" {
		logger.Error("ENCRYPTION_KEY is required so the worker can open queued invitations")
		os.Exit(1)
	}
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	notifier, err := notify.FromConfig(&cfg.Notify, logger)
	if err != nil {
		logger.Error("failed to configure notifications", "error", err)
		os.Exit(1)
	}

	// Create task handler
	handler := tasks.NewHandler(
		db,
		logger,
		encryptor,
		notify.NewInvitations(notifier, cfg.Server.SiteURL),
		events.NewService(db, notifier, cfg.Server.SiteURL, logger),
		invites.NewStore(db, cfg.Invite.TTL()),
	)

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency, logger)

	scheduler := queue.NewScheduler(&cfg.Redis, logger)
	entryID, err := scheduler.Register(cfg.Worker.TokenPurgeCron, tasks.NewTokenPurgeTask())
	if err != nil {
		logger.Error("failed to register token purge", "error", err)
		os.Exit(1)
	}
	next, _ := util.NextCronTime(cfg.Worker.TokenPurgeCron, time.Now().UTC())
	logger.Info("token purge scheduled",
		"entry_id", entryID,
		"cron", cfg.Worker.TokenPurgeCron,
		"next_run", next,
	)

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
		cancel()
	}()

	if err := scheduler.Start(); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("worker started, waiting for tasks...")

	// Run blocks until Shutdown
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
		cancel()
	}

	<-ctx.Done()

	if err := database.Close(db); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("worker stopped")
}
