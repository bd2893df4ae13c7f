package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledgersync/internal/amqp"
	"ledgersync/internal/cache"
	"ledgersync/internal/config"
	"ledgersync/internal/core"
	applog "ledgersync/internal/log"
	"ledgersync/internal/services"
	"ledgersync/internal/storage"
	"ledgersync/internal/upstream"
	"ledgersync/internal/upstream/memory"
	"ledgersync/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	applog.SetDefault(applog.New(applog.DefaultConfig()))
	logger := applog.ForComponent(slog.Default(), applog.ComponentApp)

	logger.Info("Starting ledgersync daemon")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var upstreamClient upstream.Client
	switch cfg.UpstreamBackend {
	case "memory":
		upstreamClient = memory.New()
		logger.Info("Initialized memory upstream backend")
	default:
		upstreamClient = upstream.NewHTTPClient(
			cfg.UpstreamBaseURL, cfg.UpstreamClientID, cfg.UpstreamSecret, cfg.UpstreamTimeout)
		logger.Info("Initialized HTTP upstream backend", "base_url", cfg.UpstreamBaseURL)
	}

	// AMQP is optional; without a URL the daemon runs on the schedule alone.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRequestQueue, cfg.AMQPEventQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	historyCache := cache.NewLRUCache[core.AssetHistory](cfg.CacheSize, cfg.CacheTTL)
	summaryCache := cache.NewLRUCache[core.SummaryResult](cfg.CacheSize, cfg.CacheTTL)

	cacheManager := cache.NewManager()
	cacheManager.Register(historyCache)
	cacheManager.Register(summaryCache)
	cacheManager.StartCleanup(cfg.CacheTTL)
	defer cacheManager.Stop()

	syncService := services.NewSyncService(repo, upstreamClient, services.SyncConfig{
		PageSize:        cfg.SyncPageSize,
		MaxPages:        cfg.SyncMaxPages,
		PageDelay:       cfg.SyncPageDelay,
		ConflictRetries: cfg.SyncConflictRetries,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pick up any accounts newly reachable with the configured credential.
	if cfg.UpstreamAccessToken != "" {
		if _, err := syncService.RegisterAccounts(ctx, cfg.UpstreamAccessToken); err != nil {
			logger.Error("Failed to register accounts on startup", "error", err)
			// Continue; already-known accounts still sync.
		}
	}

	scheduler := worker.NewScheduler(syncService, repo, amqpClient, cfg.UpstreamAccessToken,
		worker.SchedulerConfig{
			Interval:      cfg.SyncInterval,
			MaxConcurrent: cfg.SyncMaxConcurrent,
		},
		historyCache, summaryCache)

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start sync scheduler", "error", err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeSyncRequests(ctx, func(ctx context.Context, msg *amqp.SyncRequestedMessage) error {
				return scheduler.SyncAccount(ctx, msg.AccountID)
			})
			if err != nil && err != context.Canceled {
				logger.Error("Sync request consumption failed", "error", err)
				cancel()
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler shutdown error", "error", err)
	}
	cancel()

	logger.Info("Daemon stopped gracefully")
}
