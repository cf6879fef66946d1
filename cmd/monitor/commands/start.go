package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/api"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/api/handlers"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/contracts"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/engine"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/feed"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/notify"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/scheduler"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/scheduler/jobs"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/store"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/config"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/database"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/httputil"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/redis"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the monitoring engine",
	Long: `Starts the full monitoring service.

This command:
- Runs a startup repair pass for signals orphaned by a previous crash
- Starts the reconciliation loop on the configured check interval
- Streams live quotes when FEED_WS_URL is set
- Schedules periodic repair and cache maintenance jobs
- Serves the monitoring API

Endpoints:
  GET  /health              - Health check
  GET  /api/status          - Engine statistics
  GET  /api/signals/active  - Signals under monitoring
  POST /api/repair          - Trigger a repair pass

Example:
  go run ./cmd/monitor start
  go run ./cmd/monitor start --port 8090`,
	RunE: runStart,
}

var startPort string

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVar(&startPort, "port", "", "API server port (overrides PORT)")
}

func runStart(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Signal Outcome Monitor ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if startPort != "" {
		cfg.Port = startPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing monitoring service")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Connect to Redis (optional, degrades to no-op)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	// 5. Create HTTP client for the quote provider
	httpClient := httputil.New(log, cfg.Feed.HTTPTimeout).
		WithRateLimit(cfg.Feed.RatePerSec, cfg.Feed.RateBurst)

	// 6. Create price feed
	quoteCache := feed.NewQuoteCache(cfg.Feed.CacheTTL, log)
	restClient := feed.NewRESTClient(cfg.Feed, httpClient, log)
	lastKnown := redis.NewCache(redisClient, "monitor")
	feedSvc := feed.NewService(quoteCache, restClient, lastKnown, log)

	var wsClient *feed.WSClient
	if cfg.Feed.WSURL != "" {
		wsClient = feed.NewWSClient(cfg.Feed, log, quoteCache)
		wsClient.OnUpdate(feedSvc.HandleStreamUpdate)
	}

	// 7. Create repositories
	signalRepo := store.NewSignalRepository(db.Pool)
	outcomeRepo := store.NewOutcomeRepository(db.Pool)

	// 8. Create notifier
	var notifier contracts.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.WebhookURL, httpClient, log)
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	// 9. Create reconciler
	reconciler := engine.NewReconciler(
		monitorConfig(cfg), signalRepo, outcomeRepo, feedSvc, notifier, log)

	// 10. Create scheduler with maintenance jobs
	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewRepairJob(reconciler, cfg.Monitor.RepairSchedule, log)); err != nil {
		return fmt.Errorf("schedule repair job: %w", err)
	}
	if err := sched.AddJob(jobs.NewCacheCleanupJob(feedSvc, log)); err != nil {
		return fmt.Errorf("schedule cache cleanup job: %w", err)
	}

	// 11. Create API server
	monitorHandler := handlers.NewMonitorHandler(db, signalRepo, reconciler, feedSvc, log)
	router := api.NewRouter(monitorHandler, log)
	server := api.New(cfg, log, router)

	// 12. Start everything
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if wsClient != nil {
		if err := wsClient.Start(ctx); err != nil {
			// REST polling still works without the stream.
			log.WithError(err).Warn("Streaming feed unavailable, continuing with REST only")
			wsClient = nil
		}
	}

	if err := reconciler.Start(ctx); err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}

	sched.Start()

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("Monitoring service started")
	fmt.Printf("\nServer running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	// Stop intake first, then let the in-flight tick finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}

	sched.Stop()
	if wsClient != nil {
		wsClient.Stop()
	}
	reconciler.Stop()

	log.Info("Monitoring service stopped")
	return nil
}

// monitorConfig maps environment configuration onto engine thresholds.
func monitorConfig(cfg *config.Config) *contracts.MonitorConfig {
	return &contracts.MonitorConfig{
		ConfirmationCount:    cfg.Monitor.ConfirmationCount,
		ConfirmationWindow:   cfg.Monitor.ConfirmationWindow,
		StaleConfirmationAge: cfg.Monitor.StaleConfirmationAge,
		TrailingStopFactor:   cfg.Monitor.TrailingStopFactor,
		CheckInterval:        cfg.Monitor.CheckInterval,
		DebounceDelay:        cfg.Monitor.DebounceDelay,
		RepairSchedule:       cfg.Monitor.RepairSchedule,
	}
}
