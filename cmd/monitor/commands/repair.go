package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/engine"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/feed"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/notify"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/store"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/config"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/database"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/httputil"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/redis"
)

// repairCmd represents the repair command
var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Run a one-off outcome repair pass",
	Long: `Runs a single repair pass and exits.

Expired signals without a recorded outcome get a retroactive outcome
synthesized from the last known price and their targets-hit history.

Example:
  go run ./cmd/monitor repair`,
	RunE: runRepair,
}

var repairTimeout time.Duration

func init() {
	rootCmd.AddCommand(repairCmd)

	repairCmd.Flags().DurationVar(&repairTimeout, "timeout", 2*time.Minute, "repair pass timeout")
}

func runRepair(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Outcome Repair Pass ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	httpClient := httputil.New(log, cfg.Feed.HTTPTimeout).
		WithRateLimit(cfg.Feed.RatePerSec, cfg.Feed.RateBurst)

	quoteCache := feed.NewQuoteCache(cfg.Feed.CacheTTL, log)
	restClient := feed.NewRESTClient(cfg.Feed, httpClient, log)
	lastKnown := redis.NewCache(redisClient, "monitor")
	feedSvc := feed.NewService(quoteCache, restClient, lastKnown, log)

	signalRepo := store.NewSignalRepository(db.Pool)
	outcomeRepo := store.NewOutcomeRepository(db.Pool)

	reconciler := engine.NewReconciler(
		monitorConfig(cfg), signalRepo, outcomeRepo, feedSvc, notify.NewLogNotifier(log), log)

	ctx, cancel := context.WithTimeout(context.Background(), repairTimeout)
	defer cancel()

	if err := reconciler.RepairPass(ctx); err != nil {
		return fmt.Errorf("repair pass: %w", err)
	}

	stats := reconciler.GetStats()
	fmt.Printf("\nRepair pass complete: %d outcome(s) synthesized\n", stats.RepairsWritten)
	return nil
}
