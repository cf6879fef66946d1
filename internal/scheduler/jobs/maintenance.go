package jobs

import (
	"context"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/feed"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
)

// CacheCleanupJob evicts stale quotes from the in-memory price cache.
type CacheCleanupJob struct {
	feed   *feed.Service
	logger *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(feedSvc *feed.Service, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		feed:   feedSvc,
		logger: log,
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "quote_cache_cleanup"
}

// Schedule returns the cron schedule (every 5 minutes, with seconds)
func (j *CacheCleanupJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run evicts stale quotes
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	removed := j.feed.CleanCache()
	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Evicted stale quotes")
	}
	return nil
}
