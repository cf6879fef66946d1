package jobs

import (
	"context"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/engine"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
)

// RepairJob periodically synthesizes retroactive outcomes for expired signals
// that have no recorded outcome.
type RepairJob struct {
	reconciler *engine.Reconciler
	schedule   string
	logger     *logger.Logger
}

// NewRepairJob creates a new repair job
func NewRepairJob(reconciler *engine.Reconciler, schedule string, log *logger.Logger) *RepairJob {
	return &RepairJob{
		reconciler: reconciler,
		schedule:   schedule,
		logger:     log,
	}
}

// Name returns the job name
func (j *RepairJob) Name() string {
	return "outcome_repair"
}

// Schedule returns the cron schedule (with seconds)
func (j *RepairJob) Schedule() string {
	return j.schedule
}

// Run executes a repair pass
func (j *RepairJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled outcome repair pass")
	return j.reconciler.RepairPass(ctx)
}
