package scheduler

import (
	"context"
	"time"
)

// Job is a named, scheduled unit of work.
type Job interface {
	// Name uniquely identifies the job.
	Name() string

	// Schedule returns the cron expression (with seconds field).
	Schedule() string

	// Run executes the job once.
	Run(ctx context.Context) error
}

// JobResult records one job execution.
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// maxHistorySize bounds per-job history memory.
const maxHistorySize = 50

// JobHistory keeps the most recent results for a job.
type JobHistory struct {
	Results []JobResult `json:"results"`
}

// AddResult appends a result, dropping the oldest beyond the cap.
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > maxHistorySize {
		h.Results = h.Results[len(h.Results)-maxHistorySize:]
	}
}

// GetLatestResults returns up to n most recent results, oldest first.
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if len(h.Results) <= n {
		return h.Results
	}
	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns all recorded failures.
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, r := range h.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// GetSuccessRate returns the fraction of successful runs (0 when empty).
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0
	}
	success := 0
	for _, r := range h.Results {
		if r.Success {
			success++
		}
	}
	return float64(success) / float64(len(h.Results))
}
