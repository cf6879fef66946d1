package contracts

import "time"

// =============================================================================
// Monitoring Configuration
// SSOT: engine thresholds are defined here and only here
// =============================================================================

// MonitorConfig holds the tunable thresholds of the outcome monitoring engine.
// The confirmation thresholds diverged between historical implementations, so
// they are configuration rather than constants.
type MonitorConfig struct {
	// Stop-loss confirmation (debounce)
	ConfirmationCount    int           `json:"confirmation_count"`     // consecutive crossing observations required
	ConfirmationWindow   time.Duration `json:"confirmation_window"`    // minimum elapsed time across the streak
	StaleConfirmationAge time.Duration `json:"stale_confirmation_age"` // Detecting entries older than this are purged

	// Trailing stop
	TrailingStopFactor float64 `json:"trailing_stop_factor"` // fraction of the first-target distance

	// Reconciliation loop
	CheckInterval time.Duration `json:"check_interval"` // fixed tick
	DebounceDelay time.Duration `json:"debounce_delay"` // coalescing delay for price-change triggers

	// Repair pass
	RepairSchedule string `json:"repair_schedule"` // cron expression (with seconds)
}

// DefaultMonitorConfig returns the default engine thresholds.
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		ConfirmationCount:    2,
		ConfirmationWindow:   15 * time.Second,
		StaleConfirmationAge: 60 * time.Second,

		TrailingStopFactor: 0.5,

		CheckInterval: 3 * time.Second,
		DebounceDelay: 250 * time.Millisecond,

		RepairSchedule: "0 */10 * * * *", // every 10 minutes
	}
}
