package engine

import (
	"sync"
	"time"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/contracts"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
)

// =============================================================================
// Confirmation Tracker
// Debounced stop-loss detection: a crossing becomes a confirmed stop-loss only
// after repeated observations spanning a minimum window. A single non-crossing
// observation cancels the streak. State is process-local and best-effort;
// losing it on restart merely resets debouncing.
// =============================================================================

// confirmationEntry is the Detecting state for one signal's streak.
type confirmationEntry struct {
	Count           int
	FirstDetectedAt time.Time
	LastPrice       float64
}

// ConfirmationTracker owns the per-signal debounce state machine.
// SSOT: stop-loss confirmation state lives here and only here
type ConfirmationTracker struct {
	cfg    *contracts.MonitorConfig
	logger *logger.Logger

	mu      sync.Mutex
	entries map[string]*confirmationEntry
}

// NewConfirmationTracker creates an empty tracker.
func NewConfirmationTracker(cfg *contracts.MonitorConfig, log *logger.Logger) *ConfirmationTracker {
	return &ConfirmationTracker{
		cfg:     cfg,
		logger:  log,
		entries: make(map[string]*confirmationEntry),
	}
}

// Observe feeds one observation for a signal and reports whether the stop-loss
// is now confirmed. On confirmation the entry is deleted; the caller proceeds
// to terminal outcome processing exactly once per streak.
func (t *ConfirmationTracker) Observe(signalID string, crossed bool, price float64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !crossed {
		// A single reversal cancels the streak, regardless of count.
		if _, ok := t.entries[signalID]; ok {
			delete(t.entries, signalID)
			t.logger.WithFields(map[string]interface{}{
				"signal_id": signalID,
				"price":     price,
			}).Debug("Stop-loss streak cleared")
		}
		return false
	}

	entry, ok := t.entries[signalID]
	if !ok {
		t.entries[signalID] = &confirmationEntry{
			Count:           1,
			FirstDetectedAt: now,
			LastPrice:       price,
		}
		t.logger.WithFields(map[string]interface{}{
			"signal_id": signalID,
			"price":     price,
		}).Debug("Stop-loss crossing detected, starting confirmation streak")
		return false
	}

	entry.Count++
	entry.LastPrice = price

	elapsed := now.Sub(entry.FirstDetectedAt)
	if entry.Count >= t.cfg.ConfirmationCount && elapsed >= t.cfg.ConfirmationWindow {
		delete(t.entries, signalID)
		t.logger.WithFields(map[string]interface{}{
			"signal_id": signalID,
			"count":     entry.Count,
			"elapsed":   elapsed,
			"price":     price,
		}).Info("Stop-loss confirmed")
		return true
	}

	t.logger.WithFields(map[string]interface{}{
		"signal_id": signalID,
		"count":     entry.Count,
		"elapsed":   elapsed,
	}).Debug("Stop-loss crossing repeated, not yet confirmed")
	return false
}

// PurgeStale removes Detecting entries older than the staleness ceiling so an
// abandoned streak cannot block future confirmations with a stale start time.
// Returns the number of purged entries.
func (t *ConfirmationTracker) PurgeStale(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	purged := 0
	for id, entry := range t.entries {
		if now.Sub(entry.FirstDetectedAt) > t.cfg.StaleConfirmationAge {
			delete(t.entries, id)
			purged++
		}
	}

	if purged > 0 {
		t.logger.WithField("count", purged).Info("Purged stale confirmation entries")
	}
	return purged
}

// Reset drops any streak for the signal, e.g. after terminal processing.
func (t *ConfirmationTracker) Reset(signalID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, signalID)
}

// Len returns the number of active streaks, for status reporting.
func (t *ConfirmationTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
