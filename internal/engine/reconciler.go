package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/contracts"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
)

// =============================================================================
// Reconciliation Loop
// Timer-driven scheduler: fetch active signals, fetch batched prices, run
// Evaluator + Confirmation Tracker per signal, persist updates, and write the
// terminal Outcome exactly once per signal. A repair pass heals expired
// signals that lack an outcome.
// =============================================================================

// Reconciler drives the outcome monitoring engine.
// SSOT: signal state transitions happen here and only here
type Reconciler struct {
	cfg      *contracts.MonitorConfig
	signals  contracts.SignalStore
	outcomes contracts.OutcomeStore
	feed     contracts.PriceFeed
	notifier contracts.Notifier
	tracker  *ConfirmationTracker
	logger   *logger.Logger

	// tickMu serializes passes: the periodic tick and the debounced
	// price-change trigger must never evaluate concurrently, or tracker
	// state would be observed twice within one logical pass.
	tickMu sync.Mutex

	// Debounced early-tick trigger
	kickCh     chan struct{}
	debounceMu sync.Mutex
	debounce   *time.Timer

	stopCh  chan struct{}
	doneCh  chan struct{}
	runMu   sync.Mutex
	running bool

	now func() time.Time

	statsMu sync.Mutex
	stats   Stats
}

// Stats is a snapshot of engine counters for status reporting.
type Stats struct {
	LastTickAt       time.Time `json:"last_tick_at"`
	TickCount        int64     `json:"tick_count"`
	SignalsEvaluated int64     `json:"signals_evaluated"`
	OutcomesWritten  int64     `json:"outcomes_written"`
	RepairsWritten   int64     `json:"repairs_written"`
	PendingStreaks   int       `json:"pending_streaks"`
}

// NewReconciler creates a reconciler over the given stores and feed.
func NewReconciler(
	cfg *contracts.MonitorConfig,
	signals contracts.SignalStore,
	outcomes contracts.OutcomeStore,
	feed contracts.PriceFeed,
	notifier contracts.Notifier,
	log *logger.Logger,
) *Reconciler {
	if cfg == nil {
		cfg = contracts.DefaultMonitorConfig()
	}
	return &Reconciler{
		cfg:      cfg,
		signals:  signals,
		outcomes: outcomes,
		feed:     feed,
		notifier: notifier,
		tracker:  NewConfirmationTracker(cfg, log),
		logger:   log,
		kickCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start launches the reconciliation loop. A repair pass runs first so that
// damage from a previous crash is healed before normal monitoring resumes.
func (r *Reconciler) Start(ctx context.Context) error {
	r.runMu.Lock()
	if r.running {
		r.runMu.Unlock()
		return fmt.Errorf("reconciler already running")
	}
	r.running = true
	r.runMu.Unlock()

	r.logger.WithFields(map[string]interface{}{
		"check_interval":      r.cfg.CheckInterval,
		"confirmation_count":  r.cfg.ConfirmationCount,
		"confirmation_window": r.cfg.ConfirmationWindow,
		"trailing_factor":     r.cfg.TrailingStopFactor,
	}).Info("Starting reconciler")

	// Startup repair pass
	if err := r.RepairPass(ctx); err != nil {
		r.logger.WithError(err).Warn("Startup repair pass failed")
	}

	// Early ticks from price-change notifications, when the feed supports them
	if sub, ok := r.feed.(contracts.PriceSubscriber); ok {
		sub.Subscribe(func(symbol string, price float64) {
			r.OnPriceChange(symbol, price)
		})
	}

	go r.loop(ctx)
	return nil
}

// Stop requests shutdown and waits for any in-flight tick to finish, so a
// partial Outcome/status pair is never left behind by the shutdown itself.
func (r *Reconciler) Stop() {
	r.runMu.Lock()
	if !r.running {
		r.runMu.Unlock()
		return
	}
	r.running = false
	r.runMu.Unlock()

	close(r.stopCh)
	<-r.doneCh
	r.logger.Info("Reconciler stopped")
}

// OnPriceChange schedules a debounced early tick, coalescing bursts of price
// updates into one evaluation pass.
func (r *Reconciler) OnPriceChange(symbol string, price float64) {
	r.debounceMu.Lock()
	defer r.debounceMu.Unlock()

	if r.debounce == nil {
		r.debounce = time.AfterFunc(r.cfg.DebounceDelay, func() {
			select {
			case r.kickCh <- struct{}{}:
			default: // a kick is already pending
			}
		})
		return
	}
	r.debounce.Reset(r.cfg.DebounceDelay)
}

// loop is the single driver of periodic and kicked passes.
func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
		case <-r.kickCh:
		}

		if err := r.Tick(ctx); err != nil {
			r.logger.WithError(err).Error("Reconciliation tick failed")
		}
	}
}

// Tick runs one full reconciliation pass. Safe to call concurrently; passes
// are serialized so tracker state stays consistent within a pass.
func (r *Reconciler) Tick(ctx context.Context) error {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	now := r.now()

	// Purge abandoned streaks before evaluating.
	r.tracker.PurgeStale(now)

	active, err := r.signals.ListActiveSignals(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active signals: %w", err)
	}
	if len(active) == 0 {
		r.recordTick(now, 0)
		return nil
	}

	prices, err := r.feed.GetPrices(ctx, distinctSymbols(active))
	if err != nil {
		// Transient data unavailability: skip this tick, retry on the next.
		return fmt.Errorf("failed to fetch prices: %w", err)
	}

	evaluated := 0
	for i := range active {
		sig := &active[i]

		// Corrupt configuration bypasses everything, including confirmation.
		if note, corrupt := corruptionNote(sig); corrupt {
			r.logger.WithFields(map[string]interface{}{
				"signal_id": sig.ID,
				"symbol":    sig.Symbol,
				"direction": sig.Direction,
				"entry":     sig.EntryPrice,
				"stop_loss": sig.StopLoss,
				"targets":   len(sig.TakeProfits),
			}).Error("Invalid signal configuration, force-expiring with stop-loss outcome")
			r.finalizeStopLoss(ctx, sig, sig.StopLoss, note, now)
			evaluated++
			continue
		}

		price, ok := prices[sig.Symbol]
		if !ok {
			// No price this tick: no state change, no error.
			continue
		}

		r.processSignal(ctx, sig, price, now)
		evaluated++
	}

	r.recordTick(now, evaluated)
	return nil
}

// corruptionNote classifies signals that can never resolve through normal
// evaluation. An empty ladder and a stop on the wrong side of entry are both
// upstream data errors; the stop-side rule only applies before any target is
// hit, since trailing ratchets the stop past entry on winners.
func corruptionNote(sig *contracts.Signal) (string, bool) {
	if len(sig.TakeProfits) == 0 {
		return contracts.NoteEmptyLadder, true
	}
	if len(sig.TargetsHit) == 0 && !sig.HasValidConfiguration() {
		return contracts.NoteInvalidConfig, true
	}
	return "", false
}

// processSignal runs one signal through the evaluator, persists target and
// trailing-stop updates, feeds the tracker, and finalizes when due.
// Persistence errors are logged and isolated: the signal is retried next tick.
func (r *Reconciler) processSignal(ctx context.Context, sig *contracts.Signal, price float64, now time.Time) {
	ev := Evaluate(sig, price, r.cfg.TrailingStopFactor)

	if ev.Skipped {
		r.logger.WithFields(map[string]interface{}{
			"signal_id": sig.ID,
			"symbol":    sig.Symbol,
			"price":     price,
			"reason":    ev.SkipReason,
		}).Warn("Signal skipped this tick")
		return
	}

	if ev.TargetsChanged {
		if err := r.signals.UpdateTargetsHit(ctx, sig.ID, ev.NewTargetsHit); err != nil {
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"signal_id": sig.ID,
				"targets":   ev.NewTargetsHit,
			}).Warn("Failed to persist targets hit, retrying next tick")
			return
		}
		sig.TargetsHit = ev.NewTargetsHit

		for _, level := range ev.NewlyHit {
			r.logger.WithFields(map[string]interface{}{
				"signal_id": sig.ID,
				"symbol":    sig.Symbol,
				"level":     level,
				"price":     price,
			}).Info("Take-profit target hit")
			r.notifier.NotifyTargetHit(ctx, &contracts.TargetHitEvent{
				SignalID: sig.ID,
				Symbol:   sig.Symbol,
				Level:    level,
				Price:    price,
				At:       now,
			})
		}
	}

	if ev.TrailingStop != nil {
		if err := r.signals.UpdateStopLoss(ctx, sig.ID, *ev.TrailingStop); err != nil {
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"signal_id": sig.ID,
				"stop_loss": *ev.TrailingStop,
			}).Warn("Failed to persist trailing stop")
		} else {
			r.logger.WithFields(map[string]interface{}{
				"signal_id": sig.ID,
				"symbol":    sig.Symbol,
				"old_stop":  sig.StopLoss,
				"new_stop":  *ev.TrailingStop,
				"price":     price,
			}).Info("Trailing stop tightened")
			sig.StopLoss = *ev.TrailingStop
		}
	}

	confirmed := r.tracker.Observe(sig.ID, ev.StopCrossed, price, now)

	switch {
	case confirmed:
		r.notifier.NotifyStopLossHit(ctx, &contracts.StopLossHitEvent{
			SignalID: sig.ID,
			Symbol:   sig.Symbol,
			Price:    price,
			At:       now,
		})
		r.finalizeStopLoss(ctx, sig, sig.StopLoss, contracts.NoteStopLoss, now)

	case sig.AllTargetsHit():
		level := sig.HighestTargetHit()
		exitPrice := sig.TakeProfits[level-1]
		r.finalizeTarget(ctx, sig, level, exitPrice, contracts.NoteAllTargets, now)
	}
}

// =============================================================================
// Terminal processing
// Outcome insert is the single source of truth for "already terminated"; the
// uniqueness constraint on signal_id makes it safe under races. Order matters:
// the Outcome must exist before the status flip.
// =============================================================================

// finalizeTarget writes a take-profit outcome and expires the signal. A "hit"
// computing non-positive pips is defensively downgraded to a stop-loss outcome.
func (r *Reconciler) finalizeTarget(ctx context.Context, sig *contracts.Signal, level int, exitPrice float64, notes string, now time.Time) {
	outcome := contracts.TargetOutcome(sig, level, exitPrice, notes, now)
	if outcome.PnLPips <= 0 {
		r.logger.WithFields(map[string]interface{}{
			"signal_id":  sig.ID,
			"symbol":     sig.Symbol,
			"exit_price": exitPrice,
			"pnl_pips":   outcome.PnLPips,
		}).Error("Target hit computed non-positive pips, downgrading to stop-loss outcome")
		outcome = contracts.StopLossOutcome(sig, sig.StopLoss, contracts.NoteValidationFailed, now)
	}
	r.finalize(ctx, sig, outcome)
}

// finalizeStopLoss writes a stop-loss outcome and expires the signal.
func (r *Reconciler) finalizeStopLoss(ctx context.Context, sig *contracts.Signal, exitPrice float64, notes string, now time.Time) {
	r.finalize(ctx, sig, contracts.StopLossOutcome(sig, exitPrice, notes, now))
}

// finalize inserts the outcome (idempotently) and flips status to expired.
// Every failure mode here is recoverable: an insert failure leaves the signal
// active for re-evaluation; an expiry failure after a successful insert is
// healed by the next tick re-entering finalize and flipping status.
func (r *Reconciler) finalize(ctx context.Context, sig *contracts.Signal, outcome *contracts.Outcome) {
	inserted, err := r.outcomes.TryInsertOutcome(ctx, outcome)
	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"signal_id": sig.ID,
			"symbol":    sig.Symbol,
		}).Warn("Failed to insert outcome, signal stays active for retry")
		return
	}
	if inserted {
		// The insert is the terminal event: count and announce it now, before
		// the status flip, so an expiry failure cannot swallow the completion.
		r.statsMu.Lock()
		r.stats.OutcomesWritten++
		r.statsMu.Unlock()

		r.logger.WithFields(map[string]interface{}{
			"signal_id":  sig.ID,
			"symbol":     sig.Symbol,
			"hit_target": outcome.HitTarget,
			"exit_price": outcome.ExitPrice,
			"pnl_pips":   outcome.PnLPips,
			"notes":      outcome.Notes,
		}).Info("Signal completed")

		r.notifier.NotifySignalCompleted(ctx, &contracts.SignalCompletedEvent{
			SignalID: sig.ID,
			Symbol:   sig.Symbol,
			Outcome:  outcome,
			At:       outcome.ExitedAt,
		})
	} else {
		// Lost the race to a concurrent tick or instance, or converging after
		// a failed expiry. Expected; still make sure the status flip lands.
		r.logger.WithField("signal_id", sig.ID).Debug("Outcome already exists, converging status")
	}

	if err := r.signals.ExpireSignal(ctx, sig.ID, sig.TargetsHit); err != nil {
		// Outcome exists, expiry failed. The signal re-enters finalize next
		// tick and converges without a second notification.
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"signal_id": sig.ID,
			"symbol":    sig.Symbol,
		}).Error("Failed to expire signal after outcome insert")
		return
	}

	r.tracker.Reset(sig.ID)
}

// =============================================================================
// Repair Pass
// Status can be flipped by an external actor without going through this
// engine's outcome-writing path; never assume we are the only status writer.
// =============================================================================

// RepairPass finds expired signals lacking an Outcome and synthesizes a
// best-effort retroactive outcome from the last known price and the recorded
// targets-hit set.
func (r *Reconciler) RepairPass(ctx context.Context) error {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	orphans, err := r.signals.ListExpiredWithoutOutcome(ctx)
	if err != nil {
		return fmt.Errorf("failed to list expired signals without outcome: %w", err)
	}
	if len(orphans) == 0 {
		return nil
	}

	r.logger.WithField("count", len(orphans)).Warn("Repair pass found expired signals without outcome")

	now := r.now()
	for i := range orphans {
		sig := &orphans[i]
		outcome := r.deriveRetroactiveOutcome(ctx, sig, now)

		inserted, err := r.outcomes.TryInsertOutcome(ctx, outcome)
		if err != nil {
			r.logger.WithError(err).WithField("signal_id", sig.ID).Warn("Failed to insert retroactive outcome")
			continue
		}
		if !inserted {
			continue
		}

		r.statsMu.Lock()
		r.stats.RepairsWritten++
		r.statsMu.Unlock()

		r.logger.WithFields(map[string]interface{}{
			"signal_id":  sig.ID,
			"symbol":     sig.Symbol,
			"hit_target": outcome.HitTarget,
			"exit_price": outcome.ExitPrice,
			"pnl_pips":   outcome.PnLPips,
		}).Info("Retroactive outcome written")

		r.notifier.NotifySignalCompleted(ctx, &contracts.SignalCompletedEvent{
			SignalID: sig.ID,
			Symbol:   sig.Symbol,
			Outcome:  outcome,
			At:       now,
		})
	}

	return nil
}

// deriveRetroactiveOutcome re-derives the exit using the same directional
// logic as live evaluation plus the recorded targets-hit set. With no price
// signal either way, a hit ladder is trusted before the stop is assumed.
func (r *Reconciler) deriveRetroactiveOutcome(ctx context.Context, sig *contracts.Signal, now time.Time) *contracts.Outcome {
	price, havePrice := r.lastPrice(ctx, sig.Symbol)

	crossed := false
	if havePrice {
		if sig.IsBuy() {
			crossed = price <= sig.StopLoss
		} else {
			crossed = price >= sig.StopLoss
		}
	}

	var outcome *contracts.Outcome
	switch {
	case havePrice && crossed:
		outcome = contracts.StopLossOutcome(sig, sig.StopLoss, contracts.NoteRetroactive, now)
	case sig.HighestTargetHit() > 0 && sig.HighestTargetHit() <= len(sig.TakeProfits):
		level := sig.HighestTargetHit()
		outcome = contracts.TargetOutcome(sig, level, sig.TakeProfits[level-1], contracts.NoteRetroactive, now)
	default:
		outcome = contracts.StopLossOutcome(sig, sig.StopLoss, contracts.NoteRetroactive, now)
	}

	// The outcome invariant holds for retroactive records too.
	if outcome.HitTarget && outcome.PnLPips <= 0 {
		outcome = contracts.StopLossOutcome(sig, sig.StopLoss, contracts.NoteValidationFailed, now)
	}
	return outcome
}

// lastPrice fetches the best available price: live feed first, then the
// feed's last-known cache.
func (r *Reconciler) lastPrice(ctx context.Context, symbol string) (float64, bool) {
	prices, err := r.feed.GetPrices(ctx, []string{symbol})
	if err == nil {
		if p, ok := prices[symbol]; ok {
			return p, true
		}
	}
	return r.feed.LastKnownPrice(ctx, symbol)
}

// =============================================================================
// Status
// =============================================================================

// GetStats returns a snapshot of engine counters.
func (r *Reconciler) GetStats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	stats := r.stats
	stats.PendingStreaks = r.tracker.Len()
	return stats
}

func (r *Reconciler) recordTick(now time.Time, evaluated int) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.LastTickAt = now
	r.stats.TickCount++
	r.stats.SignalsEvaluated += int64(evaluated)
}

// distinctSymbols returns the deduplicated symbol set of the given signals.
func distinctSymbols(signals []contracts.Signal) []string {
	seen := make(map[string]bool, len(signals))
	symbols := make([]string, 0, len(signals))
	for i := range signals {
		if !seen[signals[i].Symbol] {
			seen[signals[i].Symbol] = true
			symbols = append(symbols, signals[i].Symbol)
		}
	}
	return symbols
}
