package contracts

import "context"

// SignalStore is the persistence surface for signals.
// SSOT: all signal reads/writes go through this interface
type SignalStore interface {
	// ListActiveSignals returns all centralized signals with status = active.
	ListActiveSignals(ctx context.Context) ([]Signal, error)

	// UpdateTargetsHit replaces the targets-hit set for a signal.
	UpdateTargetsHit(ctx context.Context, id string, targetsHit []int) error

	// UpdateStopLoss replaces the stop-loss for a signal (trailing updates).
	UpdateStopLoss(ctx context.Context, id string, stopLoss float64) error

	// ExpireSignal flips status to expired with the final targets-hit set.
	ExpireSignal(ctx context.Context, id string, finalTargetsHit []int) error

	// ListExpiredWithoutOutcome returns expired signals lacking an Outcome,
	// for the repair pass.
	ListExpiredWithoutOutcome(ctx context.Context) ([]Signal, error)
}

// OutcomeStore is the persistence surface for terminal outcomes.
type OutcomeStore interface {
	// TryInsertOutcome inserts the outcome unless one already exists for the
	// signal. Returns false when an outcome was already present; losing that
	// race is expected and not an error.
	TryInsertOutcome(ctx context.Context, outcome *Outcome) (bool, error)

	// HasOutcome reports whether an outcome exists for the signal.
	HasOutcome(ctx context.Context, signalID string) (bool, error)
}

// PriceFeed supplies current prices for forex symbols. It may omit symbols
// with no fresh data; the engine treats a missing price as a no-op for that
// signal this tick.
type PriceFeed interface {
	// GetPrices returns current prices for the given symbols in one batched
	// lookup. Symbols without data are absent from the result.
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)

	// LastKnownPrice returns the best available last-known price for a symbol,
	// used by the repair pass when no live price is available.
	LastKnownPrice(ctx context.Context, symbol string) (float64, bool)
}

// PriceSubscriber is implemented by feeds that can push change notifications.
// The engine uses it only to trigger debounced early evaluation passes.
type PriceSubscriber interface {
	Subscribe(fn func(symbol string, price float64))
}

// Notifier delivers domain events to the notification dispatcher.
// Delivery is fire-and-forget: errors are logged, never propagated, and a slow
// dispatcher must never block the reconciliation loop.
type Notifier interface {
	NotifyTargetHit(ctx context.Context, event *TargetHitEvent)
	NotifyStopLossHit(ctx context.Context, event *StopLossHitEvent)
	NotifySignalCompleted(ctx context.Context, event *SignalCompletedEvent)
}
