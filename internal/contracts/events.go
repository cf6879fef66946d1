package contracts

import "time"

// =============================================================================
// Domain Events
// Emitted after each successful persistence step, delivered best-effort.
// =============================================================================

// EventType identifies a monitoring domain event.
type EventType string

const (
	EventTargetHit       EventType = "TARGET_HIT"
	EventStopLossHit     EventType = "STOP_LOSS_HIT"
	EventSignalCompleted EventType = "SIGNAL_COMPLETED"
)

// TargetHitEvent is emitted when a take-profit level is confirmed hit.
type TargetHitEvent struct {
	SignalID string    `json:"signal_id"`
	Symbol   string    `json:"symbol"`
	Level    int       `json:"level"` // 1-based
	Price    float64   `json:"price"`
	At       time.Time `json:"at"`
}

// StopLossHitEvent is emitted when a stop-loss crossing is confirmed.
type StopLossHitEvent struct {
	SignalID string    `json:"signal_id"`
	Symbol   string    `json:"symbol"`
	Price    float64   `json:"price"`
	At       time.Time `json:"at"`
}

// SignalCompletedEvent is emitted after the terminal Outcome is persisted and
// the signal is expired.
type SignalCompletedEvent struct {
	SignalID string    `json:"signal_id"`
	Symbol   string    `json:"symbol"`
	Outcome  *Outcome  `json:"outcome"`
	At       time.Time `json:"at"`
}
