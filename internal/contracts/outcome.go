package contracts

import "time"

// =============================================================================
// Outcome
// SSOT: terminal outcome records are defined here and only here
// =============================================================================

// Notes recorded in outcomes, by exit reason.
const (
	NoteAllTargets       = "all take-profit targets reached"
	NoteStopLoss         = "stop-loss confirmed"
	NoteInvalidConfig    = "invalid configuration: stop-loss on wrong side of entry"
	NoteEmptyLadder      = "invalid configuration: empty take-profit ladder"
	NoteValidationFailed = "validation failed: non-positive pips on target hit, recorded as stop-loss"
	NoteRetroactive      = "retroactive: synthesized by repair pass"
)

// Outcome is the immutable terminal record of how a signal resolved.
// At most one Outcome ever exists per signal id; its creation is the terminal
// event for that signal.
type Outcome struct {
	SignalID       string    `json:"signal_id"`
	HitTarget      bool      `json:"hit_target"`
	ExitPrice      float64   `json:"exit_price"`
	TargetHitLevel *int      `json:"target_hit_level,omitempty"` // 1-based, nil on stop-loss
	PnLPips        int       `json:"pnl_pips"`
	Notes          string    `json:"notes"`
	ExitedAt       time.Time `json:"exited_at"`
}

// StopLossOutcome builds a stop-loss outcome for a signal at the given exit price.
func StopLossOutcome(sig *Signal, exitPrice float64, notes string, now time.Time) *Outcome {
	return &Outcome{
		SignalID:  sig.ID,
		HitTarget: false,
		ExitPrice: exitPrice,
		PnLPips:   sig.PnLPips(exitPrice),
		Notes:     notes,
		ExitedAt:  now,
	}
}

// TargetOutcome builds a take-profit outcome for the given 1-based level.
func TargetOutcome(sig *Signal, level int, exitPrice float64, notes string, now time.Time) *Outcome {
	lvl := level
	return &Outcome{
		SignalID:       sig.ID,
		HitTarget:      true,
		ExitPrice:      exitPrice,
		TargetHitLevel: &lvl,
		PnLPips:        sig.PnLPips(exitPrice),
		Notes:          notes,
		ExitedAt:       now,
	}
}
