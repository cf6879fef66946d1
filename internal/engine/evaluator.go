// Package engine implements the signal outcome monitoring core: a pure
// per-tick evaluator, a debounced stop-loss confirmation tracker, and the
// reconciliation loop that drives both against the signal store.
package engine

import (
	"math"
	"sort"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/contracts"
)

// =============================================================================
// Evaluator
// Pure function of (signal snapshot, current price). No I/O, no clock.
// =============================================================================

// Evaluation is the result of evaluating one signal against one price.
type Evaluation struct {
	// InvalidConfiguration is set when the stop-loss sits on the wrong side of
	// entry on a signal with no targets hit yet. The signal must be routed
	// straight to a stop-loss expiry; every other field is meaningless then.
	InvalidConfiguration bool

	// Skipped is set when the signal cannot be evaluated this tick (bad price,
	// empty take-profit ladder). No state change may follow.
	Skipped    bool
	SkipReason string

	// TargetsChanged indicates NewTargetsHit differs from the signal's set.
	// NewTargetsHit is the complete replacement set, sorted ascending.
	TargetsChanged bool
	NewTargetsHit  []int
	NewlyHit       []int // levels first touched this tick, ascending

	// TrailingStop is the candidate new stop-loss, set only when it is
	// strictly more favorable than the current one.
	TrailingStop *float64

	// StopCrossed is the raw, unconfirmed stop-loss crossing observation.
	// Confirmation is the tracker's job, never the evaluator's.
	StopCrossed bool
}

// Evaluate computes target touches, a trailing-stop candidate and the raw
// stop-loss crossing for a single signal at the given price.
func Evaluate(sig *contracts.Signal, price float64, trailingFactor float64) Evaluation {
	// Corrupt configuration routes straight to terminal processing. The
	// stop-side rule only applies before trailing activates: once a target is
	// hit, a ratcheted stop legitimately sits past entry.
	if len(sig.TargetsHit) == 0 && !sig.HasValidConfiguration() {
		return Evaluation{InvalidConfiguration: true}
	}

	// A non-positive or non-finite price is absent data, not an error.
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return Evaluation{Skipped: true, SkipReason: "no usable price"}
	}

	// An empty ladder is an upstream data error; never evaluate it.
	if len(sig.TakeProfits) == 0 {
		return Evaluation{Skipped: true, SkipReason: "empty take-profit ladder"}
	}

	ev := Evaluation{}

	// Take-profit evaluation: a touched target is accepted only when the pips
	// gained at that level are strictly positive, guarding against a malformed
	// ladder. All newly touched, validated targets are accepted together.
	newSet := append([]int(nil), sig.TargetsHit...)
	for i, target := range sig.TakeProfits {
		level := i + 1
		if sig.HasHitTarget(level) {
			continue
		}
		if !targetTouched(sig, price, target) {
			continue
		}
		if sig.PnLPips(target) <= 0 {
			continue
		}
		newSet = append(newSet, level)
		ev.NewlyHit = append(ev.NewlyHit, level)
	}
	if len(ev.NewlyHit) > 0 {
		sort.Ints(newSet)
		ev.TargetsChanged = true
		ev.NewTargetsHit = newSet
	}

	// Trailing stop: active once any target is hit (old set or this tick's).
	// Distance is half the first-target distance; the candidate only ratchets
	// toward price, never loosens.
	if len(newSet) > 0 {
		distance := math.Abs(sig.TakeProfits[0]-sig.EntryPrice) * trailingFactor
		var candidate float64
		if sig.IsBuy() {
			candidate = price - distance
			if candidate > sig.StopLoss {
				ev.TrailingStop = &candidate
			}
		} else {
			candidate = price + distance
			if candidate < sig.StopLoss {
				ev.TrailingStop = &candidate
			}
		}
	}

	// Raw stop-loss crossing against the currently stored stop.
	if sig.IsBuy() {
		ev.StopCrossed = price <= sig.StopLoss
	} else {
		ev.StopCrossed = price >= sig.StopLoss
	}

	return ev
}

// targetTouched reports whether price has moved past the target in the
// profitable direction.
func targetTouched(sig *contracts.Signal, price, target float64) bool {
	if sig.IsBuy() {
		return price >= target
	}
	return price <= target
}
