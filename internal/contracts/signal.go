package contracts

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// =============================================================================
// Trading Signal
// SSOT: signal domain types live here and only here
// =============================================================================

// Direction is the trade direction of a signal.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// SignalStatus is the lifecycle status of a signal.
// The transition active -> expired is one-way.
type SignalStatus string

const (
	StatusActive  SignalStatus = "active"
	StatusExpired SignalStatus = "expired"
)

// Signal is a recommended trade: an entry price, a stop-loss, and an ordered
// ladder of take-profit levels. The monitoring engine is the sole writer of
// Status, TargetsHit and StopLoss once the signal is active.
type Signal struct {
	ID          string       `json:"id"`
	Symbol      string       `json:"symbol"`
	Direction   Direction    `json:"direction"`
	EntryPrice  float64      `json:"entry_price"`
	StopLoss    float64      `json:"stop_loss"`
	TakeProfits []float64    `json:"take_profits"` // BUY: ascending, SELL: descending
	TargetsHit  []int        `json:"targets_hit"`  // 1-based levels, sorted, never shrinks
	Status      SignalStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// IsBuy reports whether the signal is a long recommendation.
func (s *Signal) IsBuy() bool {
	return s.Direction == DirectionBuy
}

// HasValidConfiguration checks that the stop-loss sits on the correct side of
// entry for the direction. The rule describes the original configuration: a
// signal violating it before any target is hit is corrupt and must be
// force-expired with a stop-loss outcome rather than evaluated normally.
// After the first hit the trailing stop ratchets past entry on winners, so
// callers must not apply this check to signals with a non-empty TargetsHit.
func (s *Signal) HasValidConfiguration() bool {
	if s.EntryPrice <= 0 || s.StopLoss <= 0 {
		return false
	}
	if s.IsBuy() {
		return s.StopLoss < s.EntryPrice
	}
	return s.StopLoss > s.EntryPrice
}

// HasHitTarget reports whether the given 1-based level is in TargetsHit.
func (s *Signal) HasHitTarget(level int) bool {
	for _, l := range s.TargetsHit {
		if l == level {
			return true
		}
	}
	return false
}

// AllTargetsHit reports whether every level of the ladder has been hit.
func (s *Signal) AllTargetsHit() bool {
	return len(s.TakeProfits) > 0 && len(s.TargetsHit) >= len(s.TakeProfits)
}

// HighestTargetHit returns the highest hit level, or 0 when none.
func (s *Signal) HighestTargetHit() int {
	highest := 0
	for _, l := range s.TargetsHit {
		if l > highest {
			highest = l
		}
	}
	return highest
}

// PipSize returns the pip unit for the signal's symbol.
func (s *Signal) PipSize() float64 {
	return PipSize(s.Symbol)
}

// PipSize returns the pip unit for a forex symbol.
// JPY-quoted pairs use 0.01, everything else 0.0001.
func PipSize(symbol string) float64 {
	if strings.HasSuffix(strings.ToUpper(symbol), "JPY") {
		return 0.01
	}
	return 0.0001
}

// PnLPips computes the signed pip gain from entry to exit for the direction.
func (s *Signal) PnLPips(exitPrice float64) int {
	move := exitPrice - s.EntryPrice
	if !s.IsBuy() {
		move = s.EntryPrice - exitPrice
	}
	return int(math.Round(move / s.PipSize()))
}

// String returns a compact description for logging.
func (s *Signal) String() string {
	return fmt.Sprintf("%s %s @%.5f sl=%.5f tps=%d hit=%d",
		s.Direction, s.Symbol, s.EntryPrice, s.StopLoss, len(s.TakeProfits), len(s.TargetsHit))
}
