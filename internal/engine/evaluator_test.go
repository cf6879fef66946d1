package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/contracts"
)

func buySignal() *contracts.Signal {
	return &contracts.Signal{
		ID:          "sig-buy",
		Symbol:      "EURUSD",
		Direction:   contracts.DirectionBuy,
		EntryPrice:  1.1000,
		StopLoss:    1.0950,
		TakeProfits: []float64{1.1050, 1.1100, 1.1150},
		Status:      contracts.StatusActive,
	}
}

func sellSignal() *contracts.Signal {
	return &contracts.Signal{
		ID:          "sig-sell",
		Symbol:      "EURUSD",
		Direction:   contracts.DirectionSell,
		EntryPrice:  1.1000,
		StopLoss:    1.1050,
		TakeProfits: []float64{1.0950, 1.0900},
		Status:      contracts.StatusActive,
	}
}

func TestEvaluateInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		sig  *contracts.Signal
	}{
		{
			name: "buy stop above entry",
			sig: &contracts.Signal{
				Direction: contracts.DirectionBuy, EntryPrice: 1.1000, StopLoss: 1.1100,
				TakeProfits: []float64{1.1200},
			},
		},
		{
			name: "sell stop below entry",
			sig: &contracts.Signal{
				Direction: contracts.DirectionSell, EntryPrice: 1.1000, StopLoss: 1.0900,
				TakeProfits: []float64{1.0800},
			},
		},
		{
			name: "zero entry",
			sig: &contracts.Signal{
				Direction: contracts.DirectionBuy, EntryPrice: 0, StopLoss: 1.0900,
				TakeProfits: []float64{1.1100},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluate(tt.sig, 1.1000, 0.5)
			assert.True(t, ev.InvalidConfiguration)
			assert.False(t, ev.Skipped)
			assert.False(t, ev.TargetsChanged)
		})
	}
}

func TestEvaluateTrailedStopPastEntryIsNotInvalid(t *testing.T) {
	// After TP1 a BUY's trailed stop can legitimately sit above entry.
	sig := buySignal()
	sig.TargetsHit = []int{1}
	sig.StopLoss = 1.1025

	ev := Evaluate(sig, 1.1110, 0.5)
	assert.False(t, ev.InvalidConfiguration)
	require.True(t, ev.TargetsChanged)
	assert.Equal(t, []int{1, 2}, ev.NewTargetsHit)
	require.NotNil(t, ev.TrailingStop)
	assert.InDelta(t, 1.1085, *ev.TrailingStop, 1e-9)
}

func TestEvaluateSkipsBadPrice(t *testing.T) {
	sig := buySignal()

	for _, price := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		ev := Evaluate(sig, price, 0.5)
		assert.True(t, ev.Skipped, "price %v should be skipped", price)
		assert.False(t, ev.StopCrossed)
	}
}

func TestEvaluateSkipsEmptyLadder(t *testing.T) {
	sig := buySignal()
	sig.TakeProfits = nil

	ev := Evaluate(sig, 1.1000, 0.5)
	assert.True(t, ev.Skipped)
	assert.Equal(t, "empty take-profit ladder", ev.SkipReason)
}

func TestEvaluateBuyTargetHit(t *testing.T) {
	sig := buySignal()

	ev := Evaluate(sig, 1.1050, 0.5)
	require.True(t, ev.TargetsChanged)
	assert.Equal(t, []int{1}, ev.NewTargetsHit)
	assert.Equal(t, []int{1}, ev.NewlyHit)
	assert.False(t, ev.StopCrossed)
}

func TestEvaluateBuyMultipleTargetsInOneTick(t *testing.T) {
	sig := buySignal()

	// Price gaps past the first two levels at once.
	ev := Evaluate(sig, 1.1120, 0.5)
	require.True(t, ev.TargetsChanged)
	assert.Equal(t, []int{1, 2}, ev.NewTargetsHit)
	assert.Equal(t, []int{1, 2}, ev.NewlyHit)
}

func TestEvaluateAlreadyHitTargetsNotRepeated(t *testing.T) {
	sig := buySignal()
	sig.TargetsHit = []int{1}

	ev := Evaluate(sig, 1.1100, 0.5)
	require.True(t, ev.TargetsChanged)
	assert.Equal(t, []int{1, 2}, ev.NewTargetsHit)
	assert.Equal(t, []int{2}, ev.NewlyHit)

	// Same price again with level 2 recorded: nothing new.
	sig.TargetsHit = []int{1, 2}
	ev = Evaluate(sig, 1.1100, 0.5)
	assert.False(t, ev.TargetsChanged)
	assert.Empty(t, ev.NewlyHit)
}

func TestEvaluateSellTargetHit(t *testing.T) {
	sig := sellSignal()

	ev := Evaluate(sig, 1.0950, 0.5)
	require.True(t, ev.TargetsChanged)
	assert.Equal(t, []int{1}, ev.NewTargetsHit)
	assert.False(t, ev.StopCrossed)
}

func TestEvaluateRejectsNonPositivePipsTarget(t *testing.T) {
	// Malformed ladder: a BUY "target" below entry would record a loss as a win.
	sig := buySignal()
	sig.TakeProfits = []float64{1.0990, 1.1100}

	ev := Evaluate(sig, 1.0995, 0.5)
	assert.False(t, ev.TargetsChanged, "target at a loss must not be accepted")
}

func TestEvaluateTrailingStopBuy(t *testing.T) {
	sig := buySignal()

	// TP1 hit at 1.1050: distance = |1.1050-1.1000| * 0.5 = 0.0025.
	ev := Evaluate(sig, 1.1050, 0.5)
	require.NotNil(t, ev.TrailingStop)
	assert.InDelta(t, 1.1025, *ev.TrailingStop, 1e-9)
}

func TestEvaluateTrailingStopSell(t *testing.T) {
	sig := sellSignal()

	ev := Evaluate(sig, 1.0950, 0.5)
	require.NotNil(t, ev.TrailingStop)
	assert.InDelta(t, 1.0975, *ev.TrailingStop, 1e-9)
}

func TestEvaluateTrailingStopOnlyRatchets(t *testing.T) {
	sig := buySignal()
	sig.TargetsHit = []int{1}
	sig.StopLoss = 1.1025 // already trailed

	// Price retreats: candidate 1.1010-0.0025=1.0985 < current stop, rejected.
	ev := Evaluate(sig, 1.1010, 0.5)
	assert.Nil(t, ev.TrailingStop)

	// Price advances: candidate 1.1080-0.0025=1.1055 > current stop, accepted.
	ev = Evaluate(sig, 1.1080, 0.5)
	require.NotNil(t, ev.TrailingStop)
	assert.InDelta(t, 1.1055, *ev.TrailingStop, 1e-9)
}

func TestEvaluateNoTrailingStopBeforeFirstTarget(t *testing.T) {
	sig := buySignal()

	ev := Evaluate(sig, 1.1030, 0.5)
	assert.False(t, ev.TargetsChanged)
	assert.Nil(t, ev.TrailingStop)
}

func TestEvaluateStopCrossed(t *testing.T) {
	tests := []struct {
		name    string
		sig     *contracts.Signal
		price   float64
		crossed bool
	}{
		{"buy above stop", buySignal(), 1.0960, false},
		{"buy at stop", buySignal(), 1.0950, true},
		{"buy below stop", buySignal(), 1.0900, true},
		{"sell below stop", sellSignal(), 1.1040, false},
		{"sell at stop", sellSignal(), 1.1050, true},
		{"sell above stop", sellSignal(), 1.1100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluate(tt.sig, tt.price, 0.5)
			assert.Equal(t, tt.crossed, ev.StopCrossed)
		})
	}
}

func TestEvaluateDoesNotMutateSignal(t *testing.T) {
	sig := buySignal()

	_ = Evaluate(sig, 1.1120, 0.5)
	assert.Empty(t, sig.TargetsHit, "evaluator must be pure")
	assert.Equal(t, 1.0950, sig.StopLoss)
}
