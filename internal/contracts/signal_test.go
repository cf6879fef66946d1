package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipSize(t *testing.T) {
	tests := []struct {
		symbol string
		want   float64
	}{
		{"EURUSD", 0.0001},
		{"GBPUSD", 0.0001},
		{"USDJPY", 0.01},
		{"EURJPY", 0.01},
		{"eurjpy", 0.01},
		{"AUDNZD", 0.0001},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			if got := PipSize(tt.symbol); got != tt.want {
				t.Errorf("PipSize(%q) = %v, want %v", tt.symbol, got, tt.want)
			}
		})
	}
}

func TestPnLPips(t *testing.T) {
	tests := []struct {
		name string
		sig  Signal
		exit float64
		want int
	}{
		{
			name: "buy gain",
			sig:  Signal{Symbol: "EURUSD", Direction: DirectionBuy, EntryPrice: 1.1000},
			exit: 1.1050,
			want: 50,
		},
		{
			name: "buy loss",
			sig:  Signal{Symbol: "EURUSD", Direction: DirectionBuy, EntryPrice: 1.1000},
			exit: 1.0950,
			want: -50,
		},
		{
			name: "sell gain",
			sig:  Signal{Symbol: "EURUSD", Direction: DirectionSell, EntryPrice: 1.1000},
			exit: 1.0950,
			want: 50,
		},
		{
			name: "sell loss",
			sig:  Signal{Symbol: "EURUSD", Direction: DirectionSell, EntryPrice: 1.1000},
			exit: 1.1080,
			want: -80,
		},
		{
			name: "jpy pair uses 0.01 pip",
			sig:  Signal{Symbol: "USDJPY", Direction: DirectionBuy, EntryPrice: 150.00},
			exit: 150.75,
			want: 75,
		},
		{
			name: "rounds to nearest pip",
			sig:  Signal{Symbol: "EURUSD", Direction: DirectionBuy, EntryPrice: 1.10000},
			exit: 1.10016,
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sig.PnLPips(tt.exit); got != tt.want {
				t.Errorf("PnLPips(%v) = %d, want %d", tt.exit, got, tt.want)
			}
		})
	}
}

func TestHasValidConfiguration(t *testing.T) {
	tests := []struct {
		name  string
		sig   Signal
		valid bool
	}{
		{"buy stop below entry", Signal{Direction: DirectionBuy, EntryPrice: 1.10, StopLoss: 1.09}, true},
		{"buy stop above entry", Signal{Direction: DirectionBuy, EntryPrice: 1.10, StopLoss: 1.11}, false},
		{"buy stop equals entry", Signal{Direction: DirectionBuy, EntryPrice: 1.10, StopLoss: 1.10}, false},
		{"sell stop above entry", Signal{Direction: DirectionSell, EntryPrice: 1.10, StopLoss: 1.11}, true},
		{"sell stop below entry", Signal{Direction: DirectionSell, EntryPrice: 1.10, StopLoss: 1.09}, false},
		{"zero entry", Signal{Direction: DirectionBuy, EntryPrice: 0, StopLoss: 1.09}, false},
		{"zero stop", Signal{Direction: DirectionBuy, EntryPrice: 1.10, StopLoss: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sig.HasValidConfiguration(); got != tt.valid {
				t.Errorf("HasValidConfiguration() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestTargetHelpers(t *testing.T) {
	sig := Signal{
		TakeProfits: []float64{1.11, 1.12, 1.13},
		TargetsHit:  []int{1, 3},
	}

	assert.True(t, sig.HasHitTarget(1))
	assert.False(t, sig.HasHitTarget(2))
	assert.Equal(t, 3, sig.HighestTargetHit())
	assert.False(t, sig.AllTargetsHit(), "len matters, all three levels not recorded")

	sig.TargetsHit = []int{1, 2, 3}
	assert.True(t, sig.AllTargetsHit())

	empty := Signal{}
	assert.False(t, empty.AllTargetsHit())
	assert.Equal(t, 0, empty.HighestTargetHit())
}

func TestOutcomeConstructors(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sig := &Signal{
		ID: "s1", Symbol: "EURUSD", Direction: DirectionBuy,
		EntryPrice: 1.1000, StopLoss: 1.0950,
		TakeProfits: []float64{1.1050, 1.1100},
	}

	target := TargetOutcome(sig, 2, 1.1100, NoteAllTargets, now)
	assert.True(t, target.HitTarget)
	require.NotNil(t, target.TargetHitLevel)
	assert.Equal(t, 2, *target.TargetHitLevel)
	assert.Equal(t, 100, target.PnLPips)
	assert.Equal(t, now, target.ExitedAt)

	stop := StopLossOutcome(sig, 1.0950, NoteStopLoss, now)
	assert.False(t, stop.HitTarget)
	assert.Nil(t, stop.TargetHitLevel)
	assert.Equal(t, -50, stop.PnLPips)
}
