package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/contracts"
	"github.com/Malick1802/signal-stride-forex-sub005/internal/store"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
)

// fakeFeed is a deterministic contracts.PriceFeed for tests.
type fakeFeed struct {
	mu            sync.Mutex
	prices        map[string]float64
	lastKnown     map[string]float64
	failGetPrices bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		prices:    make(map[string]float64),
		lastKnown: make(map[string]float64),
	}
}

func (f *fakeFeed) SetPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

func (f *fakeFeed) ClearPrices() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices = make(map[string]float64)
}

func (f *fakeFeed) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGetPrices {
		return nil, fmt.Errorf("simulated feed outage")
	}
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func (f *fakeFeed) LastKnownPrice(ctx context.Context, symbol string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.lastKnown[symbol]
	return p, ok
}

// fakeNotifier records delivered events.
type fakeNotifier struct {
	mu        sync.Mutex
	targets   []*contracts.TargetHitEvent
	stops     []*contracts.StopLossHitEvent
	completed []*contracts.SignalCompletedEvent
}

func (n *fakeNotifier) NotifyTargetHit(ctx context.Context, e *contracts.TargetHitEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, e)
}

func (n *fakeNotifier) NotifyStopLossHit(ctx context.Context, e *contracts.StopLossHitEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops = append(n.stops, e)
}

func (n *fakeNotifier) NotifySignalCompleted(ctx context.Context, e *contracts.SignalCompletedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, e)
}

func (n *fakeNotifier) counts() (int, int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.targets), len(n.stops), len(n.completed)
}

// newTestReconciler wires a reconciler over in-memory fakes with a manual clock.
func newTestReconciler(mem *store.MemoryStore, feed *fakeFeed) (*Reconciler, *fakeNotifier, *time.Time) {
	cfg := &contracts.MonitorConfig{
		ConfirmationCount:    2,
		ConfirmationWindow:   15 * time.Second,
		StaleConfirmationAge: 60 * time.Second,
		TrailingStopFactor:   0.5,
		CheckInterval:        3 * time.Second,
		DebounceDelay:        250 * time.Millisecond,
	}
	notifier := &fakeNotifier{}
	r := NewReconciler(cfg, mem, mem, feed, notifier, logger.NewNop())

	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	return r, notifier, &clock
}

func TestTickTargetHitPersistsAndNotifies(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.PutSignal(*buySignal())
	feed := newFakeFeed()
	feed.SetPrice("EURUSD", 1.1050)

	r, notifier, _ := newTestReconciler(mem, feed)
	require.NoError(t, r.Tick(context.Background()))

	sig, ok := mem.GetSignal("sig-buy")
	require.True(t, ok)
	assert.Equal(t, []int{1}, sig.TargetsHit)
	assert.Equal(t, contracts.StatusActive, sig.Status)
	assert.InDelta(t, 1.1025, sig.StopLoss, 1e-9, "trailing stop activates on first hit")

	targets, stops, completed := notifier.counts()
	assert.Equal(t, 1, targets)
	assert.Equal(t, 0, stops)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 0, mem.OutcomeCount())
}

func TestTickAllTargetsHitCompletesSignal(t *testing.T) {
	mem := store.NewMemoryStore()
	sig := buySignal()
	sig.TakeProfits = []float64{1.1050}
	mem.PutSignal(*sig)
	feed := newFakeFeed()
	feed.SetPrice("EURUSD", 1.1100)

	r, notifier, _ := newTestReconciler(mem, feed)
	require.NoError(t, r.Tick(context.Background()))

	stored, _ := mem.GetSignal("sig-buy")
	assert.Equal(t, contracts.StatusExpired, stored.Status)

	outcome, ok := mem.GetOutcome("sig-buy")
	require.True(t, ok)
	assert.True(t, outcome.HitTarget)
	require.NotNil(t, outcome.TargetHitLevel)
	assert.Equal(t, 1, *outcome.TargetHitLevel)
	assert.InDelta(t, 1.1050, outcome.ExitPrice, 1e-9, "exit is the target price, not the tick price")
	assert.Equal(t, 50, outcome.PnLPips)

	_, _, completed := notifier.counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, int64(1), r.GetStats().OutcomesWritten)
}

func TestStopLossConfirmationFlow(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.PutSignal(*buySignal())
	feed := newFakeFeed()
	feed.SetPrice("EURUSD", 1.0940)

	r, notifier, clock := newTestReconciler(mem, feed)
	ctx := context.Background()

	// First crossing starts the streak.
	require.NoError(t, r.Tick(ctx))
	assert.Equal(t, 0, mem.OutcomeCount())
	assert.Equal(t, 1, r.tracker.Len())

	// Count satisfied but the window is not.
	*clock = clock.Add(5 * time.Second)
	require.NoError(t, r.Tick(ctx))
	assert.Equal(t, 0, mem.OutcomeCount())

	// Both thresholds met: terminal stop-loss outcome.
	*clock = clock.Add(11 * time.Second)
	require.NoError(t, r.Tick(ctx))

	stored, _ := mem.GetSignal("sig-buy")
	assert.Equal(t, contracts.StatusExpired, stored.Status)

	outcome, ok := mem.GetOutcome("sig-buy")
	require.True(t, ok)
	assert.False(t, outcome.HitTarget)
	assert.Nil(t, outcome.TargetHitLevel)
	assert.InDelta(t, 1.0950, outcome.ExitPrice, 1e-9)
	assert.Equal(t, -50, outcome.PnLPips)

	_, stops, completed := notifier.counts()
	assert.Equal(t, 1, stops)
	assert.Equal(t, 1, completed)
}

func TestStopLossStreakResetOnRecovery(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.PutSignal(*buySignal())
	feed := newFakeFeed()

	r, _, clock := newTestReconciler(mem, feed)
	ctx := context.Background()

	feed.SetPrice("EURUSD", 1.0940)
	require.NoError(t, r.Tick(ctx))

	// Price recovers: the streak is cancelled.
	*clock = clock.Add(5 * time.Second)
	feed.SetPrice("EURUSD", 1.0960)
	require.NoError(t, r.Tick(ctx))
	assert.Equal(t, 0, r.tracker.Len())

	// New crossing: the window restarts from here, not from the first streak.
	*clock = clock.Add(5 * time.Second)
	feed.SetPrice("EURUSD", 1.0940)
	require.NoError(t, r.Tick(ctx))

	*clock = clock.Add(10 * time.Second)
	require.NoError(t, r.Tick(ctx))
	assert.Equal(t, 0, mem.OutcomeCount(), "only 10s into the new streak")

	*clock = clock.Add(6 * time.Second)
	require.NoError(t, r.Tick(ctx))
	assert.Equal(t, 1, mem.OutcomeCount())
}

func TestTickTrailedSignalRidesToAllTargets(t *testing.T) {
	mem := store.NewMemoryStore()
	sig := buySignal()
	sig.TakeProfits = []float64{1.1050, 1.1100}
	mem.PutSignal(*sig)
	feed := newFakeFeed()

	r, notifier, clock := newTestReconciler(mem, feed)
	ctx := context.Background()

	// TP1 hit trails the stop above entry; the signal must stay monitored.
	feed.SetPrice("EURUSD", 1.1060)
	require.NoError(t, r.Tick(ctx))

	stored, _ := mem.GetSignal("sig-buy")
	assert.Equal(t, []int{1}, stored.TargetsHit)
	assert.Equal(t, contracts.StatusActive, stored.Status)
	assert.InDelta(t, 1.1035, stored.StopLoss, 1e-9, "stop trailed past entry")

	*clock = clock.Add(3 * time.Second)
	feed.SetPrice("EURUSD", 1.1110)
	require.NoError(t, r.Tick(ctx))

	stored, _ = mem.GetSignal("sig-buy")
	assert.Equal(t, contracts.StatusExpired, stored.Status)
	assert.Equal(t, []int{1, 2}, stored.TargetsHit)

	outcome, ok := mem.GetOutcome("sig-buy")
	require.True(t, ok)
	assert.True(t, outcome.HitTarget)
	require.NotNil(t, outcome.TargetHitLevel)
	assert.Equal(t, 2, *outcome.TargetHitLevel)
	assert.InDelta(t, 1.1100, outcome.ExitPrice, 1e-9)
	assert.Equal(t, 100, outcome.PnLPips)

	targets, stops, completed := notifier.counts()
	assert.Equal(t, 2, targets)
	assert.Equal(t, 0, stops)
	assert.Equal(t, 1, completed)
}

func TestTickInvalidConfigForceExpires(t *testing.T) {
	mem := store.NewMemoryStore()
	sig := buySignal()
	sig.StopLoss = 1.1100 // wrong side of entry for a BUY
	mem.PutSignal(*sig)
	feed := newFakeFeed() // no price needed

	r, _, _ := newTestReconciler(mem, feed)
	require.NoError(t, r.Tick(context.Background()))

	stored, _ := mem.GetSignal("sig-buy")
	assert.Equal(t, contracts.StatusExpired, stored.Status)

	outcome, ok := mem.GetOutcome("sig-buy")
	require.True(t, ok)
	assert.False(t, outcome.HitTarget)
	assert.Equal(t, contracts.NoteInvalidConfig, outcome.Notes)
}

func TestTickEmptyLadderForceExpires(t *testing.T) {
	mem := store.NewMemoryStore()
	sig := buySignal()
	sig.TakeProfits = nil
	mem.PutSignal(*sig)
	feed := newFakeFeed() // no price needed

	r, _, _ := newTestReconciler(mem, feed)
	require.NoError(t, r.Tick(context.Background()))

	stored, _ := mem.GetSignal("sig-buy")
	assert.Equal(t, contracts.StatusExpired, stored.Status, "empty ladder must not stay active forever")

	outcome, ok := mem.GetOutcome("sig-buy")
	require.True(t, ok)
	assert.False(t, outcome.HitTarget)
	assert.InDelta(t, 1.0950, outcome.ExitPrice, 1e-9)
	assert.Equal(t, contracts.NoteEmptyLadder, outcome.Notes)
}

func TestTickMissingPriceIsNoOp(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.PutSignal(*buySignal())
	feed := newFakeFeed() // nothing quoted

	r, notifier, _ := newTestReconciler(mem, feed)
	require.NoError(t, r.Tick(context.Background()))

	stored, _ := mem.GetSignal("sig-buy")
	assert.Equal(t, contracts.StatusActive, stored.Status)
	assert.Empty(t, stored.TargetsHit)
	targets, stops, completed := notifier.counts()
	assert.Zero(t, targets+stops+completed)
}

func TestTickFeedOutageSkipsPass(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.PutSignal(*buySignal())
	feed := newFakeFeed()
	feed.failGetPrices = true

	r, _, _ := newTestReconciler(mem, feed)
	err := r.Tick(context.Background())
	require.Error(t, err)

	stored, _ := mem.GetSignal("sig-buy")
	assert.Equal(t, contracts.StatusActive, stored.Status)
	assert.Equal(t, 0, mem.OutcomeCount())
}

func TestTickPersistFailureRetriesNextTick(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.PutSignal(*buySignal())
	feed := newFakeFeed()
	feed.SetPrice("EURUSD", 1.1050)

	r, notifier, _ := newTestReconciler(mem, feed)
	ctx := context.Background()

	mem.FailUpdates = true
	require.NoError(t, r.Tick(ctx))

	stored, _ := mem.GetSignal("sig-buy")
	assert.Empty(t, stored.TargetsHit, "failed write must not be reflected anywhere")
	targets, _, _ := notifier.counts()
	assert.Equal(t, 0, targets, "no notification without a persisted hit")

	// Store recovers: the same tick input now lands.
	mem.FailUpdates = false
	require.NoError(t, r.Tick(ctx))
	stored, _ = mem.GetSignal("sig-buy")
	assert.Equal(t, []int{1}, stored.TargetsHit)
	targets, _, _ = notifier.counts()
	assert.Equal(t, 1, targets)
}

func TestOutcomeWrittenExactlyOnceAcrossExpiryFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	sig := buySignal()
	sig.TakeProfits = []float64{1.1050}
	mem.PutSignal(*sig)
	feed := newFakeFeed()
	feed.SetPrice("EURUSD", 1.1100)

	r, notifier, _ := newTestReconciler(mem, feed)
	ctx := context.Background()

	// Outcome insert succeeds, the status flip does not. The completion is
	// still counted and announced: the insert is the terminal event.
	mem.FailExpire = true
	require.NoError(t, r.Tick(ctx))
	assert.Equal(t, 1, mem.OutcomeCount())
	stored, _ := mem.GetSignal("sig-buy")
	assert.Equal(t, contracts.StatusActive, stored.Status)
	assert.Equal(t, int64(1), r.GetStats().OutcomesWritten)
	_, _, completedAfterInsert := notifier.counts()
	assert.Equal(t, 1, completedAfterInsert)

	// Next tick converges: no duplicate outcome, status flips.
	mem.FailExpire = false
	require.NoError(t, r.Tick(ctx))
	assert.Equal(t, 1, mem.OutcomeCount())
	stored, _ = mem.GetSignal("sig-buy")
	assert.Equal(t, contracts.StatusExpired, stored.Status)

	assert.Equal(t, int64(1), r.GetStats().OutcomesWritten)
	_, _, completed := notifier.counts()
	assert.Equal(t, 1, completed, "completion notifies only on the actual insert")
}

func TestRepairPassTrustsRecordedTargets(t *testing.T) {
	mem := store.NewMemoryStore()
	sig := *buySignal()
	sig.Status = contracts.StatusExpired
	sig.TargetsHit = []int{1, 2}
	mem.PutSignal(sig)
	feed := newFakeFeed() // no live or last-known price

	r, notifier, _ := newTestReconciler(mem, feed)
	require.NoError(t, r.RepairPass(context.Background()))

	outcome, ok := mem.GetOutcome("sig-buy")
	require.True(t, ok)
	assert.True(t, outcome.HitTarget)
	require.NotNil(t, outcome.TargetHitLevel)
	assert.Equal(t, 2, *outcome.TargetHitLevel)
	assert.InDelta(t, 1.1100, outcome.ExitPrice, 1e-9)
	assert.Equal(t, contracts.NoteRetroactive, outcome.Notes)

	assert.Equal(t, int64(1), r.GetStats().RepairsWritten)
	_, _, completed := notifier.counts()
	assert.Equal(t, 1, completed)
}

func TestRepairPassStopLossWhenPriceBeyondStop(t *testing.T) {
	mem := store.NewMemoryStore()
	sig := *buySignal()
	sig.Status = contracts.StatusExpired
	sig.TargetsHit = []int{1}
	mem.PutSignal(sig)
	feed := newFakeFeed()
	feed.lastKnown["EURUSD"] = 1.0900 // below the stop

	r, _, _ := newTestReconciler(mem, feed)
	require.NoError(t, r.RepairPass(context.Background()))

	outcome, ok := mem.GetOutcome("sig-buy")
	require.True(t, ok)
	assert.False(t, outcome.HitTarget, "a crossed stop outweighs recorded hits")
	assert.InDelta(t, 1.0950, outcome.ExitPrice, 1e-9)
}

func TestRepairPassDefaultsToStopLoss(t *testing.T) {
	mem := store.NewMemoryStore()
	sig := *buySignal()
	sig.Status = contracts.StatusExpired
	mem.PutSignal(sig)
	feed := newFakeFeed()

	r, _, _ := newTestReconciler(mem, feed)
	require.NoError(t, r.RepairPass(context.Background()))

	outcome, ok := mem.GetOutcome("sig-buy")
	require.True(t, ok)
	assert.False(t, outcome.HitTarget)
	assert.Equal(t, contracts.NoteRetroactive, outcome.Notes)
}

func TestRepairPassSkipsSignalsWithOutcome(t *testing.T) {
	mem := store.NewMemoryStore()
	sig := *buySignal()
	sig.Status = contracts.StatusExpired
	mem.PutSignal(sig)
	feed := newFakeFeed()

	r, _, _ := newTestReconciler(mem, feed)
	ctx := context.Background()
	require.NoError(t, r.RepairPass(ctx))
	require.NoError(t, r.RepairPass(ctx))

	assert.Equal(t, 1, mem.OutcomeCount())
	assert.Equal(t, int64(1), r.GetStats().RepairsWritten)
}

func TestGetStatsCountsTicks(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.PutSignal(*buySignal())
	feed := newFakeFeed()
	feed.SetPrice("EURUSD", 1.1000)

	r, _, _ := newTestReconciler(mem, feed)
	ctx := context.Background()
	require.NoError(t, r.Tick(ctx))
	require.NoError(t, r.Tick(ctx))

	stats := r.GetStats()
	assert.Equal(t, int64(2), stats.TickCount)
	assert.Equal(t, int64(2), stats.SignalsEvaluated)
}
