package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/contracts"
)

// MemoryStore is an in-memory implementation of contracts.SignalStore and
// contracts.OutcomeStore, used by the engine tests and local dry runs.
type MemoryStore struct {
	mu       sync.Mutex
	signals  map[string]*contracts.Signal
	outcomes map[string]*contracts.Outcome

	// FailUpdates simulates transient persistence errors in tests.
	FailUpdates bool
	// FailExpire simulates a failed status flip after a successful insert.
	FailExpire bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals:  make(map[string]*contracts.Signal),
		outcomes: make(map[string]*contracts.Outcome),
	}
}

// PutSignal inserts or replaces a signal.
func (m *MemoryStore) PutSignal(sig contracts.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := sig
	cp.TakeProfits = append([]float64(nil), sig.TakeProfits...)
	cp.TargetsHit = append([]int(nil), sig.TargetsHit...)
	m.signals[sig.ID] = &cp
}

// GetSignal returns a copy of the stored signal.
func (m *MemoryStore) GetSignal(id string) (contracts.Signal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.signals[id]
	if !ok {
		return contracts.Signal{}, false
	}
	cp := *sig
	cp.TakeProfits = append([]float64(nil), sig.TakeProfits...)
	cp.TargetsHit = append([]int(nil), sig.TargetsHit...)
	return cp, true
}

// GetOutcome returns the stored outcome for a signal, if any.
func (m *MemoryStore) GetOutcome(signalID string) (*contracts.Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outcomes[signalID]
	return o, ok
}

// OutcomeCount returns the number of stored outcomes.
func (m *MemoryStore) OutcomeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outcomes)
}

// =============================================================================
// contracts.SignalStore
// =============================================================================

func (m *MemoryStore) ListActiveSignals(ctx context.Context) ([]contracts.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]contracts.Signal, 0, len(m.signals))
	for _, sig := range m.signals {
		if sig.Status == contracts.StatusActive {
			cp := *sig
			cp.TakeProfits = append([]float64(nil), sig.TakeProfits...)
			cp.TargetsHit = append([]int(nil), sig.TargetsHit...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateTargetsHit(ctx context.Context, id string, targetsHit []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpdates {
		return fmt.Errorf("simulated update failure")
	}
	sig, ok := m.signals[id]
	if !ok {
		return fmt.Errorf("signal not found: %s", id)
	}
	sig.TargetsHit = append([]int(nil), targetsHit...)
	return nil
}

func (m *MemoryStore) UpdateStopLoss(ctx context.Context, id string, stopLoss float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpdates {
		return fmt.Errorf("simulated update failure")
	}
	sig, ok := m.signals[id]
	if !ok {
		return fmt.Errorf("signal not found: %s", id)
	}
	sig.StopLoss = stopLoss
	return nil
}

func (m *MemoryStore) ExpireSignal(ctx context.Context, id string, finalTargetsHit []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailExpire {
		return fmt.Errorf("simulated expire failure")
	}
	sig, ok := m.signals[id]
	if !ok {
		return fmt.Errorf("signal not found: %s", id)
	}
	sig.Status = contracts.StatusExpired
	sig.TargetsHit = append([]int(nil), finalTargetsHit...)
	return nil
}

func (m *MemoryStore) ListExpiredWithoutOutcome(ctx context.Context) ([]contracts.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]contracts.Signal, 0)
	for id, sig := range m.signals {
		if sig.Status != contracts.StatusExpired {
			continue
		}
		if _, has := m.outcomes[id]; has {
			continue
		}
		cp := *sig
		cp.TakeProfits = append([]float64(nil), sig.TakeProfits...)
		cp.TargetsHit = append([]int(nil), sig.TargetsHit...)
		out = append(out, cp)
	}
	return out, nil
}

// =============================================================================
// contracts.OutcomeStore
// =============================================================================

func (m *MemoryStore) TryInsertOutcome(ctx context.Context, outcome *contracts.Outcome) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.outcomes[outcome.SignalID]; exists {
		return false, nil
	}
	cp := *outcome
	m.outcomes[outcome.SignalID] = &cp
	return true, nil
}

func (m *MemoryStore) HasOutcome(ctx context.Context, signalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.outcomes[signalID]
	return ok, nil
}
