// Package store provides the Postgres-backed persistence for signals and
// outcomes, plus an in-memory implementation used by tests and dry runs.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/contracts"
)

// SignalRepository is the Postgres implementation of contracts.SignalStore.
// SSOT: trading_signals reads/writes happen here and only here
type SignalRepository struct {
	pool *pgxpool.Pool
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// ListActiveSignals returns all centralized signals with status = active.
// User-authored signal copies are excluded from monitoring.
func (r *SignalRepository) ListActiveSignals(ctx context.Context) ([]contracts.Signal, error) {
	query := `
		SELECT id, symbol, direction, entry_price, stop_loss,
		       take_profits, targets_hit, status, created_at
		FROM trading_signals
		WHERE status = 'active'
		  AND is_centralized = true
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// UpdateTargetsHit replaces the targets-hit set for a signal.
func (r *SignalRepository) UpdateTargetsHit(ctx context.Context, id string, targetsHit []int) error {
	query := `
		UPDATE trading_signals
		SET targets_hit = $1, updated_at = $2
		WHERE id = $3 AND status = 'active'
	`

	_, err := r.pool.Exec(ctx, query, toInt32(targetsHit), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update targets hit: %w", err)
	}

	return nil
}

// UpdateStopLoss replaces the stop-loss for a signal (trailing updates).
func (r *SignalRepository) UpdateStopLoss(ctx context.Context, id string, stopLoss float64) error {
	query := `
		UPDATE trading_signals
		SET stop_loss = $1, updated_at = $2
		WHERE id = $3 AND status = 'active'
	`

	_, err := r.pool.Exec(ctx, query, stopLoss, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update stop loss: %w", err)
	}

	return nil
}

// ExpireSignal flips status to expired with the final targets-hit set.
// Expiring an already expired signal is a no-op, which keeps terminal
// processing idempotent under racing ticks.
func (r *SignalRepository) ExpireSignal(ctx context.Context, id string, finalTargetsHit []int) error {
	query := `
		UPDATE trading_signals
		SET status = 'expired', targets_hit = $1, updated_at = $2
		WHERE id = $3
	`

	_, err := r.pool.Exec(ctx, query, toInt32(finalTargetsHit), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to expire signal: %w", err)
	}

	return nil
}

// ListExpiredWithoutOutcome returns expired signals lacking an Outcome, for
// the repair pass. Status can be flipped by external processes, so this set
// is not necessarily empty even when the engine never crashed.
func (r *SignalRepository) ListExpiredWithoutOutcome(ctx context.Context) ([]contracts.Signal, error) {
	query := `
		SELECT s.id, s.symbol, s.direction, s.entry_price, s.stop_loss,
		       s.take_profits, s.targets_hit, s.status, s.created_at
		FROM trading_signals s
		LEFT JOIN signal_outcomes o ON o.signal_id = s.id
		WHERE s.status = 'expired'
		  AND s.is_centralized = true
		  AND o.signal_id IS NULL
		ORDER BY s.created_at ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired signals without outcome: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// scanSignals collects signal rows, converting array columns.
func scanSignals(rows pgx.Rows) ([]contracts.Signal, error) {
	signals := make([]contracts.Signal, 0)

	for rows.Next() {
		var sig contracts.Signal
		var takeProfits []float64
		var targetsHit []int32

		err := rows.Scan(
			&sig.ID, &sig.Symbol, &sig.Direction, &sig.EntryPrice, &sig.StopLoss,
			&takeProfits, &targetsHit, &sig.Status, &sig.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		sig.TakeProfits = takeProfits
		sig.TargetsHit = fromInt32(targetsHit)
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return signals, nil
}

func toInt32(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}

func fromInt32(in []int32) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
