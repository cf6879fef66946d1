package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Malick1802/signal-stride-forex-sub005/internal/contracts"
)

// OutcomeRepository is the Postgres implementation of contracts.OutcomeStore.
// The unique constraint on signal_id is the idempotency anchor for terminal
// outcome creation: racing inserts lose silently instead of duplicating.
type OutcomeRepository struct {
	pool *pgxpool.Pool
}

// NewOutcomeRepository creates a new outcome repository.
func NewOutcomeRepository(pool *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{pool: pool}
}

// TryInsertOutcome inserts the outcome unless one already exists for the
// signal. Returns false when the row was already present.
func (r *OutcomeRepository) TryInsertOutcome(ctx context.Context, outcome *contracts.Outcome) (bool, error) {
	query := `
		INSERT INTO signal_outcomes (
			signal_id, hit_target, exit_price, target_hit_level,
			pnl_pips, notes, exit_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (signal_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		outcome.SignalID, outcome.HitTarget, outcome.ExitPrice, outcome.TargetHitLevel,
		outcome.PnLPips, outcome.Notes, outcome.ExitedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert outcome: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// HasOutcome reports whether an outcome exists for the signal.
func (r *OutcomeRepository) HasOutcome(ctx context.Context, signalID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM signal_outcomes WHERE signal_id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, signalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check outcome existence: %w", err)
	}

	return exists, nil
}

// GetOutcome retrieves the outcome for a signal, for status reporting.
func (r *OutcomeRepository) GetOutcome(ctx context.Context, signalID string) (*contracts.Outcome, error) {
	query := `
		SELECT signal_id, hit_target, exit_price, target_hit_level,
		       pnl_pips, notes, exit_timestamp
		FROM signal_outcomes
		WHERE signal_id = $1
	`

	var outcome contracts.Outcome
	err := r.pool.QueryRow(ctx, query, signalID).Scan(
		&outcome.SignalID, &outcome.HitTarget, &outcome.ExitPrice, &outcome.TargetHitLevel,
		&outcome.PnLPips, &outcome.Notes, &outcome.ExitedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}

	return &outcome, nil
}
