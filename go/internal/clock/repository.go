package clock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/google/uuid"
)

// Repository is the Postgres-backed StateStore. One row per tournament;
// SaveState upserts so the state materializes on first start and is never
// deleted afterwards.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ StateStore = (*Repository)(nil)

func (r *Repository) GetState(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, error) {
	const q = `
		SELECT tournament_id, status, current_level, time_remaining_ms,
		       last_tick_at, total_players, remaining_players, updated_at
		FROM clock_states
		WHERE tournament_id = $1`

	var state models.ClockState
	err := r.db.QueryRowContext(ctx, q, tournamentID).Scan(
		&state.TournamentID,
		&state.Status,
		&state.CurrentLevel,
		&state.TimeRemainingMs,
		&state.LastTickAt,
		&state.TotalPlayers,
		&state.RemainingPlayers,
		&state.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clock state: %w", err)
	}
	return &state, nil
}

func (r *Repository) SaveState(ctx context.Context, state *models.ClockState) error {
	const q = `
		INSERT INTO clock_states (
			tournament_id, status, current_level, time_remaining_ms,
			last_tick_at, total_players, remaining_players, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (tournament_id) DO UPDATE SET
			status            = EXCLUDED.status,
			current_level     = EXCLUDED.current_level,
			time_remaining_ms = EXCLUDED.time_remaining_ms,
			last_tick_at      = EXCLUDED.last_tick_at,
			total_players     = EXCLUDED.total_players,
			remaining_players = EXCLUDED.remaining_players,
			updated_at        = now()`

	_, err := r.db.ExecContext(ctx, q,
		state.TournamentID,
		state.Status,
		state.CurrentLevel,
		state.TimeRemainingMs,
		state.LastTickAt,
		state.TotalPlayers,
		state.RemainingPlayers,
	)
	if err != nil {
		return fmt.Errorf("failed to save clock state: %w", err)
	}
	return nil
}
