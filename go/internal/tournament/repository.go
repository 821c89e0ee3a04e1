package tournament

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/feltworks/tourneyclock/go/internal/sqlutil"
	"github.com/google/uuid"
)

// ErrTournamentNotFound is returned when no tournament row exists for the id.
var ErrTournamentNotFound = errors.New("tournament not found")

// Repository implements tournament and blind-schedule data access.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	const q = `
		SELECT id, name, blind_schedule_id, created_at, updated_at
		FROM tournaments
		WHERE id = $1`

	var t models.Tournament
	var scheduleID uuid.NullUUID
	err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Name, &scheduleID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	t.BlindScheduleID = sqlutil.FromNullUUID(scheduleID)
	return &t, nil
}

// GetScheduleLevels returns the schedule's levels ordered by level number.
func (r *Repository) GetScheduleLevels(ctx context.Context, scheduleID uuid.UUID) ([]models.BlindLevel, error) {
	const q = `
		SELECT level, small_blind, big_blind, ante, duration_ms, is_break
		FROM blind_levels
		WHERE schedule_id = $1
		ORDER BY level ASC`

	rows, err := r.db.QueryContext(ctx, q, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blind levels: %w", err)
	}
	defer rows.Close()

	var levels []models.BlindLevel
	for rows.Next() {
		var l models.BlindLevel
		if err := rows.Scan(&l.Level, &l.SmallBlind, &l.BigBlind, &l.Ante, &l.DurationMs, &l.IsBreak); err != nil {
			return nil, fmt.Errorf("failed to scan blind level: %w", err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blind levels: %w", err)
	}
	return levels, nil
}

func (r *Repository) UpsertTournament(ctx context.Context, t *models.Tournament) error {
	const q = `
		INSERT INTO tournaments (id, name, blind_schedule_id, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name              = EXCLUDED.name,
			blind_schedule_id = EXCLUDED.blind_schedule_id,
			updated_at        = now()`

	if _, err := r.db.ExecContext(ctx, q, t.ID, t.Name, sqlutil.ToNullUUID(t.BlindScheduleID)); err != nil {
		return fmt.Errorf("failed to upsert tournament: %w", err)
	}
	return nil
}

// SaveSchedule replaces the schedule row and its level set atomically, so a
// clock reading the schedule mid-save never observes a partial level list.
func (r *Repository) SaveSchedule(ctx context.Context, schedule *models.BlindSchedule) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		const upsert = `
			INSERT INTO blind_schedules (id, tournament_id, name, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (id) DO UPDATE SET
				name       = EXCLUDED.name,
				updated_at = now()`
		if _, err := tx.ExecContext(ctx, upsert, schedule.ID, schedule.TournamentID, schedule.Name); err != nil {
			return fmt.Errorf("failed to upsert blind schedule: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM blind_levels WHERE schedule_id = $1`, schedule.ID); err != nil {
			return fmt.Errorf("failed to clear blind levels: %w", err)
		}

		const insertLevel = `
			INSERT INTO blind_levels (schedule_id, level, small_blind, big_blind, ante, duration_ms, is_break)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		for _, l := range schedule.Levels {
			if _, err := tx.ExecContext(ctx, insertLevel,
				schedule.ID, l.Level, l.SmallBlind, l.BigBlind, l.Ante, l.DurationMs, l.IsBreak,
			); err != nil {
				return fmt.Errorf("failed to insert blind level %d: %w", l.Level, err)
			}
		}
		return nil
	})
}

func (r *Repository) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete tournament: %w", err)
	}
	return nil
}

// DeleteSchedule removes a schedule and its levels. Tournaments referencing
// it fall back to having no schedule via the FK's ON DELETE SET NULL.
func (r *Repository) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM blind_schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete blind schedule: %w", err)
	}
	return nil
}
