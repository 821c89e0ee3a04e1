package tournament

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/feltworks/tourneyclock/go/internal/clock"
	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/google/uuid"
)

// TournamentRepository defines what the app layer needs from storage.
type TournamentRepository interface {
	GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	GetScheduleLevels(ctx context.Context, scheduleID uuid.UUID) ([]models.BlindLevel, error)
	UpsertTournament(ctx context.Context, t *models.Tournament) error
	DeleteTournament(ctx context.Context, id uuid.UUID) error
	SaveSchedule(ctx context.Context, schedule *models.BlindSchedule) error
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
}

// App handles tournament lookups for the clock and applies synced tournament
// changes to the canonical store.
type App struct {
	repo TournamentRepository
}

func NewApp(repo TournamentRepository) *App {
	return &App{repo: repo}
}

var _ clock.ScheduleSource = (*App)(nil)

// GetTournament looks up a tournament, mapping storage not-found onto the
// clock's sentinel so transport layers deal with one error taxonomy.
func (a *App) GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	t, err := a.repo.GetTournament(ctx, id)
	if errors.Is(err, ErrTournamentNotFound) {
		return nil, clock.ErrNotFound
	}
	return t, err
}

// ScheduleForTournament resolves and validates a tournament's blind schedule.
// The validation runs on every read: the controller never trusts a schedule
// it has not just checked for a dense 1..N level sequence.
func (a *App) ScheduleForTournament(ctx context.Context, tournamentID uuid.UUID) ([]models.BlindLevel, error) {
	t, err := a.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.BlindScheduleID == nil {
		return nil, nil
	}

	levels, err := a.repo.GetScheduleLevels(ctx, *t.BlindScheduleID)
	if err != nil {
		return nil, err
	}
	if err := ValidateSchedule(levels); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", t.BlindScheduleID, err)
	}
	return levels, nil
}

// ValidateSchedule checks the invariants the clock depends on: level numbers
// form a dense 1..N sequence and every duration is positive.
func ValidateSchedule(levels []models.BlindLevel) error {
	for i, l := range levels {
		if l.Level != i+1 {
			return fmt.Errorf("level numbering must be dense 1..N: got %d at position %d", l.Level, i+1)
		}
		if l.DurationMs <= 0 {
			return fmt.Errorf("level %d has non-positive duration %dms", l.Level, l.DurationMs)
		}
		if l.Ante < 0 {
			return fmt.Errorf("level %d has negative ante", l.Level)
		}
	}
	return nil
}

// tournamentPayload is the sync wire shape for a tournament change.
type tournamentPayload struct {
	Name            string     `json:"name"`
	BlindScheduleID *uuid.UUID `json:"blind_schedule_id,omitempty"`
}

// ApplyChange applies one synced change to the canonical tournament store.
// Registered as the sync apply handler for the "tournament" entity type.
func (a *App) ApplyChange(ctx context.Context, change models.ChangeRecord) error {
	entityID, err := uuid.Parse(change.EntityID)
	if err != nil {
		return fmt.Errorf("invalid tournament id %q: %w", change.EntityID, err)
	}

	switch change.Operation {
	case models.ChangeOperationCreate, models.ChangeOperationUpdate:
		var payload tournamentPayload
		if err := json.Unmarshal(change.Data, &payload); err != nil {
			return fmt.Errorf("invalid tournament payload: %w", err)
		}
		return a.repo.UpsertTournament(ctx, &models.Tournament{
			ID:              entityID,
			Name:            payload.Name,
			BlindScheduleID: payload.BlindScheduleID,
		})
	case models.ChangeOperationDelete:
		return a.repo.DeleteTournament(ctx, entityID)
	default:
		return fmt.Errorf("unknown operation %q", change.Operation)
	}
}

// schedulePayload is the sync wire shape for a blind schedule change.
type schedulePayload struct {
	TournamentID uuid.UUID           `json:"tournament_id"`
	Name         string              `json:"name"`
	Levels       []models.BlindLevel `json:"levels"`
}

// ApplyScheduleChange applies one synced blind-schedule change. Registered as
// the sync apply handler for the "blind_schedule" entity type. Invalid
// schedules are rejected before they can reach the clock.
func (a *App) ApplyScheduleChange(ctx context.Context, change models.ChangeRecord) error {
	entityID, err := uuid.Parse(change.EntityID)
	if err != nil {
		return fmt.Errorf("invalid schedule id %q: %w", change.EntityID, err)
	}

	switch change.Operation {
	case models.ChangeOperationCreate, models.ChangeOperationUpdate:
		var payload schedulePayload
		if err := json.Unmarshal(change.Data, &payload); err != nil {
			return fmt.Errorf("invalid schedule payload: %w", err)
		}
		if err := ValidateSchedule(payload.Levels); err != nil {
			return fmt.Errorf("schedule %s: %w", entityID, err)
		}
		return a.repo.SaveSchedule(ctx, &models.BlindSchedule{
			ID:           entityID,
			TournamentID: payload.TournamentID,
			Name:         payload.Name,
			Levels:       payload.Levels,
		})
	case models.ChangeOperationDelete:
		return a.repo.DeleteSchedule(ctx, entityID)
	default:
		return fmt.Errorf("unknown operation %q", change.Operation)
	}
}
