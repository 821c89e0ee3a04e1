package models

import (
	"time"

	"github.com/google/uuid"
)

// BlindLevel is one ordinal entry in a blind schedule: fixed blinds and ante
// for a set duration, or a break. Level numbers form a dense 1..N sequence
// within a schedule.
type BlindLevel struct {
	Level      int   `json:"level"`
	SmallBlind int   `json:"small_blind"`
	BigBlind   int   `json:"big_blind"`
	Ante       int   `json:"ante"`
	DurationMs int64 `json:"duration_ms"`
	IsBreak    bool  `json:"is_break"`
}

// BlindSchedule is the ordered level sequence assigned to a tournament.
type BlindSchedule struct {
	ID           uuid.UUID    `json:"id"`
	TournamentID uuid.UUID    `json:"tournament_id"`
	Name         string       `json:"name"`
	Levels       []BlindLevel `json:"levels"`
}

// Tournament carries the fields the clock needs to read; everything else
// about a tournament lives with the persistence/presentation layer that
// calls into this service.
type Tournament struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	BlindScheduleID *uuid.UUID `json:"blind_schedule_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
