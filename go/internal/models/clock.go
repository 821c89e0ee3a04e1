package models

import (
	"time"

	"github.com/google/uuid"
)

// ClockStatus defines the lifecycle status of a tournament clock.
type ClockStatus string

const (
	ClockStatusSetup     ClockStatus = "SETUP"
	ClockStatusRunning   ClockStatus = "RUNNING"
	ClockStatusPaused    ClockStatus = "PAUSED"
	ClockStatusBreak     ClockStatus = "BREAK"
	ClockStatusCompleted ClockStatus = "COMPLETED"
)

// Ticking reports whether wall-clock time accrues against the clock in this
// status. A break counts down exactly like a running level; it is only
// surfaced distinctly to clients.
func (s ClockStatus) Ticking() bool {
	return s == ClockStatusRunning || s == ClockStatusBreak
}

// ClockState is the authoritative timer state for one tournament. It is
// written exclusively by the clock controller; TimeRemainingMs is only
// authoritative while the clock is paused, otherwise it is derived by
// reconciling elapsed time since LastTickAt.
type ClockState struct {
	TournamentID     uuid.UUID   `json:"tournament_id"`
	Status           ClockStatus `json:"status"`
	CurrentLevel     int         `json:"current_level"`
	TimeRemainingMs  int64       `json:"time_remaining_ms"`
	LastTickAt       time.Time   `json:"last_tick_at"`
	TotalPlayers     int         `json:"total_players"`
	RemainingPlayers int         `json:"remaining_players"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Clone returns a copy of the state so callers can hand it out without
// exposing the controller's copy to mutation.
func (s *ClockState) Clone() *ClockState {
	c := *s
	return &c
}
