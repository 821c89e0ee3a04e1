package clock

import (
	"time"

	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/google/uuid"
)

// EventType identifies a clock state-change notification.
type EventType string

const (
	EventClockStarted   EventType = "ClockStarted"
	EventClockPaused    EventType = "ClockPaused"
	EventClockResumed   EventType = "ClockResumed"
	EventLevelChanged   EventType = "LevelChanged"
	EventClockCompleted EventType = "ClockCompleted"
	EventClockStopped   EventType = "ClockStopped"
)

// Event is the notification the controller hands to the broadcaster after a
// mutation. It carries enough of the reconciled state that transports never
// have to read back through the controller to render an update.
type Event struct {
	Type            EventType          `json:"type"`
	TournamentID    uuid.UUID          `json:"tournament_id"`
	Status          models.ClockStatus `json:"status"`
	CurrentLevel    int                `json:"current_level"`
	TimeRemainingMs int64              `json:"time_remaining_ms"`
	Level           *models.BlindLevel `json:"level,omitempty"`
	NextLevel       *models.BlindLevel `json:"next_level,omitempty"`
	PreviousLevel   *models.BlindLevel `json:"previous_level,omitempty"`
	At              time.Time          `json:"at"`
}

// Broadcaster fans an event out to subscribed transports. Implementations
// are best-effort: a delivery failure to one transport must never surface to
// the operation that triggered the event.
type Broadcaster interface {
	Notify(tournamentID uuid.UUID, event Event)
}

// NopBroadcaster discards every event.
type NopBroadcaster struct{}

func (NopBroadcaster) Notify(uuid.UUID, Event) {}

func buildEvent(t EventType, state *models.ClockState, schedule []models.BlindLevel, at time.Time) Event {
	ev := Event{
		Type:            t,
		TournamentID:    state.TournamentID,
		Status:          state.Status,
		CurrentLevel:    state.CurrentLevel,
		TimeRemainingMs: state.TimeRemainingMs,
		At:              at,
	}
	ev.Level = levelAt(schedule, state.CurrentLevel)
	ev.NextLevel = levelAt(schedule, state.CurrentLevel+1)
	ev.PreviousLevel = levelAt(schedule, state.CurrentLevel-1)
	return ev
}

func levelAt(schedule []models.BlindLevel, level int) *models.BlindLevel {
	if level < 1 || level > len(schedule) {
		return nil
	}
	l := schedule[level-1]
	return &l
}
