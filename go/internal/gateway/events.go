package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/feltworks/tourneyclock/go/internal/clock"
	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/google/uuid"
)

// ClockEvent is the wire envelope every transport delivers. Data carries the
// event-specific payload; timestamps are epoch milliseconds.
type ClockEvent struct {
	ID           string          `json:"id"`
	TournamentID string          `json:"tournament_id"`
	Type         clock.EventType `json:"type"`
	Timestamp    int64           `json:"timestamp"`
	Data         json.RawMessage `json:"data"`
}

// ClockEventPayload is the state snapshot embedded in every clock event.
type ClockEventPayload struct {
	Status          models.ClockStatus `json:"status"`
	CurrentLevel    int                `json:"current_level"`
	TimeRemainingMs int64              `json:"time_remaining_ms"`
	Level           *models.BlindLevel `json:"level,omitempty"`
	NextLevel       *models.BlindLevel `json:"next_level,omitempty"`
	PreviousLevel   *models.BlindLevel `json:"previous_level,omitempty"`
}

// NewClockEvent wraps a controller event in the transport envelope.
func NewClockEvent(event clock.Event) (*ClockEvent, error) {
	payload, err := json.Marshal(ClockEventPayload{
		Status:          event.Status,
		CurrentLevel:    event.CurrentLevel,
		TimeRemainingMs: event.TimeRemainingMs,
		Level:           event.Level,
		NextLevel:       event.NextLevel,
		PreviousLevel:   event.PreviousLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &ClockEvent{
		ID:           uuid.New().String(),
		TournamentID: event.TournamentID.String(),
		Type:         event.Type,
		Timestamp:    event.At.UnixMilli(),
		Data:         payload,
	}, nil
}
