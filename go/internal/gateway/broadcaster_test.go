package gateway

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feltworks/tourneyclock/go/internal/clock"
	"github.com/feltworks/tourneyclock/go/internal/models"
)

type recordingSink struct {
	name   string
	events []*ClockEvent
	err    error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ uuid.UUID, event *ClockEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func sampleEvent(tournamentID uuid.UUID) clock.Event {
	return clock.Event{
		Type:            clock.EventLevelChanged,
		TournamentID:    tournamentID,
		Status:          models.ClockStatusRunning,
		CurrentLevel:    2,
		TimeRemainingMs: 1_200_000,
		At:              time.UnixMilli(1_700_000_000_000),
	}
}

func TestBroadcasterFansOutToAllSinks(t *testing.T) {
	tournamentID := uuid.New()
	first := &recordingSink{name: "first"}
	second := &recordingSink{name: "second"}

	NewBroadcaster(first, second).Notify(tournamentID, sampleEvent(tournamentID))

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, first.events[0].ID, second.events[0].ID)
	assert.Equal(t, tournamentID.String(), first.events[0].TournamentID)
	assert.Equal(t, clock.EventLevelChanged, first.events[0].Type)
	assert.Equal(t, int64(1_700_000_000_000), first.events[0].Timestamp)
}

func TestBroadcasterFailingSinkDoesNotBlockOthers(t *testing.T) {
	tournamentID := uuid.New()
	failing := &recordingSink{name: "failing", err: errors.New("connection refused")}
	healthy := &recordingSink{name: "healthy"}

	NewBroadcaster(failing, healthy).Notify(tournamentID, sampleEvent(tournamentID))

	require.Len(t, healthy.events, 1)
}

func TestClockEventPayloadRoundtrip(t *testing.T) {
	tournamentID := uuid.New()
	event := sampleEvent(tournamentID)
	event.Level = &models.BlindLevel{Level: 2, SmallBlind: 50, BigBlind: 100, DurationMs: 1_800_000}

	wireEvent, err := NewClockEvent(event)
	require.NoError(t, err)

	var payload ClockEventPayload
	require.NoError(t, json.Unmarshal(wireEvent.Data, &payload))
	assert.Equal(t, models.ClockStatusRunning, payload.Status)
	assert.Equal(t, 2, payload.CurrentLevel)
	require.NotNil(t, payload.Level)
	assert.Equal(t, 100, payload.Level.BigBlind)
}
