package clock

import (
	"testing"
	"time"

	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchedule(durations ...int64) []models.BlindLevel {
	levels := make([]models.BlindLevel, len(durations))
	for i, d := range durations {
		levels[i] = models.BlindLevel{
			Level:      i + 1,
			SmallBlind: 25 * (i + 1),
			BigBlind:   50 * (i + 1),
			DurationMs: d,
		}
	}
	return levels
}

func runningState(t0 time.Time, level int, remainingMs int64) models.ClockState {
	return models.ClockState{
		TournamentID:    uuid.New(),
		Status:          models.ClockStatusRunning,
		CurrentLevel:    level,
		TimeRemainingMs: remainingMs,
		LastTickAt:      t0,
	}
}

func TestReconcileLeavesNonTickingStatesUntouched(t *testing.T) {
	t0 := time.Unix(1000, 0)
	schedule := testSchedule(60000, 60000)

	for _, status := range []models.ClockStatus{
		models.ClockStatusSetup,
		models.ClockStatusPaused,
		models.ClockStatusCompleted,
	} {
		state := runningState(t0, 1, 42000)
		state.Status = status

		got, crossings := Reconciler{}.Reconcile(state, schedule, t0.Add(90*time.Second))

		assert.Equal(t, state, got, "status %s", status)
		assert.Empty(t, crossings)
	}
}

func TestReconcileSubtractsElapsed(t *testing.T) {
	t0 := time.Unix(1000, 0)
	schedule := testSchedule(60000, 60000)
	state := runningState(t0, 1, 60000)

	now := t0.Add(10 * time.Second)
	got, crossings := Reconciler{MaxTickWindow: DefaultMaxTickWindow}.Reconcile(state, schedule, now)

	assert.Equal(t, int64(50000), got.TimeRemainingMs)
	assert.Equal(t, 1, got.CurrentLevel)
	assert.Equal(t, now, got.LastTickAt)
	assert.Empty(t, crossings)
}

func TestReconcileClampsDelayedTick(t *testing.T) {
	t0 := time.Unix(1000, 0)
	schedule := testSchedule(600000)
	state := runningState(t0, 1, 600000)

	// 150s of real delay; only MaxTickWindow of it counts.
	got, _ := Reconciler{MaxTickWindow: 30 * time.Second}.Reconcile(state, schedule, t0.Add(150*time.Second))

	assert.Equal(t, int64(570000), got.TimeRemainingMs)
}

func TestReconcileIgnoresBackwardsClock(t *testing.T) {
	t0 := time.Unix(1000, 0)
	schedule := testSchedule(60000)
	state := runningState(t0, 1, 60000)

	now := t0.Add(-5 * time.Second)
	got, crossings := Reconciler{MaxTickWindow: DefaultMaxTickWindow}.Reconcile(state, schedule, now)

	assert.Equal(t, int64(60000), got.TimeRemainingMs)
	assert.Equal(t, now, got.LastTickAt)
	assert.Empty(t, crossings)
}

func TestReconcileLevelRollover(t *testing.T) {
	t0 := time.Unix(0, 0)
	schedule := testSchedule(60000, 60000, 60000)
	state := runningState(t0, 1, 60000)

	// Uncapped window: a single reconciliation at t=150s crosses two levels
	// and carries the overflow into level 3.
	got, crossings := Reconciler{}.Reconcile(state, schedule, t0.Add(150*time.Second))

	assert.Equal(t, 3, got.CurrentLevel)
	assert.Equal(t, int64(30000), got.TimeRemainingMs)
	require.Len(t, crossings, 2)
	assert.Equal(t, 1, crossings[0].FromLevel)
	assert.Equal(t, 2, crossings[0].ToLevel)
	assert.Equal(t, 2, crossings[1].FromLevel)
	assert.Equal(t, 3, crossings[1].ToLevel)
	assert.False(t, crossings[1].Completed)
}

func TestReconcileRolloverUnderHeartbeatCadence(t *testing.T) {
	t0 := time.Unix(0, 0)
	schedule := testSchedule(60000, 60000, 60000)
	state := runningState(t0, 1, 60000)
	rec := Reconciler{MaxTickWindow: 30 * time.Second}

	var total []LevelCrossing
	for s := 30; s <= 150; s += 30 {
		var crossings []LevelCrossing
		state, crossings = rec.Reconcile(state, schedule, t0.Add(time.Duration(s)*time.Second))
		total = append(total, crossings...)
	}

	assert.Equal(t, 3, state.CurrentLevel)
	assert.Equal(t, int64(30000), state.TimeRemainingMs)
	assert.Len(t, total, 2)
}

func TestReconcileCompletesPastLastLevel(t *testing.T) {
	t0 := time.Unix(0, 0)
	schedule := testSchedule(60000, 60000)
	state := runningState(t0, 1, 60000)

	got, crossings := Reconciler{}.Reconcile(state, schedule, t0.Add(500*time.Second))

	assert.Equal(t, models.ClockStatusCompleted, got.Status)
	assert.Equal(t, int64(0), got.TimeRemainingMs)
	assert.Equal(t, 3, got.CurrentLevel)
	require.NotEmpty(t, crossings)
	assert.True(t, crossings[len(crossings)-1].Completed)
}

func TestReconcileTicksThroughBreaks(t *testing.T) {
	t0 := time.Unix(0, 0)
	schedule := testSchedule(60000, 60000, 60000)
	schedule[1].IsBreak = true

	state := runningState(t0, 1, 60000)
	rec := Reconciler{}

	// Crossing onto the break surfaces BREAK status.
	state, crossings := rec.Reconcile(state, schedule, t0.Add(70*time.Second))
	require.Len(t, crossings, 1)
	assert.Equal(t, models.ClockStatusBreak, state.Status)
	assert.Equal(t, 2, state.CurrentLevel)
	assert.Equal(t, int64(50000), state.TimeRemainingMs)

	// The break keeps counting down like any other level.
	state, _ = rec.Reconcile(state, schedule, t0.Add(80*time.Second))
	assert.Equal(t, int64(40000), state.TimeRemainingMs)

	// Crossing off the break returns to RUNNING.
	state, crossings = rec.Reconcile(state, schedule, t0.Add(125*time.Second))
	require.Len(t, crossings, 1)
	assert.Equal(t, models.ClockStatusRunning, state.Status)
	assert.Equal(t, 3, state.CurrentLevel)
}

func TestReconcileRemainingTimeIsMonotonic(t *testing.T) {
	t0 := time.Unix(0, 0)
	schedule := testSchedule(600000)
	state := runningState(t0, 1, 600000)
	rec := Reconciler{MaxTickWindow: DefaultMaxTickWindow}

	prev := state.TimeRemainingMs
	for _, offset := range []time.Duration{0, time.Second, time.Second, 5 * time.Second, 12 * time.Second, 30 * time.Second} {
		state, _ = rec.Reconcile(state, schedule, state.LastTickAt.Add(offset))
		assert.LessOrEqual(t, state.TimeRemainingMs, prev)
		prev = state.TimeRemainingMs
	}
}
