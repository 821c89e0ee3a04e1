package clock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory StateStore for controller tests.
type memStore struct {
	mu     sync.Mutex
	states map[uuid.UUID]models.ClockState
}

func newMemStore() *memStore {
	return &memStore{states: make(map[uuid.UUID]models.ClockState)}
}

func (m *memStore) GetState(_ context.Context, id uuid.UUID) (*models.ClockState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[id]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

func (m *memStore) SaveState(_ context.Context, state *models.ClockState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.TournamentID] = *state
	return nil
}

// memSchedules maps tournament ids to fixed schedules.
type memSchedules struct {
	schedules map[uuid.UUID][]models.BlindLevel
}

func (m *memSchedules) ScheduleForTournament(_ context.Context, id uuid.UUID) ([]models.BlindLevel, error) {
	schedule, ok := m.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return schedule, nil
}

// recordingBroadcaster captures every event for assertion.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingBroadcaster) Notify(_ uuid.UUID, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingBroadcaster) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

type controllerFixture struct {
	controller  *Controller
	store       *memStore
	broadcaster *recordingBroadcaster
	clock       *clockwork.FakeClock
	id          uuid.UUID
}

func newFixture(t *testing.T, schedule []models.BlindLevel) *controllerFixture {
	t.Helper()
	id := uuid.New()
	store := newMemStore()
	broadcaster := &recordingBroadcaster{}
	clk := clockwork.NewFakeClock()
	controller := NewController(store, &memSchedules{schedules: map[uuid.UUID][]models.BlindLevel{id: schedule}}, broadcaster, clk)
	return &controllerFixture{controller: controller, store: store, broadcaster: broadcaster, clock: clk, id: id}
}

func TestStartUnknownTournament(t *testing.T) {
	f := newFixture(t, testSchedule(60000))

	_, err := f.controller.Start(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartWithoutSchedule(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.controller.Start(context.Background(), f.id)

	assert.ErrorIs(t, err, ErrNoSchedule)
}

func TestFirstStartPositionsLevelOne(t *testing.T) {
	f := newFixture(t, testSchedule(60000, 90000))

	state, err := f.controller.Start(context.Background(), f.id)

	require.NoError(t, err)
	assert.Equal(t, models.ClockStatusRunning, state.Status)
	assert.Equal(t, 1, state.CurrentLevel)
	assert.Equal(t, int64(60000), state.TimeRemainingMs)

	events := f.broadcaster.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, EventClockStarted, events[0].Type)
	require.NotNil(t, events[0].NextLevel)
	assert.Equal(t, 2, events[0].NextLevel.Level)
}

func TestStartWhileRunningIsInvalid(t *testing.T) {
	f := newFixture(t, testSchedule(60000))
	_, err := f.controller.Start(context.Background(), f.id)
	require.NoError(t, err)

	_, err = f.controller.Start(context.Background(), f.id)

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPauseFreezesTime(t *testing.T) {
	f := newFixture(t, testSchedule(60000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	paused, err := f.controller.Pause(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, models.ClockStatusPaused, paused.Status)
	assert.Equal(t, int64(50000), paused.TimeRemainingMs)

	// 90 more seconds of wall-clock time accrue nothing while paused.
	f.clock.Advance(90 * time.Second)
	state, err := f.controller.GetState(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), state.TimeRemainingMs)
	assert.Equal(t, 1, state.CurrentLevel)
}

func TestPauseWhilePausedIsInvalid(t *testing.T) {
	f := newFixture(t, testSchedule(60000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)
	_, err = f.controller.Pause(ctx, f.id)
	require.NoError(t, err)

	_, err = f.controller.Pause(ctx, f.id)

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResumeContinuesFromFrozenTime(t *testing.T) {
	f := newFixture(t, testSchedule(60000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)
	f.clock.Advance(20 * time.Second)
	_, err = f.controller.Pause(ctx, f.id)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	resumed, err := f.controller.Resume(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, models.ClockStatusRunning, resumed.Status)
	assert.Equal(t, int64(40000), resumed.TimeRemainingMs)

	f.clock.Advance(10 * time.Second)
	state, err := f.controller.GetState(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), state.TimeRemainingMs)
}

func TestResumeRequiresPaused(t *testing.T) {
	f := newFixture(t, testSchedule(60000))
	_, err := f.controller.Resume(context.Background(), f.id)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdvanceBoundaries(t *testing.T) {
	f := newFixture(t, testSchedule(60000, 60000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)

	_, err = f.controller.Advance(ctx, f.id, DirectionPrevious)
	assert.ErrorIs(t, err, ErrAtFirstLevel)

	state, err := f.controller.Advance(ctx, f.id, DirectionNext)
	require.NoError(t, err)
	assert.Equal(t, 2, state.CurrentLevel)
	assert.Equal(t, int64(60000), state.TimeRemainingMs)

	_, err = f.controller.Advance(ctx, f.id, DirectionNext)
	assert.ErrorIs(t, err, ErrAtLastLevel)
}

func TestAdvanceResetsFullDuration(t *testing.T) {
	f := newFixture(t, testSchedule(60000, 90000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)
	f.clock.Advance(25 * time.Second)

	state, err := f.controller.Advance(ctx, f.id, DirectionNext)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), state.TimeRemainingMs)

	back, err := f.controller.Advance(ctx, f.id, DirectionPrevious)
	require.NoError(t, err)
	assert.Equal(t, 1, back.CurrentLevel)
	assert.Equal(t, int64(60000), back.TimeRemainingMs, "manual navigation does not prorate remaining time")
}

func TestSetLevelValidatesRange(t *testing.T) {
	f := newFixture(t, testSchedule(60000, 60000, 60000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)

	for _, level := range []int{0, -1, 4} {
		_, err := f.controller.SetLevel(ctx, f.id, level)
		assert.ErrorIs(t, err, ErrInvalidLevel, "level %d", level)
	}

	state, err := f.controller.SetLevel(ctx, f.id, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, state.CurrentLevel)
	assert.Equal(t, int64(60000), state.TimeRemainingMs)
}

func TestAdjustTimeFloorsAtZeroWithoutAdvancing(t *testing.T) {
	f := newFixture(t, testSchedule(60000, 60000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)

	state, err := f.controller.AdjustTime(ctx, f.id, -90000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.TimeRemainingMs)
	assert.Equal(t, 1, state.CurrentLevel, "operator override never auto-advances")

	state, err = f.controller.AdjustTime(ctx, f.id, 15000)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), state.TimeRemainingMs)
}

func TestStopResetsToSetup(t *testing.T) {
	f := newFixture(t, testSchedule(60000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)

	state, err := f.controller.Stop(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, models.ClockStatusSetup, state.Status)
	assert.Equal(t, 0, state.CurrentLevel)
	assert.Equal(t, int64(0), state.TimeRemainingMs)
}

func TestCompleteForcesCompletion(t *testing.T) {
	f := newFixture(t, testSchedule(60000, 60000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)

	state, err := f.controller.Complete(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, models.ClockStatusCompleted, state.Status)
	assert.Equal(t, 1, state.CurrentLevel)

	events := f.broadcaster.snapshot()
	assert.Equal(t, EventClockCompleted, events[len(events)-1].Type)
}

func TestGetStateDoesNotBroadcast(t *testing.T) {
	f := newFixture(t, testSchedule(600000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)
	before := len(f.broadcaster.snapshot())

	f.clock.Advance(5 * time.Second)
	_, err = f.controller.GetState(ctx, f.id)
	require.NoError(t, err)

	assert.Len(t, f.broadcaster.snapshot(), before, "passive reads broadcast nothing")
}

func TestGetStateBroadcastsAutoAdvance(t *testing.T) {
	f := newFixture(t, testSchedule(60000, 60000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)

	// Three 30s heartbeats walk the clock across the level boundary.
	var state *models.ClockState
	for i := 0; i < 3; i++ {
		f.clock.Advance(30 * time.Second)
		state, err = f.controller.GetState(ctx, f.id)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, state.CurrentLevel)
	events := f.broadcaster.snapshot()
	var levelChanged int
	for _, ev := range events {
		if ev.Type == EventLevelChanged {
			levelChanged++
		}
	}
	assert.Equal(t, 1, levelChanged)
}

func TestConcurrentGetStateNoDoubleSubtract(t *testing.T) {
	f := newFixture(t, testSchedule(600000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)

	const readers = 16
	results := make([]*models.ClockState, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			state, err := f.controller.GetState(ctx, f.id)
			assert.NoError(t, err)
			results[i] = state
		}(i)
	}
	wg.Wait()

	for _, state := range results {
		require.NotNil(t, state)
		assert.Equal(t, int64(590000), state.TimeRemainingMs, "overlapping reconciliations must not each subtract the elapsed window")
		assert.Equal(t, 1, state.CurrentLevel)
	}
}

func TestSetPlayerCounts(t *testing.T) {
	f := newFixture(t, testSchedule(60000))
	ctx := context.Background()
	_, err := f.controller.Start(ctx, f.id)
	require.NoError(t, err)

	state, err := f.controller.SetPlayerCounts(ctx, f.id, 120, 87)
	require.NoError(t, err)
	assert.Equal(t, 120, state.TotalPlayers)
	assert.Equal(t, 87, state.RemainingPlayers)
}
