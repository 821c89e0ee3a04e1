package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Direction selects which neighbour level a manual advance moves to.
type Direction string

const (
	DirectionNext     Direction = "next"
	DirectionPrevious Direction = "previous"
)

// StateStore persists clock states. GetState returns ErrNotFound when no
// state exists yet for the tournament.
type StateStore interface {
	GetState(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, error)
	SaveState(ctx context.Context, state *models.ClockState) error
}

// ScheduleSource resolves the ordered blind schedule assigned to a
// tournament. It returns ErrNotFound when the tournament does not exist and
// ErrNoSchedule when the tournament has no schedule assigned.
type ScheduleSource interface {
	ScheduleForTournament(ctx context.Context, tournamentID uuid.UUID) ([]models.BlindLevel, error)
}

// Controller owns every mutation of clock state. All operations reconcile
// elapsed time first, then apply the requested mutation, persist, and notify
// the broadcaster. Operations on the same tournament are serialized through a
// per-tournament mutex; different tournaments proceed in parallel.
type Controller struct {
	store       StateStore
	schedules   ScheduleSource
	broadcaster Broadcaster
	clock       clockwork.Clock
	reconciler  Reconciler

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewController creates a clock controller. A nil broadcaster disables
// notifications.
func NewController(store StateStore, schedules ScheduleSource, broadcaster Broadcaster, clk clockwork.Clock) *Controller {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Controller{
		store:       store,
		schedules:   schedules,
		broadcaster: broadcaster,
		clock:       clk,
		reconciler:  Reconciler{MaxTickWindow: DefaultMaxTickWindow},
		locks:       make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetMaxTickWindow overrides the elapsed-time clamp applied per reconcile.
// Zero disables the clamp. Call before the controller starts serving.
func (c *Controller) SetMaxTickWindow(window time.Duration) {
	c.reconciler.MaxTickWindow = window
}

func (c *Controller) lockFor(tournamentID uuid.UUID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	mu, ok := c.locks[tournamentID]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[tournamentID] = mu
	}
	return mu
}

// load fetches the schedule and current state under the caller-held lock. A
// missing state is materialized as a fresh SETUP state; it is only persisted
// once an operation mutates it.
func (c *Controller) load(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, []models.BlindLevel, error) {
	schedule, err := c.schedules.ScheduleForTournament(ctx, tournamentID)
	if err != nil {
		return nil, nil, err
	}

	state, err := c.store.GetState(ctx, tournamentID)
	if err == ErrNotFound {
		state = &models.ClockState{
			TournamentID: tournamentID,
			Status:       models.ClockStatusSetup,
		}
		err = nil
	}
	if err != nil {
		return nil, nil, err
	}
	return state, schedule, nil
}

// reconcileLocked folds elapsed time into state, persists the result when
// anything moved, and broadcasts any auto-advance crossings. Passive reads
// that cross no level broadcast nothing.
func (c *Controller) reconcileLocked(ctx context.Context, state *models.ClockState, schedule []models.BlindLevel) error {
	if !state.Status.Ticking() {
		return nil
	}
	now := c.clock.Now()
	next, crossings := c.reconciler.Reconcile(*state, schedule, now)
	changed := next != *state
	*state = next
	if !changed {
		return nil
	}
	if err := c.store.SaveState(ctx, state); err != nil {
		return fmt.Errorf("save reconciled state: %w", err)
	}
	for _, crossing := range crossings {
		evType := EventLevelChanged
		if crossing.Completed {
			evType = EventClockCompleted
		}
		c.broadcaster.Notify(state.TournamentID, buildEvent(evType, state, schedule, crossing.At))
	}
	return nil
}

func (c *Controller) saveAndNotify(ctx context.Context, state *models.ClockState, schedule []models.BlindLevel, evType EventType) (*models.ClockState, error) {
	state.UpdatedAt = c.clock.Now()
	if err := c.store.SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("save clock state: %w", err)
	}
	c.broadcaster.Notify(state.TournamentID, buildEvent(evType, state, schedule, c.clock.Now()))
	return state.Clone(), nil
}

// Start begins or restarts the countdown. Valid from SETUP and PAUSED; a
// first start positions the clock on level 1 with that level's full duration.
func (c *Controller) Start(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, error) {
	mu := c.lockFor(tournamentID)
	mu.Lock()
	defer mu.Unlock()

	state, schedule, err := c.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if len(schedule) == 0 {
		return nil, ErrNoSchedule
	}
	if state.Status != models.ClockStatusSetup && state.Status != models.ClockStatusPaused {
		return nil, fmt.Errorf("%w: cannot start while %s", ErrInvalidTransition, state.Status)
	}

	if state.CurrentLevel == 0 {
		state.CurrentLevel = 1
		state.TimeRemainingMs = schedule[0].DurationMs
	}
	state.Status = statusForLevel(schedule, state.CurrentLevel)
	state.LastTickAt = c.clock.Now()

	log.Info().Str("tournament_id", tournamentID.String()).Int("level", state.CurrentLevel).Msg("clock started")
	return c.saveAndNotify(ctx, state, schedule, EventClockStarted)
}

// Pause freezes the countdown, retaining the reconciled remaining time.
func (c *Controller) Pause(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, error) {
	mu := c.lockFor(tournamentID)
	mu.Lock()
	defer mu.Unlock()

	state, schedule, err := c.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := c.reconcileLocked(ctx, state, schedule); err != nil {
		return nil, err
	}
	if !state.Status.Ticking() {
		return nil, fmt.Errorf("%w: cannot pause while %s", ErrInvalidTransition, state.Status)
	}

	state.Status = models.ClockStatusPaused
	log.Info().Str("tournament_id", tournamentID.String()).Int64("time_remaining_ms", state.TimeRemainingMs).Msg("clock paused")
	return c.saveAndNotify(ctx, state, schedule, EventClockPaused)
}

// Resume restarts a paused countdown from the frozen remaining time.
func (c *Controller) Resume(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, error) {
	mu := c.lockFor(tournamentID)
	mu.Lock()
	defer mu.Unlock()

	state, schedule, err := c.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if state.Status != models.ClockStatusPaused {
		return nil, fmt.Errorf("%w: cannot resume while %s", ErrInvalidTransition, state.Status)
	}

	state.Status = statusForLevel(schedule, state.CurrentLevel)
	state.LastTickAt = c.clock.Now()
	log.Info().Str("tournament_id", tournamentID.String()).Msg("clock resumed")
	return c.saveAndNotify(ctx, state, schedule, EventClockResumed)
}

// Advance moves the clock one level forwards or backwards and resets the
// remaining time to the target level's full duration. Manual navigation does
// not prorate time.
func (c *Controller) Advance(ctx context.Context, tournamentID uuid.UUID, direction Direction) (*models.ClockState, error) {
	mu := c.lockFor(tournamentID)
	mu.Lock()
	defer mu.Unlock()

	state, schedule, err := c.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := c.reconcileLocked(ctx, state, schedule); err != nil {
		return nil, err
	}

	switch direction {
	case DirectionNext:
		if state.CurrentLevel >= len(schedule) {
			return nil, fmt.Errorf("%w: level %d of %d", ErrAtLastLevel, state.CurrentLevel, len(schedule))
		}
		state.CurrentLevel++
	case DirectionPrevious:
		if state.CurrentLevel <= 1 {
			return nil, ErrAtFirstLevel
		}
		state.CurrentLevel--
		if state.CurrentLevel > len(schedule) {
			state.CurrentLevel = len(schedule)
		}
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}

	state.TimeRemainingMs = schedule[state.CurrentLevel-1].DurationMs
	state.LastTickAt = c.clock.Now()
	if state.Status.Ticking() {
		state.Status = statusForLevel(schedule, state.CurrentLevel)
	} else if state.Status == models.ClockStatusCompleted {
		// Navigating back out of COMPLETED leaves the clock frozen until the
		// operator resumes it.
		state.Status = models.ClockStatusPaused
	}

	log.Info().Str("tournament_id", tournamentID.String()).Str("direction", string(direction)).Int("level", state.CurrentLevel).Msg("clock level advanced")
	return c.saveAndNotify(ctx, state, schedule, EventLevelChanged)
}

// SetLevel jumps directly to a level and resets its full duration.
func (c *Controller) SetLevel(ctx context.Context, tournamentID uuid.UUID, level int) (*models.ClockState, error) {
	mu := c.lockFor(tournamentID)
	mu.Lock()
	defer mu.Unlock()

	state, schedule, err := c.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if level < 1 || level > len(schedule) {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidLevel, level, len(schedule))
	}
	if err := c.reconcileLocked(ctx, state, schedule); err != nil {
		return nil, err
	}

	state.CurrentLevel = level
	state.TimeRemainingMs = schedule[level-1].DurationMs
	state.LastTickAt = c.clock.Now()
	if state.Status.Ticking() {
		state.Status = statusForLevel(schedule, level)
	}

	log.Info().Str("tournament_id", tournamentID.String()).Int("level", level).Msg("clock level set")
	return c.saveAndNotify(ctx, state, schedule, EventLevelChanged)
}

// AdjustTime shifts the remaining time by deltaMs, floored at zero. An
// operator override: reaching zero this way never auto-advances the level.
func (c *Controller) AdjustTime(ctx context.Context, tournamentID uuid.UUID, deltaMs int64) (*models.ClockState, error) {
	mu := c.lockFor(tournamentID)
	mu.Lock()
	defer mu.Unlock()

	state, schedule, err := c.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := c.reconcileLocked(ctx, state, schedule); err != nil {
		return nil, err
	}

	state.TimeRemainingMs += deltaMs
	if state.TimeRemainingMs < 0 {
		state.TimeRemainingMs = 0
	}

	log.Info().Str("tournament_id", tournamentID.String()).Int64("delta_ms", deltaMs).Int64("time_remaining_ms", state.TimeRemainingMs).Msg("clock time adjusted")
	return c.saveAndNotify(ctx, state, schedule, EventLevelChanged)
}

// Stop resets the clock back to SETUP.
func (c *Controller) Stop(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, error) {
	mu := c.lockFor(tournamentID)
	mu.Lock()
	defer mu.Unlock()

	state, schedule, err := c.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := c.reconcileLocked(ctx, state, schedule); err != nil {
		return nil, err
	}

	state.Status = models.ClockStatusSetup
	state.CurrentLevel = 0
	state.TimeRemainingMs = 0

	log.Info().Str("tournament_id", tournamentID.String()).Msg("clock stopped")
	return c.saveAndNotify(ctx, state, schedule, EventClockStopped)
}

// Complete forces the clock to COMPLETED regardless of the current level, for
// an operator-initiated early end. The final state remains as the historical
// record.
func (c *Controller) Complete(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, error) {
	mu := c.lockFor(tournamentID)
	mu.Lock()
	defer mu.Unlock()

	state, schedule, err := c.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := c.reconcileLocked(ctx, state, schedule); err != nil {
		return nil, err
	}

	state.Status = models.ClockStatusCompleted
	log.Info().Str("tournament_id", tournamentID.String()).Int("level", state.CurrentLevel).Msg("clock completed")
	return c.saveAndNotify(ctx, state, schedule, EventClockCompleted)
}

// GetState reconciles and returns the current state. It is the read path for
// heartbeats and polls: level crossings discovered here are persisted and
// broadcast, but a plain read broadcasts nothing.
func (c *Controller) GetState(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, error) {
	mu := c.lockFor(tournamentID)
	mu.Lock()
	defer mu.Unlock()

	state, schedule, err := c.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := c.reconcileLocked(ctx, state, schedule); err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// SetPlayerCounts updates the denormalized player counters. Elimination
// handling lives outside this core; it reports counter changes through here
// because the controller is the sole writer of clock state.
func (c *Controller) SetPlayerCounts(ctx context.Context, tournamentID uuid.UUID, total, remaining int) (*models.ClockState, error) {
	mu := c.lockFor(tournamentID)
	mu.Lock()
	defer mu.Unlock()

	state, schedule, err := c.load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := c.reconcileLocked(ctx, state, schedule); err != nil {
		return nil, err
	}

	state.TotalPlayers = total
	state.RemainingPlayers = remaining
	state.UpdatedAt = c.clock.Now()
	if err := c.store.SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("save clock state: %w", err)
	}
	return state.Clone(), nil
}
