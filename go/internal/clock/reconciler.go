package clock

import (
	"time"

	"github.com/feltworks/tourneyclock/go/internal/models"
)

// DefaultMaxTickWindow bounds how much elapsed time a single reconciliation
// will fold into the clock. A heartbeat delayed beyond this window loses the
// excess instead of fast-forwarding the clock unpredictably.
const DefaultMaxTickWindow = 30 * time.Second

// LevelCrossing records one automatic level advance discovered while
// reconciling elapsed time. Completed is set on the crossing that ran the
// clock past the final level.
type LevelCrossing struct {
	FromLevel int
	ToLevel   int
	Completed bool
	At        time.Time
}

// Reconciler folds elapsed wall-clock time into a clock state. It is pure:
// no I/O, no clock reads; callers pass now explicitly so fake clocks drive it
// in tests and so the controller can serialize reconciliation per tournament.
type Reconciler struct {
	// MaxTickWindow caps elapsed time per reconciliation. Zero disables the
	// cap, which is only sensible in tests.
	MaxTickWindow time.Duration
}

// Reconcile advances state by the wall-clock time elapsed since LastTickAt.
// Non-ticking states pass through untouched. Negative remaining time carries
// into the next level, so a long-delayed tick can cross several levels in one
// call; each crossing is reported. Running past the last level completes the
// clock.
func (r Reconciler) Reconcile(state models.ClockState, schedule []models.BlindLevel, now time.Time) (models.ClockState, []LevelCrossing) {
	if !state.Status.Ticking() {
		return state, nil
	}

	elapsed := now.Sub(state.LastTickAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if r.MaxTickWindow > 0 && elapsed > r.MaxTickWindow {
		elapsed = r.MaxTickWindow
	}

	remaining := state.TimeRemainingMs - elapsed.Milliseconds()

	var crossings []LevelCrossing
	for remaining <= 0 {
		from := state.CurrentLevel
		state.CurrentLevel++
		if state.CurrentLevel > len(schedule) {
			state.Status = models.ClockStatusCompleted
			remaining = 0
			crossings = append(crossings, LevelCrossing{FromLevel: from, ToLevel: state.CurrentLevel, Completed: true, At: now})
			break
		}
		remaining += schedule[state.CurrentLevel-1].DurationMs
		crossings = append(crossings, LevelCrossing{FromLevel: from, ToLevel: state.CurrentLevel, At: now})
	}

	if state.Status.Ticking() {
		state.Status = statusForLevel(schedule, state.CurrentLevel)
	}
	state.TimeRemainingMs = remaining
	state.LastTickAt = now
	return state, crossings
}

// statusForLevel maps a ticking clock onto RUNNING or BREAK depending on the
// level it currently sits on.
func statusForLevel(schedule []models.BlindLevel, level int) models.ClockStatus {
	if level >= 1 && level <= len(schedule) && schedule[level-1].IsBreak {
		return models.ClockStatusBreak
	}
	return models.ClockStatusRunning
}
