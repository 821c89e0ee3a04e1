package clock

import (
	"context"
	"sync"
	"time"

	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// StateReader is the read path the ticker drives.
type StateReader interface {
	GetState(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, error)
}

// StateReaderFunc adapts a function to StateReader.
type StateReaderFunc func(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, error)

func (f StateReaderFunc) GetState(ctx context.Context, tournamentID uuid.UUID) (*models.ClockState, error) {
	return f(ctx, tournamentID)
}

// Ticker proactively reconciles active tournaments so level changes are
// broadcast even when nobody is polling. Reconciliation stays lazy and
// correct without it; the ticker only bounds how stale an unobserved
// broadcast can get. It learns which tournaments are active by sitting in
// the controller's broadcaster chain.
type Ticker struct {
	reader   StateReader
	clock    clockwork.Clock
	interval time.Duration

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func NewTicker(reader StateReader, clk clockwork.Clock, interval time.Duration) *Ticker {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{
		reader:   reader,
		clock:    clk,
		interval: interval,
		active:   make(map[uuid.UUID]struct{}),
	}
}

var _ Broadcaster = (*Ticker)(nil)

// Notify tracks tournament liveness from the controller's own events.
func (t *Ticker) Notify(tournamentID uuid.UUID, event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch event.Type {
	case EventClockStarted, EventClockResumed:
		t.active[tournamentID] = struct{}{}
	case EventClockPaused, EventClockCompleted, EventClockStopped:
		delete(t.active, tournamentID)
	}
}

// Run drives GetState for every active tournament on each interval until ctx
// is cancelled. GetState holds the same per-tournament lock as every other
// entry point, so the ticker can never double-subtract an elapsed window.
func (t *Ticker) Run(ctx context.Context) {
	log.Info().Dur("interval", t.interval).Msg("clock ticker started")
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("clock ticker shutting down")
			return
		case <-ticker.Chan():
			t.tickAll(ctx)
		}
	}
}

func (t *Ticker) tickAll(ctx context.Context) {
	t.mu.Lock()
	ids := make([]uuid.UUID, 0, len(t.active))
	for id := range t.active {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		state, err := t.reader.GetState(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("tournament_id", id.String()).Msg("ticker reconcile failed")
			t.mu.Lock()
			delete(t.active, id)
			t.mu.Unlock()
			continue
		}
		if !state.Status.Ticking() {
			t.mu.Lock()
			delete(t.active, id)
			t.mu.Unlock()
		}
	}
}

// MultiBroadcaster fans controller events to several broadcasters, which lets
// the ticker observe liveness alongside the transport fan-out.
type MultiBroadcaster []Broadcaster

func (m MultiBroadcaster) Notify(tournamentID uuid.UUID, event Event) {
	for _, b := range m {
		b.Notify(tournamentID, event)
	}
}
