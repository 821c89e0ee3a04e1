package gateway

import (
	"github.com/feltworks/tourneyclock/go/internal/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Sink is one transport the broadcaster fans out to.
type Sink interface {
	Name() string
	Deliver(tournamentID uuid.UUID, event *ClockEvent) error
}

// Broadcaster fans controller events out to every registered sink. Each sink
// is best-effort: a delivery failure is logged and swallowed so that, for
// example, one spectator's dead socket can never fail an operator's pause
// request.
type Broadcaster struct {
	sinks []Sink
}

func NewBroadcaster(sinks ...Sink) *Broadcaster {
	return &Broadcaster{sinks: sinks}
}

var _ clock.Broadcaster = (*Broadcaster)(nil)

func (b *Broadcaster) Notify(tournamentID uuid.UUID, event clock.Event) {
	wireEvent, err := NewClockEvent(event)
	if err != nil {
		log.Error().Err(err).Str("tournament_id", tournamentID.String()).Msg("failed to build clock event")
		return
	}

	for _, sink := range b.sinks {
		if err := sink.Deliver(tournamentID, wireEvent); err != nil {
			log.Warn().
				Err(err).
				Str("sink", sink.Name()).
				Str("tournament_id", tournamentID.String()).
				Str("event_type", string(event.Type)).
				Msg("sink delivery failed")
		}
	}
}
