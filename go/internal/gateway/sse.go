package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/feltworks/tourneyclock/go/internal/clock"
	"github.com/feltworks/tourneyclock/go/internal/models"
)

const (
	ssePollInterval      = 1 * time.Second
	sseKeepaliveInterval = 15 * time.Second
)

// SSEHandler streams clock state over Server-Sent Events for clients that
// cannot hold a WebSocket. Each stream polls the authoritative state and only
// emits frames when the state actually changed.
type SSEHandler struct {
	reader clock.StateReader
	clock  clockwork.Clock
}

func NewSSEHandler(reader clock.StateReader, clk clockwork.Clock) *SSEHandler {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &SSEHandler{reader: reader, clock: clk}
}

// ServeHTTP handles GET /api/tournaments/{id}/events.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid tournament id", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()

	state, err := h.reader.GetState(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, clock.ErrNotFound) {
			http.Error(w, "tournament not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load clock state", http.StatusInternalServerError)
		return
	}
	if err := writeSSEFrame(w, "clock_state", state); err != nil {
		return
	}
	flusher.Flush()

	log.Info().
		Str("tournament_id", tournamentID.String()).
		Msg("sse stream opened")

	last := state.Clone()
	ticker := h.clock.NewTicker(ssePollInterval)
	defer ticker.Stop()
	keepalive := h.clock.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	notFoundStreak := 0
	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("tournament_id", tournamentID.String()).
				Msg("sse stream closed by client")
			return

		case <-keepalive.Chan():
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.Chan():
			state, err := h.reader.GetState(ctx, tournamentID)
			if err != nil {
				if errors.Is(err, clock.ErrNotFound) {
					notFoundStreak++
					if notFoundStreak >= 2 {
						log.Warn().
							Str("tournament_id", tournamentID.String()).
							Msg("tournament vanished, terminating sse stream")
						return
					}
					continue
				}
				log.Error().Err(err).
					Str("tournament_id", tournamentID.String()).
					Msg("sse state poll failed")
				continue
			}
			notFoundStreak = 0

			if clockStateEqual(last, state) {
				continue
			}
			if err := writeSSEFrame(w, "clock_state", state); err != nil {
				return
			}
			flusher.Flush()
			last = state.Clone()
		}
	}
}

func writeSSEFrame(w http.ResponseWriter, event string, state *models.ClockState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func clockStateEqual(a, b *models.ClockState) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Status == b.Status &&
		a.CurrentLevel == b.CurrentLevel &&
		a.TimeRemainingMs == b.TimeRemainingMs &&
		a.TotalPlayers == b.TotalPlayers &&
		a.RemainingPlayers == b.RemainingPlayers
}
