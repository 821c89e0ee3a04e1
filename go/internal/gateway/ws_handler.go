package gateway

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WSHandler upgrades spectator and admin connections into the hub.
type WSHandler struct {
	hub *Hub
}

func NewWSHandler(hub *Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/clock", h.handleClockWS)
	mux.HandleFunc("GET /ws/stats", h.handleStats)
}

// handleClockWS handles GET /ws/clock?tournament_id=<uuid>.
func (h *WSHandler) handleClockWS(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := uuid.Parse(r.URL.Query().Get("tournament_id"))
	if err != nil {
		http.Error(w, "tournament_id query parameter required", http.StatusBadRequest)
		return
	}

	deviceID := r.Header.Get("X-Device-ID")
	if deviceID == "" {
		deviceID = r.URL.Query().Get("device_id")
	}
	if deviceID == "" {
		deviceID = "anonymous"
	}

	if err := h.hub.UpgradeConnection(w, r, deviceID, tournamentID); err != nil {
		log.Error().Err(err).
			Str("tournament_id", tournamentID.String()).
			Msg("websocket upgrade failed")
	}
}

func (h *WSHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}
