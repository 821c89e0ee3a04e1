package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/feltworks/tourneyclock/go/internal/clock"
	"github.com/feltworks/tourneyclock/go/internal/models"
)

// ClockHandler exposes the clock controller over JSON HTTP for admin apps and
// heartbeat polling clients.
type ClockHandler struct {
	controller *clock.Controller
}

func NewClockHandler(controller *clock.Controller) *ClockHandler {
	return &ClockHandler{controller: controller}
}

// RegisterRoutes mounts the clock endpoints on mux.
func (h *ClockHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tournaments/{id}/clock", h.handleGetState)
	mux.HandleFunc("POST /api/tournaments/{id}/heartbeat", h.handleHeartbeat)
	mux.HandleFunc("POST /api/tournaments/{id}/clock/start", h.command(h.controller.Start))
	mux.HandleFunc("POST /api/tournaments/{id}/clock/pause", h.command(h.controller.Pause))
	mux.HandleFunc("POST /api/tournaments/{id}/clock/resume", h.command(h.controller.Resume))
	mux.HandleFunc("POST /api/tournaments/{id}/clock/stop", h.command(h.controller.Stop))
	mux.HandleFunc("POST /api/tournaments/{id}/clock/complete", h.command(h.controller.Complete))
	mux.HandleFunc("POST /api/tournaments/{id}/clock/advance", h.handleAdvance)
	mux.HandleFunc("POST /api/tournaments/{id}/clock/level", h.handleSetLevel)
	mux.HandleFunc("POST /api/tournaments/{id}/clock/adjust", h.handleAdjustTime)
	mux.HandleFunc("POST /api/tournaments/{id}/players", h.handleSetPlayerCounts)
}

type clockStateResponse struct {
	TournamentID     string             `json:"tournamentId"`
	Status           models.ClockStatus `json:"status"`
	CurrentLevel     int                `json:"currentLevel"`
	TimeRemainingMs  int64              `json:"timeRemainingMs"`
	TotalPlayers     int                `json:"totalPlayers"`
	RemainingPlayers int                `json:"remainingPlayers"`
	ServerTimestamp  int64              `json:"serverTimestamp"`
}

type advanceRequest struct {
	Direction string `json:"direction"`
}

type setLevelRequest struct {
	Level int `json:"level"`
}

type adjustTimeRequest struct {
	DeltaMs int64 `json:"deltaMs"`
}

type playerCountsRequest struct {
	TotalPlayers     int `json:"totalPlayers"`
	RemainingPlayers int `json:"remainingPlayers"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// command wraps the zero-argument controller operations.
func (h *ClockHandler) command(op func(ctx context.Context, id uuid.UUID) (*models.ClockState, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := tournamentIDFrom(w, r)
		if !ok {
			return
		}
		state, err := op(r.Context(), id)
		if err != nil {
			writeClockError(w, r, err)
			return
		}
		logDeviceOp(r, id)
		writeClockState(w, state)
	}
}

// logDeviceOp attributes a successful manual operation to the device that
// issued it. The controller logs the state transition itself; this adds who.
func logDeviceOp(r *http.Request, tournamentID uuid.UUID) {
	deviceID := r.Header.Get("X-Device-ID")
	if deviceID == "" {
		return
	}
	log.Info().
		Str("device_id", deviceID).
		Str("tournament_id", tournamentID.String()).
		Str("path", r.URL.Path).
		Msg("clock operation by device")
}

func (h *ClockHandler) handleGetState(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDFrom(w, r)
	if !ok {
		return
	}
	state, err := h.controller.GetState(r.Context(), id)
	if err != nil {
		writeClockError(w, r, err)
		return
	}
	writeClockState(w, state)
}

// handleHeartbeat is the poll-to-sync path: each beat reconciles the
// authoritative state and returns it, so a client that slept through level
// boundaries lands on the correct level immediately.
func (h *ClockHandler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	h.handleGetState(w, r)
}

func (h *ClockHandler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDFrom(w, r)
	if !ok {
		return
	}
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	direction := clock.Direction(req.Direction)
	if direction != clock.DirectionNext && direction != clock.DirectionPrevious {
		writeJSONError(w, http.StatusBadRequest, "direction must be next or previous")
		return
	}
	state, err := h.controller.Advance(r.Context(), id, direction)
	if err != nil {
		writeClockError(w, r, err)
		return
	}
	logDeviceOp(r, id)
	writeClockState(w, state)
}

func (h *ClockHandler) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDFrom(w, r)
	if !ok {
		return
	}
	var req setLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	state, err := h.controller.SetLevel(r.Context(), id, req.Level)
	if err != nil {
		writeClockError(w, r, err)
		return
	}
	logDeviceOp(r, id)
	writeClockState(w, state)
}

func (h *ClockHandler) handleAdjustTime(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDFrom(w, r)
	if !ok {
		return
	}
	var req adjustTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	state, err := h.controller.AdjustTime(r.Context(), id, req.DeltaMs)
	if err != nil {
		writeClockError(w, r, err)
		return
	}
	logDeviceOp(r, id)
	writeClockState(w, state)
}

func (h *ClockHandler) handleSetPlayerCounts(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentIDFrom(w, r)
	if !ok {
		return
	}
	var req playerCountsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TotalPlayers < 0 || req.RemainingPlayers < 0 || req.RemainingPlayers > req.TotalPlayers {
		writeJSONError(w, http.StatusBadRequest, "invalid player counts")
		return
	}
	state, err := h.controller.SetPlayerCounts(r.Context(), id, req.TotalPlayers, req.RemainingPlayers)
	if err != nil {
		writeClockError(w, r, err)
		return
	}
	logDeviceOp(r, id)
	writeClockState(w, state)
}

func tournamentIDFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid tournament id")
		return uuid.Nil, false
	}
	return id, true
}

func writeClockState(w http.ResponseWriter, state *models.ClockState) {
	resp := clockStateResponse{
		TournamentID:     state.TournamentID.String(),
		Status:           state.Status,
		CurrentLevel:     state.CurrentLevel,
		TimeRemainingMs:  state.TimeRemainingMs,
		TotalPlayers:     state.TotalPlayers,
		RemainingPlayers: state.RemainingPlayers,
		ServerTimestamp:  state.UpdatedAt.UnixMilli(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeClockError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, clock.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, clock.ErrInvalidTransition),
		errors.Is(err, clock.ErrAtFirstLevel),
		errors.Is(err, clock.ErrAtLastLevel):
		status = http.StatusConflict
	case errors.Is(err, clock.ErrNoSchedule), errors.Is(err, clock.ErrInvalidLevel):
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
		log.Error().Err(err).
			Str("path", r.URL.Path).
			Str("device_id", r.Header.Get("X-Device-ID")).
			Msg("clock operation failed")
	}
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
