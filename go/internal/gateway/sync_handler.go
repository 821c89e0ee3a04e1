package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/feltworks/tourneyclock/go/internal/sync"
)

// SyncHandler exposes the offline-sync coordinator over JSON HTTP.
type SyncHandler struct {
	coordinator *sync.Coordinator
}

func NewSyncHandler(coordinator *sync.Coordinator) *SyncHandler {
	return &SyncHandler{coordinator: coordinator}
}

func (h *SyncHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sync/upload", h.handleUpload)
	mux.HandleFunc("GET /api/sync/changes", h.handlePull)
}

type uploadRequest struct {
	DeviceID string              `json:"device_id"`
	Changes  []sync.ChangeUpload `json:"changes"`
}

func (h *SyncHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DeviceID == "" {
		req.DeviceID = r.Header.Get("X-Device-ID")
	}
	if req.DeviceID == "" {
		writeJSONError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	result, err := h.coordinator.Upload(r.Context(), req.DeviceID, req.Changes)
	if err != nil {
		log.Error().Err(err).Str("device_id", req.DeviceID).Msg("sync upload failed")
		writeJSONError(w, http.StatusInternalServerError, "sync upload failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SyncHandler) handlePull(w http.ResponseWriter, r *http.Request) {
	sinceMs := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, "since must be a non-negative epoch-millisecond value")
			return
		}
		sinceMs = parsed
	}

	result, err := h.coordinator.Pull(r.Context(), sinceMs)
	if err != nil {
		log.Error().Err(err).Int64("since_ms", sinceMs).Msg("sync pull failed")
		writeJSONError(w, http.StatusInternalServerError, "sync pull failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
