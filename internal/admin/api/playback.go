package api

import (
	"net/http"

	"github.com/goodtune/parentguard/internal/enforce"
	"github.com/rs/zerolog"
)

// PlaybackHandler receives start, progress and stop events pushed by the media host.
type PlaybackHandler struct {
	service *enforce.Service
	logger  zerolog.Logger
}

// NewPlaybackHandler creates a new playback handler.
func NewPlaybackHandler(service *enforce.Service, logger zerolog.Logger) *PlaybackHandler {
	return &PlaybackHandler{
		service: service,
		logger:  logger.With().Str("handler", "playback").Logger(),
	}
}

func (h *PlaybackHandler) decode(w http.ResponseWriter, r *http.Request) (enforce.PlaybackEvent, bool) {
	var ev enforce.PlaybackEvent
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid playback event")
		return ev, false
	}
	if ev.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return ev, false
	}
	return ev, true
}

// Start evaluates a playback start.
func (h *PlaybackHandler) Start(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.OnPlaybackStart(r.Context(), ev))
}

// Progress evaluates a progress sample.
func (h *PlaybackHandler) Progress(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.OnPlaybackProgress(r.Context(), ev))
}

// Stop records the end of playback.
func (h *PlaybackHandler) Stop(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decode(w, r)
	if !ok {
		return
	}
	h.service.OnPlaybackStop(r.Context(), ev)
	w.WriteHeader(http.StatusNoContent)
}
