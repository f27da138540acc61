package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goodtune/parentguard/internal/enforce"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// StateHandler serves per-user state and the lock/unlock controls.
type StateHandler struct {
	service *enforce.Service
	logger  zerolog.Logger
}

// NewStateHandler creates a new state handler.
func NewStateHandler(service *enforce.Service, logger zerolog.Logger) *StateHandler {
	return &StateHandler{
		service: service,
		logger:  logger.With().Str("handler", "state").Logger(),
	}
}

// Get returns the state of one user. Unknown users get a fresh state.
func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	writeJSON(w, http.StatusOK, h.service.State(r.Context(), userID))
}

// UnlockRequest is the body of POST /api/profiles/{userID}/unlock.
type UnlockRequest struct {
	DurationMinutes int    `json:"duration_minutes"`
	Reason          string `json:"reason"`
}

// Unlock grants an unlock and clears the cooldown.
func (h *StateHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req UnlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "admin"
	}

	until, err := h.service.Unlock(r.Context(), userID, req.DurationMinutes, req.Reason)
	if err != nil {
		h.writeDurationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"unlock_until": until,
		"reason":       req.Reason,
	})
}

// LockRequest is the body of POST /api/profiles/{userID}/lock.
type LockRequest struct {
	CooldownMinutes int `json:"cooldown_minutes"`
}

// Lock sets a cooldown and stops the user's sessions.
func (h *StateHandler) Lock(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req LockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	until, err := h.service.Lock(r.Context(), userID, req.CooldownMinutes)
	if err != nil {
		h.writeDurationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":        userID,
		"cooldown_until": until.Format(time.RFC3339),
	})
}

func (h *StateHandler) writeDurationError(w http.ResponseWriter, err error) {
	if errors.Is(err, enforce.ErrInvalidDuration) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error().Err(err).Msg("State change failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}
