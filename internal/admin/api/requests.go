package api

import (
	"net/http"

	"github.com/goodtune/parentguard/internal/enforce"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// RequestsHandler serves the "more time" request queue.
type RequestsHandler struct {
	service *enforce.Service
	logger  zerolog.Logger
}

// NewRequestsHandler creates a new requests handler.
func NewRequestsHandler(service *enforce.Service, logger zerolog.Logger) *RequestsHandler {
	return &RequestsHandler{
		service: service,
		logger:  logger.With().Str("handler", "requests").Logger(),
	}
}

// List returns every request, oldest first.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.ListRequests(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list requests")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve requests")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

// CreateRequest is the body of POST /api/requests.
type CreateRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// Create files a new pending request.
func (h *RequestsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	created, err := h.service.RequestMoreTime(r.Context(), req.UserID, req.Reason)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to file request")
		writeError(w, http.StatusInternalServerError, "Failed to file request")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ApproveRequest is the body of POST /api/requests/{id}/approve.
type ApproveRequest struct {
	DurationMinutes *int `json:"duration_minutes"`
	UntilEndOfDay   bool `json:"until_end_of_day"`
}

// Approve resolves a request and applies the unlock.
func (h *RequestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req ApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DurationMinutes != nil && *req.DurationMinutes < 0 {
		writeError(w, http.StatusBadRequest, "duration_minutes must not be negative")
		return
	}

	approved, err := h.service.Approve(r.Context(), id, req.DurationMinutes, req.UntilEndOfDay)
	if err != nil {
		notFoundOr(w, err, "Request not found or already resolved")
		return
	}
	writeJSON(w, http.StatusOK, approved)
}

// Deny resolves a request without granting time.
func (h *RequestsHandler) Deny(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	denied, err := h.service.Deny(r.Context(), id)
	if err != nil {
		notFoundOr(w, err, "Request not found or already resolved")
		return
	}
	writeJSON(w, http.StatusOK, denied)
}
