package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/goodtune/parentguard/internal/policy"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// PolicyHandler reads and edits profile policies. Editing needs a provider that implements
// policy.Editor; other sources are read-only.
type PolicyHandler struct {
	provider policy.Provider
	editor   policy.Editor
	logger   zerolog.Logger
}

// NewPolicyHandler creates a new policy handler.
func NewPolicyHandler(provider policy.Provider, logger zerolog.Logger) *PolicyHandler {
	editor, _ := provider.(policy.Editor)
	return &PolicyHandler{
		provider: provider,
		editor:   editor,
		logger:   logger.With().Str("handler", "policy").Logger(),
	}
}

// List returns every stored profile keyed by user.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.editor == nil {
		writeError(w, http.StatusNotImplemented, "Policy source is read-only")
		return
	}

	profiles, err := h.editor.ListPolicies(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list policies")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve policies")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// Get returns the effective policy for a user, including the fallback for unknown users.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	writeJSON(w, http.StatusOK, h.provider.GetEffectivePolicy(r.Context(), userID))
}

// Put replaces a user's policy. Omitted fields take their default values.
func (h *PolicyHandler) Put(w http.ResponseWriter, r *http.Request) {
	if h.editor == nil {
		writeError(w, http.StatusNotImplemented, "Policy source is read-only")
		return
	}
	userID := mux.Vars(r)["userID"]

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	profile, err := policy.DecodePolicy(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.editor.PutPolicy(r.Context(), userID, profile); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to save policy")
		writeError(w, http.StatusInternalServerError, "Failed to save policy")
		return
	}

	h.logger.Info().Str("user_id", userID).Msg("Policy updated")
	writeJSON(w, http.StatusOK, profile)
}

// SeedRequest is the body of POST /api/policy/seed.
type SeedRequest struct {
	Profiles []string `json:"profiles"`
}

// Seed stores the recommended profile for each listed user.
func (h *PolicyHandler) Seed(w http.ResponseWriter, r *http.Request) {
	if h.editor == nil {
		writeError(w, http.StatusNotImplemented, "Policy source is read-only")
		return
	}

	var req SeedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	seeded := make([]string, 0, len(req.Profiles))
	for _, userID := range req.Profiles {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		if err := h.editor.PutPolicy(r.Context(), userID, policy.SeedPolicy()); err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to seed policy")
			writeError(w, http.StatusInternalServerError, "Failed to seed policy for "+userID)
			return
		}
		seeded = append(seeded, userID)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"seeded": seeded,
		"count":  len(seeded),
	})
}
