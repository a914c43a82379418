package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stanstork/alert-api/internal/authz"
	"github.com/stanstork/alert-api/internal/engine"
	"github.com/stanstork/alert-api/internal/models"
	"github.com/stanstork/alert-api/internal/repository"
)

type PreferenceHandler struct {
	prefs  *engine.Preferences
	users  repository.UserRepository
	logger zerolog.Logger
}

func NewPreferenceHandler(prefs *engine.Preferences, users repository.UserRepository, logger zerolog.Logger) *PreferenceHandler {
	return &PreferenceHandler{
		prefs:  prefs,
		users:  users,
		logger: logger.With().Str("handler", "preference").Logger(),
	}
}

type preferenceEntry struct {
	AlertType string `json:"alert_type"`
	Backend   string `json:"backend"`
	Enabled   bool   `json:"enabled"`
}

func (h *PreferenceHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}

	matrix, err := h.prefs.UserPreferences(r.Context(), user)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to load preferences")
		http.Error(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}

	entries := make([]preferenceEntry, 0, len(matrix))
	for key, enabled := range matrix {
		entries = append(entries, preferenceEntry{AlertType: key.AlertType, Backend: key.Backend, Enabled: enabled})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": entries})
}

func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}

	var payload struct {
		Preferences []preferenceEntry `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	values := make(map[models.PrefKey]bool, len(payload.Preferences))
	for _, entry := range payload.Preferences {
		values[models.PrefKey{AlertType: entry.AlertType, Backend: entry.Backend}] = entry.Enabled
	}

	if err := h.prefs.SetMany(r.Context(), user, values); err != nil {
		http.Error(w, "Failed to save preferences: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": len(values)})
}

func (h *PreferenceHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}

	var payload struct {
		AlertTypes []string `json:"alert_types"`
		Backends   []string `json:"backends"`
	}
	if r.Body != nil {
		// An empty body unsubscribes from everything.
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	result, err := h.prefs.Unsubscribe(r.Context(), user, payload.AlertTypes, payload.Backends)
	if err != nil {
		http.Error(w, "Failed to unsubscribe: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PreferenceHandler) requester(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return models.User{}, false
	}
	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "Unknown user", http.StatusUnauthorized)
		return models.User{}, false
	}
	return user, true
}
