package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stanstork/alert-api/internal/authz"
	"github.com/stanstork/alert-api/internal/repository"
)

type AlertHandler struct {
	alerts repository.AlertRepository
	logger zerolog.Logger
}

func NewAlertHandler(alerts repository.AlertRepository, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: logger.With().Str("handler", "alert").Logger(),
	}
}

// List returns the authenticated user's alerts, newest first.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	limit := 25
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	alerts, err := h.alerts.ListForUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list alerts")
		http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}
