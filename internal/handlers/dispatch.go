package handlers

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stanstork/alert-api/internal/engine"
)

type DispatchHandler struct {
	dispatcher *engine.Dispatcher
	logger     zerolog.Logger
}

func NewDispatchHandler(dispatcher *engine.Dispatcher, logger zerolog.Logger) *DispatchHandler {
	return &DispatchHandler{
		dispatcher: dispatcher,
		logger:     logger.With().Str("handler", "dispatch").Logger(),
	}
}

// Run triggers a dispatch batch. Safe to call concurrently and on a timer;
// when another run holds the lease this returns immediately with
// acquired=false, which is not an error.
func (h *DispatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	acquired, err := h.dispatcher.Run(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("dispatch run failed")
		http.Error(w, "Dispatch run failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"acquired": acquired})
}
