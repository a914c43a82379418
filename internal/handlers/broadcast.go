package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/alert-api/internal/engine"
	"github.com/stanstork/alert-api/internal/models"
	"github.com/stanstork/alert-api/internal/repository"
)

type BroadcastHandler struct {
	broadcasts *engine.Broadcasts
	logger     zerolog.Logger
}

func NewBroadcastHandler(broadcasts *engine.Broadcasts, logger zerolog.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		broadcasts: broadcasts,
		logger:     logger.With().Str("handler", "broadcast").Logger(),
	}
}

type broadcastRequest struct {
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	Recipients string     `json:"recipients"`
	SendAt     *time.Time `json:"send_at"`
	Draft      bool       `json:"draft"`
}

func (h *BroadcastHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "")
}

func (h *BroadcastHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["broadcastID"])
	if id == "" {
		http.Error(w, "Broadcast ID is required", http.StatusBadRequest)
		return
	}
	h.save(w, r, id)
}

func (h *BroadcastHandler) save(w http.ResponseWriter, r *http.Request, id string) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	broadcast := models.AdminAlert{
		ID:         id,
		Title:      strings.TrimSpace(req.Title),
		Body:       req.Body,
		Recipients: strings.TrimSpace(req.Recipients),
		Draft:      req.Draft,
	}
	if req.SendAt != nil {
		broadcast.SendAt = *req.SendAt
	}

	saved, err := h.broadcasts.Save(r.Context(), broadcast)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBroadcastSent):
			http.Error(w, "Broadcast has already been sent", http.StatusConflict)
		case errors.Is(err, sql.ErrNoRows):
			http.Error(w, "Broadcast not found", http.StatusNotFound)
		default:
			h.logger.Error().Err(err).Str("broadcast_id", id).Msg("failed to save broadcast")
			http.Error(w, "Failed to save broadcast: "+err.Error(), http.StatusBadRequest)
		}
		return
	}

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

func (h *BroadcastHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["broadcastID"])
	broadcast, err := h.broadcasts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Broadcast not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("broadcast_id", id).Msg("failed to load broadcast")
		http.Error(w, "Failed to load broadcast", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, broadcast)
}

func (h *BroadcastHandler) List(w http.ResponseWriter, r *http.Request) {
	broadcasts, err := h.broadcasts.List(r.Context(), 0)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list broadcasts")
		http.Error(w, "Failed to list broadcasts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"broadcasts": broadcasts})
}
