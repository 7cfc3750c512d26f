package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/meetsuite/meeting-server-go/internal/repository"
	"github.com/meetsuite/meeting-server-go/internal/service"
)

// WebhookHandler receives provider callbacks. Events are best-effort
// hints: the authoritative expiry lives in our own session and link
// rows, so every event funnels into the same idempotent overdue check
// the sweep job uses, and the response is 200 regardless.
type WebhookHandler struct {
	sessionRepo repository.SessionRepository
	lifecycle   *service.LifecycleService
}

func NewWebhookHandler(sessionRepo repository.SessionRepository, lifecycle *service.LifecycleService) *WebhookHandler {
	return &WebhookHandler{
		sessionRepo: sessionRepo,
		lifecycle:   lifecycle,
	}
}

func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/webhook", h.HandleEvent)
	return r
}

type webhookEvent struct {
	Type     string `json:"type"`
	RoomName string `json:"room_name"`
}

// POST /provider/webhook
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var event webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	switch event.Type {
	case "room.expired", "meeting.ended":
		h.handleRoomExpired(r, event.RoomName)
	default:
		log.Debug().Str("type", event.Type).Msg("ignoring provider webhook event")
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *WebhookHandler) handleRoomExpired(r *http.Request, roomName string) {
	if roomName == "" {
		return
	}

	session, err := h.sessionRepo.FindByRoomName(r.Context(), roomName)
	if err != nil {
		log.Error().Err(err).Str("roomName", roomName).Msg("webhook: session lookup failed")
		return
	}
	if session == nil {
		log.Debug().Str("roomName", roomName).Msg("webhook: no session for room")
		return
	}

	if err := h.lifecycle.EndIfOverdue(r.Context(), session.ID); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("webhook: overdue check failed")
	}
}
