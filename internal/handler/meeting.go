package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/meetsuite/meeting-server-go/internal/audit"
	apperrors "github.com/meetsuite/meeting-server-go/internal/errors"
	"github.com/meetsuite/meeting-server-go/internal/model"
	"github.com/meetsuite/meeting-server-go/internal/service"
	"github.com/meetsuite/meeting-server-go/internal/util"
)

// PresenceTracker is the slice of presence tracking the handler needs.
type PresenceTracker interface {
	Join(ctx context.Context, sessionID, participantID string) error
	Heartbeat(ctx context.Context, sessionID string) error
	Leave(ctx context.Context, sessionID, participantID string) (int64, error)
	Clear(ctx context.Context, sessionID string) error
}

type MeetingHandler struct {
	issuer    *service.IssuerService
	joins     *service.JoinService
	lifecycle *service.LifecycleService
	presence  PresenceTracker
}

func NewMeetingHandler(
	issuer *service.IssuerService,
	joins *service.JoinService,
	lifecycle *service.LifecycleService,
	presence PresenceTracker,
) *MeetingHandler {
	return &MeetingHandler{
		issuer:    issuer,
		joins:     joins,
		lifecycle: lifecycle,
		presence:  presence,
	}
}

// POST /v1/meetings
func (h *MeetingHandler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var params service.CreateMeetingParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	result, err := h.issuer.Create(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventMeetingCreate,
		SessionID: result.SessionID,
		ActorID:   params.HostID,
	})

	writeJSON(w, http.StatusCreated, result)
}

// GET /v1/links/{token}
func (h *MeetingHandler) ValidateLink(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	result, err := h.joins.Validate(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/links/{token}/join
func (h *MeetingHandler) JoinMeeting(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var body struct {
		ParticipantID   string `json:"participantId"`
		ParticipantName string `json:"participantName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	result, err := h.joins.Join(r.Context(), token, body.ParticipantID, body.ParticipantName)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:          audit.EventLinkDenied,
			ParticipantID: body.ParticipantID,
			Details: map[string]interface{}{
				"token": util.MaskToken(token),
				"code":  string(apperrors.GetCode(err)),
			},
		})
		writeError(w, err)
		return
	}

	if err := h.presence.Join(r.Context(), result.SessionID, body.ParticipantID); err != nil {
		log.Warn().Err(err).Str("sessionId", result.SessionID).Msg("presence tracking failed on join")
	}

	audit.LogFromRequest(r, audit.Event{
		Type:          audit.EventLinkConsume,
		SessionID:     result.SessionID,
		ParticipantID: body.ParticipantID,
	})

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/meetings/{sessionID}/status
func (h *MeetingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	result, err := h.lifecycle.Status(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/meetings/{sessionID}/end
func (h *MeetingHandler) EndMeeting(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body struct {
		ActorID         string          `json:"actorId"`
		Reason          model.EndReason `json:"reason"`
		DurationSeconds *int            `json:"durationSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	result, err := h.lifecycle.End(r.Context(), service.EndParams{
		SessionID:       sessionID,
		ActorID:         body.ActorID,
		Reason:          body.Reason,
		DurationSeconds: body.DurationSeconds,
	})
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeForbidden {
			audit.LogFromRequest(r, audit.Event{
				Type:      audit.EventEndForbidden,
				SessionID: sessionID,
				ActorID:   body.ActorID,
			})
		}
		writeError(w, err)
		return
	}

	if err := h.presence.Clear(r.Context(), sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("presence clear failed on end")
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventMeetingEnd,
		SessionID: sessionID,
		ActorID:   body.ActorID,
		Details:   map[string]interface{}{"reason": string(result.Reason)},
	})

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/meetings/{sessionID}/cancel
func (h *MeetingHandler) CancelMeeting(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body struct {
		ActorID string `json:"actorId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	result, err := h.lifecycle.Cancel(r.Context(), sessionID, body.ActorID)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventMeetingCancel,
		SessionID: sessionID,
		ActorID:   body.ActorID,
	})

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/meetings/{sessionID}/leave
//
// Client-reported departure. When the last tracked participant leaves,
// the session is ended with reason all_left.
func (h *MeetingHandler) LeaveMeeting(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body struct {
		ParticipantID string `json:"participantId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if body.ParticipantID == "" {
		writeError(w, apperrors.MissingRequired("participantId"))
		return
	}

	remaining, err := h.presence.Leave(r.Context(), sessionID, body.ParticipantID)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("presence leave failed")
		writeError(w, apperrors.Internal("Failed to record departure"))
		return
	}

	if remaining == 0 {
		if _, err := h.lifecycle.End(r.Context(), service.EndParams{
			SessionID: sessionID,
			ActorID:   body.ParticipantID,
			Reason:    model.EndReasonAllLeft,
		}); err != nil {
			// The session may already be gone; that is fine.
			log.Warn().Err(err).Str("sessionId", sessionID).Msg("all-left termination failed")
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"left":                  true,
		"remainingParticipants": remaining,
	})
}

// POST /v1/meetings/{sessionID}/heartbeat
func (h *MeetingHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.presence.Heartbeat(r.Context(), sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("presence heartbeat failed")
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
