package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventMeetingCreate   EventType = "meeting_create"
	EventMeetingEnd      EventType = "meeting_end"
	EventMeetingCancel   EventType = "meeting_cancel"
	EventLinkConsume     EventType = "link_consume"
	EventLinkDenied      EventType = "link_denied"
	EventEndForbidden    EventType = "end_forbidden"
	EventWebhookRejected EventType = "webhook_rejected"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
)

type Event struct {
	Type          EventType
	SessionID     string
	ActorID       string
	ParticipantID string
	IP            string
	UserAgent     string
	Details       map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.SessionID != "" {
		logger = logger.With().Str("session_id", event.SessionID).Logger()
	}
	if event.ActorID != "" {
		logger = logger.With().Str("actor_id", event.ActorID).Logger()
	}
	if event.ParticipantID != "" {
		logger = logger.With().Str("participant_id", event.ParticipantID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = getClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
