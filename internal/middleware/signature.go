package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/meetsuite/meeting-server-go/internal/audit"
	"github.com/meetsuite/meeting-server-go/internal/util"
)

// SignatureHeader carries the provider's HMAC-SHA256 hex digest over the
// raw request body.
const SignatureHeader = "X-Webhook-Signature"

// WebhookSignatureMiddleware authenticates provider callbacks. Webhook
// events are only best-effort hints, so an unset secret disables
// verification rather than blocking them.
type WebhookSignatureMiddleware struct {
	secret string
}

func NewWebhookSignatureMiddleware(secret string) *WebhookSignatureMiddleware {
	return &WebhookSignatureMiddleware{secret: secret}
}

func (m *WebhookSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			log.Warn().Msg("webhook signature verification bypassed: PROVIDER_WEBHOOK_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		signature := r.Header.Get(SignatureHeader)
		if signature == "" {
			log.Warn().Msg("webhook signature middleware: missing signature header")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing signature",
			})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("webhook signature middleware: failed to read body")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		computed := util.HmacSHA256(m.secret, string(body))
		if !util.ConstantTimeEqual(computed, signature) {
			log.Warn().Msg("webhook signature middleware: invalid signature")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventWebhookRejected})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid signature",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
