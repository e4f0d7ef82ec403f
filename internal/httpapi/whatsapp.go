package httpapi

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/internal/normalize"
	"github.com/dmitrymomot/chatbridge/pkg/webhook"
)

// whatsAppVerify completes the Meta subscription handshake.
func (s *Server) whatsAppVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("hub.verify_token")
	if q.Get("hub.mode") != "subscribe" || s.cfg.WhatsAppVerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.WhatsAppVerifyToken)) != 1 {
		s.log.WarnContext(r.Context(), "whatsapp verification rejected")
		writeText(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
		return
	}
	s.log.InfoContext(r.Context(), "whatsapp webhook verified")
	writeText(w, http.StatusOK, q.Get("hub.challenge"))
}

// whatsAppUpdate checks the payload signature over the raw body before
// decoding it.
func (s *Server) whatsAppUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.log.WarnContext(ctx, "whatsapp webhook body unreadable", logger.Error(err))
		writeText(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if err := webhook.VerifySignature(s.cfg.WhatsAppAppSecret, body, r.Header.Get(webhook.SignatureHeaderName)); err != nil {
		if errors.Is(err, webhook.ErrMissingSecret) {
			s.log.ErrorContext(ctx, "WHATSAPP_APP_SECRET not set, rejecting whatsapp webhook")
		} else {
			s.log.WarnContext(ctx, "whatsapp signature rejected", logger.Error(err))
		}
		writeText(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	payload, err := normalize.DecodeWhatsApp(body)
	if err == nil {
		var in normalize.Inbound
		if in, err = normalize.WhatsApp(payload); err == nil {
			s.publishAsync(r, in)
		}
	}
	switch {
	case errors.Is(err, normalize.ErrNoMessage):
		// Status callbacks carry no message.
	case err != nil:
		s.log.WarnContext(ctx, "whatsapp update ignored", logger.Error(err))
	}
	writeText(w, http.StatusOK, successBody)
}
