package httpapi

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/internal/normalize"
)

// TelegramSecretHeader carries the secret_token set with setWebhook.
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

func (s *Server) telegramStatus(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "Telegram webhook active and secured.")
}

// telegramUpdate answers 200 for every authenticated request, including
// updates without a usable message, so Telegram does not redeliver them.
func (s *Server) telegramUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.cfg.TelegramSecret != "" {
		got := r.Header.Get(TelegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.TelegramSecret)) != 1 {
			s.log.WarnContext(ctx, "telegram webhook secret mismatch")
			writeText(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.log.WarnContext(ctx, "telegram webhook body unreadable", logger.Error(err))
		writeText(w, http.StatusOK, successBody)
		return
	}

	update, err := normalize.DecodeTelegram(body)
	if err == nil {
		var in normalize.Inbound
		if in, err = normalize.Telegram(update); err == nil {
			s.publishAsync(r, in)
		}
	}
	if err != nil {
		s.log.WarnContext(ctx, "telegram update ignored", logger.Error(err))
	}
	writeText(w, http.StatusOK, successBody)
}
