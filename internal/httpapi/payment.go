package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/internal/payfast"
	"github.com/dmitrymomot/chatbridge/internal/store"
	"github.com/dmitrymomot/chatbridge/middleware"
)

// paymentNotify handles a PayFast ITN. The response is always 200 so the
// provider stops retrying; every rejection is logged instead.
func (s *Server) paymentNotify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer writeText(w, http.StatusOK, successBody)

	if err := r.ParseForm(); err != nil {
		s.log.ErrorContext(ctx, "payment notification unreadable", logger.Error(err))
		return
	}
	form := r.PostForm

	n, err := payfast.ParseNotification(form)
	if err != nil {
		s.log.ErrorContext(ctx, "payment notification rejected", logger.Error(err))
		return
	}
	log := s.log.With(slog.Int64("sale_id", n.SaleID))

	if err := payfast.VerifyNotification(form, s.cfg.PayFastPassphrase); err != nil {
		log.ErrorContext(ctx, "payment notification signature invalid", logger.Error(err))
		return
	}

	if ip := middleware.RequestClientIP(r); !s.sources.Valid(ctx, ip) {
		log.WarnContext(ctx, "payment notification from unrecognized address", logger.ClientIP(ip))
	}

	if err := s.payments.ApplyNotification(ctx, n); err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			log.ErrorContext(ctx, "payment not found for sale")
			return
		}
		log.ErrorContext(ctx, "payment update failed", logger.Error(err))
		return
	}
	log.InfoContext(ctx, "payment updated",
		slog.String("status", n.Status),
		slog.String("pf_payment_id", n.PFPaymentID),
		slog.String("amount", n.AmountGross))
}

func (s *Server) paymentReturn(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "Payment received. You can return to the chat.")
}

func (s *Server) paymentCancel(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "Payment cancelled. Reply in the chat to try again.")
}
