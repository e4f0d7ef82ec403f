// Package httpapi serves the platform webhooks, the payment notification
// endpoint and the health checks. Webhook handlers verify and decode the
// request, hand publishing to a background task and answer at once.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/chatbridge/core/health"
	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/internal/chat"
	"github.com/dmitrymomot/chatbridge/internal/dedup"
	"github.com/dmitrymomot/chatbridge/internal/dispatch"
	"github.com/dmitrymomot/chatbridge/internal/normalize"
	"github.com/dmitrymomot/chatbridge/internal/payfast"
	"github.com/dmitrymomot/chatbridge/middleware"
	"github.com/dmitrymomot/chatbridge/pkg/async"
)

const successBody = "Success"

// Config holds the secrets the handlers check.
type Config struct {
	TelegramSecret      string
	WhatsAppVerifyToken string
	WhatsAppAppSecret   string
	PayFastPassphrase   string
	MaxBodyBytes        int64
}

// NewConfig collects the handler secrets from the platform configs.
func NewConfig(tg dispatch.TelegramConfig, wa dispatch.WhatsAppConfig, pf payfast.Config) Config {
	return Config{
		TelegramSecret:      tg.WebhookSecret,
		WhatsAppVerifyToken: wa.VerifyToken,
		WhatsAppAppSecret:   wa.AppSecret,
		PayFastPassphrase:   pf.Passphrase,
	}
}

// Publisher queues inbound messages.
type Publisher interface {
	PublishInbound(ctx context.Context, env chat.Envelope) error
}

// Payments records payment notifications.
type Payments interface {
	ApplyNotification(ctx context.Context, n payfast.Notification) error
}

// SourceValidator reports whether an address belongs to the payment provider.
type SourceValidator interface {
	Valid(ctx context.Context, ip string) bool
}

// Server holds the handler dependencies.
type Server struct {
	cfg       Config
	publisher Publisher
	payments  Payments
	sources   SourceValidator
	dedup     dedup.Guard
	checks    []health.CheckFunc
	limiter   middleware.Limiter
	log       *slog.Logger
	inflight  sync.WaitGroup
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDedup drops redelivered webhooks.
func WithDedup(g dedup.Guard) Option {
	return func(s *Server) {
		if g != nil {
			s.dedup = g
		}
	}
}

// WithReadinessChecks adds dependencies checked by /health/ready.
func WithReadinessChecks(checks ...health.CheckFunc) Option {
	return func(s *Server) { s.checks = append(s.checks, checks...) }
}

// WithSourceValidator overrides the payment source check.
func WithSourceValidator(v SourceValidator) Option {
	return func(s *Server) { s.sources = v }
}

// WithRateLimit limits webhook and notification requests per client address.
func WithRateLimit(l middleware.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

func New(cfg Config, pub Publisher, payments Payments, opts ...Option) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		cfg:       cfg,
		publisher: pub,
		payments:  payments,
		sources:   payfast.NewSourceValidator(nil, nil),
		dedup:     dedup.Disabled{},
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	hooks := http.NewServeMux()
	hooks.HandleFunc("GET /webhook/telegram", s.telegramStatus)
	hooks.HandleFunc("POST /webhook/telegram", s.telegramUpdate)
	hooks.HandleFunc("GET /webhook/whatsapp", s.whatsAppVerify)
	hooks.HandleFunc("POST /webhook/whatsapp", s.whatsAppUpdate)
	hooks.HandleFunc("POST /payment/notify", s.paymentNotify)
	hooks.HandleFunc("GET /payment/return", s.paymentReturn)
	hooks.HandleFunc("GET /payment/cancel", s.paymentCancel)

	var inbound http.Handler = hooks
	if s.limiter != nil {
		inbound = middleware.RateLimit(s.limiter, s.log)(inbound)
	}

	mux := http.NewServeMux()
	mux.Handle("/", inbound)
	mux.Handle("GET /health/live", health.Liveness())
	mux.Handle("GET /health/ready", health.Readiness(s.log, s.checks...))

	return middleware.Chain(mux,
		middleware.RequestID(),
		middleware.ClientIP(),
		middleware.Logging(s.log),
		middleware.BodyLimit(s.cfg.MaxBodyBytes))
}

// Drain waits for background publishes started by webhook handlers, or
// until ctx is done.
func (s *Server) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publishAsync forwards in on a context detached from the request.
func (s *Server) publishAsync(r *http.Request, in normalize.Inbound) {
	ctx := context.WithoutCancel(r.Context())
	s.inflight.Add(1)
	f := async.Exec(ctx, in, s.forward)
	go func() {
		defer s.inflight.Done()
		if err := f.Await(); err != nil {
			s.log.ErrorContext(ctx, "inbound publish failed",
				logger.Channel(in.Update.Channel.String()),
				logger.Sender(in.Update.Sender),
				logger.Error(err))
		}
	}()
}

func (s *Server) forward(ctx context.Context, in normalize.Inbound) error {
	if key := in.DedupKey(); key != "" {
		first, err := s.dedup.Claim(ctx, key)
		switch {
		case err != nil:
			s.log.WarnContext(ctx, "dedup unavailable, publishing anyway", logger.Error(err))
		case !first:
			s.log.InfoContext(ctx, "duplicate delivery dropped",
				logger.Channel(in.Update.Channel.String()),
				slog.String("message_id", in.MessageID))
			return nil
		}
	}

	start := time.Now()
	env := in.Envelope()
	if err := s.publisher.PublishInbound(ctx, env); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "inbound published",
		logger.CorrelationID(env.CorrelationID().String()),
		logger.Channel(in.Update.Channel.String()),
		logger.Sender(in.Update.Sender),
		logger.Elapsed(start))
	return nil
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
