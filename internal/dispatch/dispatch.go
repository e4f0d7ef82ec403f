// Package dispatch delivers outbound chat updates to Telegram and WhatsApp.
//
// Dispatchers never return errors to the queue consumer: a reply that cannot
// be delivered is logged and dropped. Transport retries happen inside the
// dispatcher, and a per-recipient token bucket keeps each chat under the
// platform's flood limits.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/internal/chat"
)

var (
	ErrEmptyRecipient = errors.New("dispatch: empty recipient")
	ErrEmptyMessage   = errors.New("dispatch: empty message")
	ErrInvalidChatID  = errors.New("dispatch: invalid telegram chat id")
)

// Throttle delays a send until the recipient has budget left.
type Throttle interface {
	Wait(ctx context.Context, key string) error
}

// Dispatcher sends one reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, env chat.Envelope)
}

type options struct {
	log        *slog.Logger
	throttle   Throttle
	maxRetries int
	newBackOff func() backoff.BackOff
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithThrottle waits on t, keyed by recipient, before every send.
func WithThrottle(t Throttle) Option {
	return func(o *options) { o.throttle = t }
}

// WithMaxRetries sets how many times a failed send is retried.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithBackOff replaces the exponential retry schedule.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(o *options) {
		if fn != nil {
			o.newBackOff = fn
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		log:        logger.Nop(),
		maxRetries: 3,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// precheck validates an outbound update and waits for throttle budget.
func (o options) precheck(ctx context.Context, u chat.Update) error {
	if strings.TrimSpace(u.Sender) == "" {
		return ErrEmptyRecipient
	}
	if !u.HasMedia() && strings.TrimSpace(u.Body) == "" {
		return ErrEmptyMessage
	}
	if o.throttle != nil {
		if err := o.throttle.Wait(ctx, u.Channel.String()+":"+u.Sender); err != nil {
			return err
		}
	}
	return nil
}

func (o options) logResult(ctx context.Context, env chat.Envelope, err error) {
	u := env.Update()
	attrs := []any{
		logger.CorrelationID(env.CorrelationID().String()),
		logger.Channel(u.Channel.String()),
		logger.Sender(u.Sender),
		slog.Bool("media", u.HasMedia()),
	}
	if cmd, ok := env.Tag(chat.TagCommand); ok {
		attrs = append(attrs, logger.Command(cmd))
	}
	if err != nil {
		o.log.ErrorContext(ctx, "dispatch failed", append(attrs, logger.Error(err))...)
		return
	}
	o.log.InfoContext(ctx, "dispatched", attrs...)
}
