// Package worker binds the named queues to their consumers: the command
// pipeline, the two outbound dispatchers and the image processor.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/core/queue"
	"github.com/dmitrymomot/chatbridge/internal/bus"
	"github.com/dmitrymomot/chatbridge/internal/chat"
	"github.com/dmitrymomot/chatbridge/internal/pipeline"
)

// Processor runs the command pipeline for one inbound envelope.
type Processor interface {
	Process(ctx context.Context, env chat.Envelope) ([]chat.Envelope, error)
}

// Publisher queues replies for delivery.
type Publisher interface {
	PublishDispatch(ctx context.Context, env chat.Envelope) error
}

// Dispatcher delivers one reply to its platform.
type Dispatcher interface {
	Dispatch(ctx context.Context, env chat.Envelope)
}

// ImageProcessor archives an uploaded ID image.
type ImageProcessor interface {
	Process(ctx context.Context, job bus.ImageJob) error
}

// Consumer is the part of queue.Service used for registration.
type Consumer interface {
	Consume(queue string, handlers ...queue.Handler) error
}

// Handlers holds the queue consumers.
type Handlers struct {
	processor Processor
	publisher Publisher
	telegram  Dispatcher
	whatsapp  Dispatcher
	images    ImageProcessor
	log       *slog.Logger
}

type Option func(*Handlers)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handlers) {
		if l != nil {
			h.log = l
		}
	}
}

func New(processor Processor, publisher Publisher, telegram, whatsapp Dispatcher, images ImageProcessor, opts ...Option) *Handlers {
	h := &Handlers{
		processor: processor,
		publisher: publisher,
		telegram:  telegram,
		whatsapp:  whatsapp,
		images:    images,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register attaches one handler to each of the four queues.
func (h *Handlers) Register(c Consumer) error {
	bindings := []struct {
		queue   string
		handler queue.Handler
	}{
		{bus.CommandQueue, queue.NewNamedTaskHandler(bus.TaskInbound, h.HandleInbound)},
		{bus.TelegramOutboundQueue, queue.NewNamedTaskHandler(bus.TaskDispatch, h.HandleDispatch)},
		{bus.WhatsAppOutboundQueue, queue.NewNamedTaskHandler(bus.TaskDispatch, h.HandleDispatch)},
		{bus.ImageProcessingQueue, queue.NewNamedTaskHandler(bus.TaskImage, h.HandleImage)},
	}
	for _, b := range bindings {
		if err := c.Consume(b.queue, b.handler); err != nil {
			return fmt.Errorf("register %s: %w", b.queue, err)
		}
	}
	return nil
}

// HandleInbound runs the pipeline and queues every reply. Replies that fail
// to publish are reported together so a manual-ack queue retries the task.
func (h *Handlers) HandleInbound(ctx context.Context, env chat.Envelope) error {
	log := h.log.With(
		logger.CorrelationID(env.CorrelationID().String()),
		logger.Channel(env.Update().Channel.String()),
	)

	replies, err := h.processor.Process(ctx, env)
	if errors.Is(err, pipeline.ErrInvalidEnvelope) {
		log.WarnContext(ctx, "dropping invalid inbound message", logger.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	var errs []error
	for _, reply := range replies {
		if err := h.publisher.PublishDispatch(ctx, reply); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		log.ErrorContext(ctx, "failed to publish replies",
			slog.Int("failed", len(errs)),
			slog.Int("total", len(replies)),
			logger.Error(err))
		return err
	}

	log.DebugContext(ctx, "inbound message processed", slog.Int("replies", len(replies)))
	return nil
}

// HandleDispatch delivers a reply. Delivery errors are logged by the
// dispatcher and never fail the task.
func (h *Handlers) HandleDispatch(ctx context.Context, env chat.Envelope) error {
	switch env.Update().Channel {
	case chat.ChannelTelegram:
		h.telegram.Dispatch(ctx, env)
	case chat.ChannelWhatsApp:
		h.whatsapp.Dispatch(ctx, env)
	default:
		h.log.WarnContext(ctx, "dropping reply for unknown channel",
			logger.CorrelationID(env.CorrelationID().String()),
			logger.Channel(env.Update().Channel.String()))
	}
	return nil
}

// HandleImage archives an ID image.
func (h *Handlers) HandleImage(ctx context.Context, job bus.ImageJob) error {
	return h.images.Process(ctx, job)
}
