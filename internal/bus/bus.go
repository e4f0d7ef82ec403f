// Package bus names the durable queues that connect the webhook handlers,
// the command pipeline, the outbound dispatchers and the image processor,
// and publishes onto them.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/chatbridge/core/queue"
	"github.com/dmitrymomot/chatbridge/internal/chat"
)

// Queue names.
const (
	CommandQueue          = "command_queue"
	TelegramOutboundQueue = "telegram_outbound_queue"
	WhatsAppOutboundQueue = "whatsapp_outbound_queue"
	ImageProcessingQueue  = "image_processing_queue"
)

// Task names, used to route payloads to handlers.
const (
	TaskInbound  = "chat.inbound"
	TaskDispatch = "chat.dispatch"
	TaskImage    = "media.image"
)

// Queues lists every queue the service consumes.
var Queues = []string{CommandQueue, TelegramOutboundQueue, WhatsAppOutboundQueue, ImageProcessingQueue}

// ImageJob asks the image processor to fetch and archive an ID image.
type ImageJob struct {
	UserIDImageID int64        `json:"user_id_image_id"`
	UserID        string       `json:"user_id"`
	MediaHandle   string       `json:"media_handle"`
	ImageType     string       `json:"image_type"`
	Platform      chat.Channel `json:"platform"`
	QueuedAt      time.Time    `json:"queued_at"`
}

// OutboundQueue returns the dispatch queue for a channel.
func OutboundQueue(c chat.Channel) (string, error) {
	switch c {
	case chat.ChannelTelegram:
		return TelegramOutboundQueue, nil
	case chat.ChannelWhatsApp:
		return WhatsAppOutboundQueue, nil
	default:
		return "", fmt.Errorf("%w: %s", chat.ErrUnknownChannel, c)
	}
}

// Enqueuer is the part of queue.Enqueuer the publisher needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
}

// Publisher writes envelopes and jobs onto the named queues.
type Publisher struct {
	enq Enqueuer
}

func NewPublisher(enq Enqueuer) *Publisher {
	return &Publisher{enq: enq}
}

// PublishInbound queues a normalized inbound message for the command worker.
func (p *Publisher) PublishInbound(ctx context.Context, env chat.Envelope) error {
	return p.enq.Enqueue(ctx, env,
		queue.WithQueue(CommandQueue),
		queue.WithTaskName(TaskInbound))
}

// PublishDispatch queues a reply on the outbound queue of its channel.
func (p *Publisher) PublishDispatch(ctx context.Context, env chat.Envelope) error {
	q, err := OutboundQueue(env.Update().Channel)
	if err != nil {
		return err
	}
	return p.enq.Enqueue(ctx, env,
		queue.WithQueue(q),
		queue.WithTaskName(TaskDispatch))
}

// PublishImageJob queues an image for download and archival.
func (p *Publisher) PublishImageJob(ctx context.Context, job ImageJob) error {
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now().UTC()
	}
	return p.enq.Enqueue(ctx, job,
		queue.WithQueue(ImageProcessingQueue),
		queue.WithTaskName(TaskImage))
}
