// Package normalize turns Telegram and WhatsApp webhook payloads into
// chat updates.
package normalize

import (
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/chatbridge/internal/chat"
)

var (
	// ErrNoMessage means the payload carries nothing to act on, such as a
	// Telegram edited_message or a WhatsApp status callback.
	ErrNoMessage = errors.New("normalize: payload has no message")
	// ErrMalformedPayload wraps JSON decoding failures.
	ErrMalformedPayload = errors.New("normalize: malformed payload")
)

// Inbound is a normalized message together with the platform message id
// used to drop redelivered webhooks.
type Inbound struct {
	Update    chat.Update
	MessageID string
}

// Envelope wraps the update for the command queue with the tags of its
// channel.
func (in Inbound) Envelope() chat.Envelope {
	var tags map[string]string
	switch in.Update.Channel {
	case chat.ChannelTelegram:
		tags = map[string]string{chat.TagSource: chat.ChannelTelegram.String()}
	case chat.ChannelWhatsApp:
		tags = map[string]string{
			chat.TagChannel: chat.ChannelWhatsApp.String(),
			chat.TagStatus:  chat.StatusReceived,
		}
	}
	return chat.NewEnvelope(in.Update, uuid.New(), tags)
}

// DedupKey identifies the platform message across redeliveries.
func (in Inbound) DedupKey() string {
	if in.MessageID == "" {
		return ""
	}
	return in.Update.Channel.String() + ":" + in.MessageID
}

func validate(u chat.Update) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.Body == "" {
		return chat.ErrEmptyBody
	}
	return nil
}
