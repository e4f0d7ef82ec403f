// Package chat defines the canonical message types shared by the inbound
// normalizers, the command pipeline and the outbound dispatchers.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptySender    = errors.New("chat: empty sender")
	ErrEmptyBody      = errors.New("chat: empty body")
	ErrMissingMedia   = errors.New("chat: image message without media handle")
	ErrInvalidValue   = errors.New("chat: invalid enum value")
	ErrUnknownChannel = errors.New("chat: unknown channel")
)

// Channel is the external platform a message came from or goes to.
type Channel int

const (
	ChannelNone Channel = iota
	ChannelWhatsApp
	ChannelTelegram
)

var channelNames = map[Channel]string{
	ChannelNone:     "none",
	ChannelWhatsApp: "whatsapp",
	ChannelTelegram: "telegram",
}

func (c Channel) String() string {
	if s, ok := channelNames[c]; ok {
		return s
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// ParseChannel accepts the lower-case names produced by String.
func ParseChannel(s string) (Channel, error) {
	for c, name := range channelNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return ChannelNone, fmt.Errorf("%w: channel %q", ErrInvalidValue, s)
}

func (c Channel) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Channel) UnmarshalText(b []byte) error {
	v, err := ParseChannel(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MessageType tells text replies from media replies.
type MessageType int

const (
	MessageText MessageType = iota
	MessageImage
	MessageDocument
)

var messageTypeNames = map[MessageType]string{
	MessageText:     "text",
	MessageImage:    "image",
	MessageDocument: "document",
}

func (t MessageType) String() string {
	if s, ok := messageTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", int(t))
}

func (t MessageType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *MessageType) UnmarshalText(b []byte) error {
	for v, name := range messageTypeNames {
		if strings.EqualFold(string(b), name) {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("%w: message type %q", ErrInvalidValue, b)
}

// Update is one inbound or outbound chat message.
type Update struct {
	Sender      string      `json:"sender"`
	Body        string      `json:"body"`
	Channel     Channel     `json:"channel"`
	Type        MessageType `json:"type"`
	MediaHandle string      `json:"media_handle,omitempty"`
	Caption     string      `json:"caption,omitempty"`
}

// Validate checks that the update is addressable and self-consistent.
func (u Update) Validate() error {
	if strings.TrimSpace(u.Sender) == "" {
		return ErrEmptySender
	}
	if u.Type == MessageImage && strings.TrimSpace(u.MediaHandle) == "" {
		return ErrMissingMedia
	}
	return nil
}

// HasMedia reports whether a dispatcher should send the media handle.
func (u Update) HasMedia() bool {
	return u.Type == MessageImage && strings.TrimSpace(u.MediaHandle) != ""
}

// Tag keys used on envelopes.
const (
	TagSource       = "source"
	TagChannel      = "channel"
	TagStatus       = "status"
	TagCommand      = "command"
	TagException    = "exception"
	TagType         = "type"
	TagGreetingType = "greeting_type"
)

// Tag status values.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusNoop     = "noop"
	StatusReceived = "received"
)

// Envelope wraps an Update with tracing metadata. It is immutable: tags are
// copied on the way in and out.
type Envelope struct {
	update        Update
	correlationID uuid.UUID
	tags          map[string]string
	businessID    *int64
}

// NewEnvelope builds an envelope. A zero correlation id gets a fresh one.
func NewEnvelope(update Update, correlationID uuid.UUID, tags map[string]string) Envelope {
	if correlationID == uuid.Nil {
		correlationID = uuid.New()
	}
	return Envelope{
		update:        update,
		correlationID: correlationID,
		tags:          maps.Clone(tags),
	}
}

func (e Envelope) Update() Update           { return e.update }
func (e Envelope) CorrelationID() uuid.UUID { return e.correlationID }

// Tags returns a copy of the tag map.
func (e Envelope) Tags() map[string]string {
	out := make(map[string]string, len(e.tags))
	maps.Copy(out, e.tags)
	return out
}

// Tag returns a single tag value.
func (e Envelope) Tag(key string) (string, bool) {
	v, ok := e.tags[key]
	return v, ok
}

// BusinessID returns the tenant the envelope belongs to, if known.
func (e Envelope) BusinessID() (int64, bool) {
	if e.businessID == nil {
		return 0, false
	}
	return *e.businessID, true
}

// WithTag returns a copy with key set to value.
func (e Envelope) WithTag(key, value string) Envelope {
	tags := e.Tags()
	tags[key] = value
	e.tags = tags
	return e
}

// WithBusinessID returns a copy bound to a business.
func (e Envelope) WithBusinessID(id int64) Envelope {
	e.businessID = &id
	return e
}

type envelopeJSON struct {
	Update        Update            `json:"chat_update"`
	CorrelationID uuid.UUID         `json:"correlation_id"`
	Tags          map[string]string `json:"tags,omitempty"`
	BusinessID    *int64            `json:"business_id,omitempty"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeJSON{
		Update:        e.update,
		CorrelationID: e.correlationID,
		Tags:          e.tags,
		BusinessID:    e.businessID,
	})
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw envelopeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Envelope{
		update:        raw.Update,
		correlationID: raw.CorrelationID,
		tags:          raw.Tags,
		businessID:    raw.BusinessID,
	}
	return nil
}
