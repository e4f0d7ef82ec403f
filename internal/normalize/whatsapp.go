package normalize

import (
	"encoding/json"
	"errors"

	"github.com/dmitrymomot/chatbridge/internal/chat"
)

// CampaignImageBody is the body given to uncaptioned WhatsApp images.
const CampaignImageBody = "#campaignimage"

// WhatsAppPayload is the Cloud API webhook notification.
type WhatsAppPayload struct {
	Object string          `json:"object"`
	Entry  []WhatsAppEntry `json:"entry"`
}

type WhatsAppEntry struct {
	ID      string           `json:"id"`
	Changes []WhatsAppChange `json:"changes"`
}

type WhatsAppChange struct {
	Field string        `json:"field"`
	Value WhatsAppValue `json:"value"`
}

type WhatsAppValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         WhatsAppMetadata  `json:"metadata"`
	Messages         []WhatsAppMessage `json:"messages"`
}

// WhatsAppMetadata names the business number that received the message.
type WhatsAppMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WhatsAppMessage struct {
	From      string         `json:"from"`
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	Text      *WhatsAppText  `json:"text,omitempty"`
	Image     *WhatsAppMedia `json:"image,omitempty"`
}

type WhatsAppText struct {
	Body string `json:"body"`
}

type WhatsAppMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// DecodeWhatsApp parses a webhook body.
func DecodeWhatsApp(body []byte) (WhatsAppPayload, error) {
	var p WhatsAppPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return WhatsAppPayload{}, errors.Join(ErrMalformedPayload, err)
	}
	return p, nil
}

// FirstMessage returns entry[0].changes[0].value.messages[0].
func (p WhatsAppPayload) FirstMessage() (WhatsAppMessage, bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return WhatsAppMessage{}, false
	}
	msgs := p.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 {
		return WhatsAppMessage{}, false
	}
	return msgs[0], true
}

// WhatsApp normalizes the first message of a notification. An image uses
// its caption as the body, or CampaignImageBody without one.
func WhatsApp(p WhatsAppPayload) (Inbound, error) {
	msg, ok := p.FirstMessage()
	if !ok {
		return Inbound{}, ErrNoMessage
	}

	out := chat.Update{
		Sender:  msg.From,
		Channel: chat.ChannelWhatsApp,
		Type:    chat.MessageText,
	}
	if msg.Text != nil {
		out.Body = msg.Text.Body
	}
	if msg.Image != nil {
		out.Type = chat.MessageImage
		out.MediaHandle = msg.Image.ID
		out.Caption = msg.Image.Caption
		out.Body = msg.Image.Caption
		if out.Body == "" {
			out.Body = CampaignImageBody
		}
	}
	if err := validate(out); err != nil {
		return Inbound{}, err
	}
	return Inbound{Update: out, MessageID: msg.ID}, nil
}
