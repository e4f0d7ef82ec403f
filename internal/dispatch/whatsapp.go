package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrymomot/chatbridge/internal/chat"
	"github.com/dmitrymomot/chatbridge/pkg/webhook"
)

// WhatsAppConfig configures the Cloud API.
type WhatsAppConfig struct {
	APIBaseURL    string  `env:"WHATSAPP_API_BASE_URL" envDefault:"https://graph.facebook.com"`
	APIVersion    string  `env:"WHATSAPP_API_VERSION" envDefault:"v21.0"`
	PhoneNumberID string  `env:"WHATSAPP_PHONE_NUMBER_ID"`
	AccessToken   string  `env:"WHATSAPP_ACCESS_TOKEN"`
	VerifyToken   string  `env:"WHATSAPP_VERIFY_TOKEN"`
	AppSecret     string  `env:"WHATSAPP_APP_SECRET"`
	MaxRetries    int     `env:"WHATSAPP_MAX_RETRIES" envDefault:"3"`
	RateLimit     float64 `env:"WHATSAPP_RATE_LIMIT" envDefault:"20"`
}

// GraphURL joins path segments onto the versioned Graph API base.
func (c WhatsAppConfig) GraphURL(segments ...string) string {
	return strings.TrimRight(c.APIBaseURL, "/") + "/" + c.APIVersion + "/" + strings.Join(segments, "/")
}

type waMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             *waText  `json:"text,omitempty"`
	Image            *waImage `json:"image,omitempty"`
}

type waText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type waImage struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

// WhatsApp sends replies through the Cloud API messages endpoint.
type WhatsApp struct {
	cfg     WhatsAppConfig
	sender  *webhook.Sender
	breaker *webhook.CircuitBreaker
	opt     options
}

func NewWhatsApp(cfg WhatsAppConfig, sender *webhook.Sender, opts ...Option) *WhatsApp {
	if sender == nil {
		sender = webhook.NewSender()
	}
	return &WhatsApp{
		cfg:     cfg,
		sender:  sender,
		breaker: webhook.NewCircuitBreaker(5, 1, 30*time.Second),
		opt:     newOptions(opts),
	}
}

// Dispatch sends an image by media id when the update carries one, a text
// message otherwise.
func (w *WhatsApp) Dispatch(ctx context.Context, env chat.Envelope) {
	w.opt.logResult(ctx, env, w.send(ctx, env.Update()))
}

func (w *WhatsApp) send(ctx context.Context, u chat.Update) error {
	if err := w.opt.precheck(ctx, u); err != nil {
		return err
	}

	msg := waMessage{MessagingProduct: "whatsapp", RecipientType: "individual", To: u.Sender}
	if u.HasMedia() {
		msg.Type = "image"
		msg.Image = &waImage{ID: u.MediaHandle, Caption: u.Body}
	} else {
		msg.Type = "text"
		msg.Text = &waText{Body: u.Body}
	}

	_, err := w.sender.Send(ctx, w.cfg.GraphURL(w.cfg.PhoneNumberID, "messages"), msg,
		webhook.WithBearerToken(w.cfg.AccessToken),
		webhook.WithMaxRetries(w.opt.maxRetries),
		webhook.WithCircuitBreaker(w.breaker))
	return err
}
