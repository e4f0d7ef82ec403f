package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrymomot/chatbridge/internal/chat"
)

// TelegramConfig configures the Bot API client.
type TelegramConfig struct {
	Token         string `env:"TELEGRAM_BOT_TOKEN"`
	APIEndpoint   string `env:"TELEGRAM_API_ENDPOINT" envDefault:"https://api.telegram.org/bot%s/%s"`
	FileEndpoint  string `env:"TELEGRAM_FILE_ENDPOINT" envDefault:"https://api.telegram.org/file/bot%s/%s"`
	WebhookSecret string `env:"TELEGRAM_WEBHOOK_SECRET"`
	MaxRetries    int    `env:"TELEGRAM_MAX_RETRIES" envDefault:"3"`
}

// NewTelegramBot builds a Bot API client without the getMe round trip that
// tgbotapi.NewBotAPI performs, so start-up does not depend on Telegram.
func NewTelegramBot(cfg TelegramConfig, client *http.Client) *tgbotapi.BotAPI {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	bot := &tgbotapi.BotAPI{Token: cfg.Token, Client: client, Buffer: 100}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot.SetAPIEndpoint(endpoint)
	return bot
}

// TelegramAPI is the part of tgbotapi.BotAPI used to send replies.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends replies through the Bot API.
type Telegram struct {
	api TelegramAPI
	opt options
}

func NewTelegram(api TelegramAPI, opts ...Option) *Telegram {
	return &Telegram{api: api, opt: newOptions(opts)}
}

// Dispatch sends a photo by file id when the update carries one, a text
// message otherwise.
func (t *Telegram) Dispatch(ctx context.Context, env chat.Envelope) {
	t.opt.logResult(ctx, env, t.send(ctx, env.Update()))
}

func (t *Telegram) send(ctx context.Context, u chat.Update) error {
	chatID, err := strconv.ParseInt(u.Sender, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidChatID, u.Sender)
	}
	if err := t.opt.precheck(ctx, u); err != nil {
		return err
	}

	var msg tgbotapi.Chattable
	if u.HasMedia() {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(u.MediaHandle))
		photo.Caption = u.Body
		msg = photo
	} else {
		msg = tgbotapi.NewMessage(chatID, u.Body)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(t.opt.newBackOff(), uint64(t.opt.maxRetries)), ctx)
	return backoff.Retry(func() error {
		_, err := t.api.Send(msg)
		return classifyTelegram(err)
	}, b)
}

// classifyTelegram marks client errors other than flood control as
// permanent.
func classifyTelegram(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return err
		}
		return backoff.Permanent(err)
	}
	return err
}
