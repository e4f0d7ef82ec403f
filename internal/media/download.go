package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrymomot/chatbridge/internal/dispatch"
	"github.com/dmitrymomot/chatbridge/pkg/webhook"
)

var ErrNoMediaURL = errors.New("media: platform returned no download url")

// TelegramFiles is the part of tgbotapi.BotAPI used to resolve file ids.
type TelegramFiles interface {
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// Telegram downloads files by file id.
type Telegram struct {
	files        TelegramFiles
	token        string
	fileEndpoint string
	http         *webhook.Sender
}

func NewTelegram(cfg dispatch.TelegramConfig, files TelegramFiles, http *webhook.Sender) *Telegram {
	endpoint := cfg.FileEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.FileEndpoint
	}
	return &Telegram{files: files, token: cfg.Token, fileEndpoint: endpoint, http: http}
}

func (t *Telegram) Download(ctx context.Context, fileID string) ([]byte, error) {
	f, err := t.files.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("media: telegram getFile: %w", err)
	}
	if f.FilePath == "" {
		return nil, ErrNoMediaURL
	}
	resp, err := t.http.Get(ctx, fmt.Sprintf(t.fileEndpoint, t.token, f.FilePath))
	if err != nil {
		return nil, fmt.Errorf("media: telegram file: %w", err)
	}
	return resp.Body, nil
}

// WhatsApp downloads media through the Graph API: the media id resolves to
// a short-lived URL that needs the same bearer token.
type WhatsApp struct {
	cfg  dispatch.WhatsAppConfig
	http *webhook.Sender
}

func NewWhatsApp(cfg dispatch.WhatsAppConfig, http *webhook.Sender) *WhatsApp {
	return &WhatsApp{cfg: cfg, http: http}
}

type waMedia struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

func (w *WhatsApp) Download(ctx context.Context, mediaID string) ([]byte, error) {
	auth := webhook.WithBearerToken(w.cfg.AccessToken)
	resp, err := w.http.Get(ctx, w.cfg.GraphURL(mediaID), auth)
	if err != nil {
		return nil, fmt.Errorf("media: whatsapp media info: %w", err)
	}
	var info waMedia
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, fmt.Errorf("media: whatsapp media info: %w", err)
	}
	if info.URL == "" {
		return nil, ErrNoMediaURL
	}
	file, err := w.http.Get(ctx, info.URL, auth)
	if err != nil {
		return nil, fmt.Errorf("media: whatsapp media file: %w", err)
	}
	return file.Body, nil
}
