package normalize

import (
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrymomot/chatbridge/internal/chat"
)

// DecodeTelegram parses a webhook body into a Bot API update.
func DecodeTelegram(body []byte) (tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return tgbotapi.Update{}, errors.Join(ErrMalformedPayload, err)
	}
	return u, nil
}

// Telegram normalizes a Bot API update. Text wins over photos; a photo
// message uses its widest size and its caption as the body.
func Telegram(u tgbotapi.Update) (Inbound, error) {
	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return Inbound{}, ErrNoMessage
	}

	out := chat.Update{
		Sender:  strconv.FormatInt(msg.Chat.ID, 10),
		Body:    msg.Text,
		Channel: chat.ChannelTelegram,
		Type:    chat.MessageText,
	}
	if strings.TrimSpace(msg.Text) == "" && len(msg.Photo) > 0 {
		widest := slices.MaxFunc(msg.Photo, func(a, b tgbotapi.PhotoSize) int { return a.Width - b.Width })
		out.Type = chat.MessageImage
		out.MediaHandle = widest.FileID
		out.Body = msg.Caption
		out.Caption = msg.Caption
	}
	if err := validate(out); err != nil {
		return Inbound{}, err
	}
	return Inbound{Update: out, MessageID: strconv.Itoa(u.UpdateID)}, nil
}
