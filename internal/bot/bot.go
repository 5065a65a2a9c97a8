// Package bot delivers listing alerts to a Telegram chat.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxMessageLength is the Telegram limit for a single text message.
const MaxMessageLength = 4096

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Bot sends messages to a single Telegram chat.
type Bot struct {
	api    telegramAPI
	chatID int64
	log    *slog.Logger
}

// New creates a Bot with the given Telegram token and target chat.
func New(token string, chatID int64, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Bot{api: api, chatID: chatID, log: log}, nil
}

// Send sends a text message to the configured chat.
func (b *Bot) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message to chat %d: %w", b.chatID, err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Log *slog.Logger
}

// Send logs text at info level.
func (s LogSender) Send(_ context.Context, text string) error {
	s.Log.Info("dry run message", "text", text)
	return nil
}
