package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
)

type sentMsg struct {
	ChatID  int64
	Text    string
	NoPrevw bool
}

type mockAPI struct {
	mu   sync.Mutex
	sent []sentMsg
	err  error
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.err != nil {
		return tgbotapi.Message{}, m.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.mu.Lock()
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text, NoPrevw: msg.DisableWebPagePreview})
		m.mu.Unlock()
	}
	return tgbotapi.Message{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBotSend(t *testing.T) {
	api := &mockAPI{}
	b := &Bot{api: api, chatID: 777, log: discardLogger()}

	if err := b.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	want := []sentMsg{{ChatID: 777, Text: "hello", NoPrevw: true}}
	if diff := cmp.Diff(want, api.sent); diff != "" {
		t.Errorf("sent messages mismatch (-want +got):\n%s", diff)
	}
}

func TestBotSendError(t *testing.T) {
	api := &mockAPI{err: errors.New("Too Many Requests")}
	b := &Bot{api: api, chatID: 777, log: discardLogger()}

	if err := b.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestBotSendCancelled(t *testing.T) {
	api := &mockAPI{}
	b := &Bot{api: api, chatID: 777, log: discardLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Send(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if diff := cmp.Diff(0, len(api.sent)); diff != "" {
		t.Errorf("nothing should be sent (-want +got):\n%s", diff)
	}
}
