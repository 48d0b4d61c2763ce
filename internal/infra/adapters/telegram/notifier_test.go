//go:build !integration

package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"flashcard-generator/internal/domain/model"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestBotNotifier(t *testing.T) {
	summary := model.BatchSummary{BatchID: "01HX", Total: 5, Succeeded: 3, Failed: 2, Skipped: 1}

	t.Run("should send the summary to the configured chat", func(t *testing.T) {
		fs := &fakeSender{}
		n := newBotNotifier(fs, 4242, nil)
		if err := n.NotifyBatch(context.Background(), "biology", summary); err != nil {
			t.Fatal(err)
		}
		if len(fs.sent) != 1 {
			t.Fatalf("expected 1 message, got %d", len(fs.sent))
		}
		msg, ok := fs.sent[0].(tgbotapi.MessageConfig)
		if !ok {
			t.Fatalf("unexpected chattable %T", fs.sent[0])
		}
		if msg.ChatID != 4242 {
			t.Errorf("expected chat 4242, got %d", msg.ChatID)
		}
		if !strings.Contains(msg.Text, "Successfully processed 3/5 files") {
			t.Errorf("unexpected text %q", msg.Text)
		}
	})

	t.Run("should wrap send errors", func(t *testing.T) {
		n := newBotNotifier(&fakeSender{err: errors.New("forbidden")}, 1, nil)
		if err := n.NotifyBatch(context.Background(), "x", summary); err == nil {
			t.Error("expected error")
		}
	})
}

func TestFormatSummary(t *testing.T) {
	got := FormatSummary("chem", model.BatchSummary{BatchID: "b", Total: 2, Succeeded: 2})
	want := "Flashcards: chem\nSuccessfully processed 2/2 files\nbatch: b"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
