package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"flashcard-generator/internal/domain"
	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*BotNotifier)(nil)

// sender is the part of *tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotNotifier posts batch summaries to a single Telegram chat.
type BotNotifier struct {
	bot    sender
	chatID int64
	log    *zerolog.Logger
}

func NewBotNotifier(token string, chatID int64, logger *zerolog.Logger) (*BotNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram notifier: %w", domain.ErrInvalidArgument)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBotNotifier(bot, chatID, logger), nil
}

func newBotNotifier(bot sender, chatID int64, logger *zerolog.Logger) *BotNotifier {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &BotNotifier{bot: bot, chatID: chatID, log: logger}
}

func (n *BotNotifier) NotifyBatch(ctx context.Context, source string, summary model.BatchSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatSummary(source, summary))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	n.log.Debug().Int64("chat_id", n.chatID).Str("batch_id", summary.BatchID).Msg("batch summary sent")
	return nil
}

// FormatSummary renders the chat message for one finished batch.
func FormatSummary(source string, s model.BatchSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Flashcards: %s\n", source)
	b.WriteString(s.Message())
	if s.Skipped > 0 || s.Cached > 0 {
		fmt.Fprintf(&b, "\nskipped: %d, cached: %d", s.Skipped, s.Cached)
	}
	if s.Failed > 0 {
		fmt.Fprintf(&b, "\nfailed: %d", s.Failed)
	}
	fmt.Fprintf(&b, "\nbatch: %s", s.BatchID)
	return b.String()
}
