package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs summaries instead of sending them.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &NoopNotifier{log: logger}
}

func (n *NoopNotifier) NotifyBatch(ctx context.Context, source string, summary model.BatchSummary) error {
	n.log.Info().Str("source", source).Str("result", summary.Ratio()).Msg("[noop-notify] batch finished")
	return nil
}
