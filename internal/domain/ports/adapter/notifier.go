package adapter

import (
	"context"

	"flashcard-generator/internal/domain/model"
)

// Notifier reports a finished batch to an operator channel.
type Notifier interface {
	NotifyBatch(ctx context.Context, source string, summary model.BatchSummary) error
}
