package repository

import (
	"context"

	"flashcard-generator/internal/domain/model"
)

// JobRepository keeps a ledger of job outcomes per batch.
type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	// SaveBatch stores all outcomes of a batch atomically.
	SaveBatch(ctx context.Context, batchID string, jobs []*model.Job) error
	ListByBatch(ctx context.Context, batchID string) ([]*model.Job, error)
}
