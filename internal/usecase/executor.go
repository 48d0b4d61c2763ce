package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/adapter"
	"flashcard-generator/internal/domain/ports/repository"
	"flashcard-generator/internal/infra/logging"
)

// JobDispatcher runs a list of jobs to completion and returns every outcome.
type JobDispatcher interface {
	Dispatch(ctx context.Context, batchID string, jobs []*model.Job) *model.ResultSet
}

const recordTimeout = 10 * time.Second

// BatchExecutor provides an execution wrapper around the dispatcher: it assigns
// the batch id, holds the output lock while jobs run, then records the ledger
// and sends the summary. Ledger and notifier failures never fail a batch.
type BatchExecutor struct {
	dispatcher JobDispatcher
	jobs       repository.JobRepository
	notifier   adapter.Notifier
	locker     repository.Locker
	lockTTL    time.Duration
	log        *zerolog.Logger
	newID      func() string
}

type ExecutorOption func(*BatchExecutor)

func WithJobRepository(r repository.JobRepository) ExecutorOption {
	return func(e *BatchExecutor) { e.jobs = r }
}

func WithNotifier(n adapter.Notifier) ExecutorOption {
	return func(e *BatchExecutor) { e.notifier = n }
}

func WithLocker(l repository.Locker, ttl time.Duration) ExecutorOption {
	return func(e *BatchExecutor) {
		e.locker = l
		e.lockTTL = ttl
	}
}

func WithBatchIDs(fn func() string) ExecutorOption {
	return func(e *BatchExecutor) { e.newID = fn }
}

func NewBatchExecutor(d JobDispatcher, logger *zerolog.Logger, opts ...ExecutorOption) *BatchExecutor {
	if logger == nil {
		logger = logging.Nop()
	}
	e := &BatchExecutor{
		dispatcher: d,
		lockTTL:    time.Hour,
		log:        logger,
		newID:      func() string { return ulid.Make().String() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute dispatches jobs as one batch. lockKey names the shared output
// location; an empty key skips locking.
func (e *BatchExecutor) Execute(ctx context.Context, source, lockKey string, jobs []*model.Job) (*model.ResultSet, error) {
	batchID := e.newID()
	ctx = logging.WithBatchID(ctx, batchID)
	log := logging.With(ctx, e.log)

	if e.locker != nil && lockKey != "" {
		token, err := e.locker.TryLock(ctx, lockKey, e.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", lockKey, err)
		}
		defer func() {
			uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
			defer cancel()
			if err := e.locker.Unlock(uctx, lockKey, token); err != nil {
				log.Warn().Err(err).Str("key", lockKey).Msg("unlock")
			}
		}()
	}

	done := logging.TraceDuration(log, "batch "+source)
	rs := e.dispatcher.Dispatch(ctx, batchID, jobs)
	done()

	e.record(ctx, source, rs)
	return rs, nil
}

// record persists outcomes even if ctx was cancelled mid-batch.
func (e *BatchExecutor) record(ctx context.Context, source string, rs *model.ResultSet) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	log := logging.With(ctx, e.log)
	summary := rs.Summary()

	if e.jobs != nil {
		if err := e.jobs.SaveBatch(ctx, rs.BatchID, rs.Jobs); err != nil {
			log.Error().Err(err).Msg("save job ledger")
		}
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyBatch(ctx, source, summary); err != nil {
			log.Warn().Err(err).Msg("notify batch")
		}
	}
	log.Info().Str("source", source).Str("result", summary.Ratio()).Msg(summary.Message())
}

func batchLockKey(outputDir string) string {
	return "flashcards:lock:" + outputDir
}
