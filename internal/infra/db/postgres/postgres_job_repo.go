package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"flashcard-generator/internal/domain"
	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{
		pool: pool,
		tm:   tm,
	}
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job == nil || job.BatchID == "" {
		return domain.ErrInvalidArgument
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	var completed *time.Time
	if !job.CompletedAt.IsZero() {
		completed = &job.CompletedAt
	}

	const q = `
INSERT INTO flashcard_jobs (id, batch_id, idx, source_path, display_name, prompt_name, output_path,
  status, attempts, retries, last_error, skipped, cached, pages, duration_ms, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  attempts = EXCLUDED.attempts,
  retries = EXCLUDED.retries,
  last_error = EXCLUDED.last_error,
  skipped = EXCLUDED.skipped,
  cached = EXCLUDED.cached,
  pages = EXCLUDED.pages,
  duration_ms = EXCLUDED.duration_ms,
  completed_at = EXCLUDED.completed_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.BatchID, job.Index, job.SourcePath, job.DisplayName, job.PromptName, job.OutputPath,
		string(job.Status), job.Attempts, job.Retries, job.LastError, job.Skipped, job.Cached, job.Pages,
		job.Duration.Milliseconds(), job.CreatedAt, completed)
	return err
}

func (r *jobRepo) SaveBatch(ctx context.Context, batchID string, jobs []*model.Job) error {
	if batchID == "" {
		return domain.ErrInvalidArgument
	}
	// Use the TransactionManager to handle Begin/Commit/Rollback automatically.
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, job := range jobs {
			job.BatchID = batchID
			if err := r.Save(ctx, tx, job); err != nil {
				return fmt.Errorf("save job %s: %w", job.DisplayName, err)
			}
		}
		return nil
	})
}

func (r *jobRepo) ListByBatch(ctx context.Context, batchID string) ([]*model.Job, error) {
	const q = `
SELECT id, batch_id, idx, source_path, display_name, prompt_name, output_path,
  status, attempts, retries, last_error, skipped, cached, pages, duration_ms, created_at, completed_at
FROM flashcard_jobs
WHERE batch_id = $1
ORDER BY prompt_name, idx;`

	rows, err := queryRows(ctx, r.pool, nil, q, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		var (
			j          model.Job
			status     string
			durationMs int64
			completed  *time.Time
		)
		if err := rows.Scan(
			&j.ID, &j.BatchID, &j.Index, &j.SourcePath, &j.DisplayName, &j.PromptName, &j.OutputPath,
			&status, &j.Attempts, &j.Retries, &j.LastError, &j.Skipped, &j.Cached, &j.Pages,
			&durationMs, &j.CreatedAt, &completed,
		); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		j.Status = model.JobStatus(status)
		j.Duration = time.Duration(durationMs) * time.Millisecond
		if completed != nil {
			j.CompletedAt = *completed
		}
		out = append(out, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}
