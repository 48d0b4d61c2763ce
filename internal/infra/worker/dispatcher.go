package worker

import (
	"context"
	"errors"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/adapter"
	"flashcard-generator/internal/domain/ports/repository"
	"flashcard-generator/internal/infra/logging"
	"flashcard-generator/internal/infra/metrics"
	"flashcard-generator/internal/infra/ratelimit"
)

// Options bounds the dispatcher's concurrency and retry behaviour.
type Options struct {
	MaxWorkers       int
	MaxAttempts      int
	RateLimitDelay   time.Duration // wait after a rate-limit signal without a hint
	RetryDelay       time.Duration // wait after any other failure
	PostSuccessPause time.Duration
	CallTimeout      time.Duration // per attempt; 0 means none
	SkipExisting     bool
	Model            string // part of the result cache key
}

func (o *Options) normalize() {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 5
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RateLimitDelay <= 0 {
		o.RateLimitDelay = 10 * time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.PostSuccessPause < 0 {
		o.PostSuccessPause = 0
	}
}

// PageCounter reports how many pages a document has.
type PageCounter interface {
	Pages(path string) (int, error)
}

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

type DispatcherOption func(*Dispatcher)

func WithResultCache(c repository.ResultCache) DispatcherOption {
	return func(d *Dispatcher) { d.cache = c }
}

func WithPageCounter(pc PageCounter) DispatcherOption {
	return func(d *Dispatcher) { d.pages = pc }
}

func WithSleep(fn SleepFunc) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = fn }
}

// Dispatcher runs flashcard jobs against the document service on a bounded
// worker pool, retrying failed attempts.
type Dispatcher struct {
	ai    adapter.DocumentAI
	cache repository.ResultCache
	pages PageCounter
	opts  Options
	sleep SleepFunc
	log   *zerolog.Logger
}

func NewDispatcher(ai adapter.DocumentAI, opts Options, logger *zerolog.Logger, options ...DispatcherOption) *Dispatcher {
	opts.normalize()
	if logger == nil {
		logger = logging.Nop()
	}
	d := &Dispatcher{
		ai:    ai,
		opts:  opts,
		sleep: sleepCtx,
		log:   logger,
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// Dispatch processes every job and returns all of them, in input order, once
// each has reached success or failed terminally. At most
// min(MaxWorkers, len(jobs)) jobs run at the same time.
func (d *Dispatcher) Dispatch(ctx context.Context, batchID string, jobs []*model.Job) *model.ResultSet {
	ctx = logging.WithBatchID(ctx, batchID)
	log := logging.With(ctx, d.log)
	if len(jobs) == 0 {
		return model.NewResultSet(batchID, jobs)
	}

	pool := NewPool(min(d.opts.MaxWorkers, len(jobs)), d.log)
	log.Info().Int("jobs", len(jobs)).Int("workers", pool.Size()).Msg("dispatching batch")
	metrics.IncBatch()

	pool.Start(ctx)

	for _, job := range jobs {
		job.BatchID = batchID
		if err := pool.Submit(ctx, func(ctx context.Context) error {
			d.Process(ctx, job)
			return nil
		}); err != nil {
			// not accepted by a worker: record the outcome here so it is never lost
			job.MarkFailed(fmt.Errorf("not dispatched: %w", err))
			metrics.IncJob(string(model.JobStatusFailed), "service")
		}
	}
	pool.Stop()

	rs := model.NewResultSet(batchID, jobs)
	s := rs.Summary()
	log.Info().Int("succeeded", s.Succeeded).Int("failed", s.Failed).Int("skipped", s.Skipped).
		Msg("batch dispatched")
	return rs
}

// Process runs a single job to a terminal state.
func (d *Dispatcher) Process(ctx context.Context, job *model.Job) {
	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, d.log).With().Str("file", job.DisplayName).Logger()
	metrics.JobStarted()
	defer metrics.JobFinished()
	start := time.Now()
	defer func() { job.Duration = time.Since(start) }()

	if d.opts.SkipExisting || job.SkipExisting {
		if content, ok := readExisting(job); ok {
			job.Skipped = true
			job.MarkSuccess(content)
			metrics.IncJob(string(job.Status), "skipped")
			log.Info().Str("output", job.OutputPath).Msg("output exists, skipped")
			return
		}
	}

	if d.pages != nil {
		if n, err := d.pages.Pages(job.SourcePath); err != nil {
			log.Debug().Err(err).Msg("page count unavailable")
		} else {
			job.Pages = n
		}
	}

	cacheKey := ""
	if d.cache != nil {
		key, err := d.cacheKey(job)
		if err != nil {
			log.Warn().Err(err).Msg("result cache key")
		} else {
			cacheKey = key
			if text, ok := d.fromCache(ctx, log, job, key); ok {
				job.Cached = true
				job.MarkSuccess(text)
				metrics.IncJob(string(job.Status), "cache")
				log.Info().Str("output", job.OutputPath).Msg("served from result cache")
				return
			}
		}
	}

	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}
		job.Attempts = attempt
		job.Retries = attempt - 1
		log.Info().Int("attempt", attempt).Int("max_attempts", d.opts.MaxAttempts).Msg("processing")

		text, err := d.attempt(ctx, job)
		if err == nil {
			job.MarkSuccess(text)
			metrics.IncJob(string(job.Status), "service")
			metrics.ObserveAttempts(attempt)
			log.Info().Str("output", job.OutputPath).Int("pages", job.Pages).Msg("flashcards saved")
			if cacheKey != "" {
				if err := d.cache.Put(ctx, cacheKey, text); err != nil {
					log.Warn().Err(err).Msg("result cache put")
				}
			}
			// small pause to stay under the service's rate limits
			_ = d.sleep(ctx, d.opts.PostSuccessPause)
			return
		}

		lastErr = err
		job.LastError = err.Error()
		log.Error().Err(err).Int("attempt", attempt).Msg("attempt failed")
		if attempt == d.opts.MaxAttempts {
			break
		}

		// classify the service error only; file names may contain marker text
		cause := causeOf(err)
		delay, reason := d.opts.RetryDelay, "error"
		if ratelimit.IsRateLimited(cause) {
			metrics.IncRateLimited(d.ai.Name())
			delay, reason = ratelimit.Delay(cause, d.opts.RateLimitDelay), "rate_limit"
			log.Warn().Dur("wait", delay).Msg("rate limited, waiting before retry")
		} else {
			log.Warn().Dur("wait", delay).Msg("retrying")
		}
		metrics.AddRetryWait(reason, delay.Seconds())
		if err := d.sleep(ctx, delay); err != nil {
			break
		}
	}

	job.MarkFailed(lastErr)
	metrics.IncJob(string(job.Status), "service")
	metrics.ObserveAttempts(job.Attempts)
	log.Error().Int("attempts", job.Attempts).Str("error", job.LastError).Msg("job failed")
}

func (d *Dispatcher) attempt(ctx context.Context, job *model.Job) (string, error) {
	if d.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.CallTimeout)
		defer cancel()
	}
	doc, err := d.ai.UploadDocument(ctx, job.SourcePath, job.DisplayName)
	if err != nil {
		return "", &stepError{op: "upload", target: job.DisplayName, err: err}
	}
	text, err := d.ai.Generate(ctx, doc, job.Prompt)
	if err != nil {
		return "", &stepError{op: "generate", target: job.DisplayName, err: err}
	}
	if err := writeOutput(job.OutputPath, job.Header, text); err != nil {
		return "", &stepError{op: "write", target: job.OutputPath, err: err}
	}
	return text, nil
}

// stepError names the failed step and its target around the error returned
// by the document service or the file system.
type stepError struct {
	op     string
	target string
	err    error
}

func (e *stepError) Error() string { return e.op + " " + e.target + ": " + e.err.Error() }

func (e *stepError) Unwrap() error { return e.err }

func causeOf(err error) error {
	var se *stepError
	if errors.As(err, &se) {
		return se.err
	}
	return err
}

func (d *Dispatcher) fromCache(ctx context.Context, log zerolog.Logger, job *model.Job, key string) (string, bool) {
	text, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("result cache get")
		return "", false
	}
	if !ok {
		return "", false
	}
	if err := writeOutput(job.OutputPath, job.Header, text); err != nil {
		log.Warn().Err(err).Msg("write cached result")
		return "", false
	}
	return text, true
}

// cacheKey hashes the document bytes, the prompt and the provider/model.
func (d *Dispatcher) cacheKey(job *model.Job) (string, error) {
	f, err := os.Open(job.SourcePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	doc := hex.EncodeToString(h.Sum(nil))
	p := sha256.Sum256([]byte(job.Prompt))
	return fmt.Sprintf("flashcards:%s:%s:%s:%s", d.ai.Name(), d.opts.Model, doc, hex.EncodeToString(p[:])), nil
}

func readExisting(job *model.Job) (string, bool) {
	b, err := os.ReadFile(job.OutputPath)
	if err != nil {
		return "", false
	}
	return strings.TrimPrefix(string(b), job.Header), true
}

func writeOutput(path, header, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(header+text), 0o644)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
