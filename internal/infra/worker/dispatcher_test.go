//go:build !integration

package worker_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/adapter"
	"flashcard-generator/internal/infra/logging"
	"flashcard-generator/internal/infra/worker"
)

// ---- fakes ----

type fakeAI struct {
	mu        sync.Mutex
	uploads   int
	generates int

	inFlight atomic.Int32
	peak     atomic.Int32
	hold     time.Duration

	// GenerateFunc decides the outcome of each generate call; nil means success.
	GenerateFunc func(call int, doc adapter.Document) (string, error)
}

var _ adapter.DocumentAI = (*fakeAI)(nil)

func (f *fakeAI) Name() string { return "fake" }

func (f *fakeAI) UploadDocument(ctx context.Context, path, displayName string) (adapter.Document, error) {
	f.mu.Lock()
	f.uploads++
	f.mu.Unlock()
	return adapter.Document{Name: "files/" + displayName, DisplayName: displayName}, nil
}

func (f *fakeAI) Generate(ctx context.Context, doc adapter.Document, prompt string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.hold > 0 {
		time.Sleep(f.hold)
	}

	f.mu.Lock()
	f.generates++
	call := f.generates
	f.mu.Unlock()
	if f.GenerateFunc != nil {
		return f.GenerateFunc(call, doc)
	}
	return "cards for " + doc.DisplayName, nil
}

func (f *fakeAI) GenerateText(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeAI) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads, f.generates
}

type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func (r *recordingSleep) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
	puts int
}

func (m *memCache) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Put(ctx context.Context, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = text
	m.puts++
	return nil
}

// ---- helpers ----

func defaultOpts() worker.Options {
	return worker.Options{
		MaxWorkers:       5,
		MaxAttempts:      3,
		RateLimitDelay:   10 * time.Second,
		RetryDelay:       2 * time.Second,
		PostSuccessPause: 500 * time.Millisecond,
		SkipExisting:     true,
		Model:            "test-model",
	}
}

func makeJobs(t *testing.T, n int) ([]*model.Job, string) {
	t.Helper()
	in := t.TempDir()
	out := t.TempDir()
	jobs := make([]*model.Job, 0, n)
	for i := 0; i < n; i++ {
		p := filepath.Join(in, fmt.Sprintf("doc%02d.pdf", i))
		if err := os.WriteFile(p, []byte(fmt.Sprintf("%%PDF-1.4 document %d", i)), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
		jobs = append(jobs, model.NewJob(i, p, "make flashcards", out))
	}
	return jobs, out
}

func equalDelays(a, b []time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ---- tests ----

func TestDispatch_ReturnsOneOutcomePerJob(t *testing.T) {
	ai := &fakeAI{hold: 5 * time.Millisecond}
	ai.GenerateFunc = func(call int, doc adapter.Document) (string, error) {
		if strings.HasPrefix(doc.DisplayName, "doc03") || strings.HasPrefix(doc.DisplayName, "doc07") {
			return "", errors.New("bad document")
		}
		return "cards for " + doc.DisplayName, nil
	}
	sl := &recordingSleep{}
	opts := defaultOpts()
	opts.MaxWorkers = 3
	d := worker.NewDispatcher(ai, opts, logging.Nop(), worker.WithSleep(sl.Sleep))

	jobs, _ := makeJobs(t, 12)
	rs := d.Dispatch(context.Background(), "batch-1", jobs)

	if rs.Len() != 12 {
		t.Fatalf("expected 12 outcomes, got %d", rs.Len())
	}
	for i, j := range rs.Jobs {
		if j.Index != i {
			t.Fatalf("expected input order to be restored, position %d has index %d", i, j.Index)
		}
		if j.Status == model.JobStatusPending {
			t.Errorf("job %s left pending", j.DisplayName)
		}
		if j.BatchID != "batch-1" {
			t.Errorf("expected batch id on job, got %q", j.BatchID)
		}
	}
	if s := rs.Summary(); s.Succeeded != 10 || s.Failed != 2 {
		t.Errorf("expected 10 ok / 2 failed, got %+v", s)
	}
	if peak := ai.peak.Load(); peak > 3 {
		t.Errorf("expected at most 3 concurrent calls, saw %d", peak)
	}
}

func TestDispatch_FirstTrySuccess(t *testing.T) {
	ai := &fakeAI{}
	sl := &recordingSleep{}
	d := worker.NewDispatcher(ai, defaultOpts(), logging.Nop(), worker.WithSleep(sl.Sleep))

	jobs, _ := makeJobs(t, 1)
	rs := d.Dispatch(context.Background(), "b", jobs)

	job := rs.Jobs[0]
	if !job.Succeeded() || job.Attempts != 1 || job.Retries != 0 {
		t.Fatalf("expected success on attempt 1, got %+v", job)
	}
	if up, gen := ai.counts(); up != 1 || gen != 1 {
		t.Errorf("expected exactly one upload and one generate, got %d/%d", up, gen)
	}
	if got := sl.Delays(); !equalDelays(got, []time.Duration{500 * time.Millisecond}) {
		t.Errorf("expected only the post-success pause, got %v", got)
	}
	b, err := os.ReadFile(job.OutputPath)
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if string(b) != "cards for doc00.pdf" {
		t.Errorf("unexpected output %q", b)
	}
}

func TestDispatch_RateLimitedExhaustsAttempts(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want time.Duration
	}{
		{"default delay", "Error 429, Message: Resource has been exhausted", 10 * time.Second},
		{"embedded delay", "429 quota exceeded retry_delay {\n seconds: 15\n}", 15 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ai := &fakeAI{GenerateFunc: func(int, adapter.Document) (string, error) {
				return "", errors.New(tc.msg)
			}}
			sl := &recordingSleep{}
			d := worker.NewDispatcher(ai, defaultOpts(), logging.Nop(), worker.WithSleep(sl.Sleep))

			jobs, _ := makeJobs(t, 1)
			rs := d.Dispatch(context.Background(), "b", jobs)
			job := rs.Jobs[0]

			if job.Status != model.JobStatusFailed {
				t.Fatalf("expected failed job, got %s", job.Status)
			}
			if job.Attempts != 3 {
				t.Errorf("expected exactly 3 attempts, got %d", job.Attempts)
			}
			if _, gen := ai.counts(); gen != 3 {
				t.Errorf("expected 3 generate calls, got %d", gen)
			}
			if got := sl.Delays(); !equalDelays(got, []time.Duration{tc.want, tc.want}) {
				t.Errorf("expected waits %v between attempts, got %v", tc.want, got)
			}
			if !strings.Contains(job.LastError, "429") {
				t.Errorf("expected last error to be recorded, got %q", job.LastError)
			}
			if _, err := os.Stat(job.OutputPath); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("expected no output file for failed job")
			}
		})
	}
}

func TestDispatch_OtherErrorRetriesWithFixedBackoff(t *testing.T) {
	ai := &fakeAI{GenerateFunc: func(call int, doc adapter.Document) (string, error) {
		if call == 1 {
			return "", errors.New("connection reset by peer")
		}
		return "recovered", nil
	}}
	sl := &recordingSleep{}
	d := worker.NewDispatcher(ai, defaultOpts(), logging.Nop(), worker.WithSleep(sl.Sleep))

	jobs, _ := makeJobs(t, 1)
	job := d.Dispatch(context.Background(), "b", jobs).Jobs[0]

	if !job.Succeeded() || job.Attempts != 2 || job.Retries != 1 {
		t.Fatalf("expected success on attempt 2, got %+v", job)
	}
	want := []time.Duration{2 * time.Second, 500 * time.Millisecond}
	if got := sl.Delays(); !equalDelays(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDispatch_FileNameDoesNotLookRateLimited(t *testing.T) {
	for _, name := range []string{"lecture_429.pdf", "quota_systems.pdf", "ratelimit notes.png"} {
		t.Run("should use the fixed backoff for "+name, func(t *testing.T) {
			ai := &fakeAI{GenerateFunc: func(int, adapter.Document) (string, error) {
				return "", errors.New("connection reset by peer")
			}}
			sl := &recordingSleep{}
			d := worker.NewDispatcher(ai, defaultOpts(), logging.Nop(), worker.WithSleep(sl.Sleep))

			dir := t.TempDir()
			src := filepath.Join(dir, name)
			if err := os.WriteFile(src, []byte("doc"), 0o644); err != nil {
				t.Fatal(err)
			}
			job := d.Dispatch(context.Background(), "b", []*model.Job{model.NewJob(0, src, "p", dir)}).Jobs[0]

			if job.Succeeded() || job.Attempts != 3 {
				t.Fatalf("expected 3 failed attempts, got %+v", job)
			}
			want := []time.Duration{2 * time.Second, 2 * time.Second}
			if got := sl.Delays(); !equalDelays(got, want) {
				t.Errorf("expected %v, got %v", want, got)
			}
			if !strings.Contains(job.LastError, "generate "+name+": connection reset by peer") {
				t.Errorf("expected step and file in last error, got %q", job.LastError)
			}
		})
	}
}

func TestDispatch_SkipsExistingOutputs(t *testing.T) {
	ai := &fakeAI{}
	sl := &recordingSleep{}
	d := worker.NewDispatcher(ai, defaultOpts(), logging.Nop(), worker.WithSleep(sl.Sleep))

	jobs, _ := makeJobs(t, 4)
	for _, j := range jobs {
		if err := os.WriteFile(j.OutputPath, []byte("old "+j.DisplayName), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	rs := d.Dispatch(context.Background(), "b", jobs)

	if up, gen := ai.counts(); up != 0 || gen != 0 {
		t.Errorf("expected no service calls, got %d uploads / %d generates", up, gen)
	}
	s := rs.Summary()
	if s.Succeeded != 4 || s.Skipped != 4 {
		t.Errorf("expected 4 skipped successes, got %+v", s)
	}
	if rs.Jobs[2].Result != "old doc02.pdf" {
		t.Errorf("expected existing content as result, got %q", rs.Jobs[2].Result)
	}
	if len(sl.Delays()) != 0 {
		t.Errorf("expected no waits, got %v", sl.Delays())
	}
}

func TestDispatch_SkipDisabledReprocesses(t *testing.T) {
	ai := &fakeAI{}
	opts := defaultOpts()
	opts.SkipExisting = false
	d := worker.NewDispatcher(ai, opts, logging.Nop(), worker.WithSleep((&recordingSleep{}).Sleep))

	jobs, _ := makeJobs(t, 2)
	for _, j := range jobs {
		_ = os.WriteFile(j.OutputPath, []byte("old"), 0o644)
	}
	d.Dispatch(context.Background(), "b", jobs)
	if _, gen := ai.counts(); gen != 2 {
		t.Errorf("expected both jobs reprocessed, got %d generates", gen)
	}
}

func TestDispatch_HeaderIsWrittenAndStrippedOnSkip(t *testing.T) {
	ai := &fakeAI{}
	d := worker.NewDispatcher(ai, defaultOpts(), logging.Nop(), worker.WithSleep((&recordingSleep{}).Sleep))

	jobs, _ := makeJobs(t, 1)
	jobs[0].Header = "# Flashcards generated with: Basic\n\n"
	d.Dispatch(context.Background(), "b", jobs)

	b, _ := os.ReadFile(jobs[0].OutputPath)
	if !strings.HasPrefix(string(b), "# Flashcards generated with: Basic\n\ncards for") {
		t.Fatalf("expected header before text, got %q", b)
	}

	again := model.NewJob(0, jobs[0].SourcePath, "make flashcards", filepath.Dir(jobs[0].OutputPath))
	again.Header = jobs[0].Header
	rs := d.Dispatch(context.Background(), "b2", []*model.Job{again})
	if got := rs.Jobs[0].Result; got != "cards for doc00.pdf" {
		t.Errorf("expected header stripped from skipped result, got %q", got)
	}
}

func TestDispatch_ResultCache(t *testing.T) {
	ai := &fakeAI{}
	cache := &memCache{data: map[string]string{}}
	opts := defaultOpts()
	opts.SkipExisting = false
	d := worker.NewDispatcher(ai, opts, logging.Nop(),
		worker.WithSleep((&recordingSleep{}).Sleep), worker.WithResultCache(cache))

	jobs, _ := makeJobs(t, 2)
	d.Dispatch(context.Background(), "b1", jobs)
	if cache.puts != 2 {
		t.Fatalf("expected 2 cache writes, got %d", cache.puts)
	}

	// same documents and prompt, fresh output dir
	out := t.TempDir()
	again := []*model.Job{
		model.NewJob(0, jobs[0].SourcePath, jobs[0].Prompt, out),
		model.NewJob(1, jobs[1].SourcePath, jobs[1].Prompt, out),
	}
	rs := d.Dispatch(context.Background(), "b2", again)
	if _, gen := ai.counts(); gen != 2 {
		t.Errorf("expected cache hits to avoid generate calls, got %d total", gen)
	}
	if s := rs.Summary(); s.Cached != 2 || s.Succeeded != 2 {
		t.Errorf("expected 2 cached successes, got %+v", s)
	}
	if _, err := os.Stat(again[0].OutputPath); err != nil {
		t.Errorf("expected cached result written to output: %v", err)
	}
}

type fakePages struct{}

func (fakePages) Pages(path string) (int, error) { return 7, nil }

func TestDispatch_RecordsPageCount(t *testing.T) {
	d := worker.NewDispatcher(&fakeAI{}, defaultOpts(), logging.Nop(),
		worker.WithSleep((&recordingSleep{}).Sleep), worker.WithPageCounter(fakePages{}))
	jobs, _ := makeJobs(t, 1)
	if got := d.Dispatch(context.Background(), "b", jobs).Jobs[0].Pages; got != 7 {
		t.Errorf("expected 7 pages, got %d", got)
	}
}

func TestDispatch_CancelledContextKeepsEveryOutcome(t *testing.T) {
	ai := &fakeAI{}
	d := worker.NewDispatcher(ai, defaultOpts(), logging.Nop(), worker.WithSleep((&recordingSleep{}).Sleep))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jobs, _ := makeJobs(t, 6)
	rs := d.Dispatch(ctx, "b", jobs)

	if rs.Len() != 6 {
		t.Fatalf("expected 6 outcomes, got %d", rs.Len())
	}
	for _, j := range rs.Jobs {
		if j.Status != model.JobStatusFailed || j.LastError == "" {
			t.Errorf("expected failed job with error, got %s %q", j.Status, j.LastError)
		}
	}
	if _, gen := ai.counts(); gen != 0 {
		t.Errorf("expected no service calls after cancellation, got %d", gen)
	}
}

func TestDispatch_Empty(t *testing.T) {
	d := worker.NewDispatcher(&fakeAI{}, defaultOpts(), nil)
	if rs := d.Dispatch(context.Background(), "b", nil); rs.Len() != 0 {
		t.Errorf("expected empty result set, got %d", rs.Len())
	}
}
