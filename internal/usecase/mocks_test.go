//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"flashcard-generator/internal/domain"
	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/adapter"
	"flashcard-generator/internal/domain/ports/repository"
	"flashcard-generator/internal/infra/worker"
	"flashcard-generator/internal/usecase"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- document service ----

type mockAI struct {
	mu        sync.Mutex
	uploads   int
	generates int
	texts     []string // prompts passed to GenerateText

	failFiles map[string]bool // display names that always fail
	evalText  string
	evalErr   error
}

func newMockAI() *mockAI { return &mockAI{failFiles: map[string]bool{}} }

func (m *mockAI) Name() string { return "mock" }

func (m *mockAI) UploadDocument(ctx context.Context, path, displayName string) (adapter.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	return adapter.Document{Name: "files/" + displayName, DisplayName: displayName}, nil
}

func (m *mockAI) Generate(ctx context.Context, doc adapter.Document, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generates++
	if m.failFiles[doc.DisplayName] {
		return "", errors.New("document could not be processed")
	}
	first := strings.SplitN(prompt, "\n", 2)[0]
	return "cards for " + doc.DisplayName + " [" + first + "]", nil
}

func (m *mockAI) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, prompt)
	if m.evalErr != nil {
		return "", m.evalErr
	}
	return m.evalText, nil
}

func (m *mockAI) calls() (uploads, generates, texts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads, m.generates, len(m.texts)
}

// ---- ledger / notifier / locker ----

type memJobRepo struct {
	mu      sync.Mutex
	batches map[string][]*model.Job
	err     error
}

func newMemJobRepo() *memJobRepo { return &memJobRepo{batches: map[string][]*model.Job{}} }

func (r *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error { return r.err }

func (r *memJobRepo) SaveBatch(ctx context.Context, batchID string, jobs []*model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches[batchID] = append([]*model.Job(nil), jobs...)
	return nil
}

func (r *memJobRepo) ListByBatch(ctx context.Context, batchID string) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs, ok := r.batches[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return jobs, nil
}

type recNotifier struct {
	mu      sync.Mutex
	sources []string
	sums    []model.BatchSummary
}

func (n *recNotifier) NotifyBatch(ctx context.Context, source string, s model.BatchSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sources = append(n.sources, source)
	n.sums = append(n.sums, s)
	return nil
}

type memLocker struct {
	mu       sync.Mutex
	held     map[string]string
	acquired []string
	released []string
}

func newMemLocker() *memLocker { return &memLocker{held: map[string]string{}} }

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLocked
	}
	l.held[key] = "tok-" + key
	l.acquired = append(l.acquired, key)
	return l.held[key], nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.released = append(l.released, key)
	}
	return nil
}

// ---- wiring ----

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newDispatcher(ai adapter.DocumentAI) *worker.Dispatcher {
	return worker.NewDispatcher(ai, worker.Options{
		MaxWorkers:   5,
		MaxAttempts:  3,
		SkipExisting: true,
	}, newTestLogger(), worker.WithSleep(noSleep))
}

func newExecutor(ai adapter.DocumentAI, opts ...usecase.ExecutorOption) *usecase.BatchExecutor {
	return usecase.NewBatchExecutor(newDispatcher(ai), newTestLogger(), opts...)
}

// writeInputs creates empty documents under dir (relative names may contain sub-directories).
func writeInputs(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("doc "+n), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}
