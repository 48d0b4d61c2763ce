package ai

import (
	"context"

	"flashcard-generator/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.DocumentAI = (*limitedAI)(nil)

// limitedAI caps the number of in-flight calls to the wrapped service,
// independent of how many workers share it.
type limitedAI struct {
	inner adapter.DocumentAI
	sem   chan struct{}
}

func NewLimitedAI(inner adapter.DocumentAI, maxConcurrent int) adapter.DocumentAI {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedAI) release() { <-l.sem }

func (l *limitedAI) Name() string { return l.inner.Name() }

func (l *limitedAI) UploadDocument(ctx context.Context, path, displayName string) (adapter.Document, error) {
	if err := l.acquire(ctx); err != nil {
		return adapter.Document{}, err
	}
	defer l.release()
	return l.inner.UploadDocument(ctx, path, displayName)
}

func (l *limitedAI) Generate(ctx context.Context, doc adapter.Document, prompt string) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.Generate(ctx, doc, prompt)
}

func (l *limitedAI) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.GenerateText(ctx, prompt)
}
