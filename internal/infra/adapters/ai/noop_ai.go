package ai

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/adapter"
)

var _ adapter.DocumentAI = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.DocumentAI for local/dev runs without a key.
// It logs calls instead of sending real requests and returns placeholder cards.
type NoopAIAdapter struct {
	delay time.Duration
	log   *zerolog.Logger
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &NoopAIAdapter{delay: 100 * time.Millisecond, log: logger}
}

func (a *NoopAIAdapter) Name() string { return "noop" }

func (a *NoopAIAdapter) UploadDocument(ctx context.Context, path, displayName string) (adapter.Document, error) {
	if err := a.wait(ctx); err != nil {
		return adapter.Document{}, err
	}
	if displayName == "" {
		displayName = filepath.Base(path)
	}
	a.log.Debug().Str("path", path).Msg("[noop-ai] upload")
	return adapter.Document{
		Name:        "noop/" + displayName,
		URI:         "noop://" + displayName,
		MIMEType:    model.MIMEType(path),
		DisplayName: displayName,
	}, nil
}

func (a *NoopAIAdapter) Generate(ctx context.Context, doc adapter.Document, prompt string) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", err
	}
	a.log.Debug().Str("doc", doc.DisplayName).Int("prompt_len", len(prompt)).Msg("[noop-ai] generate")
	stem := model.Stem(doc.DisplayName)
	return fmt.Sprintf("## %s\n* What document is this? == %s\n", stem, doc.DisplayName), nil
}

func (a *NoopAIAdapter) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", err
	}
	a.log.Debug().Int("prompt_len", len(prompt)).Msg("[noop-ai] generate text")
	return "This is a noop AI response.", nil
}

func (a *NoopAIAdapter) wait(ctx context.Context) error {
	select {
	case <-time.After(a.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
