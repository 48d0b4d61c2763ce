// File: .\internal\infra\adapters\ai\gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"flashcard-generator/internal/domain"
	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/adapter"
	"flashcard-generator/internal/infra/metrics"
	"flashcard-generator/internal/infra/ratelimit"
)

var _ adapter.DocumentAI = (*GeminiAdapter)(nil)

const (
	filePollInterval = time.Second
	filePollAttempts = 30
)

type GeminiAdapter struct {
	client *genai.Client
	model  string
	maxOut int
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", domain.ErrMissingCredential)
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, model: defaultModel, maxOut: maxOut}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) UploadDocument(ctx context.Context, path, displayName string) (adapter.Document, error) {
	mt := model.MIMEType(path)
	if mt == "" {
		return adapter.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupported, path)
	}
	start := time.Now()
	f, err := g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mt,
		DisplayName: displayName,
	})
	if err == nil {
		f, err = g.waitActive(ctx, f)
	}
	metrics.ObserveCall(g.Name(), "upload", time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return adapter.Document{}, classify(err)
	}
	return adapter.Document{
		Name:        f.Name,
		URI:         f.URI,
		MIMEType:    mt,
		DisplayName: displayName,
	}, nil
}

// waitActive polls a freshly uploaded file until the service has finished processing it.
func (g *GeminiAdapter) waitActive(ctx context.Context, f *genai.File) (*genai.File, error) {
	for i := 0; f.State == genai.FileStateProcessing && i < filePollAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(filePollInterval):
		}
		next, err := g.client.Files.Get(ctx, f.Name, nil)
		if err != nil {
			return nil, err
		}
		f = next
	}
	switch f.State {
	case genai.FileStateFailed:
		return nil, fmt.Errorf("gemini: file %s failed processing", f.Name)
	case genai.FileStateProcessing:
		return nil, fmt.Errorf("gemini: file %s still processing", f.Name)
	}
	return f, nil
}

func (g *GeminiAdapter) Generate(ctx context.Context, doc adapter.Document, prompt string) (string, error) {
	if doc.URI == "" {
		return "", fmt.Errorf("%w: document has no uri", domain.ErrInvalidArgument)
	}
	return g.generate(ctx, "generate", []*genai.Part{
		{FileData: &genai.FileData{FileURI: doc.URI, MIMEType: doc.MIMEType}},
		{Text: prompt},
	})
}

func (g *GeminiAdapter) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, "generate_text", []*genai.Part{{Text: prompt}})
}

// --- internal ---

func (g *GeminiAdapter) generate(ctx context.Context, op string, parts []*genai.Part) (string, error) {
	var cfg *genai.GenerateContentConfig
	if g.maxOut > 0 {
		cfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(g.maxOut)}
	}
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: parts}}, cfg)
	metrics.ObserveCall(g.Name(), op, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return "", classify(err)
	}

	// Extract text
	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p != nil && p.Text != "" {
				sb.WriteString(p.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", domain.ErrEmptyResponse
	}
	return sb.String(), nil
}

// classify tags rate-limit failures with domain.ErrRateLimited and keeps the
// service message so a retry delay hint can still be read from it.
func classify(err error) error {
	if err == nil || errors.Is(err, domain.ErrRateLimited) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code != http.StatusTooManyRequests && apiErr.Status != "RESOURCE_EXHAUSTED" {
			return err
		}
		if d, ok := retryInfoDelay(apiErr.Details); ok {
			return fmt.Errorf("%w: %s retry_delay { seconds: %d }", domain.ErrRateLimited, err.Error(), int64(math.Ceil(d.Seconds())))
		}
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, err.Error())
	}
	if ratelimit.IsRateLimited(err) {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, err.Error())
	}
	return err
}

// retryInfoDelay reads the google.rpc.RetryInfo detail of an API error.
func retryInfoDelay(details []map[string]any) (time.Duration, bool) {
	for _, d := range details {
		v, ok := d["retryDelay"].(string)
		if !ok {
			continue
		}
		if dur, err := time.ParseDuration(v); err == nil && dur >= 0 {
			return dur, true
		}
	}
	return 0, false
}
