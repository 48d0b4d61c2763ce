package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"flashcard-generator/internal/domain"
	"flashcard-generator/internal/domain/model"
	"flashcard-generator/internal/domain/ports/adapter"
	"flashcard-generator/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.DocumentAI = (*OpenAIAdapter)(nil)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultMetisBase   = "https://api.metisai.ir/openai/v1"
)

// OpenAIAdapter implements adapter.DocumentAI against the OpenAI Files and
// Chat Completions APIs, or any gateway that is compatible with them.
type OpenAIAdapter struct {
	name   string
	client openai.Client
	model  string
	maxOut int
}

func NewOpenAIAdapter(apiKey, model string, maxOut int, opts ...option.RequestOption) (*OpenAIAdapter, error) {
	return newOpenAICompatible("openai", apiKey, "", model, maxOut, opts...)
}

// NewMetisAdapter targets Metis's OpenAI-compatible gateway.
// Authorization: Bearer <METIS_API_KEY>
func NewMetisAdapter(apiKey, model, base string, maxOut int, opts ...option.RequestOption) (*OpenAIAdapter, error) {
	if base == "" {
		base = defaultMetisBase
	}
	return newOpenAICompatible("metis", apiKey, base, model, maxOut, opts...)
}

func newOpenAICompatible(name, apiKey, base, model string, maxOut int, extra ...option.RequestOption) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrMissingCredential)
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// the dispatcher owns retries and backoff
		option.WithMaxRetries(0),
	}
	if base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	opts = append(opts, extra...)
	return &OpenAIAdapter{
		name:   name,
		client: openai.NewClient(opts...),
		model:  model,
		maxOut: maxOut,
	}, nil
}

func (o *OpenAIAdapter) Name() string { return o.name }

func (o *OpenAIAdapter) UploadDocument(ctx context.Context, path, displayName string) (adapter.Document, error) {
	mt := model.MIMEType(path)
	if mt == "" {
		return adapter.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupported, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return adapter.Document{}, err
	}
	defer f.Close()

	if displayName == "" {
		displayName = filepath.Base(path)
	}
	start := time.Now()
	obj, err := o.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(f, displayName, mt),
		Purpose: openai.FilePurposeUserData,
	})
	metrics.ObserveCall(o.name, "upload", time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return adapter.Document{}, o.wrap(err)
	}
	return adapter.Document{
		Name:        obj.ID,
		MIMEType:    mt,
		DisplayName: displayName,
	}, nil
}

func (o *OpenAIAdapter) Generate(ctx context.Context, doc adapter.Document, prompt string) (string, error) {
	if doc.Name == "" {
		return "", fmt.Errorf("%w: document has no id", domain.ErrInvalidArgument)
	}
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
			FileID: openai.String(doc.Name),
		}),
		openai.TextContentPart(prompt),
	}
	return o.complete(ctx, "generate", openai.UserMessage(parts))
}

func (o *OpenAIAdapter) GenerateText(ctx context.Context, prompt string) (string, error) {
	return o.complete(ctx, "generate_text", openai.UserMessage(prompt))
}

func (o *OpenAIAdapter) complete(ctx context.Context, op string, msg openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{msg},
	}
	if o.maxOut > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxOut))
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	metrics.ObserveCall(o.name, op, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return "", o.wrap(err)
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", domain.ErrEmptyResponse
}

func (o *OpenAIAdapter) wrap(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s %d: %s", domain.ErrRateLimited, o.name, apiErr.StatusCode, err.Error())
	}
	return classify(err)
}
