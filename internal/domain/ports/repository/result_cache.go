package repository

import "context"

// ResultCache stores generated text keyed by document, prompt and model.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, text string) error
}
