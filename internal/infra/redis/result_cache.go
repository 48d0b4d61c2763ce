package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"flashcard-generator/internal/domain/ports/repository"
	"flashcard-generator/internal/infra/metrics"
)

var _ repository.ResultCache = (*ResultCache)(nil)

type cachedResult struct {
	Text     string    `json:"text"`
	StoredAt time.Time `json:"stored_at"`
}

// ResultCache keeps generated flashcard text so identical document/prompt
// pairs are not sent to the service twice.
type ResultCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewResultCache(client RedisClient, ttl time.Duration) *ResultCache {
	return &ResultCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *ResultCache) Get(ctx context.Context, key string) (string, bool, error) {
	data, err := c.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		metrics.IncCacheRequest("result", "miss")
		return "", false, nil
	}
	if err != nil {
		metrics.IncCacheRequest("result", "error")
		return "", false, err
	}

	var entry cachedResult
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		metrics.IncCacheRequest("result", "error")
		return "", false, err
	}
	metrics.IncCacheRequest("result", "hit")
	// hits keep the entry alive
	_ = c.client.Expire(ctx, key, c.ttl)
	return entry.Text, true, nil
}

func (c *ResultCache) Put(ctx context.Context, key, text string) error {
	data, err := json.Marshal(cachedResult{Text: text, StoredAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl)
}
