package repository

import (
	"context"
	"time"
)

// Locker guards a named resource across processes.
type Locker interface {
	// TryLock returns a token on success or domain.ErrLocked if another holder owns key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
