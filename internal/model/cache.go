package model

import (
	"context"
	"time"
)

// Cache is a best-effort JSON cache. Implementations report a miss rather than
// an error when the backend is unavailable.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}
