// Package redis implements model.Cache on top of go-redis.
//
// The cache is best effort: when redis cannot be reached at startup the cache
// runs in bypass mode and every lookup is a miss.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

var _ model.Cache = (*Cache)(nil)

const (
	pingTimeout = 2 * time.Second
	scanCount   = 100
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger

	warnedUnavailable atomic.Bool
}

// New connects to the redis instance at url. A malformed url is an error; an
// unreachable server is not, the returned cache bypasses redis instead.
func New(ctx context.Context, url string, ttl time.Duration, logger *logger.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Cache: redis unavailable, bypassing cache", "error", err)
		_ = client.Close()
		return &Cache{ttl: ttl, logger: logger}, nil
	}

	return NewWithClient(client, ttl, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *logger.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Available reports whether the cache is backed by redis.
func (c *Cache) Available() bool {
	return c != nil && c.client != nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if !c.Available() {
		return errors.New("redis unavailable")
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if !c.Available() {
		return false, nil
	}
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		c.warnUnavailableOnce(err)
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value under key. A non-positive ttl falls back to the cache default.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.Available() {
		return nil
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, b, ttl).Err(); err != nil {
		c.warnUnavailableOnce(err)
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern removes every key matching the glob pattern using SCAN.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) error {
	if !c.Available() {
		return nil
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}

	iter := c.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.logger.Warn("Cache: delete failed", "key", key, "pattern", pattern, "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		c.warnUnavailableOnce(err)
		return fmt.Errorf("failed to scan %s: %w", pattern, err)
	}
	return nil
}

func (c *Cache) Close() error {
	if !c.Available() {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) warnUnavailableOnce(err error) {
	if c.warnedUnavailable.CompareAndSwap(false, true) {
		c.logger.Warn("Cache: redis request failed", "error", err)
	}
}
