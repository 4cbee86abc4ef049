package recommend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// KeyPrefix namespaces cached recommendation pages.
const KeyPrefix = "recommend:"

// CacheObserver records cache hits and misses.
type CacheObserver interface {
	ObserveCache(hit bool)
}

// CachedMatcher serves recommendation pages from a cache, computing misses with
// the wrapped Recommender. Concurrent misses for the same key share one lookup.
// Entries are dropped wholesale by Invalidate whenever the catalog changes.
type CachedMatcher struct {
	next     Recommender
	cache    model.Cache
	ttl      time.Duration
	observer CacheObserver
	group    singleflight.Group
	logger   *logger.Logger
}

// NewCachedMatcher wraps next with cache. A nil observer disables hit/miss
// accounting.
func NewCachedMatcher(next Recommender, cache model.Cache, ttl time.Duration, observer CacheObserver, logger *logger.Logger) *CachedMatcher {
	return &CachedMatcher{
		next:     next,
		cache:    cache,
		ttl:      ttl,
		observer: observer,
		logger:   logger,
	}
}

// Match returns the cached page for q when present and otherwise computes and
// stores it. Cache failures are logged and never fail the call.
func (c *CachedMatcher) Match(ctx context.Context, q Query, page model.PageRequest) (Result, error) {
	key := CacheKey(q, page)

	var cached Result
	hit, err := c.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		c.logger.Warn("CachedMatcher: cache read failed", "key", key, "error", err.Error())
	}
	c.observe(hit)
	if hit {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// The result is shared with every waiter on key, so one caller going
		// away must not cancel it.
		shared := context.WithoutCancel(ctx)
		res, err := c.next.Match(shared, q, page)
		if err != nil {
			return Result{}, err
		}
		if err := c.cache.SetJSON(shared, key, res, c.ttl); err != nil {
			c.logger.Warn("CachedMatcher: cache write failed", "key", key, "error", err.Error())
		}
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// Invalidate drops every cached recommendation page.
func (c *CachedMatcher) Invalidate(ctx context.Context) error {
	if err := c.cache.DeleteByPattern(ctx, KeyPrefix+"*"); err != nil {
		return fmt.Errorf("failed to invalidate recommendations: %w", err)
	}
	return nil
}

func (c *CachedMatcher) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveCache(hit)
	}
}

// CacheKey derives a stable key for q and page. Goal order and duplicates do not
// affect the key; a nil and an empty goal list are the same query.
func CacheKey(q Query, page model.PageRequest) string {
	goals := make([]string, 0, len(q.Goals))
	for _, g := range q.Goals {
		goals = append(goals, string(g))
	}
	slices.Sort(goals)
	goals = slices.Compact(goals)

	sort := page.Sort
	if sort == "" {
		sort = model.SortByID
	}

	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%d|%s|%t",
		q.Category, q.Time, q.SkinType, strings.Join(goals, ","),
		page.Page, page.Size, sort, page.Desc)
	sum := sha256.Sum256([]byte(raw))
	return KeyPrefix + hex.EncodeToString(sum[:])
}
