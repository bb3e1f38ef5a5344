package articlemedia

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Cache keys for the whole-collection aggregates. Both depend on article
// existence and content, so every article mutation invalidates both.
const (
	CacheKeyArticleList = "articles.list"
	CacheKeyStats       = "stats.global"
)

// AggregateCache is a read-through cache for expensive derived views. On a
// miss the value is computed synchronously and stored with a TTL.
// Concurrent misses on the same key may recompute redundantly; the cache
// guarantees convergence to a fresh value, not single-flight.
type AggregateCache struct {
	store Cache
	log   *slog.Logger
}

// NewAggregateCache wraps a cache backend. A nil logger falls back to
// slog.Default.
func NewAggregateCache(store Cache, log *slog.Logger) *AggregateCache {
	if log == nil {
		log = slog.Default()
	}
	return &AggregateCache{store: store, log: log}
}

// GetOrCompute returns the cached value for key, computing and storing it
// on miss or expiry. A failed store write degrades to uncached operation:
// the freshly computed value is still returned.
func (c *AggregateCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	value, err := c.store.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.WarnContext(ctx, "cache read failed, recomputing", "key", key, "error", err)
	}

	value, err = compute(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.log.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}

	return value, nil
}

// Invalidate removes the given keys. It must run synchronously within the
// mutation that changes the underlying data, before the mutation's
// response becomes observable.
func (c *AggregateCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.store.Delete(ctx, keys...)
}

// Flush drops both aggregate keys. Used at teardown.
func (c *AggregateCache) Flush(ctx context.Context) error {
	return c.store.Delete(ctx, CacheKeyArticleList, CacheKeyStats)
}

// Close flushes the aggregate keys and releases the backing store.
func (c *AggregateCache) Close(ctx context.Context) error {
	if err := c.Flush(ctx); err != nil {
		c.log.WarnContext(ctx, "cache flush failed on close", "error", err)
	}
	return c.store.Close()
}
