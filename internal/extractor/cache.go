package extractor

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize bounds each extraction cache.
const DefaultCacheSize = 128

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// Cache memoizes backend outcomes with LRU eviction. Callers that miss on
// the same key at the same time share one computation.
type Cache[K comparable, V any] struct {
	entries *lru.Cache[K, V]
	group   singleflight.Group
	unknown V
	keyFn   func(K) string

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache builds a cache holding up to size entries. unknown is stored for
// keys whose computation reports NotFound.
func NewCache[K comparable, V any](size int, unknown V, keyFn func(K) string) (*Cache[K, V], error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[K, V](size)
	if err != nil {
		return nil, fmt.Errorf("extractor cache: %w", err)
	}
	if keyFn == nil {
		keyFn = func(k K) string { return fmt.Sprintf("%#v", k) }
	}
	return &Cache[K, V]{entries: entries, unknown: unknown, keyFn: keyFn}, nil
}

// GetOrCompute returns the cached value for key, running compute on a miss.
// Found values and the NotFound sentinel are cached; failures are returned
// and the next call computes again.
func (c *Cache[K, V]) GetOrCompute(ctx context.Context, key K, compute func(context.Context) Outcome[V]) (V, error) {
	if value, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return value, nil
	}
	c.misses.Add(1)

	result, err, _ := c.group.Do(c.keyFn(key), func() (any, error) {
		// A previous flight may have filled the entry between Get and Do.
		if value, ok := c.entries.Peek(key); ok {
			return value, nil
		}
		outcome := compute(ctx)
		if value, ok := outcome.Value(); ok {
			c.entries.Add(key, value)
			return value, nil
		}
		if outcome.IsNotFound() {
			c.entries.Add(key, c.unknown)
			return c.unknown, nil
		}
		return nil, outcome.Err()
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Stats returns hit and miss counters and the current entry count.
func (c *Cache[K, V]) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.entries.Len()}
}

// Purge drops every cached entry.
func (c *Cache[K, V]) Purge() {
	c.entries.Purge()
}
