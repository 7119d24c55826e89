package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNoData is returned by [Cache.Get] when the fetch failed and there is no
// previously cached value to fall back to.
var ErrNoData = errors.New("no data")

// item is a cached value together with the time it was fetched. Items are
// replaced wholesale on refresh and never mutated in place.
type item[V any] struct {
	FetchedAt time.Time
	Value     V
}

// FetchFunc produces a fresh value for key.
type FetchFunc[V any] func(ctx context.Context, key string) (V, error)

// Cache is a keyed TTL cache that refreshes stale entries through a [FetchFunc].
//
// When a refresh fails, Cache serves the previous value (stale-on-error) if
// one exists. Concurrent Get calls for the same stale key may each invoke the
// fetch function; the last successful write wins.
type Cache[V any] struct {
	ttl    time.Duration
	fetch  FetchFunc[V]
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]item[V]
}

// New creates a [Cache] with the given TTL and fetch function.
//
// A TTL of zero disables caching: every Get performs a fetch. Negative TTLs
// are treated as zero. If logger is nil, [slog.Default] is used.
func New[V any](ttl time.Duration, fetch FetchFunc[V], logger *slog.Logger) *Cache[V] {
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache[V]{
		ttl:     ttl,
		fetch:   fetch,
		logger:  logger,
		entries: make(map[string]item[V]),
	}
}

// Get returns the value for key as of now.
//
// A fresh entry (now - FetchedAt < TTL) is returned without calling fetch.
// Otherwise fetch is invoked; on success the entry is replaced and the new
// value returned. On failure the previous value is returned if one exists,
// else the error wraps [ErrNoData].
func (c *Cache[V]) Get(ctx context.Context, key string, now time.Time) (V, error) {
	c.mu.RLock()
	entry, found := c.entries[key]
	c.mu.RUnlock()

	if found && !c.isStale(entry, now) {
		return entry.Value, nil
	}

	value, err := c.fetch(ctx, key)
	if err != nil {
		c.logger.Warn("cache refresh failed",
			"key", key,
			"error", err.Error(),
			"stale", found,
		)
		if found {
			return entry.Value, nil
		}
		var zero V
		return zero, fmt.Errorf("%w for %q: %w", ErrNoData, key, err)
	}

	c.mu.Lock()
	c.entries[key] = item[V]{FetchedAt: now, Value: value}
	c.mu.Unlock()

	return value, nil
}

// isStale reports whether entry must be refreshed at now.
func (c *Cache[V]) isStale(entry item[V], now time.Time) bool {
	return now.Sub(entry.FetchedAt) >= c.ttl
}
