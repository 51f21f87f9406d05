package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTTL bounds worst-case staleness when an invalidation is missed or
// races a concurrent write.
const DefaultTTL = 3600 * time.Second

// Gateway applies the read-through / write-invalidate policy on top of a
// Cache. All cache-service failures are contained here: reads degrade to
// the store, writes and invalidations log and move on.
type Gateway struct {
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	wg     sync.WaitGroup
}

func NewGateway(c Cache, ttl time.Duration, logger *slog.Logger) *Gateway {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gateway{cache: c, ttl: ttl, logger: logger}
}

// Fetch returns the cached value for key, or loads it from the source of
// truth, caches the result, and returns it. A cache error is treated as a
// miss; a failed Put is logged and swallowed. The store remains the only
// place a value must exist.
func Fetch[T any](ctx context.Context, g *Gateway, key string, load func(context.Context) (T, error)) (T, error) {
	data, err := g.cache.Get(ctx, key)
	if err == nil {
		var v T
		if jerr := json.Unmarshal(data, &v); jerr == nil {
			g.hits.Add(1)
			return v, nil
		}
		// Undecodable entry: drop it and repopulate from the store.
		g.Invalidate(ctx, key)
	} else if !errors.Is(err, ErrMiss) {
		g.logger.Warn("cache get failed, falling through to store", "key", key, "error", err)
	}
	g.misses.Add(1)

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if data, jerr := json.Marshal(v); jerr == nil {
		if perr := g.cache.Put(ctx, key, data, g.ttl); perr != nil {
			g.logger.Warn("cache put failed", "key", key, "error", perr)
		}
	}
	return v, nil
}

// Invalidate deletes the given keys best-effort in the background. It is
// called only after the underlying store write has committed, and its
// failure never propagates to the write's result.
func (g *Gateway) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		// Detach from the request context; the request may finish first.
		if err := g.cache.Invalidate(context.WithoutCancel(ctx), keys...); err != nil {
			g.logger.Warn("cache invalidate failed", "keys", keys, "error", err)
		}
	}()
}

// Flush blocks until all pending invalidations have completed. Called at
// shutdown and by tests that need deterministic ordering.
func (g *Gateway) Flush() {
	g.wg.Wait()
}

// Hits reports how many reads were served from the cache.
func (g *Gateway) Hits() int64 { return g.hits.Load() }

// Misses reports how many reads fell through to the store.
func (g *Gateway) Misses() int64 { return g.misses.Load() }
