// Package cache implements the read-through / write-invalidate layer in
// front of the relational store. The cache is a derived, disposable view:
// on any cache-service failure reads fall through to the store and writes
// carry on, so an unreachable cache degrades performance, never
// correctness.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is the injected capability the gateway runs against: a byte store
// with per-key TTL. Implementations must treat Invalidate on an absent key
// as a no-op success.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}
