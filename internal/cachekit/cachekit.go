// Package cachekit is the optional cache abstraction used by the
// reservoir (spec §5: "reservoir caches, when
// enabled, are strictly optional; correctness must not depend on the
// cache being fresh"). It mirrors the Cache interface shape used across
// the corpus's pkg/cache package, trimmed to the operations this module
// actually needs, with three backends: an in-process otter cache, a
// distributed go-redis/v9 cache, and a no-op cache for when caching is
// disabled entirely.
package cachekit

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key is absent or expired.
var ErrKeyNotFound = errors.New("cachekit: key not found")

// Cache is the minimal contract every backend satisfies. Write-through
// invalidation (Delete) is supported; there is deliberately no
// write-through update — callers always go back to the source of truth
// and then invalidate, never patch a cached value in place.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Options configures cache construction.
type Options struct {
	Enabled    bool
	DefaultTTL time.Duration
	MaxEntries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DefaultOptions returns sensible defaults for an in-process cache.
func DefaultOptions() Options {
	return Options{
		Enabled:    true,
		DefaultTTL: 5 * time.Minute,
		MaxEntries: 100_000,
	}
}

// New builds a Cache per opts. Enabled=false always returns the no-op
// cache regardless of the other fields, since disabling the cache must
// be a complete bypass, not a smaller one.
func New(opts Options) (Cache, error) {
	if !opts.Enabled {
		return NoOp{}, nil
	}
	if opts.RedisAddr != "" {
		return NewRedisCache(opts)
	}
	return NewOtterCache(opts)
}
