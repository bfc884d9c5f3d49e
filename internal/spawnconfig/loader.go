// Package spawnconfig is the Config Loader (spec §4.3): a keyed,
// TTL-bounded cache of SpawnConfig snapshots fetched from the content API.
// It is the single place temporal multipliers are resolved from for the
// spawn calculator; callers must go through Get rather than read a cached
// snapshot directly, since the cache's only contract is freshness, not
// mutability.
package spawnconfig

import (
	"context"
	"sync"
	"time"

	"github.com/maypok86/otter"

	"github.com/jwmdev/transitspawn/internal/apperror"
	"github.com/jwmdev/transitspawn/internal/model"
)

// Fetcher retrieves a fresh SpawnConfig snapshot for key from the content
// API (spec §6). A real implementation lives in package contentapi;
// spawnconfig depends only on this narrow interface to stay test-friendly.
type Fetcher func(ctx context.Context, key string) (model.SpawnConfig, error)

type entry struct {
	snapshot  model.SpawnConfig
	fetchedAt time.Time
}

// Loader caches SpawnConfig snapshots behind a TTL.
type Loader struct {
	fetch Fetcher
	ttl   time.Duration

	mu    sync.Mutex // serializes refetches; one lock for all keys, so a refetch of one key waits behind a refetch of any other
	cache otter.Cache[string, entry]
}

// New builds a Loader that refreshes entries older than ttl via fetch.
// maxKeys bounds the number of distinct config keys cached at once (the
// corpus's otter.MustBuilder usage always bounds cache size explicitly).
func New(fetch Fetcher, ttl time.Duration, maxKeys int) *Loader {
	if maxKeys <= 0 {
		maxKeys = 256
	}
	cache, err := otter.MustBuilder[string, entry](maxKeys).
		Cost(func(_ string, _ entry) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("spawnconfig: failed to build cache: " + err.Error())
	}
	return &Loader{fetch: fetch, ttl: ttl, cache: cache}
}

// Get returns the cached snapshot for key if it is younger than the TTL,
// otherwise refetches and replaces it.
func (l *Loader) Get(ctx context.Context, key string) (model.SpawnConfig, error) {
	if e, ok := l.cache.Get(key); ok && time.Since(e.fetchedAt) < l.ttl {
		return e.snapshot, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Re-check: another goroutine may have refreshed it while we waited.
	if e, ok := l.cache.Get(key); ok && time.Since(e.fetchedAt) < l.ttl {
		return e.snapshot, nil
	}

	snap, err := l.fetch(ctx, key)
	if err != nil {
		return model.SpawnConfig{}, apperror.Wrap(apperror.KindConfig, "config_fetch_failed", err)
	}
	l.cache.Set(key, entry{snapshot: snap, fetchedAt: time.Now()})
	return snap, nil
}

// Clear invalidates a single key, or every cached key when key is "".
func (l *Loader) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if key == "" {
		l.cache.Clear()
		return
	}
	l.cache.Delete(key)
}

// Close releases resources held by the underlying cache.
func (l *Loader) Close() {
	l.cache.Close()
}
