package cachekit

import (
	"context"
	"time"

	"github.com/maypok86/otter"
)

type otterEntry struct {
	value     []byte
	expiresAt time.Time
}

// OtterCache is the in-process cache backend (spec §4.5 optional L1
// cache), built the same way as the node package's LatencyTable: a
// bounded otter.Cache guarded by the builder's Cost function.
type OtterCache struct {
	cache      otter.Cache[string, otterEntry]
	defaultTTL time.Duration
}

// NewOtterCache builds an in-process cache bounded to opts.MaxEntries.
func NewOtterCache(opts Options) (*OtterCache, error) {
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 100_000
	}
	cache, err := otter.MustBuilder[string, otterEntry](maxEntries).
		Cost(func(_ string, _ otterEntry) uint32 { return 1 }).
		Build()
	if err != nil {
		return nil, err
	}
	return &OtterCache{cache: cache, defaultTTL: opts.DefaultTTL}, nil
}

func (c *OtterCache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.cache.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.cache.Delete(key)
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (c *OtterCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	c.cache.Set(key, otterEntry{value: cp, expiresAt: expiresAt})
	return nil
}

func (c *OtterCache) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

func (c *OtterCache) Clear(_ context.Context) error {
	c.cache.Clear()
	return nil
}

func (c *OtterCache) Close() error {
	c.cache.Close()
	return nil
}
