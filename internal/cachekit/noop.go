package cachekit

import (
	"context"
	"time"
)

// NoOp is a Cache that never stores anything: every Get misses. It exists
// so disabling the cache is a config flip rather than a code path, and so
// tests can assert correctness holds with the cache absent (spec §5).
type NoOp struct{}

func (NoOp) Get(context.Context, string) ([]byte, error) { return nil, ErrKeyNotFound }
func (NoOp) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NoOp) Delete(context.Context, string) error { return nil }
func (NoOp) Clear(context.Context) error { return nil }
func (NoOp) Close() error { return nil }
