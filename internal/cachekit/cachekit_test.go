package cachekit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledAlwaysReturnsNoOp(t *testing.T) {
	c, err := New(Options{Enabled: false, RedisAddr: "localhost:6379"})
	require.NoError(t, err)
	_, ok := c.(NoOp)
	assert.True(t, ok)
}

func TestNoOp_GetAlwaysMisses(t *testing.T) {
	c := NoOp{}
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), time.Minute))
	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestOtterCache_SetGetRoundTrip(t *testing.T) {
	c, err := NewOtterCache(Options{DefaultTTL: time.Hour, MaxEntries: 100})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "route:R1", []byte("payload"), 0))
	val, err := c.Get(context.Background(), "route:R1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), val)
}

func TestOtterCache_ExpiresAfterTTL(t *testing.T) {
	c, err := NewOtterCache(Options{MaxEntries: 100})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err = c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestOtterCache_DeleteAndClear(t *testing.T) {
	c, err := NewOtterCache(Options{DefaultTTL: time.Hour, MaxEntries: 100})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "a", []byte("1"), 0))
	require.NoError(t, c.Delete(context.Background(), "a"))
	_, err = c.Get(context.Background(), "a")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, c.Set(context.Background(), "b", []byte("2"), 0))
	require.NoError(t, c.Clear(context.Background()))
	_, err = c.Get(context.Background(), "b")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
