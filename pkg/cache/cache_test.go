package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rating struct {
	Symbol string  `json:"symbol"`
	Elo    float64 `json:"elo"`
}

func TestKey(t *testing.T) {
	assert.Equal(t, "tokenrank:elo:PEPE", Key("tokenrank", "elo", "PEPE"))
	assert.Equal(t, "p:round:7", Key("p", "round", 7))
	assert.Equal(t, "p", Key("p"))
}

func TestMemoryCache_SetGetTyped(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(WithMemoryCleanup(0))
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", rating{Symbol: "PEPE", Elo: 1612.5}, time.Minute))
	got, err := GetTyped[rating](ctx, c, "k")
	require.NoError(t, err)
	assert.Equal(t, rating{Symbol: "PEPE", Elo: 1612.5}, got)

	_, err = GetTyped[rating](ctx, c, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = GetTyped[rating](ctx, c, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(WithMemoryCleanup(0))
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	var v int
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(WithMemoryCleanup(0), WithMemoryMaxSize(2))
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set(ctx, "b", 2, time.Minute))
	time.Sleep(time.Millisecond)
	var v int
	require.NoError(t, c.Get(ctx, "a", &v))
	time.Sleep(time.Millisecond)

	require.NoError(t, c.Set(ctx, "c", 3, time.Minute))
	assert.Equal(t, 2, c.Len())
	assert.ErrorIs(t, c.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "a", &v))
}

func TestMemoryCache_TryLock(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(WithMemoryCleanup(0))
	defer c.Close()

	ok, err := c.TryLock(ctx, "round:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.TryLock(ctx, "round:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Unlock(ctx, "round:1"))
	ok, _ = c.TryLock(ctx, "round:1", time.Minute)
	assert.True(t, ok)
}

func TestLayeredCache_ReadsThroughAndShareLocks(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache(WithMemoryCleanup(0))
	defer l2.Close()
	lc := NewLayeredCache(l2, time.Minute, WithMemoryCleanup(0))
	defer lc.Close()

	// written by another replica
	require.NoError(t, l2.Set(ctx, "job", rating{Symbol: "WIF"}, time.Hour))
	got, err := GetTyped[rating](ctx, lc, "job")
	require.NoError(t, err)
	assert.Equal(t, "WIF", got.Symbol)

	require.NoError(t, lc.Set(ctx, "x", 42, time.Hour))
	var v int
	require.NoError(t, l2.Get(ctx, "x", &v))
	assert.Equal(t, 42, v)

	require.NoError(t, lc.Delete(ctx, "x"))
	assert.ErrorIs(t, lc.Get(ctx, "x", &v), ErrCacheMiss)

	ok, _ := lc.TryLock(ctx, "lock", time.Minute)
	assert.True(t, ok)
	ok, _ = l2.TryLock(ctx, "lock", time.Minute)
	assert.False(t, ok, "locks live in the shared layer")
}
