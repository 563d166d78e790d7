package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedisCache(WithRedisAddr(mr.Addr()), WithRedisPrefix("test:"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	_, err := mc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value := []byte("hello")
	require.NoError(t, mc.Set(ctx, "k", value, time.Minute))
	value[0] = 'j'

	got, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	ok, err := mc.Exists(ctx, "nope", "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mc.Delete(ctx, "k"))
	_, err = mc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := mc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", []byte("1"), time.Minute))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", []byte("2"), time.Minute))
	time.Sleep(2 * time.Millisecond)
	_, err := mc.Get(ctx, "a")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	require.NoError(t, mc.Set(ctx, "c", []byte("3"), time.Minute))

	_, err = mc.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = mc.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	mc := NewMemoryCache()
	assert.NoError(t, mc.Close())
	assert.NoError(t, mc.Close())
}

func TestRedisCache_PrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)

	require.NoError(t, rc.Set(ctx, "feed:ohlcv", []byte(`{"a":1}`), time.Hour))
	assert.True(t, mr.Exists("test:feed:ohlcv"))
	assert.Equal(t, time.Hour, mr.TTL("test:feed:ohlcv"))

	got, err := rc.Get(ctx, "feed:ohlcv")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	mr.FastForward(2 * time.Hour)
	_, err = rc.Get(ctx, "feed:ohlcv")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_DeleteAndExists(t *testing.T) {
	ctx := context.Background()
	_, rc := newRedis(t)

	require.NoError(t, rc.Set(ctx, "k", []byte("v"), 0))
	ok, err := rc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, rc.Delete(ctx, "k"))
	ok, err = rc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, rc.Delete(ctx))
}

func TestNewRedisCache_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(WithRedisAddr(addr), WithRedisPingTimeout(200*time.Millisecond))
	assert.Error(t, err)
}

func TestLayeredCache_ReadThroughAndWriteThrough(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)
	lc := NewLayeredCache(rc, WithLayeredMemorySize(8))

	require.NoError(t, lc.Set(ctx, "k", []byte("v1"), time.Hour))
	assert.True(t, mr.Exists("test:k"))

	// L1 serves the value even after L2 changes underneath.
	require.NoError(t, mr.Set("test:k", "v2"))
	got, err := lc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	// A key only present in L2 is promoted.
	require.NoError(t, mr.Set("test:other", "remote"))
	got, err = lc.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(got))
	mr.Del("test:other")
	got, err = lc.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(got))

	require.NoError(t, lc.Delete(ctx, "k", "other"))
	_, err = lc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	require.NoError(t, lc.Close())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	type payload struct {
		Coin string `json:"coin"`
		Days int    `json:"days"`
	}
	require.NoError(t, SetJSON(ctx, mc, "sel", payload{Coin: "bitcoin", Days: 30}, time.Minute))

	got, err := GetJSON[payload](ctx, mc, "sel")
	require.NoError(t, err)
	assert.Equal(t, payload{Coin: "bitcoin", Days: 30}, got)

	require.NoError(t, mc.Set(ctx, "bad", []byte("{"), time.Minute))
	_, err = GetJSON[payload](ctx, mc, "bad")
	assert.Error(t, err)

	_, err = GetJSON[payload](ctx, mc, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
