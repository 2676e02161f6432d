package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ""), mr
}

func TestRedisStore_CountsWithinWindow(t *testing.T) {
	store, _ := newTestRedisStore(t)
	limit := Limit{Name: "api", MaxRequests: 3, Window: time.Minute}

	for i := 1; i <= 3; i++ {
		res, err := store.Take(context.Background(), "api:u1", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i)
		assert.Equal(t, 3-i, res.Remaining)
		assert.Equal(t, 3, res.Limit)
	}

	res, err := store.Take(context.Background(), "api:u1", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestRedisStore_WindowExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	limit := Limit{Name: "api", MaxRequests: 1, Window: time.Minute}

	res, err := store.Take(context.Background(), "api:u1", limit)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = store.Take(context.Background(), "api:u1", limit)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	mr.FastForward(time.Minute + time.Second)

	res, err = store.Take(context.Background(), "api:u1", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a fresh window opens once the key expires")
	assert.Equal(t, 0, res.Remaining)
}

func TestRedisStore_IdentifiersAreIsolated(t *testing.T) {
	store, _ := newTestRedisStore(t)
	limit := Limit{Name: "sms", MaxRequests: 1, Window: time.Hour}

	res, err := store.Take(context.Background(), "sms:org-1", limit)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = store.Take(context.Background(), "sms:org-2", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisStore_KeyGetsExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	limit := Limit{Name: "api", MaxRequests: 10, Window: time.Minute}

	_, err := store.Take(context.Background(), "api:u1", limit)
	require.NoError(t, err)

	ttl := mr.TTL("ratelimit:api:u1")
	assert.Greater(t, ttl, time.Duration(0), "counter key must carry an expiry")
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisStore_TransportErrorSurfaces(t *testing.T) {
	store, mr := newTestRedisStore(t)
	limit := Limit{Name: "api", MaxRequests: 10, Window: time.Minute}

	mr.Close()

	_, err := store.Take(context.Background(), "api:u1", limit)
	assert.Error(t, err)
}

func TestRedisStore_Reset(t *testing.T) {
	store, _ := newTestRedisStore(t)
	limit := Limit{Name: "api", MaxRequests: 1, Window: time.Minute}

	res, err := store.Take(context.Background(), "api:u1", limit)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	require.NoError(t, store.Reset(context.Background(), "api:u1"))

	res, err = store.Take(context.Background(), "api:u1", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
