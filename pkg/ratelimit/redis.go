package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// takeScript performs the whole fixed-window check-and-increment atomically
// on the Redis side, so concurrent instances never interleave a read-modify-
// write. The PTTL<0 branch restores an expiry when the key somehow lost it
// (e.g. a crashed PEXPIRE in older non-scripted deployments).
var takeScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore is the shared persistent counter store. All instances of the
// service account against the same counters.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. An empty prefix defaults to
// "ratelimit".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Take atomically records one request for the identifier and reports whether
// it is within the limit. Any transport error or malformed reply is returned
// to the caller so the Limiter can fall back to the in-process store.
//
// ResetAt is reconstructed from the key's remaining TTL on each call, so
// within one window it can drift by a few milliseconds across calls; the
// in-process store returns the exact stored timestamp. Callers surface
// ResetAt at second granularity (Unix timestamp headers), where the drift is
// not observable.
func (s *RedisStore) Take(ctx context.Context, identifier string, limit Limit) (Result, error) {
	key := fmt.Sprintf("%s:%s", s.prefix, identifier)

	raw, err := takeScript.Run(ctx, s.client, []string{key}, limit.Window.Milliseconds()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis take: %w", err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 2 {
		return Result{}, fmt.Errorf("ratelimit: unexpected redis reply %T", raw)
	}
	count, ok1 := reply[0].(int64)
	ttlMs, ok2 := reply[1].(int64)
	if !ok1 || !ok2 {
		return Result{}, fmt.Errorf("ratelimit: unexpected redis reply values %v", reply)
	}

	remaining := limit.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   int(count) <= limit.MaxRequests,
		Limit:     limit.MaxRequests,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Duration(ttlMs) * time.Millisecond),
	}, nil
}

// Reset clears the counter for an identifier (admin/testing use).
func (s *RedisStore) Reset(ctx context.Context, identifier string) error {
	return s.client.Del(ctx, fmt.Sprintf("%s:%s", s.prefix, identifier)).Err()
}
