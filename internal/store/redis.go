package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter and arms the expiry on the
// first hit so the whole window lives and dies atomically. It returns the
// count followed by the remaining window in milliseconds.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Redis is a KV implementation backed by a shared Redis instance, for
// deployments where several server processes must agree on rate-limit
// counters and cached availability.
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps an existing go-redis client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Get implements KV.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set implements KV.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX implements KV.
func (r *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Delete implements KV.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// IncrWindow implements KV via a Lua script so INCR and PEXPIRE cannot be
// torn apart by a concurrent caller or a crash between the two commands.
func (r *Redis) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = time.Minute.Milliseconds()
	}
	res, err := fixedWindowScript.Run(ctx, r.rdb, []string{key}, ms).Result()
	if err != nil {
		return 0, 0, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis script result %T", res)
	}
	count, err := toInt64(vals[0])
	if err != nil {
		return 0, 0, err
	}
	ttlMs, err := toInt64(vals[1])
	if err != nil {
		return 0, 0, err
	}
	if ttlMs < 0 {
		ttlMs = ms
	}
	return count, time.Duration(ttlMs) * time.Millisecond, nil
}

// toInt64 normalizes the value types Lua scripts may hand back depending on
// Redis configuration and driver conversions.
func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis numeric type %T", v)
	}
}
