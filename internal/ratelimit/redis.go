package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// NewRedisClient connects to the Redis server at url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisLimiter counts requests in fixed windows shared by all service instances.
type RedisLimiter struct {
	client redis.Cmdable
	times  int64
	window time.Duration
}

// NewRedisLimiter allows times requests per window and client.
func NewRedisLimiter(client redis.Cmdable, times int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, times: int64(times), window: window}
}

// incrWindow counts a request and makes sure the key expires. A key that lost its expiry gets it
// back on the next request instead of blocking the client forever.
var incrWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Allow increments the counter of key atomically. The first request of a window starts its
// expiry.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = keyPrefix + key
	count, err := incrWindow.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("incrementing %s: %w", key, err)
	}
	return count <= l.times, nil
}
