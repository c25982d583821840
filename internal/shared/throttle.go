package shared

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle limits failed authentication attempts per key backed by Redis.
type LoginThrottle struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewLoginThrottle constructs a LoginThrottle.
func NewLoginThrottle(client *redis.Client, limit int64, window time.Duration) *LoginThrottle {
	return &LoginThrottle{client: client, limit: limit, window: window}
}

// Allow reports whether the key is still under the attempt limit.
func (t *LoginThrottle) Allow(ctx context.Context, key string) (bool, error) {
	if t == nil || t.client == nil {
		return true, nil
	}
	count, err := t.client.Get(ctx, t.redisKey(key)).Int64()
	if err != nil {
		if err == redis.Nil {
			return true, nil
		}
		return true, err
	}
	return count < t.limit, nil
}

// RecordFailure increments the failure counter, starting the window on first failure.
func (t *LoginThrottle) RecordFailure(ctx context.Context, key string) error {
	if t == nil || t.client == nil {
		return nil
	}
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, t.redisKey(key))
	pipe.Expire(ctx, t.redisKey(key), t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, key string) error {
	if t == nil || t.client == nil {
		return nil
	}
	if err := t.client.Del(ctx, t.redisKey(key)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (t *LoginThrottle) redisKey(key string) string {
	return "login_attempts:" + key
}
