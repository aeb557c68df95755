package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"estatehub/internal/middleware"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var loads singleflight.Group

// GetJSON reads key into dest. It reports false on a miss or when Redis is unavailable.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key with ttl.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside serves key from Redis and falls back to load on a miss. Concurrent
// misses for the same key share a single load. Cache failures are logged and
// never fail the read.
func Aside[T any](ctx context.Context, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	found, err := GetJSON(ctx, key, &cached)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}
	if found {
		return cached, nil
	}

	v, err, _ := loads.Do(key, func() (any, error) {
		fresh, err := load(ctx)
		if err != nil {
			return fresh, err
		}
		if err := SetJSON(ctx, key, fresh, ttl); err != nil {
			middleware.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
