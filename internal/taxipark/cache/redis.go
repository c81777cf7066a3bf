package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "taxipark:report:"

// RedisCache keeps rendered reports in Redis with a TTL so stale entries age out.
type RedisCache struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

// NewRedisCache constructs the cache. A non-positive ttl defaults to five minutes.
func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, keyPrefix: prefix, ttl: ttl}
}

// GetReport returns the payload or ok=false on a miss.
func (r *RedisCache) GetReport(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	cacheLookups.WithLabelValues("hit").Inc()
	return payload, true, nil
}

// PutReport stores the payload with the configured TTL.
func (r *RedisCache) PutReport(ctx context.Context, key string, payload []byte) error {
	if err := r.client.Set(ctx, r.keyPrefix+key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
