package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"loanwise/internal/log"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client used by RedisCache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache stores JSON encoded values in Redis so that several API
// instances share one cache.
type RedisCache[T any] struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	logger *log.Logger
}

// NewRedisClient connects to addr.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
	})
}

// NewRedisCache namespaces every key under prefix.
func NewRedisCache[T any](client RedisClient, prefix string, ttl time.Duration, logger *log.Logger) *RedisCache[T] {
	return &RedisCache[T]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.WithComponent(log.ComponentCache),
	}
}

func (c *RedisCache[T]) key(k string) string {
	return c.prefix + ":" + k
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "Redis get failed", "key", key, log.FieldError, err)
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.WarnContext(ctx, "Discarding undecodable cache entry", "key", key, log.FieldError, err)
		c.Delete(ctx, key)
		return zero, false
	}
	return v, true
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.WarnContext(ctx, "Cache value not encodable", "key", key, log.FieldError, err)
		return
	}
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis set failed", "key", key, log.FieldError, err)
	}
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis delete failed", "key", key, log.FieldError, err)
	}
}
