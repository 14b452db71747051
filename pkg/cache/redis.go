package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const backendRedis = "redis"

// RedisStore keeps the resolver cache in a single Redis hash.
// Every operation is one Redis command and therefore atomic on the server.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a Redis-backed store under namespace.
func NewRedisStore(redisClient *redis.Client, namespace string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
		key:   HashKey(namespace),
	}
}

// Lookup retrieves the URL for id.
// Returns ErrCacheMiss if the field doesn't exist.
func (s *RedisStore) Lookup(ctx context.Context, id int64) (string, error) {
	url, err := s.redis.HGet(ctx, s.key, Field(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(backendRedis).Inc()
			return "", ErrCacheMiss
		}
		CacheErrors.WithLabelValues(backendRedis, "lookup").Inc()
		return "", fmt.Errorf("redis hget: %w", err)
	}

	if url == "" {
		CacheErrors.WithLabelValues(backendRedis, "lookup").Inc()
		return "", fmt.Errorf("%w: empty url for id %d", ErrInvalidEntry, id)
	}

	CacheHits.WithLabelValues(backendRedis).Inc()
	return url, nil
}

// Insert records url for id, overwriting any previous value.
func (s *RedisStore) Insert(ctx context.Context, id int64, url string) error {
	if url == "" {
		CacheErrors.WithLabelValues(backendRedis, "insert").Inc()
		return ErrInvalidEntry
	}

	if err := s.redis.HSet(ctx, s.key, Field(id), url).Err(); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "insert").Inc()
		return fmt.Errorf("redis hset: %w", err)
	}

	CacheInserts.WithLabelValues(backendRedis).Inc()
	if n, err := s.redis.HLen(ctx, s.key).Result(); err == nil {
		CacheEntries.WithLabelValues(backendRedis).Set(float64(n))
	}

	return nil
}

// Len returns the number of identifiers in the hash.
func (s *RedisStore) Len(ctx context.Context) (int64, error) {
	n, err := s.redis.HLen(ctx, s.key).Result()
	if err != nil {
		CacheErrors.WithLabelValues(backendRedis, "len").Inc()
		return 0, fmt.Errorf("redis hlen: %w", err)
	}
	return n, nil
}

// Reset removes every resolution in the namespace.
// Called at startup so that no mapping outlives the process that resolved it.
func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "reset").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	CacheEntries.WithLabelValues(backendRedis).Set(0)
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Key returns the Redis key of the backing hash.
func (s *RedisStore) Key() string {
	return s.key
}
