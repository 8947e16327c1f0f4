package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 30 * 24 * time.Hour

func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisBackend{
		client:  client,
		baseTTL: ttl,
	}
}

// RedisBackend stores each slot as a string key with a sliding TTL, so an
// abandoned visitor's cart eventually disappears.
type RedisBackend struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisBackend) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, slotKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisBackend) Put(ctx context.Context, namespace, key string, value []byte) error {
	// jitter spreads expiry of slots written in the same burst
	jitter := time.Duration(rand.Intn(60)) * time.Minute
	if err := r.client.Set(ctx, slotKey(namespace, key), value, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, namespace, key string) error {
	if err := r.client.Del(ctx, slotKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func slotKey(namespace, key string) string {
	return fmt.Sprintf("storefront:%s:%s", namespace, key)
}
