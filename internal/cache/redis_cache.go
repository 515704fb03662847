package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kiosk-pos/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	searchKeyPrefix     = "kiosk:search"
	searchGenerationKey = searchKeyPrefix + ":generation"
)

// RedisProductSearchCache keeps search results in Redis. Entries are
// namespaced by a generation counter so invalidation is a single INCR and
// stale entries simply expire.
type RedisProductSearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProductSearchCache wraps an existing client
func NewRedisProductSearchCache(client *redis.Client, ttl time.Duration) *RedisProductSearchCache {
	return &RedisProductSearchCache{client: client, ttl: ttl}
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func (c *RedisProductSearchCache) key(ctx context.Context, query string) (string, error) {
	generation, err := c.client.Get(ctx, searchGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read cache generation: %w", err)
	}
	return fmt.Sprintf("%s:%d:%s", searchKeyPrefix, generation, normalizeQuery(query)), nil
}

func (c *RedisProductSearchCache) Get(ctx context.Context, query string) ([]*domain.Product, bool, error) {
	key, err := c.key(ctx, query)
	if err != nil {
		return nil, false, err
	}

	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read search cache: %w", err)
	}

	var products []*domain.Product
	if err := json.Unmarshal([]byte(val), &products); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached search: %w", err)
	}
	return products, true, nil
}

func (c *RedisProductSearchCache) Set(ctx context.Context, query string, products []*domain.Product) error {
	key, err := c.key(ctx, query)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("failed to encode search results: %w", err)
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

func (c *RedisProductSearchCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, searchGenerationKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate search cache: %w", err)
	}
	return nil
}
