package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// KeyCache stores issuer signing-key documents (JWKS JSON) keyed by tenant.
// It must never hold credentials or authorization decisions.
type KeyCache interface {
	Get(ctx context.Context, tenantID string) ([]byte, error)
	Set(ctx context.Context, tenantID string, doc []byte, ttl time.Duration) error
}

type redisCache struct {
	client *redis.Client
}

func NewRedisClient(url string, poolSize int) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	opt.PoolSize = poolSize

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewRedisKeyCache(client *redis.Client) KeyCache {
	return &redisCache{client: client}
}

func (r *redisCache) Get(ctx context.Context, tenantID string) ([]byte, error) {
	val, err := r.client.Get(ctx, keyFor(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return val, nil
}

func (r *redisCache) Set(ctx context.Context, tenantID string, doc []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyFor(tenantID), doc, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set redis cache: %w", err)
	}
	return nil
}

func keyFor(tenantID string) string {
	return fmt.Sprintf("jwks:%s", tenantID)
}
