package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyGuard claims checkout idempotency keys with SETNX so a retried
// request cannot place a second order.
type IdempotencyGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewIdempotencyGuard(client redis.UniversalClient, ttl time.Duration) (*IdempotencyGuard, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyGuard{client: client, ttl: ttl}, nil
}

// Acquire reports whether the caller now owns the key. false means another
// request already claimed it.
func (g *IdempotencyGuard) Acquire(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("idempotency key is required")
	}
	ok, err := g.client.SetNX(ctx, idempotencyKey(key), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

// Release frees a key after a failed attempt so the client may retry.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, idempotencyKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("checkout:%s", key)
}
