package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	idempotencyNamespace = keyPrefix + "idempotency:"
	inflightNamespace    = keyPrefix + "idempotency-inflight:"
)

// IdempotencyCache keeps the rendered create-payment response per
// Idempotency-Key. The first stored response wins; a later Set for the
// same key leaves it untouched so concurrent retries all replay one body.
type IdempotencyCache struct {
	rdb *goredis.Client
}

func NewIdempotencyCache(rdb *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{rdb: rdb}
}

// Get returns a nil slice when nothing is stored under key.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := c.rdb.Get(ctx, idempotencyNamespace+key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}
	return body, nil
}

func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.rdb.SetArgs(ctx, idempotencyNamespace+key, value, goredis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}

// Reserve takes the in-flight mark for key. It reports false while another
// request holds it.
func (c *IdempotencyCache) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, inflightNamespace+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency reserve: %w", err)
	}
	return ok, nil
}

func (c *IdempotencyCache) Release(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, inflightNamespace+key).Err(); err != nil {
		return fmt.Errorf("redis idempotency release: %w", err)
	}
	return nil
}
