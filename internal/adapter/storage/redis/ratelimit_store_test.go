package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_Allow(t *testing.T) {
	s, client := newTestClient(t)
	store := NewRateLimitStore(client)
	clock := time.Date(2026, 3, 1, 10, 0, 15, 0, time.UTC)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			res, err := store.Allow(ctx, "merchant-a:create", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, res.Allowed, "request %d", i)
			assert.Equal(t, 3-i, res.Remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		res, err := store.Allow(ctx, "merchant-a:create", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, int64(0), res.Remaining)
		assert.Equal(t, time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC), res.ResetAt)
	})

	t.Run("keys are independent", func(t *testing.T) {
		res, err := store.Allow(ctx, "merchant-b:create", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(2), res.Remaining)
	})

	t.Run("counter carries a ttl", func(t *testing.T) {
		keys := s.Keys()
		require.NotEmpty(t, keys)
		for _, k := range keys {
			assert.Positive(t, s.TTL(k), k)
		}
	})

	t.Run("next window starts fresh", func(t *testing.T) {
		clock = clock.Add(time.Minute)
		res, err := store.Allow(ctx, "merchant-a:create", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(2), res.Remaining)
	})
}

func TestRateLimitStore_RejectsZeroWindow(t *testing.T) {
	_, client := newTestClient(t)
	_, err := NewRateLimitStore(client).Allow(context.Background(), "k", 1, 0)
	assert.Error(t, err)
}
