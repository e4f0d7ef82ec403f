package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/pkg/ratelimiter"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, testConfig.Validate())
	for _, cfg := range []ratelimiter.Config{
		{Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 1},
	} {
		assert.ErrorIs(t, cfg.Validate(), ratelimiter.ErrInvalidConfig)
	}
}

func TestNewBucket(t *testing.T) {
	t.Parallel()

	_, err := ratelimiter.NewBucket(nil, testConfig)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)

	_, err = ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{})
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
}

func TestBucket_Allow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newClock()
	store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(clock.Now))
	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Minute})
	require.NoError(t, err)

	for range 2 {
		res, err := limiter.Allow(ctx, "chat")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Zero(t, res.RetryAfter())
	}

	res, err := limiter.Allow(ctx, "chat")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Equal(t, 2, res.Limit)
	assert.Equal(t, time.Minute, res.RetryAfter())

	clock.Advance(20 * time.Second)
	res, err = limiter.Allow(ctx, "chat")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Equal(t, 40*time.Second, res.RetryAfter())

	other, err := limiter.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, other.Allowed())

	_, err = limiter.AllowN(ctx, "chat", 3)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
	_, err = limiter.AllowN(ctx, "chat", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

func TestBucket_Wait(t *testing.T) {
	t.Parallel()

	t.Run("waits for refill", func(t *testing.T) {
		t.Parallel()
		limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(),
			ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: 20 * time.Millisecond})
		require.NoError(t, err)

		ctx := context.Background()
		require.NoError(t, limiter.Wait(ctx, "k"))
		start := time.Now()
		require.NoError(t, limiter.Wait(ctx, "k"))
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("context ends the wait", func(t *testing.T) {
		t.Parallel()
		limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(),
			ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
		require.NoError(t, err)

		require.NoError(t, limiter.Wait(context.Background(), "k"))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err = limiter.Wait(ctx, "k")
		assert.ErrorIs(t, err, ratelimiter.ErrContextCancelled)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
