package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config describes a token bucket: Capacity tokens at most, RefillRate tokens
// added every RefillInterval.
type Config struct {
	Capacity       int           `env:"CAPACITY" envDefault:"20"`
	RefillRate     int           `env:"REFILL_RATE" envDefault:"1"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL" envDefault:"3s"`
}

// Validate reports ErrInvalidConfig for non-positive values.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidConfig)
	case c.RefillRate <= 0:
		return fmt.Errorf("%w: refill rate must be positive", ErrInvalidConfig)
	case c.RefillInterval <= 0:
		return fmt.Errorf("%w: refill interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// Store keeps bucket state. ConsumeTokens takes tokens only when enough are
// available; a negative remaining value is the deficit of a refused request.
type Store interface {
	ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

// Result is the outcome of one Allow call.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	retry     time.Duration
}

// Allowed reports whether the tokens were granted.
func (r Result) Allowed() bool { return r.Remaining >= 0 }

// RetryAfter is how long a refused caller should wait. Zero when allowed.
func (r Result) RetryAfter() time.Duration { return r.retry }

// Clock is implemented by stores that keep their own time source. A bucket
// over such a store measures RetryAfter with the same clock.
type Clock interface {
	Now() time.Time
}

// Bucket applies one Config to any number of keys.
type Bucket struct {
	store Store
	cfg   Config
	now   func() time.Time
}

func NewBucket(store Store, cfg Config) (*Bucket, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Bucket{store: store, cfg: cfg, now: time.Now}
	if c, ok := store.(Clock); ok {
		b.now = c.Now
	}
	return b, nil
}

// Allow consumes one token for key.
func (b *Bucket) Allow(ctx context.Context, key string) (Result, error) {
	return b.AllowN(ctx, key, 1)
}

// AllowN consumes n tokens for key.
func (b *Bucket) AllowN(ctx context.Context, key string, n int) (Result, error) {
	if n <= 0 || n > b.cfg.Capacity {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidTokenCount, n)
	}

	remaining, resetAt, err := b.store.ConsumeTokens(ctx, key, n, b.cfg)
	if err != nil {
		return Result{}, errors.Join(ErrStoreUnavailable, err)
	}

	res := Result{Limit: b.cfg.Capacity, Remaining: remaining, ResetAt: resetAt}
	if remaining < 0 {
		intervals := (-remaining + b.cfg.RefillRate - 1) / b.cfg.RefillRate
		res.retry = max(resetAt.Sub(b.now()), 0) + time.Duration(intervals-1)*b.cfg.RefillInterval
	}
	return res, nil
}

// Wait blocks until a token for key is granted or ctx is done.
func (b *Bucket) Wait(ctx context.Context, key string) error {
	for {
		res, err := b.Allow(ctx, key)
		if err != nil {
			return err
		}
		if res.Allowed() {
			return nil
		}

		timer := time.NewTimer(max(res.RetryAfter(), time.Millisecond))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}
}

// Reset drops the state for key.
func (b *Bucket) Reset(ctx context.Context, key string) error {
	return b.store.Reset(ctx, key)
}
