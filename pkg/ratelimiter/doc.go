// Package ratelimiter implements token bucket rate limiting over a pluggable
// Store.
//
// A Bucket consumes tokens per key. Allow reports the outcome without
// blocking; Wait sleeps until a token is available or the context ends:
//
//	store := ratelimiter.NewMemoryStore()
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       20,
//		RefillRate:     1,
//		RefillInterval: 3 * time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	if err := limiter.Wait(ctx, "telegram:12345"); err != nil {
//		return err
//	}
//
// MemoryStore drops buckets that have been idle for an hour when its
// cleanup loop is running (see MemoryStore.Run).
package ratelimiter
