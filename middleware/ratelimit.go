package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/pkg/ratelimiter"
)

// Limiter is satisfied by *ratelimiter.Bucket.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimiter.Result, error)
}

// RateLimit answers 429 with Retry-After once a client address has used up
// its bucket. Limiter failures let the request through.
func RateLimit(l Limiter, log *slog.Logger) Middleware {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), RequestClientIP(r))
			if err != nil {
				log.WarnContext(r.Context(), "rate limiter unavailable", logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
			if !res.Allowed() {
				secs := int(math.Ceil(res.RetryAfter().Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(1, secs)))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
