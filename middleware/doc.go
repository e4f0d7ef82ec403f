// Package middleware provides net/http middleware for the webhook server:
// request ids, client address resolution, request logging with panic
// recovery, body size limits and per-client rate limiting.
//
//	h := middleware.Chain(mux,
//		middleware.RequestID(),
//		middleware.ClientIP(),
//		middleware.Logging(log),
//		middleware.BodyLimit(1<<20),
//	)
//
// Middlewares run in the order given: the first one sees the request first.
package middleware

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws to h so that mws[0] is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
