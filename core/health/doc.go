// Package health provides HTTP handlers for liveness and readiness checks.
//
//	mux.Handle("GET /health/live", health.Liveness())
//	mux.Handle("GET /health/ready", health.Readiness(log,
//		health.Check("postgres", pg.Healthcheck(pool)),
//		health.Check("redis", redis.Healthcheck(rdb)),
//	))
package health
