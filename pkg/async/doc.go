// Package async runs error-returning functions in the background and lets
// callers await, poll or ignore the outcome.
//
// Webhook handlers use it to hand a publish off to a goroutine so the HTTP
// response never waits on the queue:
//
//	async.Exec(context.WithoutCancel(r.Context()), env, publish).
//		OnError(func(err error) { log.Error("publish failed", logger.Error(err)) })
//
// Errors:
//   - ErrTimeout: AwaitWithTimeout gave up before the function finished
//   - ErrNoFutures: ExecAny was called with no futures
package async
