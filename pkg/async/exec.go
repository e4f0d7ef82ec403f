package async

import (
	"context"
	"fmt"
	"time"
)

// ExecFuture is the pending outcome of a function started by Exec.
type ExecFuture struct {
	err  error
	done chan struct{}
}

// Await blocks until the function returns.
func (f *ExecFuture) Await() error {
	<-f.done
	return f.err
}

// AwaitWithTimeout is Await bounded by timeout.
func (f *ExecFuture) AwaitWithTimeout(timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-f.done:
		return f.err
	case <-t.C:
		return ErrTimeout
	}
}

// IsComplete reports whether the function has returned.
func (f *ExecFuture) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// OnError calls fn in the background if the function fails.
// It returns the future for chaining.
func (f *ExecFuture) OnError(fn func(error)) *ExecFuture {
	go func() {
		if err := f.Await(); err != nil {
			fn(err)
		}
	}()
	return f
}

// Exec runs fn(ctx, param) in a new goroutine. A context that is already
// done short-circuits with its error. A panic in fn is reported as an error.
func Exec[T any](ctx context.Context, param T, fn func(context.Context, T) error) *ExecFuture {
	f := &ExecFuture{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("async: panic: %v", r)
			}
		}()

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.err = fn(ctx, param)
	}()

	return f
}

// ExecAll waits for every future and returns the first error in argument order.
func ExecAll(futures ...*ExecFuture) error {
	var first error
	for _, future := range futures {
		if err := future.Await(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ExecAny returns the index and error of whichever future finishes first.
func ExecAny(futures ...*ExecFuture) (int, error) {
	if len(futures) == 0 {
		return -1, ErrNoFutures
	}

	type result struct {
		index int
		err   error
	}
	done := make(chan result, len(futures))
	for i, future := range futures {
		go func() {
			done <- result{i, future.Await()}
		}()
	}

	res := <-done
	return res.index, res.err
}
