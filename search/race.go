package search

import (
	"context"
	"time"
)

// FirstOf runs op and returns whichever comes first: op's result, the
// timeout, or cancellation of ctx. The context passed to op is cancelled
// when FirstOf returns, so a losing op can release its resources; its late
// result is discarded. A non-positive timeout waits on ctx alone.
func FirstOf[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	// Buffered so the goroutine never blocks after FirstOf has returned.
	done := make(chan result, 1)
	go func() {
		v, err := op(opCtx)
		done <- result{value: v, err: err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-expired:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
