package asyncx

import (
	"context"
	"sync"
	"time"
)

// ─── Settled fan-out ──────────────────────────────────────────────────────────

// Result holds the outcome of a single settled async operation.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the result carries no error.
func (r Result[T]) OK() bool { return r.Err == nil }

// AllSettled runs all fns concurrently and waits for every one to finish.
// It never short-circuits: it always returns one Result per fn, in input order.
func AllSettled[T any](ctx context.Context, fns ...func(context.Context) (T, error)) []Result[T] {
	results := make([]Result[T], len(fns))
	var wg sync.WaitGroup
	wg.Add(len(fns))

	for i, fn := range fns {
		i, fn := i, fn
		go func() {
			defer wg.Done()
			v, err := fn(ctx)
			results[i] = Result[T]{Value: v, Err: err}
		}()
	}
	wg.Wait()
	return results
}

// ─── Retry ────────────────────────────────────────────────────────────────────

// Backoff configures RetryWithBackoff. The delay doubles after each failed
// attempt and is capped at MaxDelay when MaxDelay > 0.
type Backoff struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// OnRetry, if set, is called after every failed attempt that will be retried
	OnRetry func(attempt int, err error, wait time.Duration)
}

// RetryWithBackoff calls fn until it succeeds or the attempts are exhausted,
// returning the last error. Cancellation of ctx stops the loop between attempts.
func RetryWithBackoff[T any](ctx context.Context, b Backoff, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero  T
		err   error
		val   T
		delay = b.InitialDelay
	)
	if b.Attempts < 1 {
		b.Attempts = 1
	}

	for i := 0; i < b.Attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
		if i == b.Attempts-1 {
			break
		}

		if b.OnRetry != nil {
			b.OnRetry(i+1, err, delay)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if b.MaxDelay > 0 && delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
	return zero, err
}
