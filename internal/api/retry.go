package api

import (
	"context"
	"time"
)

// Retry calls fn up to attempts times, sleeping delay*n after the n-th failure.
//
// Only [Kind.Retryable] failures are repeated; validation, auth, permission, not_found and the
// other client-side kinds return immediately. Use it for idempotent reads only.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	_, err := RetryValue(ctx, attempts, delay, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryValue is [Retry] for operations that produce a value.
func RetryValue[T any](ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}

	var (
		v   T
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt == attempts || !KindOf(err).Retryable() {
			break
		}
		if ctx.Err() != nil {
			return v, normalize(ctx.Err())
		}

		timer := time.NewTimer(delay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, normalize(ctx.Err())
		case <-timer.C:
		}
	}
	return v, err
}
