package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy describes how a fallible step is re-attempted: a fixed number
// of attempts with a fixed delay between them, optionally gated by a
// predicate so non-transient failures abort immediately.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration

	// Retryable reports whether the error is worth another attempt.
	// Nil means every error is retryable.
	Retryable func(error) bool
}

// DefaultRetryPolicy matches the pipeline's reservation retry: three
// attempts, half a second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 500 * time.Millisecond}
}

// Retry runs fn under the policy. It returns the last error once attempts
// are exhausted, the first non-retryable error immediately, or the context
// error if the context ends while waiting between attempts.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if policy.Retryable != nil && !policy.Retryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("retry exhausted after %d attempts: %w", attempts, lastErr)
}
