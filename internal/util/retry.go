package util

import (
	"context"
	"time"
)

// Retry calls fn up to maxAttempts times with exponential backoff starting
// at baseDelay and returns the first successful result. If every attempt
// fails it returns the zero value and the last error. Context cancellation
// is honoured between retries.
func Retry[T any](ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var (
		out   T
		err   error
		delay = baseDelay
	)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		out, err = fn()
		if err == nil {
			return out, nil
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return out, err
}
