package provider

import (
	"context"
	"time"
)

// Policy decides whether a failed attempt should be retried and how long to
// wait before the next one. Attempt numbering starts at 1.
type Policy func(attempt int, err error) (retry bool, delay time.Duration)

// LinearBackoff retries transient errors up to maxAttempts total attempts,
// waiting attempt*base between tries. Permanent errors are never retried.
func LinearBackoff(maxAttempts int, base time.Duration) Policy {
	return func(attempt int, err error) (bool, time.Duration) {
		if attempt >= maxAttempts {
			return false, 0
		}
		if !IsTransient(err) {
			return false, 0
		}
		return true, time.Duration(attempt) * base
	}
}

// Do runs fn under the given retry policy. The last error is returned when
// the policy gives up or the context is cancelled during backoff.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	attempt := 0
	for {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}

		retry, delay := policy(attempt, err)
		if !retry {
			return err
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}
	}
}
