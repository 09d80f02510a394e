package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds how often an operation is re-attempted and how long to wait in between.
// MaxRetries counts additional attempts: MaxRetries=3 allows four calls in total.
type Policy struct {
	MaxRetries int
	Backoff    func(attempt int) time.Duration
}

// Fixed returns a policy waiting the same delay before every retry.
func Fixed(maxRetries int, delay time.Duration) Policy {
	return Policy{
		MaxRetries: maxRetries,
		Backoff:    func(int) time.Duration { return delay },
	}
}

// NoDelay returns a policy that retries immediately. Intended for tests.
func NoDelay(maxRetries int) Policy {
	return Fixed(maxRetries, 0)
}

func (p Policy) wait(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	if d := p.Backoff(attempt); d > 0 {
		return d
	}
	return 0
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls op until it succeeds, returns a Permanent error, the policy is exhausted or ctx is
// done. onRetry (optional) is invoked before each wait with the failed attempt number (1-based).
// It returns the number of calls made and the last error.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, onRetry func(attempt int, err error, wait time.Duration)) (int, error) {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempt - 1, lastErr
		}

		err := op(ctx)
		if err == nil {
			return attempt, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return attempt, perm.err
		}
		lastErr = err

		if attempt > maxRetries {
			break
		}

		wait := p.wait(attempt)
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
		if wait == 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, lastErr
		case <-timer.C:
		}
	}

	return maxRetries + 1, lastErr
}
