package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNetwork is returned when a remote cache backend cannot be reached.
var ErrNetwork = errors.New("network error")

const retryAttempts = 3

// Delays between attempts. Variables so tests can shorten them.
var (
	retryDelay    = time.Second
	maxRetryDelay = 30 * time.Second
)

// RetryableError marks an error as transient. After, when set, is the
// minimum wait the server asked for before the next attempt.
type RetryableError struct {
	Err   error
	After time.Duration
}

// Retryable marks err as transient. It returns nil for a nil err.
func Retryable(err error) error {
	return RetryAfter(err, 0)
}

// RetryAfter marks err as transient and asks for at least d before the next
// attempt, as a Retry-After header does.
func RetryAfter(err error, d time.Duration) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, After: d}
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err was marked with [Retryable] or [RetryAfter].
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// RetryWithBackoff calls fn up to three times. Only errors marked retryable
// are retried. The wait doubles after each attempt, never drops below a
// server-requested delay, and is capped at maxRetryDelay.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	delay := retryDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var re *RetryableError
		if !errors.As(err, &re) || attempt == retryAttempts {
			return err
		}

		wait := min(max(delay, re.After), maxRetryDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
}
