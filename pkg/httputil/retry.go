package httputil

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultAttempts is one call plus three retries.
	DefaultAttempts = 4

	// DefaultRetryDelay is the base delay of the linear backoff.
	DefaultRetryDelay = time.Second
)

// Retry executes fn up to attempts times with linear backoff.
//
// Permanent failures (see [IsPermanent]) are returned immediately, as is
// cancellation of ctx. Any other failure waits baseDelay × attemptNumber
// before the next try. Returns the last error if all attempts fail.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	return retry(ctx, attempts, baseDelay, nil, fn)
}

func retry(ctx context.Context, attempts int, baseDelay time.Duration, logger *log.Logger, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; IsPermanent(err) || isCancelled(ctx, err) {
			return err
		}

		if i < attempts-1 {
			delay := baseDelay * time.Duration(i+1)
			if logger != nil {
				logger.Warn("request failed, retrying",
					"attempt", i+1,
					"of", attempts,
					"delay", delay,
					"err", lastErr)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}

// isCancelled reports whether err stems from the caller giving up, as opposed
// to the per-call deadline which surfaces as a timeout TransportError.
func isCancelled(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}
