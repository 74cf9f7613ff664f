package platform

import (
	"context"
	"time"

	"brokergate/internal/logger"
)

const (
	// MaxAttempts bounds transport retries per operation.
	MaxAttempts = 3

	retryBaseDelay = 250 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
)

// backoffDelay returns the exponential delay before the given retry,
// baseDelay * 2^retry capped at retryMaxDelay.
func backoffDelay(retry int) time.Duration {
	if retry < 0 {
		return retryBaseDelay
	}
	if retry > 10 {
		return retryMaxDelay
	}
	d := retryBaseDelay * time.Duration(1<<retry)
	if d > retryMaxDelay {
		return retryMaxDelay
	}
	return d
}

// WithRetry runs fn up to MaxAttempts times, backing off between
// attempts. Only transport failures are retried; every other error is
// returned immediately.
func WithRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt - 1)
			logger.Debugf("%s: transport failure, retrying in %s (attempt %d/%d)", op, delay, attempt+1, MaxAttempts)
			select {
			case <-ctx.Done():
				return Transportf("%s: %v", op, ctx.Err())
			case <-time.After(delay):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
	}
	return err
}
