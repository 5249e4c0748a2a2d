package sqlstore

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig configures retry behaviour for transient database errors.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper retries operations that fail with transient errors.
type RetryHelper struct {
	config    RetryConfig
	retryable func(error) bool
}

// NewRetryHelper creates a retry helper. A nil classifier never retries.
func NewRetryHelper(config RetryConfig, retryable func(error) bool) *RetryHelper {
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	return &RetryHelper{config: config, retryable: retryable}
}

// WithRetry executes fn, retrying with exponential backoff while it fails
// with a retryable error.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
			if delay > rh.config.MaxDelay {
				delay = rh.config.MaxDelay
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !rh.retryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", rh.config.MaxRetries, lastErr)
}
