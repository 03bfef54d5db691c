package retry

import (
	"context"
	"errors"
	"time"

	"social-ingest/internal/logging"
	"social-ingest/internal/metrics"
)

var log = logging.For("retry")

// Config configures retry behavior for an upstream operation
type Config struct {
	// MaxAttempts is the total number of calls, including the first one.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Operation labels metrics and log lines (e.g. "instagram_profile").
	Operation string
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns the schedule used for flaky third-party APIs:
// three attempts, 1s base delay doubling up to 5s.
func DefaultConfig(operation string) Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   1000 * time.Millisecond,
		MaxDelay:    5000 * time.Millisecond,
		Operation:   operation,
	}
}

// Delay returns the wait before retry n (n >= 1):
// min(BaseDelay * 2^(n-1), MaxDelay).
func (c Config) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := c.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if c.MaxDelay > 0 && d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// retryableError marks an error as worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so Do will try again. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err (or anything it wraps) was marked with Retryable.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do calls op until it succeeds, returns a non-retryable error, or
// MaxAttempts calls have been made. The value and error of the last call are
// returned. op receives the 1-based attempt number.
//
// Cancelling ctx during a backoff wait stops the loop and returns ctx.Err().
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	start := time.Now()
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	label := cfg.Operation
	if label == "" {
		label = "unknown"
	}

	var (
		value T
		err   error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		value, err = op(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.Info("%s succeeded on attempt %d", label, attempt)
				metrics.RetrySuccess.WithLabelValues(label).Inc()
				metrics.RetryDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
			}
			return value, nil
		}

		// Only retry errors the operation marked as retryable
		if !IsRetryable(err) {
			return value, err
		}

		// Don't sleep after the last attempt
		if attempt == maxAttempts {
			break
		}

		delay := cfg.Delay(attempt)
		metrics.RetryAttempts.WithLabelValues(label).Inc()
		log.Debug("%s attempt %d/%d failed: %v, retrying in %v", label, attempt, maxAttempts, err, delay)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return value, sleepErr
		}
	}

	log.Warn("%s failed after %d attempts: %v", label, maxAttempts, err)
	metrics.RetryFailures.WithLabelValues(label).Inc()
	metrics.RetryDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return value, err
}
