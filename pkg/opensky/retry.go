package opensky

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unklstewy/flightwx/pkg/logger"
)

// ErrExhaustedRetries is returned when every attempt of a retried call failed.
var ErrExhaustedRetries = errors.New("exhausted retries")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryConfig configures fixed-delay retry behavior.
type RetryConfig struct {
	// Attempts is the total number of calls made (default: 3)
	Attempts int

	// Delay is the wait after each failed attempt (default: 960 seconds)
	Delay time.Duration

	// Sleep is used for the wait. Defaults to a context-aware timer.
	Sleep SleepFunc
}

// DefaultRetryConfig returns the defaults used against OpenSky, whose
// anonymous quota resets slowly.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		Delay:    960 * time.Second,
		Sleep:    ContextSleep,
	}
}

// ContextSleep sleeps for d, returning early with the context error when
// ctx is cancelled.
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn up to cfg.Attempts times, sleeping cfg.Delay after every
// failed attempt. When all attempts fail the returned error wraps both
// ErrExhaustedRetries and the last error.
//
// Example usage:
//
//	flights, err := Retry(ctx, cfg, log, func() ([]RawFlight, error) {
//	    return client.FlightsInInterval(ctx, begin, end)
//	})
func Retry[T any](ctx context.Context, cfg RetryConfig, log *logger.Logger, fn func() (T, error)) (T, error) {
	var zero T

	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	if log == nil {
		log = logger.Nop()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err

		fields := []logger.Field{
			logger.Int("attempt", attempt),
			logger.Int("attempts", attempts),
			logger.Duration("delay", cfg.Delay),
			logger.Error(err),
		}
		if rle, ok := IsRateLimitError(err); ok && rle.Headers.Remaining >= 0 {
			fields = append(fields,
				logger.Int("rate_limit_remaining", rle.Headers.Remaining),
				logger.Int("rate_limit_limit", rle.Headers.Limit))
		}
		log.Warn("Call failed, waiting before next attempt", fields...)

		if err := sleep(ctx, cfg.Delay); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhaustedRetries, attempts, lastErr)
}
