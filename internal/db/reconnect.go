package db

import (
	"context"
	"strings"
	"time"

	"github.com/unklstewy/flightwx/pkg/config"
	"github.com/unklstewy/flightwx/pkg/logger"
)

// connErrors are substrings of errors caused by a lost connection.
var connErrors = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"bad connection",
	"database is locked",
	"eof",
	"timeout",
}

// ReconnectWithRetry attempts to connect with exponential backoff capped at
// 60 seconds. maxRetries of 0 retries until ctx is done.
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration, log *logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.Nop()
	}
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		log.Debug("Database connection attempt", logger.Int("attempt", attempt))

		db, err := Connect(cfg)
		if err == nil {
			if attempt > 1 {
				log.Info("Database reconnected", logger.Int("attempts", attempt))
			}
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			log.Error("Failed to connect to database", logger.Int("attempts", attempt), logger.Error(err))
			return nil, err
		}

		log.Warn("Database connection failed", logger.Error(err), logger.Duration("retry_in", delay))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// HealthCheck reports whether the database answers a trivial query.
func HealthCheck(ctx context.Context, db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return false
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return false
	}
	return result == 1
}

// IsConnectionError reports whether err looks like a transient connection failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range connErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// WithRetry runs operation, retrying connection failures up to maxRetries
// times with a linearly growing wait. Other errors are returned immediately.
func WithRetry(ctx context.Context, operation func() error, maxRetries int, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsConnectionError(err) {
			return err
		}

		if attempt < maxRetries {
			wait := time.Duration(attempt+1) * time.Second
			log.Warn("Database operation failed",
				logger.Int("attempt", attempt+1),
				logger.Int("attempts", maxRetries+1),
				logger.Duration("retry_in", wait),
				logger.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return lastErr
}
