package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig bounds the retry loop for transient HTTP failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryConfig retries twice with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Second}
}

// httpStatusError marks an HTTP-level failure so the retry loop can
// distinguish retryable statuses (429, 5xx) from permanent ones.
type httpStatusError struct {
	Status int
	Body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

func retryable(err error) bool {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.Status == 429 || se.Status >= 500
	}
	// Network-level errors (no status) are retryable.
	return true
}

// RetryDo runs fn with bounded retries on transient failures.
func RetryDo[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !retryable(err) || attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.BaseDelay << (attempt - 1)
		slog.Debug("llm request retry", "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}
