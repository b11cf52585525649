package embed

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig configures exponential backoff for remote embedder calls.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
	}
}

// withRetry retries fn on transient failures (fn returns true for the
// second value when the error is worth retrying) with exponential
// backoff capped at cfg.MaxDelay. Non-retryable errors return immediately.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() (bool, error)) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		retryable, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt >= cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("failed after retries: %w", lastErr)
}

// isTransientStatus reports whether an HTTP status code is worth retrying:
// server errors and rate limiting, never client errors.
func isTransientStatus(status int) bool {
	return status == 429 || status >= 500
}

var errClosed = errors.New("embedder is closed")
