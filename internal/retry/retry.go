// Package retry expresses the retry-with-backoff policy as pure functions
// consumed uniformly by the connection manager (connect attempts) and the
// transfer engine (per-item retries). Only connectivity-class errors are
// retried; authentication and fatal errors return immediately.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/paneferry/paneferry/internal/vfs"
)

// Config holds retry parameters for Do.
type Config struct {
	// MaxAttempts is the total number of attempts, first try included.
	MaxAttempts int
	// InitialDelay is the base delay for exponential backoff.
	InitialDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// OnRetry is invoked before each retry attempt, if set.
	OnRetry func(attempt int, err error)
}

// DefaultConfig returns the policy used for connect attempts and mid-transfer
// item retries: 3 attempts, exponential backoff starting at 1s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     15 * time.Second,
	}
}

// Backoff returns the exponential backoff delay before the given retry
// attempt (1-based), with full jitter to spread out synchronized retries.
//
// Formula: random(0, min(maxDelay, initialDelay * 2^(attempt-1)))
func Backoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt-1)) * initialDelay
	if base > maxDelay {
		base = maxDelay
	}
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}

// Do runs operation with the configured policy.
//
// Strategy by error class:
//   - connectivity: retried with exponential backoff and jitter
//   - authentication: returned immediately, never auto-retried
//   - cancellation: returned immediately
//   - anything else: fatal, returned immediately
func Do(ctx context.Context, cfg Config, operation func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		switch vfs.Classify(err) {
		case vfs.ClassConnectivity:
			if attempt == cfg.MaxAttempts {
				break
			}
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, err)
			}
			delay := Backoff(attempt, cfg.InitialDelay, cfg.MaxDelay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		default:
			// Auth, cancellation and fatal errors are not retried.
			return err
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
