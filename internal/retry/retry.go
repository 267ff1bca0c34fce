// Package retry provides bounded exponential backoff for collaborator
// calls. This retry budget is local to a single call site and independent
// of the remediation iteration count.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
}

// DefaultConfig mirrors the service defaults: 3 attempts, 1s base, 60s cap.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// Permanent wraps an error to signal that retrying cannot help.
type Permanent struct {
	Err error
}

// Error implements the error interface.
func (p *Permanent) Error() string { return p.Err.Error() }

// Unwrap exposes the wrapped error.
func (p *Permanent) Unwrap() error { return p.Err }

// Abort marks an error as non-retriable.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Do runs fn up to cfg.MaxAttempts times with exponential backoff between
// attempts. It stops early on success, on a Permanent error, or when the
// context is cancelled. The last error is returned after exhaustion.
func Do(ctx context.Context, cfg Config, label string, fn func(context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return perm.Err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoff(cfg, attempt)
		log.Printf("[retry] %s attempt %d/%d failed, retrying in %v: %v", label, attempt, cfg.MaxAttempts, delay, lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", label, cfg.MaxAttempts, lastErr)
}

// backoff computes the delay before the next attempt: base doubled per
// failed attempt, capped at MaxDelay.
func backoff(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if cfg.MaxDelay > 0 && delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
