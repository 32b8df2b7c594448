// Package retry provides a bounded retry wrapper with exponential
// backoff and a retryable-error predicate.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	// Retryable decides whether an error is worth another attempt.
	// nil means every error is retryable.
	Retryable func(error) bool
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialWait <= 0 {
		c.InitialWait = 2 * time.Second
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 30 * time.Second
	}
	return c
}

// Do runs op until it succeeds, the attempt budget is exhausted, the
// error is non-retryable, or ctx is cancelled. The last error is
// returned unwrapped so callers can still match it with errors.Is.
func Do(ctx context.Context, cfg Config, op func(context.Context) error) error {
	cfg = cfg.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialWait
	bo.MaxInterval = cfg.MaxWait
	bo.MaxElapsedTime = 0

	wrapped := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(cfg.MaxAttempts-1)), ctx))
}
