// Package retry repeats transient operations with jittered exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

const (
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 2 * time.Second
	defaultJitter    = 100 * time.Millisecond
)

type Config struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    time.Duration
	// Retryable decides whether a failed attempt is worth repeating.
	// A nil func retries every error.
	Retryable func(error) bool
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.Jitter <= 0 {
		c.Jitter = defaultJitter
	}
	return c
}

// backoff returns the pause before retry n (0-based), capped at MaxDelay.
func (c Config) backoff(n int) time.Duration {
	d := c.BaseDelay
	for i := 0; i < n && d < c.MaxDelay; i++ {
		d *= 2
	}
	d += time.Duration(rand.Int63n(int64(c.Jitter)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, the attempts are exhausted, a non-retryable
// error is returned, or ctx is done. With Attempts <= 1 fn runs exactly once
// and its error is returned unwrapped.
func Do(ctx context.Context, config Config, fn func() error) error {
	if config.Attempts <= 1 {
		return fn()
	}
	config = config.withDefaults()

	var err error
	for attempt := 0; attempt < config.Attempts; attempt++ {
		if attempt > 0 {
			if sleepErr := sleep(ctx, config.backoff(attempt-1)); sleepErr != nil {
				return sleepErr
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if config.Retryable != nil && !config.Retryable(err) {
			return err
		}
	}
	return fmt.Errorf("retry failed after %d attempts: %w", config.Attempts, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
