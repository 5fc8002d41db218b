package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"

	"modelwatch/internal/config"
)

// RetryPolicy is the explicit bounded-retry policy for transient metrics
// store errors. It lives here, at the client boundary, so scoring logic
// never embeds ad hoc retry loops.
type RetryPolicy struct {
	MaxAttempts int
	Min         time.Duration
	Max         time.Duration
	Factor      float64
}

// RetryPolicyFromConfig builds a policy from the store config section.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Min:         cfg.BackoffMin(),
		Max:         cfg.BackoffMax(),
		Factor:      cfg.BackoffFactor,
	}
}

// Do runs op until it succeeds, the attempts are exhausted, or ctx is done.
// Context errors are never retried.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := &backoff.Backoff{Min: p.Min, Max: p.Max, Factor: p.Factor, Jitter: true}
	if b.Min <= 0 {
		b.Min = 100 * time.Millisecond
	}
	if b.Max < b.Min {
		b.Max = b.Min
	}
	if b.Factor <= 1 {
		b.Factor = 2
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
