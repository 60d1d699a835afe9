package resilience

import (
	"context"
	"time"
)

// Caller composes the retry policy with the per-target circuit breaker.
// The breaker is consulted once per retry attempt, so an open breaker
// short-circuits the remaining retries instead of burning them against a
// target already judged unhealthy.
type Caller struct {
	Breakers *BreakerRegistry
	Retry    Policy

	// OnRetry, when set, is invoked before each backoff sleep with the
	// attempt number that just failed.
	OnRetry func(key string, attempt int, err error)

	// sleep is swappable for tests; defaults to Wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCaller wires a Caller from its two halves.
func NewCaller(breakers *BreakerRegistry, retry Policy) *Caller {
	return &Caller{Breakers: breakers, Retry: retry, sleep: Wait}
}

// Call runs op under the caller's policies, keyed by target. Each attempt:
// consult the breaker, invoke, record the outcome (success / failure / slow)
// into the breaker's window. Only transient failures are retried; validation
// and auth class errors surface immediately.
func Call[T any](ctx context.Context, c *Caller, key string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := c.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := c.sleep
	if sleep == nil {
		sleep = Wait
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if err := c.Breakers.Allow(key); err != nil {
			// Open breaker: fail fast, no network attempt, no further
			// retries.
			return zero, err
		}

		start := time.Now()
		v, err := op(ctx)
		c.Breakers.Record(key, err, time.Since(start))

		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}
		if c.OnRetry != nil {
			c.OnRetry(key, attempt, err)
		}
		if err := sleep(ctx, c.Retry.Backoff(attempt)); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}
