package resilience

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"time"

	"github.com/provis-io/provis/internal/config"
	"github.com/provis-io/provis/pkg/schema"
)

// Policy is the retry-with-backoff policy applied around pool borrows and
// remote executes.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// PolicyFromConfig converts the loaded retry section into a Policy.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.Multiplier,
	}
}

// Backoff returns the delay after the given zero-based attempt:
// min(initial * multiplier^attempt, max).
func (p Policy) Backoff(attempt int) time.Duration {
	if p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := time.Duration(float64(p.InitialBackoff) * math.Pow(mult, float64(attempt)))
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// IsTransient classifies whether an error is worth retrying. Typed engine
// errors answer for themselves; network errors and common transport failure
// strings are transient; context cancellation never is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pErr *schema.ProvisError
	if errors.As(err, &pErr) {
		return pErr.IsRetryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"eof",
		"i/o timeout",
		"temporary failure",
		"no route to host",
		"handshake failed",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// Wait sleeps for the given delay or returns early when the context is
// cancelled.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
