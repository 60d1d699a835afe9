package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provis-io/provis/internal/config"
	"github.com/provis-io/provis/pkg/schema"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

func TestPolicy_BackoffSequence(t *testing.T) {
	p := testPolicy()
	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
}

func TestPolicy_BackoffCapped(t *testing.T) {
	p := testPolicy()
	p.MaxBackoff = 3 * time.Second
	assert.Equal(t, 3*time.Second, p.Backoff(5))
}

func TestPolicy_BackoffZeroInitial(t *testing.T) {
	p := Policy{MaxAttempts: 3}
	assert.Equal(t, time.Duration(0), p.Backoff(0))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(context.DeadlineExceeded))

	assert.True(t, IsTransient(schema.NewError(schema.ErrCodeConnection, "x")))
	assert.True(t, IsTransient(schema.NewError(schema.ErrCodePoolExhausted, "x")))
	assert.False(t, IsTransient(schema.NewError(schema.ErrCodeValidation, "x")))
	assert.False(t, IsTransient(schema.NewError(schema.ErrCodeCircuitOpen, "x")))
	assert.False(t, IsTransient(schema.NewError(schema.ErrCodeUnitExecution, "x")))

	assert.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	assert.True(t, IsTransient(errors.New("ssh: handshake failed: read: broken pipe")))
	assert.False(t, IsTransient(errors.New("ssh: unable to authenticate")))
}

// recordingCaller returns a Caller whose sleeps are recorded, not slept.
func recordingCaller(cfg config.BreakerConfig, p Policy) (*Caller, *[]time.Duration) {
	delays := &[]time.Duration{}
	c := NewCaller(NewBreakerRegistry(cfg), p)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return c, delays
}

func TestCall_ExactDelaySequenceAndAttemptCount(t *testing.T) {
	c, delays := recordingCaller(breakerConfig(), testPolicy())

	attempts := 0
	transient := schema.NewError(schema.ErrCodeConnection, "connection reset")
	_, err := Call(context.Background(), c, key, func(ctx context.Context) (int, error) {
		attempts++
		return 0, transient
	})

	// 3 attempts, delays of 1s and 2s between them, then the error
	// surfaces unchanged.
	require.ErrorIs(t, err, transient)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestCall_SucceedsAfterTransientFailures(t *testing.T) {
	c, delays := recordingCaller(breakerConfig(), testPolicy())

	attempts := 0
	v, err := Call(context.Background(), c, key, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", schema.NewError(schema.ErrCodeConnection, "connection reset")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, attempts)
	assert.Len(t, *delays, 2)
}

func TestCall_NonTransientBypassesRetry(t *testing.T) {
	c, delays := recordingCaller(breakerConfig(), testPolicy())

	attempts := 0
	_, err := Call(context.Background(), c, key, func(ctx context.Context) (int, error) {
		attempts++
		return 0, schema.NewError(schema.ErrCodeValidation, "bad argument")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, *delays)
}

func TestCall_OpenBreakerShortCircuitsRetries(t *testing.T) {
	cfg := breakerConfig()
	cfg.MinimumCalls = 2
	cfg.WindowSize = 2
	c, _ := recordingCaller(cfg, testPolicy())

	// Two failing calls trip the breaker mid-retry; the loop must stop
	// without burning the remaining attempt.
	attempts := 0
	_, err := Call(context.Background(), c, key, func(ctx context.Context) (int, error) {
		attempts++
		return 0, schema.NewError(schema.ErrCodeConnection, "connection reset")
	})

	require.Error(t, err)
	var pErr *schema.ProvisError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, schema.ErrCodeCircuitOpen, pErr.Code)
	assert.Equal(t, 2, attempts)
}

func TestCall_CancelledContextStops(t *testing.T) {
	c, _ := recordingCaller(breakerConfig(), testPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := Call(ctx, c, key, func(ctx context.Context) (int, error) {
		attempts++
		return 0, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, attempts)
}

func TestWait_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Wait(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, Wait(context.Background(), 0))
}
