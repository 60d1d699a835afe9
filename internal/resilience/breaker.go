package resilience

import (
	"sync"
	"time"

	"github.com/provis-io/provis/internal/config"
	"github.com/provis-io/provis/pkg/schema"
)

// BreakerState represents the state of a circuit breaker.
type BreakerState int

const (
	BreakerClosed     BreakerState = iota // normal operation
	BreakerOpen                           // failing, rejecting calls
	BreakerHalfOpen                       // probing recovery
	BreakerForcedOpen                     // operator hold, never auto-recovers
	BreakerDisabled                       // operator bypass, always allows
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	case BreakerForcedOpen:
		return "forced_open"
	case BreakerDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

type outcome uint8

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	outcomeSlow
)

// breaker tracks call outcomes for a single target over a sliding window of
// the last N calls.
type breaker struct {
	mu     sync.Mutex
	state  BreakerState
	window []outcome // ring, newest appended, oldest dropped at capacity

	openedAt          time.Time
	halfOpenPermitted int // trial calls handed out in half-open
	halfOpenSuccesses int

	cfg config.BreakerConfig
	now func() time.Time
}

// BreakerRegistry owns one breaker per target key. All callers targeting the
// same key share the same breaker instance.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*breaker
	cfg      config.BreakerConfig

	// now is swappable for tests.
	now func() time.Time
}

// NewBreakerRegistry creates a registry with the given config.
func NewBreakerRegistry(cfg config.BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*breaker),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Allow checks whether a call to the target is permitted. Returns nil if
// allowed, or a circuit-open ProvisError without any network attempt.
func (r *BreakerRegistry) Allow(key string) error {
	b := r.getOrCreate(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerDisabled:
		return nil

	case BreakerClosed:
		return nil

	case BreakerForcedOpen:
		return schema.NewErrorf(schema.ErrCodeCircuitOpen,
			"circuit for %s is forced open", key).
			WithDetails(map[string]any{"target": key, "state": b.state.String()})

	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.WaitDuration {
			b.state = BreakerHalfOpen
			b.halfOpenPermitted = 1 // this call is the first trial
			b.halfOpenSuccesses = 0
			return nil
		}
		remaining := b.cfg.WaitDuration - b.now().Sub(b.openedAt)
		return schema.NewErrorf(schema.ErrCodeCircuitOpen,
			"circuit for %s is open, %s until half-open", key, remaining.Round(time.Millisecond)).
			WithDetails(map[string]any{"target": key, "state": b.state.String()})

	case BreakerHalfOpen:
		if b.halfOpenPermitted >= b.cfg.HalfOpenMaxCalls {
			return schema.NewErrorf(schema.ErrCodeCircuitOpen,
				"circuit for %s is half-open, trial quota reached", key).
				WithDetails(map[string]any{"target": key, "state": b.state.String()})
		}
		b.halfOpenPermitted++
		return nil
	}

	return nil
}

// Record registers a call outcome. A call slower than the slow-call
// threshold counts as slow even when it succeeded.
func (r *BreakerRegistry) Record(key string, err error, elapsed time.Duration) {
	b := r.getOrCreate(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerDisabled || b.state == BreakerForcedOpen {
		return
	}

	o := outcomeSuccess
	switch {
	case err != nil:
		o = outcomeFailure
	case b.cfg.SlowCallThreshold > 0 && elapsed >= b.cfg.SlowCallThreshold:
		o = outcomeSlow
	}

	if b.state == BreakerHalfOpen {
		if o == outcomeFailure {
			b.trip()
			return
		}
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.HalfOpenMaxCalls {
			b.reset()
		}
		return
	}

	// Closed: slide the window and evaluate rates.
	b.window = append(b.window, o)
	if len(b.window) > b.cfg.WindowSize {
		b.window = b.window[len(b.window)-b.cfg.WindowSize:]
	}
	if len(b.window) < b.cfg.MinimumCalls {
		return
	}

	var failures, slow int
	for _, w := range b.window {
		switch w {
		case outcomeFailure:
			failures++
		case outcomeSlow:
			slow++
		}
	}
	total := float64(len(b.window))
	failRate := float64(failures) / total
	slowRate := float64(slow) / total

	if failRate >= b.cfg.FailureRateThreshold ||
		(b.cfg.SlowRateThreshold > 0 && slowRate >= b.cfg.SlowRateThreshold) {
		b.trip()
	}
}

// State returns the breaker state, applying the automatic open→half-open
// transition when the wait duration has elapsed.
func (r *BreakerRegistry) State(key string) BreakerState {
	b := r.getOrCreate(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.WaitDuration {
		b.state = BreakerHalfOpen
		b.halfOpenPermitted = 0
		b.halfOpenSuccesses = 0
	}
	return b.state
}

// ForceOpen pins the breaker open until Reset. Operator control.
func (r *BreakerRegistry) ForceOpen(key string) {
	b := r.getOrCreate(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerForcedOpen
	b.window = b.window[:0]
}

// Disable bypasses the breaker until Reset. Operator control.
func (r *BreakerRegistry) Disable(key string) {
	b := r.getOrCreate(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerDisabled
	b.window = b.window[:0]
}

// Reset returns the breaker to closed with an empty window.
func (r *BreakerRegistry) Reset(key string) {
	b := r.getOrCreate(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

// Stats returns diagnostic information about one breaker.
func (r *BreakerRegistry) Stats(key string) map[string]any {
	b := r.getOrCreate(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	var failures, slow int
	for _, w := range b.window {
		switch w {
		case outcomeFailure:
			failures++
		case outcomeSlow:
			slow++
		}
	}
	return map[string]any{
		"target":       key,
		"state":        b.state.String(),
		"window_calls": len(b.window),
		"failures":     failures,
		"slow_calls":   slow,
	}
}

func (b *breaker) trip() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.window = b.window[:0]
	b.halfOpenPermitted = 0
	b.halfOpenSuccesses = 0
}

func (b *breaker) reset() {
	b.state = BreakerClosed
	b.window = b.window[:0]
	b.halfOpenPermitted = 0
	b.halfOpenSuccesses = 0
}

func (r *BreakerRegistry) getOrCreate(key string) *breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		b = &breaker{
			state:  BreakerClosed,
			window: make([]outcome, 0, r.cfg.WindowSize),
			cfg:    r.cfg,
			now:    r.now,
		}
		r.breakers[key] = b
	}
	return b
}
