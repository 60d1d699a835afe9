package vars

import (
	"sync"

	"github.com/provis-io/provis/pkg/schema"
)

// Tier is one precedence level in the variable-resolution chain. Lower
// numeric value means higher precedence.
type Tier int

const (
	// TierInteractive holds values typed in by a human mid-run.
	TierInteractive Tier = iota
	// TierConfirmed holds values a human explicitly accepted or overrode.
	TierConfirmed
	// TierSuggested holds proposed defaults from pending confirmations.
	TierSuggested
	// TierConfig holds configuration-supplied values (initial variables).
	TierConfig
	// TierRuntime holds values produced by prior steps.
	TierRuntime
	// TierFact holds system and environment facts.
	TierFact

	numTiers
)

func (t Tier) String() string {
	switch t {
	case TierInteractive:
		return "interactive"
	case TierConfirmed:
		return "confirmed"
	case TierSuggested:
		return "suggested"
	case TierConfig:
		return "config"
	case TierRuntime:
		return "runtime"
	case TierFact:
		return "fact"
	default:
		return "unknown"
	}
}

// PendingConfirmation is a proposed variable value awaiting explicit human
// accept or override.
type PendingConfirmation struct {
	Variable  string `json:"variable"`
	Suggested any    `json:"suggested"`
	Reason    string `json:"reason,omitempty"`
	Condition string `json:"condition,omitempty"`
	Confirmed bool   `json:"confirmed"`
	Choice    any    `json:"choice,omitempty"`
}

// Context is the scoped variable store for one execution session. A lookup
// walks the tiers from interactive input down to system facts and returns
// the first value present; absence at all tiers is undefined. Values never
// expire; only an explicit Clear removes them.
type Context struct {
	mu      sync.RWMutex
	tiers   [numTiers]map[string]any
	pending map[string]*PendingConfirmation
}

// New creates an empty Context.
func New() *Context {
	c := &Context{pending: make(map[string]*PendingConfirmation)}
	for i := range c.tiers {
		c.tiers[i] = make(map[string]any)
	}
	return c
}

// Resolve returns the value from the highest-precedence tier holding the
// name. Reading has no side effects.
func (c *Context) Resolve(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for t := Tier(0); t < numTiers; t++ {
		if v, ok := c.tiers[t][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set stores a value at the given tier.
func (c *Context) Set(name string, value any, tier Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiers[tier][name] = value
}

// SetAll stores every entry of m at the given tier.
func (c *Context) SetAll(m map[string]any, tier Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range m {
		c.tiers[tier][k] = v
	}
}

// Clear removes the name from every tier and drops any pending
// confirmation for it.
func (c *Context) Clear(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for t := Tier(0); t < numTiers; t++ {
		delete(c.tiers[t], name)
	}
	delete(c.pending, name)
}

// Snapshot flattens the store by precedence into a plain map for expression
// evaluation. Mutating the returned map does not affect the Context.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any)
	// Walk lowest precedence first so higher tiers overwrite.
	for t := numTiers - 1; t >= 0; t-- {
		for k, v := range c.tiers[t] {
			out[k] = v
		}
	}
	return out
}

// ProposeConfirmation registers a suggested value for a variable subject to
// human override. The suggestion becomes visible at the suggested tier
// immediately so downstream resolution sees it until a human decides.
func (c *Context) ProposeConfirmation(name string, suggested any, reason, condition string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[name] = &PendingConfirmation{
		Variable:  name,
		Suggested: suggested,
		Reason:    reason,
		Condition: condition,
	}
	c.tiers[TierSuggested][name] = suggested
}

// Confirm resolves a pending confirmation with the human's choice, storing
// it at the confirmed tier.
func (c *Context) Confirm(name string, choice any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[name]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "no pending confirmation for variable %q", name)
	}
	p.Confirmed = true
	p.Choice = choice
	c.tiers[TierConfirmed][name] = choice
	return nil
}

// Pending returns the unresolved confirmations, if any.
func (c *Context) Pending() []*PendingConfirmation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*PendingConfirmation
	for _, p := range c.pending {
		if !p.Confirmed {
			out = append(out, p)
		}
	}
	return out
}
