package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provis-io/provis/pkg/schema"
)

func TestContext_ResolveAbsent(t *testing.T) {
	c := New()
	_, ok := c.Resolve("missing")
	assert.False(t, ok)
}

func TestContext_TierPrecedence(t *testing.T) {
	// Every adjacent pair: the higher tier must win when both hold the name.
	tiers := []Tier{TierInteractive, TierConfirmed, TierSuggested, TierConfig, TierRuntime, TierFact}

	for i, hi := range tiers {
		for _, lo := range tiers[i+1:] {
			c := New()
			c.Set("v", "low", lo)
			c.Set("v", "high", hi)

			got, ok := c.Resolve("v")
			require.True(t, ok)
			assert.Equal(t, "high", got, "%s should shadow %s", hi, lo)
		}
	}
}

func TestContext_AllTiersPopulated(t *testing.T) {
	c := New()
	c.Set("v", "fact", TierFact)
	c.Set("v", "runtime", TierRuntime)
	c.Set("v", "config", TierConfig)
	c.Set("v", "suggested", TierSuggested)
	c.Set("v", "confirmed", TierConfirmed)
	c.Set("v", "interactive", TierInteractive)

	got, ok := c.Resolve("v")
	require.True(t, ok)
	assert.Equal(t, "interactive", got)
}

func TestContext_ClearRemovesAllTiers(t *testing.T) {
	c := New()
	c.Set("v", 1, TierConfig)
	c.Set("v", 2, TierFact)
	c.Clear("v")

	_, ok := c.Resolve("v")
	assert.False(t, ok)
}

func TestContext_SetAll(t *testing.T) {
	c := New()
	c.SetAll(map[string]any{"a": 1, "b": 2}, TierRuntime)

	a, _ := c.Resolve("a")
	b, _ := c.Resolve("b")
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestContext_SnapshotFollowsPrecedence(t *testing.T) {
	c := New()
	c.Set("v", "fact", TierFact)
	c.Set("v", "confirmed", TierConfirmed)
	c.Set("other", 42, TierRuntime)

	snap := c.Snapshot()
	assert.Equal(t, "confirmed", snap["v"])
	assert.Equal(t, 42, snap["other"])

	// The snapshot is detached from the store.
	snap["v"] = "mutated"
	got, _ := c.Resolve("v")
	assert.Equal(t, "confirmed", got)
}

func TestContext_ConfirmationFlow(t *testing.T) {
	c := New()
	c.ProposeConfirmation("mirror", "https://mirror.internal", "private network detected", "")

	// The suggestion is visible until a human decides.
	got, ok := c.Resolve("mirror")
	require.True(t, ok)
	assert.Equal(t, "https://mirror.internal", got)
	require.Len(t, c.Pending(), 1)

	require.NoError(t, c.Confirm("mirror", "https://mirror.example.com"))

	got, _ = c.Resolve("mirror")
	assert.Equal(t, "https://mirror.example.com", got)
	assert.Empty(t, c.Pending())
}

func TestContext_ConfirmUnknown(t *testing.T) {
	c := New()
	err := c.Confirm("nope", true)
	require.Error(t, err)

	var pe *schema.ProvisError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, schema.ErrCodeNotFound, pe.Code)
}
