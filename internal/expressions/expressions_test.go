package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provis-io/provis/pkg/schema"
)

func TestCELEngine_Evaluate(t *testing.T) {
	eng, err := NewCELEngine()
	require.NoError(t, err)

	out, err := eng.Evaluate(context.Background(), `vars.os_family == "debian"`,
		map[string]any{"os_family": "debian"})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = eng.Evaluate(context.Background(), `vars.os_family == "debian"`,
		map[string]any{"os_family": "rhel"})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestCELEngine_CheckRejectsBadSyntax(t *testing.T) {
	eng, err := NewCELEngine()
	require.NoError(t, err)

	err = eng.Check(`vars.os ==`)
	require.Error(t, err)

	var pe *schema.ProvisError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, schema.ErrCodeValidation, pe.Code)
}

func TestCELEngine_MissingVariableIsEvalError(t *testing.T) {
	eng, err := NewCELEngine()
	require.NoError(t, err)

	_, err = eng.Evaluate(context.Background(), `vars.unset == "x"`, map[string]any{})
	require.Error(t, err)
}

func TestEvaluateCondition(t *testing.T) {
	eng, err := NewCELEngine()
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, EvaluateCondition(ctx, eng, "", nil), "empty condition always passes")
	assert.True(t, EvaluateCondition(ctx, eng, `vars.ready == true`, map[string]any{"ready": true}))
	assert.False(t, EvaluateCondition(ctx, eng, `vars.ready == true`, map[string]any{"ready": false}))
	// Referencing an unset variable gates the step off, not the session.
	assert.False(t, EvaluateCondition(ctx, eng, `vars.unset == "x"`, map[string]any{}))
	// Non-boolean results gate the step off.
	assert.False(t, EvaluateCondition(ctx, eng, `vars.name`, map[string]any{"name": "db01"}))
}

func TestExprEngine_Evaluate(t *testing.T) {
	eng := NewExprEngine()

	out, err := eng.Evaluate(context.Background(), `stdout | trim() | upper()`,
		map[string]any{"stdout": "  ubuntu\n"})
	require.NoError(t, err)
	assert.Equal(t, "UBUNTU", out)
}

func TestExprEngine_CompileError(t *testing.T) {
	eng := NewExprEngine()

	_, err := eng.Evaluate(context.Background(), `1 +`, nil)
	require.Error(t, err)

	var pe *schema.ProvisError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, schema.ErrCodeValidation, pe.Code)
}

func TestGoJQEngine_Evaluate(t *testing.T) {
	eng := NewGoJQEngine()

	out, err := eng.Evaluate(context.Background(), `.packages | length`,
		map[string]any{"packages": []any{"curl", "git", "jq"}})
	require.NoError(t, err)
	assert.Equal(t, 3, out)
}

func TestGoJQEngine_MultipleOutputs(t *testing.T) {
	eng := NewGoJQEngine()

	out, err := eng.Evaluate(context.Background(), `.items[]`,
		map[string]any{"items": []any{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestGoJQEngine_ParseError(t *testing.T) {
	eng := NewGoJQEngine()

	_, err := eng.Evaluate(context.Background(), `.[unclosed`, map[string]any{})
	require.Error(t, err)
}

func TestMapper_Resolve(t *testing.T) {
	m := NewMapper(NewExprEngine(), NewGoJQEngine())
	ctx := context.Background()
	result := map[string]any{
		"stdout":   "22.04",
		"exitCode": 0,
		"facts":    map[string]any{"arch": "amd64"},
	}

	plain, err := m.Resolve(ctx, "stdout", result)
	require.NoError(t, err)
	assert.Equal(t, "22.04", plain)

	computed, err := m.Resolve(ctx, `expr: exitCode == 0`, result)
	require.NoError(t, err)
	assert.Equal(t, true, computed)

	transformed, err := m.Resolve(ctx, `jq: .facts.arch`, result)
	require.NoError(t, err)
	assert.Equal(t, "amd64", transformed)
}

func TestMapper_UnknownPlainField(t *testing.T) {
	m := NewMapper(NewExprEngine(), NewGoJQEngine())

	_, err := m.Resolve(context.Background(), "nope", map[string]any{"stdout": "x"})
	require.Error(t, err)

	var pe *schema.ProvisError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, schema.ErrCodeValidation, pe.Code)
}

func TestMapper_ResolveAll(t *testing.T) {
	m := NewMapper(NewExprEngine(), NewGoJQEngine())

	out, err := m.ResolveAll(context.Background(), map[string]string{
		"os_version": "stdout",
		"ok":         "expr: exitCode == 0",
	}, map[string]any{"stdout": "22.04", "exitCode": 0})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"os_version": "22.04", "ok": true}, out)
}
