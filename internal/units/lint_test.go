package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provis-io/provis/pkg/schema"
)

func lintRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.RegisterAll([]*ScriptUnit{
		{ID: "u.static", Kind: KindStatic, Command: "true"},
		{ID: "u.produce", Kind: KindStatic, Command: "emit", ProducedVariables: []string{"x"}},
		{ID: "u.need", Kind: KindConfigurable, CommandTemplate: "use ${x}", RequiredVariables: []string{"x"}},
	}))
	return r
}

func TestLintWorkflow_CleanDefinition(t *testing.T) {
	r := lintRegistry(t)

	vr := r.LintWorkflow(&schema.WorkflowDefinition{
		Name: "wf",
		Steps: []schema.WorkflowStep{
			{ID: "a", UnitID: "u.produce"},
			{ID: "b", UnitID: "u.need"},
		},
	})

	assert.True(t, vr.Valid())
	assert.Empty(t, vr.Warnings)
	assert.NoError(t, vr.ToError())
}

func TestLintWorkflow_Errors(t *testing.T) {
	r := lintRegistry(t)

	tests := []struct {
		name string
		def  *schema.WorkflowDefinition
		code string
	}{
		{
			name: "empty workflow",
			def:  &schema.WorkflowDefinition{Name: "wf"},
			code: "EMPTY_WORKFLOW",
		},
		{
			name: "bad workflow timeout",
			def: &schema.WorkflowDefinition{
				Name:    "wf",
				Timeout: "soon",
				Steps:   []schema.WorkflowStep{{ID: "a", UnitID: "u.static"}},
			},
			code: "BAD_TIMEOUT",
		},
		{
			name: "duplicate step id",
			def: &schema.WorkflowDefinition{
				Name: "wf",
				Steps: []schema.WorkflowStep{
					{ID: "a", UnitID: "u.static"},
					{ID: "a", UnitID: "u.static"},
				},
			},
			code: "DUPLICATE_STEP_ID",
		},
		{
			name: "unknown unit",
			def: &schema.WorkflowDefinition{
				Name:  "wf",
				Steps: []schema.WorkflowStep{{ID: "a", UnitID: "u.ghost"}},
			},
			code: "UNKNOWN_UNIT",
		},
		{
			name: "parameters on a static unit",
			def: &schema.WorkflowDefinition{
				Name: "wf",
				Steps: []schema.WorkflowStep{
					{ID: "a", UnitID: "u.static", Parameters: map[string]any{"x": 1}},
				},
			},
			code: "UNEXPECTED_PARAMETERS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vr := r.LintWorkflow(tt.def)
			require.False(t, vr.Valid())
			codes := make([]string, len(vr.Errors))
			for i, e := range vr.Errors {
				codes[i] = e.Code
			}
			assert.Contains(t, codes, tt.code)
			require.Error(t, vr.ToError())
		})
	}
}

func TestLintWorkflow_WarnsOnUnproducedVariable(t *testing.T) {
	r := lintRegistry(t)

	vr := r.LintWorkflow(&schema.WorkflowDefinition{
		Name:  "wf",
		Steps: []schema.WorkflowStep{{ID: "a", UnitID: "u.need"}},
	})

	assert.True(t, vr.Valid(), "warnings alone do not block submission")
	require.Len(t, vr.Warnings, 1)
	assert.Equal(t, "UNPRODUCED_VARIABLE", vr.Warnings[0].Code)
	assert.Equal(t, "steps[0]", vr.Warnings[0].Path)
}

func TestLintWorkflow_MappingSatisfiesLaterRequirement(t *testing.T) {
	r := lintRegistry(t)

	vr := r.LintWorkflow(&schema.WorkflowDefinition{
		Name: "wf",
		Steps: []schema.WorkflowStep{
			{ID: "a", UnitID: "u.static", VariableMapping: map[string]string{"x": "stdout"}},
			{ID: "b", UnitID: "u.need"},
		},
	})

	assert.True(t, vr.Valid())
	assert.Empty(t, vr.Warnings)
}
