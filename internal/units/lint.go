package units

import (
	"fmt"
	"time"

	"github.com/provis-io/provis/pkg/schema"
)

// LintWorkflow checks the static structure of a workflow definition against
// the registry before submission. Errors block submission; warnings flag
// steps that are legal but likely not what the author meant.
func (r *Registry) LintWorkflow(def *schema.WorkflowDefinition) *schema.ValidationResult {
	vr := &schema.ValidationResult{}

	if def == nil || len(def.Steps) == 0 {
		vr.AddError("steps", "EMPTY_WORKFLOW", "workflow has no steps")
		return vr
	}
	if def.Timeout != "" {
		if _, err := time.ParseDuration(def.Timeout); err != nil {
			vr.AddError("timeout", "BAD_TIMEOUT", fmt.Sprintf("invalid workflow timeout %q", def.Timeout))
		}
	}

	seen := make(map[string]int)
	available := make(map[string]struct{})
	for i, step := range def.Steps {
		path := fmt.Sprintf("steps[%d]", i)

		if step.ID != "" {
			if prev, dup := seen[step.ID]; dup {
				vr.AddError(path, "DUPLICATE_STEP_ID",
					fmt.Sprintf("step id %q already used by steps[%d]", step.ID, prev))
			}
			seen[step.ID] = i
		}
		if step.Timeout != "" {
			if _, err := time.ParseDuration(step.Timeout); err != nil {
				vr.AddError(path, "BAD_TIMEOUT", fmt.Sprintf("invalid step timeout %q", step.Timeout))
			}
		}

		unit, err := r.Lookup(step.UnitID)
		if err != nil {
			vr.AddError(path, "UNKNOWN_UNIT", fmt.Sprintf("unknown unit %q", step.UnitID))
			continue
		}

		if unit.Kind == KindStatic && len(step.Parameters) > 0 {
			vr.AddError(path, "UNEXPECTED_PARAMETERS",
				fmt.Sprintf("static unit %q takes no parameters", unit.ID))
		}

		// Variables required by the unit that no earlier step produces may
		// still arrive via initial variables, so this is only a warning.
		for _, name := range unit.RequiredVariables {
			if _, ok := available[name]; !ok {
				vr.AddWarning(path, "UNPRODUCED_VARIABLE",
					fmt.Sprintf("unit %q requires %q, which no earlier step produces", unit.ID, name))
			}
		}

		for _, name := range unit.ProducedVariables {
			available[name] = struct{}{}
		}
		for name := range step.VariableMapping {
			available[name] = struct{}{}
		}
	}

	return vr
}
