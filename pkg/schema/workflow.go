package schema

// WorkflowDefinition is an ordered, flat sequence of steps executed as one
// run. Order is declaration order, evaluated top to bottom. There are no
// cycles and no branches; conditions only skip individual steps.
type WorkflowDefinition struct {
	Name     string         `json:"name" yaml:"name"`
	Steps    []WorkflowStep `json:"steps" yaml:"steps"`
	Timeout  string         `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// WorkflowStep invokes one script unit.
type WorkflowStep struct {
	// ID identifies the step in events and results. Assigned positionally
	// at submission when empty.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// UnitID names the script unit to execute. Unknown IDs fail the
	// workflow submission before any session starts.
	UnitID string `json:"unit_id" yaml:"unit_id"`

	// Parameters are explicit unit parameter values. String values may
	// carry ${name} tokens interpolated from the variable context.
	// Parameters the step leaves unset resolve from the variable context
	// by name, then from the unit's declared defaults.
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// Target names an entry of the submission's target set. Empty selects
	// the default target.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// Condition is a CEL predicate over the variable context, evaluated
	// before execution. Empty means always run. A condition referencing an
	// undefined variable evaluates false and skips the step.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// VariableMapping renames or transforms step outputs for downstream
	// steps, applied only after the step succeeds. Keys are destination
	// variable names; values are a source variable name, an "expr:"
	// expression, or a "jq:" filter.
	VariableMapping map[string]string `json:"variable_mapping,omitempty" yaml:"variable_mapping,omitempty"`

	// FailurePolicy decides whether a failure aborts the whole session
	// (required, the default) or is recorded and skipped over (optional).
	FailurePolicy FailurePolicy `json:"failure_policy,omitempty" yaml:"failure_policy,omitempty"`

	// Timeout bounds the remote execution of this step (e.g. "30s").
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// FailurePolicy declares how a step failure affects the session.
type FailurePolicy string

const (
	FailurePolicyRequired FailurePolicy = "required"
	FailurePolicyOptional FailurePolicy = "optional"
)

// Policy returns the effective failure policy, defaulting to required.
func (s *WorkflowStep) Policy() FailurePolicy {
	if s.FailurePolicy == FailurePolicyOptional {
		return FailurePolicyOptional
	}
	return FailurePolicyRequired
}
