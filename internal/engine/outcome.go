package engine

import (
	"github.com/provis-io/provis/internal/remote"
	"github.com/provis-io/provis/internal/vars"
)

// OutcomeKind tags the result of one step evaluation.
type OutcomeKind int

const (
	// OutcomeSuccess carries the variables the step produced.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeSkipped marks a step whose condition gated it off.
	OutcomeSkipped
	// OutcomeFailed carries the step error, subject to the failure policy.
	OutcomeFailed
)

// StepOutcome is the tagged result of one step evaluation. The orchestrator
// switches on Kind; only the fields of the matching arm are meaningful.
type StepOutcome struct {
	Kind   OutcomeKind
	Vars   map[string]any
	Tier   vars.Tier
	Result *remote.ExecResult
	Err    error
}

func succeeded(produced map[string]any, tier vars.Tier, result *remote.ExecResult) StepOutcome {
	return StepOutcome{Kind: OutcomeSuccess, Vars: produced, Tier: tier, Result: result}
}

func skipped() StepOutcome {
	return StepOutcome{Kind: OutcomeSkipped}
}

func failed(err error) StepOutcome {
	return StepOutcome{Kind: OutcomeFailed, Err: err}
}
