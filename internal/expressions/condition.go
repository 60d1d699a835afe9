package expressions

import (
	"context"
	"log/slog"
)

// EvaluateCondition evaluates a step gating condition against the session
// variable snapshot. A condition evaluating to anything but boolean true
// gates the step off. Runtime evaluation failures, such as indexing a
// variable absent from the snapshot, also gate the step off rather than
// failing the session; compile errors were already rejected at submission.
func EvaluateCondition(ctx context.Context, eng *CELEngine, expression string, snapshot map[string]any) bool {
	if expression == "" {
		return true
	}

	out, err := eng.Evaluate(ctx, expression, snapshot)
	if err != nil {
		slog.DebugContext(ctx, "condition evaluation failed, skipping step",
			"condition", expression, "error", err)
		return false
	}

	b, ok := out.(bool)
	return ok && b
}
