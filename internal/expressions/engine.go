package expressions

import "context"

// Engine evaluates expressions within workflow steps.
// Three implementations: CEL (step conditions), Expr (computed mapping
// values), GoJQ (result transforms).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
