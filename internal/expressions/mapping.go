package expressions

import (
	"context"
	"strings"

	"github.com/provis-io/provis/pkg/schema"
)

const (
	exprPrefix = "expr:"
	jqPrefix   = "jq:"
)

// Mapper resolves variable-mapping values after a step completes. A mapping
// value is either a plain result field name, an "expr:" computed expression,
// or a "jq:" transform over the result document.
type Mapper struct {
	expr *ExprEngine
	jq   *GoJQEngine
}

// NewMapper creates a Mapper backed by the given engines.
func NewMapper(expr *ExprEngine, jq *GoJQEngine) *Mapper {
	return &Mapper{expr: expr, jq: jq}
}

// Resolve evaluates one mapping value against the step result document.
// A plain name that the result does not contain is an error so a typo in a
// mapping surfaces instead of silently writing nil.
func (m *Mapper) Resolve(ctx context.Context, value string, result map[string]any) (any, error) {
	switch {
	case strings.HasPrefix(value, exprPrefix):
		return m.expr.Evaluate(ctx, strings.TrimSpace(strings.TrimPrefix(value, exprPrefix)), result)
	case strings.HasPrefix(value, jqPrefix):
		return m.jq.Evaluate(ctx, strings.TrimSpace(strings.TrimPrefix(value, jqPrefix)), result)
	default:
		v, ok := result[value]
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"mapping source %q not present in step result", value)
		}
		return v, nil
	}
}

// ResolveAll evaluates a whole variable mapping, returning the variables to
// merge into the session context keyed by target name.
func (m *Mapper) ResolveAll(ctx context.Context, mapping map[string]string, result map[string]any) (map[string]any, error) {
	if len(mapping) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(mapping))
	for target, value := range mapping {
		v, err := m.Resolve(ctx, value, result)
		if err != nil {
			return nil, err
		}
		out[target] = v
	}
	return out, nil
}
