package vars

import (
	"github.com/spf13/cast"

	"github.com/provis-io/provis/pkg/schema"
)

// Convert coerces a value to the named type. Supported types are string,
// int, float, bool and list. A value that cannot be represented in the
// target type yields a conversion error; no silent truncation.
func Convert(value any, typ string) (any, error) {
	switch typ {
	case "", "string":
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, convErr(value, typ, err)
		}
		return s, nil
	case "int", "integer":
		n, err := cast.ToIntE(value)
		if err != nil {
			return nil, convErr(value, typ, err)
		}
		return n, nil
	case "float", "number":
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, convErr(value, typ, err)
		}
		return f, nil
	case "bool", "boolean":
		b, err := cast.ToBoolE(value)
		if err != nil {
			return nil, convErr(value, typ, err)
		}
		return b, nil
	case "list", "array":
		l, err := cast.ToSliceE(value)
		if err != nil {
			return nil, convErr(value, typ, err)
		}
		return l, nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeConversion, "unknown target type %q", typ)
	}
}

func convErr(value any, typ string, cause error) error {
	return schema.NewErrorf(schema.ErrCodeConversion, "cannot convert %v (%T) to %s", value, value, typ).WithCause(cause)
}
