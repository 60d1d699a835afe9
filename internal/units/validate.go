package units

import (
	"encoding/json"
	"regexp"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"github.com/provis-io/provis/internal/vars"
	"github.com/provis-io/provis/pkg/schema"
)

// ValidateParams checks params against the unit's declared parameter
// contract and returns the effective parameters with defaults applied and
// values coerced to their declared types. Static units accept no parameters.
func ValidateParams(u *ScriptUnit, params map[string]any) (map[string]any, error) {
	if u.Kind == KindStatic {
		if len(params) > 0 {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"static unit %q accepts no parameters", u.ID)
		}
		return nil, nil
	}

	effective := make(map[string]any, len(u.Parameters))
	for _, p := range u.Parameters {
		raw, present := params[p.Name]
		if !present {
			if p.Required && p.Default == nil {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"unit %q: required parameter %q missing", u.ID, p.Name)
			}
			if p.Default == nil {
				continue
			}
			raw = p.Default
		}

		v := raw
		if p.Type != "" {
			var err error
			v, err = vars.Convert(raw, p.Type)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeConversion,
					"unit %q: parameter %q is not a valid %s", u.ID, p.Name, p.Type).WithCause(err)
			}
		}

		if p.Pattern != "" {
			s := cast.ToString(v)
			// Pattern validity was checked at registration.
			if !regexp.MustCompile(p.Pattern).MatchString(s) {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"unit %q: parameter %q value %q does not match pattern %s", u.ID, p.Name, s, p.Pattern)
			}
		}

		if p.Min != nil || p.Max != nil {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"unit %q: parameter %q has a range but is not numeric", u.ID, p.Name).WithCause(err)
			}
			if p.Min != nil && f < *p.Min {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"unit %q: parameter %q value %v below minimum %v", u.ID, p.Name, f, *p.Min)
			}
			if p.Max != nil && f > *p.Max {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"unit %q: parameter %q value %v above maximum %v", u.ID, p.Name, f, *p.Max)
			}
		}

		effective[p.Name] = v
	}

	// Unknown parameters are rejected so mapping typos surface early.
	declared := make(map[string]struct{}, len(u.Parameters))
	for _, p := range u.Parameters {
		declared[p.Name] = struct{}{}
	}
	for name := range params {
		if _, ok := declared[name]; !ok {
			if u.Kind == KindUser {
				// User units validate extra keys through their schema.
				effective[name] = params[name]
				continue
			}
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"unit %q: unknown parameter %q", u.ID, name)
		}
	}

	if u.compiled != nil {
		if err := validateSchema(u, effective); err != nil {
			return nil, err
		}
	}

	return effective, nil
}

// validateSchema runs the compiled JSON Schema contract of a user unit. The
// parameters are normalized through a JSON round trip so native Go numbers
// match the validator's expectations.
func validateSchema(u *ScriptUnit, params map[string]any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"unit %q: parameters are not JSON-representable", u.ID).WithCause(err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"unit %q: parameters are not JSON-representable", u.ID).WithCause(err)
	}

	if err := u.compiled.Validate(doc); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"unit %q: parameters violate schema: %s", u.ID, err.Error()).WithCause(err)
	}
	return nil
}

// DecodeParams decodes a loosely typed map into a typed struct, with weak
// conversions for values arriving as strings. Used for validated unit
// parameters and interaction response payloads.
func DecodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "build parameter decoder").WithCause(err)
	}
	if err := dec.Decode(params); err != nil {
		return schema.NewError(schema.ErrCodeValidation, "decode parameters").WithCause(err)
	}
	return nil
}
