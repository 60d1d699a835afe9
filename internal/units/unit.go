package units

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/cast"

	"github.com/provis-io/provis/pkg/schema"
)

// SourceKind determines which execution strategy may run a unit.
type SourceKind string

const (
	// KindStatic is a built-in unit with a fixed command and no parameters.
	KindStatic SourceKind = "static"
	// KindConfigurable is a built-in unit whose command is rendered from
	// validated parameters.
	KindConfigurable SourceKind = "configurable"
	// KindInteractive is a built-in unit that suspends for human input.
	KindInteractive SourceKind = "interactive"
	// KindUser is an externally supplied unit validated against a JSON
	// Schema parameter contract.
	KindUser SourceKind = "user"
)

// Parameter declares one input of a unit's parameter contract.
type Parameter struct {
	Name     string   `json:"name" yaml:"name"`
	Type     string   `json:"type,omitempty" yaml:"type,omitempty"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Default  any      `json:"default,omitempty" yaml:"default,omitempty"`
	Pattern  string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// ScriptUnit is a single indivisible remote action with a declared parameter
// and variable contract. Definitions are immutable once registered.
type ScriptUnit struct {
	ID          string     `json:"id" yaml:"id"`
	DisplayName string     `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Kind        SourceKind `json:"kind" yaml:"kind"`

	// Command is the fixed command of a static unit. CommandTemplate is the
	// parameterized command of configurable and user units, with ${name}
	// placeholders for validated parameters.
	Command         string `json:"command,omitempty" yaml:"command,omitempty"`
	CommandTemplate string `json:"commandTemplate,omitempty" yaml:"commandTemplate,omitempty"`

	// Prompt and InteractionType drive interactive units. Suggested, when
	// set on a unit producing one variable, proposes that value as a
	// pending confirmation while the request is outstanding.
	Prompt          string                 `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	InteractionType schema.InteractionType `json:"interactionType,omitempty" yaml:"interactionType,omitempty"`
	Options         []string               `json:"options,omitempty" yaml:"options,omitempty"`
	Suggested       any                    `json:"suggested,omitempty" yaml:"suggested,omitempty"`

	RequiredVariables []string    `json:"requiredVariables,omitempty" yaml:"requiredVariables,omitempty"`
	ProducedVariables []string    `json:"producedVariables,omitempty" yaml:"producedVariables,omitempty"`
	Parameters        []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// ParamSchema is the JSON Schema contract of a user unit. Compiled at
	// registration.
	ParamSchema json.RawMessage `json:"paramSchema,omitempty" yaml:"paramSchema,omitempty"`

	compiled *jsonschema.Schema
}

// Validate checks the registration-time contract of the unit.
func (u *ScriptUnit) Validate() error {
	if u.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "unit id is empty")
	}

	switch u.Kind {
	case KindStatic:
		if u.Command == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "static unit %q has no command", u.ID)
		}
		if len(u.Parameters) > 0 {
			return schema.NewErrorf(schema.ErrCodeValidation, "static unit %q must not declare parameters", u.ID)
		}
	case KindConfigurable:
		if u.CommandTemplate == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "configurable unit %q has no command template", u.ID)
		}
	case KindInteractive:
		if u.Prompt == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "interactive unit %q has no prompt", u.ID)
		}
		if u.InteractionType == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "interactive unit %q has no interaction type", u.ID)
		}
	case KindUser:
		if u.CommandTemplate == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "user unit %q has no command template", u.ID)
		}
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "unit %q has unknown kind %q", u.ID, u.Kind)
	}

	for _, p := range u.Parameters {
		if p.Name == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "unit %q declares a nameless parameter", u.ID)
		}
		if !knownParamType(p.Type) {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"unit %q parameter %q has unknown type %q", u.ID, p.Name, p.Type)
		}
		if p.Pattern != "" {
			if _, err := regexp.Compile(p.Pattern); err != nil {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"unit %q parameter %q has invalid pattern: %s", u.ID, p.Name, err.Error()).WithCause(err)
			}
		}
	}

	if len(u.ParamSchema) > 0 {
		raw, err := jsonschema.UnmarshalJSON(bytes.NewReader(u.ParamSchema))
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"unit %q has malformed parameter schema: %s", u.ID, err.Error()).WithCause(err)
		}
		compiler := jsonschema.NewCompiler()
		res := u.ID + "/params.json"
		if err := compiler.AddResource(res, raw); err != nil {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"unit %q parameter schema rejected: %s", u.ID, err.Error()).WithCause(err)
		}
		compiled, err := compiler.Compile(res)
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"unit %q parameter schema does not compile: %s", u.ID, err.Error()).WithCause(err)
		}
		u.compiled = compiled
	}

	return nil
}

// knownParamType reports whether typ names a convertible parameter type. An
// empty type accepts values as-is.
func knownParamType(typ string) bool {
	switch typ {
	case "", "string", "int", "integer", "float", "number", "bool", "boolean", "list", "array":
		return true
	}
	return false
}

// RenderCommand produces the remote command for the unit from validated
// parameters. Static units return their fixed command.
func (u *ScriptUnit) RenderCommand(params map[string]any) string {
	if u.Kind == KindStatic {
		return u.Command
	}
	return renderTemplate(u.CommandTemplate, params)
}

// renderTemplate substitutes ${name} placeholders from params, leaving
// unknown placeholders literal.
func renderTemplate(tmpl string, params map[string]any) string {
	if !strings.Contains(tmpl, "${") {
		return tmpl
	}

	var b strings.Builder
	s := tmpl
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			b.WriteString(s)
			return b.String()
		}
		end += start

		b.WriteString(s[:start])
		name := s[start+2 : end]
		if v, ok := params[name]; ok {
			b.WriteString(cast.ToString(v))
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
}
