package vars

import (
	"strings"

	"github.com/spf13/cast"
)

// Interpolate replaces ${name} tokens in s with values resolved from the
// context. Tokens whose name resolves to nothing are left literal so the
// caller can tell an unresolved reference from an empty value.
func Interpolate(s string, c *Context) string {
	if !strings.Contains(s, "${") {
		return s
	}

	var b strings.Builder
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
		if v, ok := c.Resolve(name); ok {
			b.WriteString(cast.ToString(v))
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
}

// InterpolateMap applies Interpolate to every string value of m, returning
// a new map. Non-string values pass through unchanged.
func InterpolateMap(m map[string]any, c *Context) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = Interpolate(s, c)
		} else {
			out[k] = v
		}
	}
	return out
}
