// internal/flow/expand.go
package flow

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrUndefinedVariable is returned when a ${NAME} reference has no value.
var ErrUndefinedVariable = errors.New("flow: undefined variable")

var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Lookup resolves a variable name, like os.LookupEnv.
type Lookup func(name string) (string, bool)

// MapLookup adapts a map to Lookup.
func MapLookup(m map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// Expand returns a copy of f with ${NAME} references substituted in step values,
// URLs, expressions, row keys and field values. Selectors are left alone. Every
// undefined name is reported.
func (f *Flow) Expand(lookup Lookup) (*Flow, error) {
	out := *f
	out.Steps = make([]Step, len(f.Steps))

	var missing []string
	sub := func(s string) string {
		return varRef.ReplaceAllStringFunc(s, func(ref string) string {
			name := varRef.FindStringSubmatch(ref)[1]
			v, ok := lookup(name)
			if !ok {
				if !slices.Contains(missing, name) {
					missing = append(missing, name)
				}
				return ref
			}
			return v
		})
	}

	for i, s := range f.Steps {
		s.Value = sub(s.Value)
		s.URL = sub(s.URL)
		s.Expression = sub(s.Expression)
		s.Row = sub(s.Row)
		if s.Fields != nil {
			fields := make([]Field, len(s.Fields))
			for j, fld := range s.Fields {
				fields[j] = Field{Selector: fld.Selector, Value: sub(fld.Value)}
			}
			s.Fields = fields
		}
		out.Steps[i] = s
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, strings.Join(missing, ", "))
	}
	return &out, nil
}
