// Package schema maps the column headers of an export onto the canonical
// field names the pipeline understands.
package schema

import (
	"strings"
)

// Normalize lower-cases a header and drops everything that is not an ASCII
// letter or digit. Headers that normalize alike are indistinguishable.
func Normalize(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Path records how a canonical field was bound.
type Path uint8

const (
	Unresolved Path = iota
	ExactAlias
	TokenMatch
)

func (p Path) String() string {
	switch p {
	case ExactAlias:
		return "exact_alias"
	case TokenMatch:
		return "token_match"
	default:
		return "unresolved"
	}
}

// FieldSpec describes one canonical field. Aliases are tried in order before
// falling back to Tokens, all of which must appear in a normalized header.
type FieldSpec struct {
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases" json:"aliases"`
	Tokens  []string `yaml:"tokens,omitempty" json:"tokens,omitempty"`
}

type Binding struct {
	Field  string
	Header string
	Path   Path
}

func (b Binding) Resolved() bool {
	return b.Path != Unresolved
}

type Resolution struct {
	Bindings map[string]Binding
	// Collisions lists raw headers sharing a normalized key. Only the last
	// header of each group is resolvable.
	Collisions map[string][]string
}

// Header returns the raw header bound to field.
func (r Resolution) Header(field string) (string, bool) {
	b, ok := r.Bindings[field]
	if !ok || !b.Resolved() {
		return "", false
	}
	return b.Header, true
}

func (r Resolution) Path(field string) Path {
	return r.Bindings[field].Path
}

// Resolve binds every spec against headers. It is deterministic: the same
// headers and specs always produce the same bindings.
func Resolve(headers []string, specs []FieldSpec) Resolution {
	var order []string
	lookup := make(map[string]string, len(headers))
	groups := make(map[string][]string, len(headers))
	for _, h := range headers {
		key := Normalize(h)
		if _, seen := lookup[key]; !seen {
			order = append(order, key)
		}
		lookup[key] = h
		groups[key] = append(groups[key], h)
	}

	res := Resolution{
		Bindings:   make(map[string]Binding, len(specs)),
		Collisions: make(map[string][]string),
	}
	for key, hs := range groups {
		if len(hs) > 1 {
			res.Collisions[key] = hs
		}
	}

	for _, spec := range specs {
		res.Bindings[spec.Name] = bind(spec, order, lookup)
	}
	return res
}

func bind(spec FieldSpec, order []string, lookup map[string]string) Binding {
	for _, alias := range spec.Aliases {
		if h, ok := lookup[Normalize(alias)]; ok {
			return Binding{Field: spec.Name, Header: h, Path: ExactAlias}
		}
	}

	if len(spec.Tokens) > 0 {
		tokens := make([]string, len(spec.Tokens))
		for i, t := range spec.Tokens {
			tokens[i] = Normalize(t)
		}
		for _, key := range order {
			if containsAll(key, tokens) {
				return Binding{Field: spec.Name, Header: lookup[key], Path: TokenMatch}
			}
		}
	}

	return Binding{Field: spec.Name}
}

func containsAll(s string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}
