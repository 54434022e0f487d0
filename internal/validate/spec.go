package validate

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decl is one declaration of a validation spec: a key in the
// "<field>[?][{<group>}]" form and a rule reference.
type Decl struct {
	Key  string
	Rule string
}

// Spec is an ordered list of declarations. Order decides the order in which
// ValidateAll runs the rules.
type Spec []Decl

// Key is a parsed declaration key.
type Key struct {
	Field    string
	Group    string // Empty when the field is ungrouped
	Optional bool   // The field may be absent from the form
}

// ParseKey parses "<field>[?][{<group>}]". The optional marker may also
// follow the group tag ("<field>{<group>}?").
func ParseKey(raw string) (Key, error) {
	fail := func(reason string) (Key, error) {
		return Key{}, &SetupError{Field: raw, Reason: reason}
	}

	var k Key
	s := strings.TrimSpace(raw)

	if rest, ok := strings.CutSuffix(s, "?"); ok {
		k.Optional = true
		s = rest
	}

	if i := strings.IndexByte(s, '{'); i >= 0 {
		if !strings.HasSuffix(s, "}") {
			return fail("unterminated group tag")
		}
		k.Group = strings.TrimSpace(s[i+1 : len(s)-1])
		s = s[:i]
		if k.Group == "" {
			return fail("empty group name")
		}
		if strings.ContainsAny(k.Group, "{}?") {
			return fail("malformed group name")
		}
	}

	if rest, ok := strings.CutSuffix(s, "?"); ok {
		if k.Optional {
			return fail("optional marker given twice")
		}
		k.Optional = true
		s = rest
	}

	k.Field = strings.TrimSpace(s)
	switch {
	case k.Field == "":
		return fail("empty field name")
	case strings.ContainsAny(k.Field, "{}?"):
		return fail("malformed field name")
	}
	return k, nil
}

// String formats the key in declaration form.
func (k Key) String() string {
	s := k.Field
	if k.Optional {
		s += "?"
	}
	if k.Group != "" {
		s += "{" + k.Group + "}"
	}
	return s
}

// SpecFromMap builds a spec from a map. Maps have no order, so keys are
// sorted to keep validation order deterministic.
func SpecFromMap(m map[string]string) Spec {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	spec := make(Spec, len(keys))
	for i, k := range keys {
		spec[i] = Decl{Key: k, Rule: m[k]}
	}
	return spec
}

// LoadSpec reads a YAML mapping of keys to rule references, keeping the
// document order. A rule may also be given as a list of names, which is
// chained:
//
//	email{contact}: required|email
//	phone?{contact}:
//	  - recommended
//	  - maxlength
func LoadSpec(r io.Reader) (Spec, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return Spec{}, nil
		}
		return nil, fmt.Errorf("decode spec: %w", err)
	}
	if len(doc.Content) == 0 {
		return Spec{}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("decode spec: line %d: expected a mapping", root.Line)
	}

	spec := make(Spec, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]

		var rule string
		switch val.Kind {
		case yaml.ScalarNode:
			rule = val.Value
		case yaml.SequenceNode:
			var names []string
			if err := val.Decode(&names); err != nil {
				return nil, fmt.Errorf("decode spec: line %d: %w", val.Line, err)
			}
			rule = strings.Join(names, "|")
		default:
			return nil, fmt.Errorf("decode spec: line %d: rule for %q must be a name or a list of names", val.Line, key.Value)
		}
		spec = append(spec, Decl{Key: key.Value, Rule: rule})
	}
	return spec, nil
}
