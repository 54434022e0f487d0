package validate

import (
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// Built-in rule names.
const (
	RuleRequired    = "required"
	RuleRecommended = "recommended"
	RuleEmail       = "email"
	RuleInteger     = "integer"
	RuleNumber      = "number"
	RuleDate        = "date"
	RuleBool        = "bool"
	RuleUsState     = "us_state"
	RuleMaxLength   = "maxlength"
)

// Registry maps rule names to rules. Specs refer to rules by name; several
// names joined with "|" form a Chain.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// DefaultRegistry creates a registry holding the built-in rules.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(RuleRequired, required)
	r.Register(RuleRecommended, recommended)
	r.Register(RuleEmail, skipEmpty(email))
	r.Register(RuleInteger, skipEmpty(integer))
	r.Register(RuleNumber, skipEmpty(number))
	r.Register(RuleDate, skipEmpty(date))
	r.Register(RuleBool, skipEmpty(boolean))
	r.Register(RuleUsState, skipEmpty(usState))
	r.Register(RuleMaxLength, skipEmpty(maxLength))
	return r
}

// Register adds a rule under name.
// Panics if the name is already registered or the rule is nil.
func (r *Registry) Register(name string, rule Rule) {
	if rule == nil {
		panic(fmt.Sprintf("validate: nil rule %q", name))
	}
	if name == "" || strings.Contains(name, "|") {
		panic(fmt.Sprintf("validate: invalid rule name %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[name]; exists {
		panic(fmt.Sprintf("rule already registered: %s", name))
	}
	r.rules[name] = rule
}

// Lookup returns the rule registered under name.
func (r *Registry) Lookup(name string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[name]
	return rule, ok
}

// Resolve turns a rule reference ("name" or "a|b|c") into a rule. The
// error names the first unknown rule.
func (r *Registry) Resolve(ref string) (Rule, error) {
	names := strings.Split(ref, "|")
	rules := make([]Rule, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		rule, ok := r.Lookup(name)
		if !ok {
			return nil, &UnknownRuleError{Rule: name}
		}
		rules = append(rules, rule)
	}
	if len(rules) == 1 {
		return rules[0], nil
	}
	return Chain(rules...), nil
}

// Names returns every registered rule name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.rules))
	for name := range r.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// skipEmpty leaves blank values to the required rule.
func skipEmpty(rule Rule) Rule {
	return func(c Context) (*Result, error) {
		if strings.TrimSpace(c.Value) == "" {
			return nil, nil
		}
		return rule(c)
	}
}

func required(c Context) (*Result, error) {
	if CleanValue(c.Value) == "" {
		return Failf("This field is required."), nil
	}
	return nil, nil
}

func recommended(c Context) (*Result, error) {
	if CleanValue(c.Value) == "" {
		return Warnf("This field is usually filled in."), nil
	}
	return nil, nil
}

func email(c Context) (*Result, error) {
	v := CleanValue(c.Value)
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return Failf("Enter an email address like name@example.com."), nil
	}
	return cleaned(c.Value, v), nil
}

func integer(c Context) (*Result, error) {
	v := strings.ReplaceAll(CleanValue(c.Value), ",", "")
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return Failf("Enter a whole number."), nil
	}
	return cleaned(c.Value, strconv.FormatInt(n, 10)), nil
}

func number(c Context) (*Result, error) {
	_, text, ok := ParseNumber(CleanValue(c.Value))
	if !ok {
		return Failf("Enter a number."), nil
	}
	return cleaned(c.Value, text), nil
}

func date(c Context) (*Result, error) {
	t, ok := ParseDate(CleanValue(c.Value))
	if !ok {
		return Failf("Enter a date (use YYYY-MM-DD or similar)."), nil
	}
	return cleaned(c.Value, t.Format("2006-01-02")), nil
}

func boolean(c Context) (*Result, error) {
	b, ok := ParseBool(CleanValue(c.Value))
	if !ok {
		return Failf("Must be yes/no, true/false, or 1/0."), nil
	}
	return cleaned(c.Value, strconv.FormatBool(b)), nil
}

func usState(c Context) (*Result, error) {
	code, ok := NormalizeUsState(CleanValue(c.Value))
	if !ok {
		return Warnf("%q is not a recognized US state.", c.Value), nil
	}
	return cleaned(c.Value, code), nil
}

func maxLength(c Context) (*Result, error) {
	if c.MaxLength <= 0 {
		return nil, nil
	}
	if n := utf8.RuneCountInString(c.Value); n > c.MaxLength {
		return Failf("Must be at most %d characters (currently %d).", c.MaxLength, n), nil
	}
	return nil, nil
}

// cleaned reports a reformat only when normalization changed the value.
func cleaned(orig, v string) *Result {
	if v == orig {
		return nil
	}
	return Reformat(v)
}
