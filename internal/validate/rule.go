package validate

import (
	"fmt"
	"net/url"

	"github.com/JonMunkholm/viewkit/internal/schema"
)

// Result is what a rule reports for one value. A nil *Result means valid
// with nothing to show.
type Result struct {
	Severity    Severity `json:"severity"`
	Help        string   `json:"help,omitempty"`
	Reformatted string   `json:"reformatted,omitempty"` // Normalized value; empty means unchanged
	Data        any      `json:"data,omitempty"`
}

// Failf returns an error result with a formatted help text.
func Failf(format string, args ...any) *Result {
	return &Result{Severity: SeverityError, Help: fmt.Sprintf(format, args...)}
}

// Warnf returns a warning result with a formatted help text.
func Warnf(format string, args ...any) *Result {
	return &Result{Severity: SeverityWarning, Help: fmt.Sprintf(format, args...)}
}

// Reformat returns a success result carrying a normalized value.
func Reformat(v string) *Result {
	return &Result{Severity: SeveritySuccess, Reformatted: v}
}

func (r *Result) severity() Severity {
	if r == nil {
		return SeverityNone
	}
	return r.Severity
}

// Context is passed to a rule for each invocation.
type Context struct {
	Field     string
	Value     string
	Fields    Fields         // The whole field collection, for cross-field rules
	Column    *schema.Column // Backing column once a schema is attached
	MaxLength int            // Zero when unknown
}

// Rule validates one field value. Returning an error signals a declaration
// defect; it surfaces as a *SetupError and is never treated as a result.
type Rule func(c Context) (*Result, error)

// Fields is the current field collection of a form.
type Fields interface {
	Lookup(name string) (string, bool)
}

// Values is a Fields backed by a map.
type Values map[string]string

func (v Values) Lookup(name string) (string, bool) {
	s, ok := v[name]
	return s, ok
}

// FormValues adapts submitted form data. Only the first value of a field
// is validated.
type FormValues url.Values

func (v FormValues) Lookup(name string) (string, bool) {
	vs, ok := v[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Chain runs rules in order. Later rules see the value reformatted by
// earlier ones, and the chain stops at the first error. The most severe
// result is returned, carrying the final reformatted value.
func Chain(rules ...Rule) Rule {
	return func(c Context) (*Result, error) {
		var worst *Result
		orig, value := c.Value, c.Value
		for _, rule := range rules {
			c.Value = value
			res, err := rule(c)
			if err != nil {
				return nil, err
			}
			if res == nil {
				continue
			}
			if res.Reformatted != "" {
				value = res.Reformatted
			}
			if worst == nil || res.Severity > worst.Severity {
				worst = res
			}
			if res.Severity == SeverityError {
				break
			}
		}
		if worst == nil {
			return nil, nil
		}
		if value != orig && worst.Reformatted != value {
			out := *worst
			out.Reformatted = value
			return &out, nil
		}
		return worst, nil
	}
}
