package validate

import (
	"errors"
	"testing"
)

func runRule(t *testing.T, name string, c Context) *Result {
	t.Helper()
	rule, err := DefaultRegistry().Resolve(name)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", name, err)
	}
	res, err := rule(c)
	if err != nil {
		t.Fatalf("rule %q error = %v", name, err)
	}
	return res
}

func TestBuiltinRules(t *testing.T) {
	tests := []struct {
		rule        string
		value       string
		maxLength   int
		severity    Severity
		reformatted string
	}{
		{rule: "required", value: "x", severity: SeverityNone},
		{rule: "required", value: "  ", severity: SeverityError},
		{rule: "required", value: `=""`, severity: SeverityError},
		{rule: "recommended", value: "", severity: SeverityWarning},
		{rule: "email", value: "ann@example.com", severity: SeverityNone},
		{rule: "email", value: " ann@example.com ", severity: SeveritySuccess, reformatted: "ann@example.com"},
		{rule: "email", value: "Ann <ann@example.com>", severity: SeverityError},
		{rule: "email", value: "nope", severity: SeverityError},
		{rule: "email", value: "", severity: SeverityNone},
		{rule: "integer", value: "42", severity: SeverityNone},
		{rule: "integer", value: "1,000", severity: SeveritySuccess, reformatted: "1000"},
		{rule: "integer", value: "4.2", severity: SeverityError},
		{rule: "number", value: "$1,234.50", severity: SeveritySuccess, reformatted: "1234.50"},
		{rule: "number", value: "(12.5)", severity: SeveritySuccess, reformatted: "-12.5"},
		{rule: "number", value: "12abc", severity: SeverityError},
		{rule: "date", value: "2024-01-15", severity: SeverityNone},
		{rule: "date", value: "1/15/2024", severity: SeveritySuccess, reformatted: "2024-01-15"},
		{rule: "date", value: "Jan 15, 2024", severity: SeveritySuccess, reformatted: "2024-01-15"},
		{rule: "date", value: "someday", severity: SeverityError},
		{rule: "bool", value: "yes", severity: SeveritySuccess, reformatted: "true"},
		{rule: "bool", value: "false", severity: SeverityNone},
		{rule: "bool", value: "maybe", severity: SeverityError},
		{rule: "us_state", value: "New York", severity: SeveritySuccess, reformatted: "NY"},
		{rule: "us_state", value: "tx", severity: SeveritySuccess, reformatted: "TX"},
		{rule: "us_state", value: "CA", severity: SeverityNone},
		{rule: "us_state", value: "Ontario", severity: SeverityWarning},
		{rule: "maxlength", value: "abcdef", maxLength: 5, severity: SeverityError},
		{rule: "maxlength", value: "abcde", maxLength: 5, severity: SeverityNone},
		{rule: "maxlength", value: "abcdef", severity: SeverityNone},
		{rule: "required|us_state", value: "texas", severity: SeveritySuccess, reformatted: "TX"},
		{rule: "us_state|maxlength", value: "texas", maxLength: 2, severity: SeveritySuccess, reformatted: "TX"},
	}

	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.value, func(t *testing.T) {
			res := runRule(t, tt.rule, Context{Value: tt.value, MaxLength: tt.maxLength})
			if got := res.severity(); got != tt.severity {
				t.Errorf("severity = %v, want %v (result %+v)", got, tt.severity, res)
			}
			var reformatted string
			if res != nil {
				reformatted = res.Reformatted
			}
			if reformatted != tt.reformatted {
				t.Errorf("reformatted = %q, want %q", reformatted, tt.reformatted)
			}
		})
	}
}

func TestChain_StopsAtError(t *testing.T) {
	calls := 0
	counter := func(Context) (*Result, error) {
		calls++
		return nil, nil
	}

	res, err := Chain(required, counter)(Context{Value: ""})
	if err != nil || res.severity() != SeverityError {
		t.Errorf("Chain = %+v, %v; want required error", res, err)
	}
	if calls != 0 {
		t.Errorf("rule after error ran %d times", calls)
	}
}

func TestChain_PropagatesRuleFailure(t *testing.T) {
	boom := errors.New("boom")
	failing := func(Context) (*Result, error) { return nil, boom }

	if _, err := Chain(required, failing)(Context{Value: "x"}); !errors.Is(err, boom) {
		t.Errorf("Chain error = %v, want boom", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("a", required)

	if _, ok := r.Lookup("a"); !ok {
		t.Error("Lookup(a) not found")
	}
	if _, err := r.Resolve("a|b"); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("Resolve(a|b) error = %v, want ErrUnknownRule", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("Register duplicate should panic")
		}
	}()
	r.Register("a", required)
}

func TestDefaultRegistry_Names(t *testing.T) {
	got := DefaultRegistry().Names()
	if len(got) != 9 {
		t.Errorf("Names = %v, want 9 built-in rules", got)
	}
}
