package validate

import "fmt"

// Severity orders validation states: none < success < warning < error.
type Severity int

const (
	SeverityNone Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

var severityNames = [...]string{"none", "success", "warning", "error"}

func (s Severity) String() string {
	if s < SeverityNone || s > SeverityError {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityNone || s > SeverityError {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(severityNames[s]), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	for i, name := range severityNames {
		if name == string(b) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("invalid severity %q", b)
}

// MaxSeverity returns the most severe of ss, or SeverityNone.
func MaxSeverity(ss ...Severity) Severity {
	m := SeverityNone
	for _, s := range ss {
		m = max(m, s)
	}
	return m
}
