package validate

import (
	"errors"
	"fmt"
)

var (
	// ErrSetup marks declaration defects: malformed keys, undeclared fields
	// and rules that fail instead of returning a result.
	ErrSetup = errors.New("validation setup error")

	// ErrDuplicateField is matched by *DuplicateFieldError.
	ErrDuplicateField = errors.New("duplicate field")

	// ErrUnknownRule is matched by *UnknownRuleError.
	ErrUnknownRule = errors.New("unknown rule")

	// ErrUnknownGroup is returned by ResolveGroup for undeclared groups.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrSchemaAttached is returned when a schema is attached twice.
	ErrSchemaAttached = errors.New("schema already attached")
)

// SetupError reports a declaration or UI mismatch found at compile or
// validate time. It is a programming error and is never retried.
type SetupError struct {
	Field  string
	Reason string
	Err    error // Underlying rule failure, if any
}

func (e *SetupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation setup error: field %q: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("validation setup error: field %q: %s", e.Field, e.Reason)
}

func (e *SetupError) Is(target error) bool {
	return target == ErrSetup
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// DuplicateFieldError reports a field declared more than once.
type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("duplicate field %q", e.Field)
}

func (e *DuplicateFieldError) Is(target error) bool {
	return target == ErrDuplicateField
}

// UnknownRuleError reports a rule reference missing from the registry.
type UnknownRuleError struct {
	Field string
	Rule  string
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("unknown rule %q for field %q", e.Rule, e.Field)
}

func (e *UnknownRuleError) Is(target error) bool {
	return target == ErrUnknownRule
}
