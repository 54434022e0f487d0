// Package validate implements the grouped field validation engine.
//
// An Engine is compiled once from a Spec mapping field keys to rules. Fields
// may be clustered into groups that share one visible indicator: validating
// a field only records its severity in the group's cache, and ResolveGroup
// reduces the cache to the most severe entry when the group is left or the
// whole form is validated.
//
// Engines are safe for concurrent use. Rules run while the engine's lock is
// held and must not call back into the engine.
package validate

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/JonMunkholm/viewkit/internal/bus"
	"github.com/JonMunkholm/viewkit/internal/schema"
)

// TopicGroup is published on the bus whenever a group is resolved.
const TopicGroup = "validate.group"

// GroupEvent is the payload published under TopicGroup.
type GroupEvent struct {
	Engine   string
	Group    string
	Severity Severity
	Previous Severity
}

// Outcome is the verdict of ValidateAll.
type Outcome int

const (
	Valid Outcome = iota
	Invalid
	// NeedsAcknowledgement means warnings remain and the caller asked for
	// an explicit confirmation before accepting them.
	NeedsAcknowledgement
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case NeedsAcknowledgement:
		return "needs_acknowledgement"
	default:
		return "unknown"
	}
}

// Report is the result of a full-form validation pass.
type Report struct {
	Outcome  Outcome
	Severity Severity           // Maximum over fields and groups
	Fields   map[string]*Result // Non-nil results by field
	Groups   map[string]Severity
}

// Failed reports whether the maximum severity reached error.
func (r *Report) Failed() bool {
	return r.Severity >= SeverityError
}

// Options configure Compile.
type Options struct {
	Name     string
	Registry *Registry // Defaults to DefaultRegistry()

	// RequireAcknowledgement turns warning-only forms into
	// NeedsAcknowledgement until Acknowledge is called.
	RequireAcknowledgement bool

	// Columns maps field names to backing schema columns when they differ.
	Columns map[string]string

	// OnSchemaError is called once if schema setup fails. The engine stays
	// usable with its declared rules only.
	OnSchemaError func(error)

	Bus    *bus.Bus
	Logger *slog.Logger
}

type field struct {
	name      string
	group     string
	optional  bool
	generated bool // Derived from the schema rather than declared
	rule      Rule
	column    string
	meta      *schema.Column
	maxLength int
}

// Engine is a compiled validation spec plus per-form state.
type Engine struct {
	mu sync.Mutex

	name      string
	fields    map[string]*field
	order     []string
	groups    map[string][]string
	cache     map[string]map[string]Severity // group -> field -> severity
	results   map[string]Severity            // last severity of every field
	displayed map[string]Severity            // last resolved severity per group

	registry   *Registry
	requireAck bool
	acked      bool

	schemaState   SchemaState
	onSchemaError func(error)

	bus    *bus.Bus
	logger *slog.Logger
}

// Compile parses spec and resolves every rule reference.
func Compile(spec Spec, opts Options) (*Engine, error) {
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		name:          opts.Name,
		fields:        make(map[string]*field, len(spec)),
		groups:        make(map[string][]string),
		cache:         make(map[string]map[string]Severity),
		results:       make(map[string]Severity),
		displayed:     make(map[string]Severity),
		registry:      registry,
		requireAck:    opts.RequireAcknowledgement,
		onSchemaError: opts.OnSchemaError,
		bus:           opts.Bus,
		logger:        logger.With("form", opts.Name),
	}

	for _, d := range spec {
		k, err := ParseKey(d.Key)
		if err != nil {
			return nil, err
		}
		if _, dup := e.fields[k.Field]; dup {
			return nil, &DuplicateFieldError{Field: k.Field}
		}
		rule, err := registry.Resolve(d.Rule)
		if err != nil {
			if ure, ok := err.(*UnknownRuleError); ok {
				ure.Field = k.Field
			}
			return nil, err
		}

		column := k.Field
		if c, ok := opts.Columns[k.Field]; ok {
			column = c
		}
		e.addField(&field{
			name:     k.Field,
			group:    k.Group,
			optional: k.Optional,
			rule:     rule,
			column:   column,
		})
	}
	return e, nil
}

func (e *Engine) addField(f *field) {
	e.fields[f.name] = f
	e.order = append(e.order, f.name)
	if f.group == "" {
		return
	}
	if _, ok := e.cache[f.group]; !ok {
		e.cache[f.group] = make(map[string]Severity)
	}
	e.groups[f.group] = append(e.groups[f.group], f.name)
}

// Name returns the configured engine name.
func (e *Engine) Name() string { return e.name }

// Fields returns field names in validation order, generated fields last.
func (e *Engine) Fields() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.order)
}

// Groups returns the group names, sorted.
func (e *Engine) Groups() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Sorted(maps.Keys(e.groups))
}

// Members returns the fields of group in declaration order.
func (e *Engine) Members(group string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.groups[group])
}

// GroupOf returns the group of field, if any.
func (e *Engine) GroupOf(name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f, ok := e.fields[name]; ok {
		return f.group
	}
	return ""
}

// ValidateField runs the rule of field name against value. A nil result
// means valid. When the field belongs to a group its severity is recorded in
// the group's cache; the group's displayed severity changes only through
// ResolveGroup.
//
// Validating an undeclared field, or a rule failing with an error, is a
// declaration mismatch and returns a *SetupError.
func (e *Engine) ValidateField(name, value string, fields Fields) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, ok := e.fields[name]
	if !ok {
		return nil, &SetupError{Field: name, Reason: "no rule declared for field"}
	}
	return e.validate(f, value, fields)
}

func (e *Engine) validate(f *field, value string, fields Fields) (*Result, error) {
	if fields == nil {
		fields = Values{}
	}
	res, err := f.rule(Context{
		Field:     f.name,
		Value:     value,
		Fields:    fields,
		Column:    f.meta,
		MaxLength: f.maxLength,
	})
	if err != nil {
		return nil, &SetupError{Field: f.name, Reason: "rule failed", Err: err}
	}

	sev := res.severity()
	e.results[f.name] = sev
	if f.group != "" {
		e.cache[f.group][f.name] = sev
	}
	return res, nil
}

// ResolveGroup reduces the group's cache to its most severe entry. Members
// not validated yet count as none.
func (e *Engine) ResolveGroup(group string) (Severity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.groups[group]; !ok {
		return SeverityNone, ErrUnknownGroup
	}
	return e.resolve(group), nil
}

func (e *Engine) resolve(group string) Severity {
	sev := SeverityNone
	for _, s := range e.cache[group] {
		sev = max(sev, s)
	}

	prev := e.displayed[group]
	e.displayed[group] = sev
	e.bus.Publish(TopicGroup, GroupEvent{
		Engine:   e.name,
		Group:    group,
		Severity: sev,
		Previous: prev,
	})
	return sev
}

// Displayed returns the severity from the group's last resolution.
func (e *Engine) Displayed(group string) Severity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.displayed[group]
}

// FieldSeverity returns the severity of the field's last validation.
func (e *Engine) FieldSeverity(name string) Severity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.results[name]
}

// ValidateAll validates every field present in form, resolves every group
// and reports the overall outcome. Absent fields are skipped when they are
// optional or generated; any other absent field is a *SetupError.
//
// With RequireAcknowledgement, a form whose worst severity is a warning is
// NeedsAcknowledgement unless Acknowledge was called since the previous
// ValidateAll.
func (e *Engine) ValidateAll(form Fields) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if form == nil {
		form = Values{}
	}
	acked := e.acked
	e.acked = false

	report := &Report{
		Fields: make(map[string]*Result),
		Groups: make(map[string]Severity, len(e.groups)),
	}

	for _, name := range e.order {
		f := e.fields[name]
		value, ok := form.Lookup(name)
		if !ok {
			if f.optional || f.generated {
				// A stale result must not count for an absent field.
				delete(e.results, name)
				if f.group != "" {
					delete(e.cache[f.group], name)
				}
				continue
			}
			return nil, &SetupError{Field: name, Reason: "field missing from form"}
		}
		res, err := e.validate(f, value, form)
		if err != nil {
			return nil, err
		}
		if res != nil {
			report.Fields[name] = res
		}
		report.Severity = max(report.Severity, res.severity())
	}

	for _, group := range slices.Sorted(maps.Keys(e.groups)) {
		sev := e.resolve(group)
		report.Groups[group] = sev
		report.Severity = max(report.Severity, sev)
	}

	switch {
	case report.Severity >= SeverityError:
		report.Outcome = Invalid
	case report.Severity == SeverityWarning && e.requireAck && !acked:
		report.Outcome = NeedsAcknowledgement
	default:
		report.Outcome = Valid
	}
	return report, nil
}

// Acknowledge confirms the current warnings. It applies to the next
// ValidateAll only.
func (e *Engine) Acknowledge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acked = true
}

// Reset forgets every recorded severity and any pending acknowledgement.
// Compiled rules and schema state are kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	clear(e.results)
	clear(e.displayed)
	for _, c := range e.cache {
		clear(c)
	}
	e.acked = false
}
