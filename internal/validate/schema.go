package validate

import (
	"context"
	"strings"

	"github.com/JonMunkholm/viewkit/internal/async"
	"github.com/JonMunkholm/viewkit/internal/schema"
)

// SchemaState tracks schema-dependent setup.
type SchemaState int

const (
	SchemaNone SchemaState = iota
	SchemaPending
	SchemaReady
	SchemaFailed
)

func (s SchemaState) String() string {
	switch s {
	case SchemaNone:
		return "none"
	case SchemaPending:
		return "pending"
	case SchemaReady:
		return "ready"
	case SchemaFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SchemaState returns the state of schema-dependent setup.
func (e *Engine) SchemaState() SchemaState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.schemaState
}

// AttachSchema runs schema-dependent setup once table and every precondition
// in pre have settled. Until then the engine validates with its declared
// rules only.
//
// On success declared fields learn their column metadata and max length,
// and every undeclared column that needs a value or has a length limit gets
// a generated field. The first failure skips that setup permanently and
// calls the OnSchemaError hook; it is never retried.
//
// The returned future settles after setup (or the hook) has run.
func (e *Engine) AttachSchema(ctx context.Context, table *async.Future[*schema.Table], pre ...async.Waiter) (*async.Future[struct{}], error) {
	e.mu.Lock()
	if e.schemaState != SchemaNone {
		e.mu.Unlock()
		return nil, ErrSchemaAttached
	}
	e.schemaState = SchemaPending
	e.mu.Unlock()

	waiters := append([]async.Waiter{table}, pre...)
	return async.OnSettled(ctx, func(err error) {
		e.settleSchema(table, err)
	}, waiters...), nil
}

// LoadSchema fetches tableName from p and attaches it.
func (e *Engine) LoadSchema(ctx context.Context, p schema.Provider, tableName string, pre ...async.Waiter) (*async.Future[struct{}], error) {
	return e.AttachSchema(ctx, schema.Fetch(ctx, p, tableName), pre...)
}

func (e *Engine) settleSchema(table *async.Future[*schema.Table], err error) {
	var t *schema.Table
	if err == nil {
		t, err = table.Result()
	}

	e.mu.Lock()
	if err != nil {
		e.schemaState = SchemaFailed
		hook := e.onSchemaError
		e.mu.Unlock()

		e.logger.Error("schema setup failed", "error", err)
		if hook != nil {
			hook(err)
		}
		return
	}
	defer e.mu.Unlock()

	e.applySchema(t)
	e.schemaState = SchemaReady
	e.logger.Info("schema attached", "table", t.Name, "fields", len(e.order))
}

func (e *Engine) applySchema(t *schema.Table) {
	declared := make(map[string]bool, len(e.fields))
	for _, f := range e.fields {
		declared[strings.ToLower(f.column)] = true

		col, ok := t.Column(f.column)
		if !ok {
			continue
		}
		f.meta = &col
		if col.MaxLength > 0 {
			f.maxLength = col.MaxLength
		}
	}

	for _, col := range t.Columns {
		if declared[strings.ToLower(col.Name)] {
			continue
		}
		if _, clash := e.fields[col.Name]; clash {
			continue
		}

		var rules []Rule
		if col.Required() {
			rules = append(rules, required)
		}
		if col.MaxLength > 0 {
			rules = append(rules, skipEmpty(maxLength))
		}
		if len(rules) == 0 {
			continue
		}

		meta := col
		e.addField(&field{
			name:      col.Name,
			generated: true,
			rule:      Chain(rules...),
			column:    col.Name,
			meta:      &meta,
			maxLength: col.MaxLength,
		})
	}
}

// MaxLength returns the length limit of field name learned from the schema.
func (e *Engine) MaxLength(name string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, ok := e.fields[name]
	if !ok || f.maxLength <= 0 {
		return 0, false
	}
	return f.maxLength, true
}

// Generated reports whether field name was derived from the schema.
func (e *Engine) Generated(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.fields[name]
	return ok && f.generated
}
