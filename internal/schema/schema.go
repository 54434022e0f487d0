// Package schema is the schema collaborator for the validation engine.
//
// A Provider looks up a table's column metadata by name. Lookups are
// asynchronous from the engine's point of view: Fetch wraps a lookup in a
// future so dependent setup can join it with other preconditions.
package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/viewkit/internal/async"
)

// ErrTableNotFound is returned when a provider has no table of that name.
var ErrTableNotFound = errors.New("table not found")

// Column describes one column of a backing table.
type Column struct {
	Name       string
	DataType   string
	MaxLength  int // Zero when the type has no length limit
	Nullable   bool
	HasDefault bool
}

// Required reports whether a value must be supplied for the column.
func (c Column) Required() bool {
	return !c.Nullable && !c.HasDefault
}

// Table is the column metadata of one table, in ordinal order.
type Table struct {
	Name    string
	Columns []Column
}

// Column returns the named column. Names match case-insensitively.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// Provider looks up table metadata.
type Provider interface {
	Table(ctx context.Context, name string) (*Table, error)
}

// Fetch starts a lookup of table name and returns its future.
func Fetch(ctx context.Context, p Provider, name string) *async.Future[*Table] {
	return async.Go(ctx, func(ctx context.Context) (*Table, error) {
		t, err := p.Table(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("fetch schema %s: %w", name, err)
		}
		return t, nil
	})
}

// Static serves tables from memory. It backs tests and runs without a
// database.
type Static map[string]*Table

// Table implements Provider.
func (s Static) Table(_ context.Context, name string) (*Table, error) {
	t, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// Names returns the table names, sorted.
func (s Static) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
