// Package catalog registers the views an application serves: the columns of
// each table view, where its rows come from, and the validation rules of its
// edit form.
package catalog

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/JonMunkholm/viewkit/internal/grid"
	"github.com/JonMunkholm/viewkit/internal/store"
	"github.com/JonMunkholm/viewkit/internal/validate"
)

// Definition describes one view.
type Definition struct {
	Key      string // Unique identifier: "sfdc_customers"
	Group    string // Data source: "SFDC", "Anrok"
	Label    string // Display name: "Customers"
	Columns  []grid.Column
	PageSize int // Zero uses the application default
	Checkbox bool
	Source   store.Source

	// UniqueKey lists the record fields that identify a row across reloads.
	// Handles fall back to it when identity lookup fails.
	UniqueKey []string

	// Rules is the edit form's validation spec. A definition without rules
	// has no form.
	Rules       validate.Spec
	RuleColumns map[string]string // Form field -> schema column
	SchemaTable string            // Empty skips schema-derived rules
}

// HasForm reports whether the definition declares an edit form.
func (d Definition) HasForm() bool {
	return len(d.Rules) > 0
}

// Equal compares records by UniqueKey. It returns nil without a key so the
// grid keeps its deep-equality default.
func (d Definition) Equal() func(a, b grid.Record) bool {
	if len(d.UniqueKey) == 0 {
		return nil
	}
	keys := d.UniqueKey
	return func(a, b grid.Record) bool {
		for _, k := range keys {
			if !reflect.DeepEqual(a[k], b[k]) {
				return false
			}
		}
		return true
	}
}

// GridConfig returns base completed with the definition's columns, page
// size, checkbox mode and key equality.
func (d Definition) GridConfig(base grid.Config) grid.Config {
	cfg := base
	cfg.Name = d.Key
	cfg.Columns = d.Columns
	if d.PageSize > 0 {
		cfg.PageSize = d.PageSize
	}
	cfg.Checkboxes = d.Checkbox
	if eq := d.Equal(); eq != nil {
		cfg.Equal = eq
	}
	return cfg
}

// Load fetches the definition's rows. A definition without a source has no
// rows.
func (d Definition) Load(ctx context.Context) ([]grid.Record, error) {
	if d.Source == nil {
		return nil, nil
	}
	rows, err := d.Source.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", d.Key, err)
	}
	return rows, nil
}

// NewGrid loads the rows and builds a grid from base.
func (d Definition) NewGrid(ctx context.Context, base grid.Config) (*grid.Grid, error) {
	rows, err := d.Load(ctx)
	if err != nil {
		return nil, err
	}
	cfg := d.GridConfig(base)
	cfg.Data = rows
	return grid.New(cfg)
}

// Compile builds a validation engine for the edit form from base.
func (d Definition) Compile(base validate.Options) (*validate.Engine, error) {
	opts := base
	opts.Name = d.Key
	opts.Columns = d.RuleColumns
	return validate.Compile(d.Rules, opts)
}

// Catalog is a set of definitions keyed by Definition.Key. It is safe for
// concurrent use.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{defs: make(map[string]Definition)}
}

// Register adds a definition.
// Panics if a definition with the same key is already registered.
func (c *Catalog) Register(def Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.defs[def.Key]; exists {
		panic(fmt.Sprintf("view already registered: %s", def.Key))
	}
	c.defs[def.Key] = def
}

// Get returns a definition by key.
// Returns false if not found.
func (c *Catalog) Get(key string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.defs[key]
	return def, ok
}

// All returns every definition.
// Sorted by group then by key for consistent ordering.
func (c *Catalog) All() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Definition, 0, len(c.defs))
	for _, def := range c.defs {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// ByGroup returns all definitions of one group, sorted by key.
func (c *Catalog) ByGroup(group string) []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []Definition
	for _, def := range c.defs {
		if def.Group == group {
			result = append(result, def)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Groups returns all unique group names, sorted alphabetically.
func (c *Catalog) Groups() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range c.defs {
		seen[def.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// Count returns the number of registered definitions.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// Clear removes all definitions.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs = make(map[string]Definition)
}
