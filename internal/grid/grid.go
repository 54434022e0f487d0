// Package grid implements the tabular data view engine behind table views.
//
// A Grid owns an ordered RowSet of records and derives a FilteredView from it
// through an optional filter predicate and an optional single-column sort.
// The FilteredView is paged with a fixed page size. Rows can be addressed
// through RowHandles that stay valid across re-filtering, re-sorting and
// re-paging because they are resolved by record identity at call time.
//
// All operations run synchronously to completion. A Grid is not safe for
// concurrent use; callers serving several goroutines serialize access (the
// web layer holds a per-session lock).
//
// # Invariants
//
//   - Every record in the FilteredView is the same map as some record in the
//     RowSet. Records are never copied.
//   - Without an active sort, FilteredView order is RowSet order.
//   - The current page is clamped so its window starts inside the
//     FilteredView whenever the view is non-empty.
//   - Child overlays belong to positions in the last rendered page and are
//     dropped on every re-render.
package grid

import (
	"log/slog"
	"reflect"
	"slices"

	"github.com/JonMunkholm/viewkit/internal/bus"
	"github.com/JonMunkholm/viewkit/internal/render"
	"github.com/a-h/templ"
)

// DefaultCheckboxField is the record field that stores checkbox state.
const DefaultCheckboxField = "__checked"

// TopicRendered is published on the bus after every re-render.
const TopicRendered = "grid.rendered"

// Record is one row of user data. Identity is the map itself.
type Record map[string]any

// Filter selects the records that make up the FilteredView.
// A nil Filter matches every record.
type Filter func(Record) bool

// Column types understood by the default cell formatter.
const (
	TypeText   = "text"
	TypeNumber = "number"
	TypeDate   = "date"
	TypeBool   = "bool"
	TypeHTML   = "html"
)

// Column describes how one column is rendered and sorted.
//
// Exactly one rendering strategy applies: Render, Template, Format (which
// needs Property), or the Property-only default.
type Column struct {
	Title    string
	Property string // Record field holding the cell value
	Type     string // One of the Type* constants; empty means text
	Class    string // Extra CSS class for header and cells

	Render   func(value any, rec Record) templ.Component
	Template string // Name in the grid's render.Registry; receives a CellContext
	Format   func(value any, rec Record) string

	// Compare orders two records for this column. When nil and Sortable is
	// set, the generic comparator is applied to the Property values.
	Compare  func(a, b Record) int
	Sortable bool
}

// CellContext is the data passed to column templates.
type CellContext struct {
	Value  any
	Record Record
	Column Column
}

// Config configures a Grid.
type Config struct {
	Name          string
	Columns       []Column
	Data          []Record
	PageSize      int // Rows per page; zero or negative means unlimited
	Checkboxes    bool
	CheckboxField string // Defaults to DefaultCheckboxField
	Filter        Filter
	EmptyText     string

	// Equal is the fallback used to re-find a handle's record when identity
	// lookup fails, e.g. after SetRows reloaded equal records. Defaults to
	// deep equality.
	Equal func(a, b Record) bool

	// Link builds hx-post URLs for interactive elements; see the Action
	// constants. Without it the markup is static.
	Link func(action string, arg int) string

	Compare   CompareOptions
	Templates *render.Registry
	Bus       *bus.Bus
	Logger    *slog.Logger
}

// RenderedEvent is the payload published under TopicRendered.
type RenderedEvent struct {
	Grid      string
	Version   int
	Page      int
	PageCount int
	Rows      int // FilteredView length
}

// Grid is the tabular data view engine.
type Grid struct {
	name       string
	cols       []Column
	rows       []Record
	view       []Record
	filter     Filter
	pageSize   int
	page       int
	sortCol    int
	sortAsc    bool
	checkboxes bool
	checkField string
	emptyText  string
	equal      func(a, b Record) bool

	comparer   *Comparer
	templates  *render.Registry
	link       func(action string, arg int) string
	bus        *bus.Bus
	logger     *slog.Logger
	rendered   []Record
	overlays   map[int]templ.Component
	highlights map[uintptr]string
	version    int
}

// New validates cfg and builds a grid rendered at page 0.
func New(cfg Config) (*Grid, error) {
	for i, c := range cfg.Columns {
		if err := checkColumn(i, c); err != nil {
			return nil, err
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checkField := cfg.CheckboxField
	if checkField == "" {
		checkField = DefaultCheckboxField
	}
	equal := cfg.Equal
	if equal == nil {
		equal = func(a, b Record) bool { return reflect.DeepEqual(a, b) }
	}

	g := &Grid{
		name:       cfg.Name,
		cols:       slices.Clone(cfg.Columns),
		filter:     cfg.Filter,
		pageSize:   cfg.PageSize,
		sortCol:    -1,
		checkboxes: cfg.Checkboxes,
		checkField: checkField,
		emptyText:  cfg.EmptyText,
		equal:      equal,
		comparer:   NewComparer(cfg.Compare),
		templates:  cfg.Templates,
		link:       cfg.Link,
		bus:        cfg.Bus,
		logger:     logger.With("grid", cfg.Name),
		overlays:   make(map[int]templ.Component),
		highlights: make(map[uintptr]string),
	}
	if g.emptyText == "" {
		g.emptyText = "No rows"
	}

	g.rows = g.collect(cfg.Data)
	g.rebuild()
	g.refresh()
	return g, nil
}

// checkColumn enforces the single-rendering-strategy rule.
func checkColumn(i int, c Column) error {
	fail := func(reason string) error {
		return &SetupError{Column: i, Title: c.Title, Reason: reason}
	}

	switch c.Type {
	case "", TypeText, TypeNumber, TypeDate, TypeBool, TypeHTML:
	default:
		return fail("unknown column type " + c.Type)
	}

	strategies := 0
	if c.Render != nil {
		strategies++
	}
	if c.Template != "" {
		strategies++
	}
	if c.Format != nil {
		strategies++
	}

	switch {
	case strategies > 1:
		return fail("more than one rendering strategy")
	case c.Format != nil && c.Property == "":
		return fail("format function requires a property")
	case strategies == 0 && c.Property == "":
		return fail("missing rendering strategy")
	case c.Sortable && c.Compare == nil && c.Property == "":
		return fail("sortable column needs a property or a comparator")
	}
	return nil
}

// collect copies the record slice, dropping nil records.
func (g *Grid) collect(rows []Record) []Record {
	out := make([]Record, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		if r == nil {
			dropped++
			continue
		}
		out = append(out, r)
	}
	if dropped > 0 {
		g.logger.Warn("ignoring nil records", "count", dropped)
	}
	return out
}

// SetRows replaces the RowSet, rebuilds the FilteredView and returns to page 0.
func (g *Grid) SetRows(rows []Record) {
	g.rows = g.collect(rows)
	clear(g.highlights)
	g.page = 0
	g.rebuild()
	g.refresh()
}

// SetFilter replaces the filter (nil matches all), rebuilds the FilteredView
// and returns to page 0.
func (g *Grid) SetFilter(f Filter) {
	g.filter = f
	g.page = 0
	g.rebuild()
	g.refresh()
}

// Append adds records to the end of the RowSet. Records passing the filter
// join the FilteredView at the end, or at their stable sorted position while
// a sort is active. The current page is kept.
func (g *Grid) Append(recs ...Record) {
	recs = g.collect(recs)
	if len(recs) == 0 {
		return
	}
	g.rows = append(g.rows, recs...)
	for _, r := range recs {
		if !g.matches(r) {
			continue
		}
		if g.sortCol < 0 {
			g.view = append(g.view, r)
			continue
		}
		pos := g.insertPosition(r)
		g.view = slices.Insert(g.view, pos, r)
	}
	g.refresh()
}

func (g *Grid) matches(r Record) bool {
	return g.filter == nil || g.filter(r)
}

// rebuild recomputes the FilteredView from the RowSet and re-applies the
// active sort.
func (g *Grid) rebuild() {
	view := make([]Record, 0, len(g.rows))
	for _, r := range g.rows {
		if g.matches(r) {
			view = append(view, r)
		}
	}
	g.view = view

	if g.sortCol >= 0 {
		g.sortView(g.sortCol)
		if !g.sortAsc {
			slices.Reverse(g.view)
		}
	}
}

// refresh re-renders: clamps the page, snapshots the page rows and drops
// every child overlay.
func (g *Grid) refresh() {
	g.clampPage()
	start, end := g.window()
	g.rendered = slices.Clone(g.view[start:end])
	clear(g.overlays)
	g.version++

	g.bus.Publish(TopicRendered, RenderedEvent{
		Grid:      g.name,
		Version:   g.version,
		Page:      g.page,
		PageCount: g.PageCount(),
		Rows:      len(g.view),
	})
}

// Name returns the configured grid name.
func (g *Grid) Name() string { return g.name }

// Columns returns a copy of the column configuration.
func (g *Grid) Columns() []Column { return slices.Clone(g.cols) }

// Rows returns the RowSet. The slice is a copy; the records are not.
func (g *Grid) Rows() []Record { return slices.Clone(g.rows) }

// Filtered returns the FilteredView. The slice is a copy; the records are not.
func (g *Grid) Filtered() []Record { return slices.Clone(g.view) }

// Len returns the FilteredView length.
func (g *Grid) Len() int { return len(g.view) }

// Version increases with every re-render.
func (g *Grid) Version() int { return g.version }

// SortState reports the active sort column and direction.
func (g *Grid) SortState() (col int, ascending bool, ok bool) {
	if g.sortCol < 0 {
		return -1, false, false
	}
	return g.sortCol, g.sortAsc, true
}

// identity returns the address of the map backing r.
func identity(r Record) uintptr {
	return reflect.ValueOf(r).Pointer()
}

func same(a, b Record) bool {
	return a != nil && b != nil && identity(a) == identity(b)
}

func indexOf(list []Record, r Record) int {
	id := identity(r)
	for i, x := range list {
		if identity(x) == id {
			return i
		}
	}
	return -1
}
