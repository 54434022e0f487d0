package grid

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// RowHandle refers to one record and survives re-filtering, re-sorting and
// re-paging. Its position is re-derived from record identity on every call
// (falling back to the grid's equality function), never trusted from an
// earlier index.
//
// Once its record is removed, through this handle or any other, the handle
// is invalid and its own methods become no-ops. The grid-level operations
// (Grid.Replace and friends) still report ErrStaleHandle for it.
type RowHandle struct {
	g       *Grid
	id      uuid.UUID
	index   int // FilteredView index at last resolution, -1 if filtered out
	record  Record
	removed bool
}

func (g *Grid) newHandle(viewIndex int, r Record) *RowHandle {
	return &RowHandle{g: g, id: uuid.New(), index: viewIndex, record: r}
}

// Lookup returns a handle for the first FilteredView record matching pred.
func (g *Grid) Lookup(pred Filter) (*RowHandle, bool) {
	if pred == nil {
		return nil, false
	}
	for i, r := range g.view {
		if pred(r) {
			return g.newHandle(i, r), true
		}
	}
	return nil, false
}

// Handle returns a handle for FilteredView index i.
func (g *Grid) Handle(i int) (*RowHandle, error) {
	if i < 0 || i >= len(g.view) {
		return nil, &PositionError{Position: i, Reason: "outside filtered view"}
	}
	return g.newHandle(i, g.view[i]), nil
}

// HandleAt returns a handle for position pos of the rendered page.
func (g *Grid) HandleAt(pos int) (*RowHandle, error) {
	if pos < 0 || pos >= len(g.rendered) {
		return nil, &PositionError{Position: pos, Reason: "outside rendered page"}
	}
	r := g.rendered[pos]
	return g.newHandle(indexOf(g.view, r), r), nil
}

// resolve re-derives the RowSet and FilteredView indexes of h's record.
// The FilteredView index is -1 when the record is filtered out.
func (g *Grid) resolve(h *RowHandle) (rowIdx, viewIdx int, err error) {
	if h == nil || h.g != g || h.removed {
		return -1, -1, ErrStaleHandle
	}

	rowIdx = indexOf(g.rows, h.record)
	if rowIdx < 0 {
		for i, r := range g.rows {
			if g.equal(r, h.record) {
				rowIdx = i
				h.record = r
				break
			}
		}
	}
	if rowIdx < 0 {
		h.removed = true
		h.index = -1
		return -1, -1, fmt.Errorf("%w: record no longer present", ErrStaleHandle)
	}

	if h.index >= 0 && h.index < len(g.view) && same(g.view[h.index], h.record) {
		viewIdx = h.index
	} else {
		viewIdx = indexOf(g.view, h.record)
	}
	h.index = viewIdx
	return rowIdx, viewIdx, nil
}

// Replace swaps h's record for rec in both the RowSet and the FilteredView.
// The replacement keeps the old record's position; it leaves or joins the
// FilteredView if the filter now disagrees.
func (g *Grid) Replace(h *RowHandle, rec Record) error {
	if rec == nil {
		return ErrNilRecord
	}
	ri, vi, err := g.resolve(h)
	if err != nil {
		return err
	}

	old := g.rows[ri]
	g.rows[ri] = rec
	if class, ok := g.highlights[identity(old)]; ok {
		delete(g.highlights, identity(old))
		g.highlights[identity(rec)] = class
	}
	h.record = rec

	g.settle(old, rec, vi)
	return nil
}

// Update merges fields into h's record in place. The record keeps its
// identity, so other handles to it stay valid.
func (g *Grid) Update(h *RowHandle, fields map[string]any) error {
	ri, vi, err := g.resolve(h)
	if err != nil {
		return err
	}

	rec := g.rows[ri]
	maps.Copy(rec, fields)
	g.settle(rec, rec, vi)
	return nil
}

// settle reconciles the FilteredView after old was replaced by rec at
// FilteredView index vi (-1 if old was filtered out).
func (g *Grid) settle(old, rec Record, vi int) {
	in := g.matches(rec)
	switch {
	case vi >= 0 && in:
		g.view[vi] = rec
		if pos := indexOf(g.rendered, old); pos >= 0 {
			g.rendered[pos] = rec
		}
	case vi < 0 && !in:
	default:
		g.rebuild()
		g.refresh()
	}
}

// Remove deletes h's record from the RowSet and FilteredView and invalidates
// h. Removing the only record of the last page moves back one page.
func (g *Grid) Remove(h *RowHandle) error {
	ri, vi, err := g.resolve(h)
	if err != nil {
		return err
	}

	rec := g.rows[ri]
	g.rows = slices.Delete(g.rows, ri, ri+1)
	delete(g.highlights, identity(rec))
	h.removed = true
	h.index = -1

	if vi >= 0 {
		g.view = slices.Delete(g.view, vi, vi+1)
		g.refresh()
	}
	return nil
}

// Highlight sets a CSS class on h's row; an empty class clears it.
// Highlights are dropped by SetRows.
func (g *Grid) Highlight(h *RowHandle, class string) error {
	ri, _, err := g.resolve(h)
	if err != nil {
		return err
	}
	id := identity(g.rows[ri])
	if class == "" {
		delete(g.highlights, id)
		return nil
	}
	g.highlights[id] = class
	return nil
}

// HighlightOf returns the highlight class of rec, if any.
func (g *Grid) HighlightOf(rec Record) string {
	if rec == nil {
		return ""
	}
	return g.highlights[identity(rec)]
}

// ID identifies the handle, e.g. in URLs.
func (h *RowHandle) ID() uuid.UUID { return h.id }

// Valid reports whether the handle's record is still in the RowSet.
func (h *RowHandle) Valid() bool {
	if !h.removed {
		_, _, _ = h.g.resolve(h)
	}
	return !h.removed
}

// Index returns the record's current FilteredView index, or -1 when it is
// filtered out or gone.
func (h *RowHandle) Index() int {
	if h.removed {
		return -1
	}
	if _, vi, err := h.g.resolve(h); err == nil {
		return vi
	}
	return -1
}

// Record returns the live record, or nil after removal.
func (h *RowHandle) Record() Record {
	if !h.Valid() {
		return nil
	}
	return h.record
}

// Snapshot returns a detached copy of the record's fields.
func (h *RowHandle) Snapshot() Record {
	if !h.Valid() {
		return nil
	}
	return maps.Clone(h.record)
}

// Replace is Grid.Replace; a no-op on an invalid handle.
func (h *RowHandle) Replace(rec Record) error {
	return h.settled(h.g.Replace(h, rec))
}

// Update is Grid.Update; a no-op on an invalid handle.
func (h *RowHandle) Update(fields map[string]any) error {
	return h.settled(h.g.Update(h, fields))
}

// Remove is Grid.Remove; a no-op on an invalid handle.
func (h *RowHandle) Remove() error {
	return h.settled(h.g.Remove(h))
}

// Highlight is Grid.Highlight; a no-op on an invalid handle.
func (h *RowHandle) Highlight(class string) error {
	return h.settled(h.g.Highlight(h, class))
}

// settled drops the staleness error of an invalid handle.
func (h *RowHandle) settled(err error) error {
	if h.removed && errors.Is(err, ErrStaleHandle) {
		return nil
	}
	return err
}
