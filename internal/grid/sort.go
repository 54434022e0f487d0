package grid

import (
	"fmt"
	"slices"
	"sort"
)

// SortByColumn sorts the FilteredView by column col and returns to page 0.
//
// Columns without a comparator are left alone. Sorting the active column
// again reverses the view in place and flips the direction instead of
// sorting a second time, so tied rows come back in exactly the opposite
// order.
func (g *Grid) SortByColumn(col int) error {
	if col < 0 || col >= len(g.cols) {
		return fmt.Errorf("%w: %d", ErrInvalidColumn, col)
	}
	if !g.cols[col].sortable() {
		return nil
	}

	if g.sortCol == col {
		slices.Reverse(g.view)
		g.sortAsc = !g.sortAsc
	} else {
		g.sortView(col)
		g.sortCol = col
		g.sortAsc = true
	}

	g.page = 0
	g.refresh()
	return nil
}

// ClearSort drops the active sort and restores RowSet order.
func (g *Grid) ClearSort() {
	if g.sortCol < 0 {
		return
	}
	g.sortCol = -1
	g.sortAsc = false
	g.page = 0
	g.rebuild()
	g.refresh()
}

func (c Column) sortable() bool {
	return c.Compare != nil || c.Sortable
}

// recordComparator returns the ascending order for column col.
func (g *Grid) recordComparator(col int) func(a, b Record) int {
	c := g.cols[col]
	if c.Compare != nil {
		return c.Compare
	}
	prop := c.Property
	return func(a, b Record) int {
		return g.comparer.Compare(a[prop], b[prop])
	}
}

// sortView stably sorts the FilteredView ascending by column col.
func (g *Grid) sortView(col int) {
	g.comparer.Incomparable() // count only this sort's pairs
	slices.SortStableFunc(g.view, g.recordComparator(col))

	if n := g.comparer.Incomparable(); n > 0 {
		g.logger.Warn("incomparable sort values treated as equal",
			"column", g.cols[col].Title,
			"pairs", n,
		)
	}
}

// insertPosition finds where r belongs in the sorted FilteredView, at the
// place a fresh rebuild would put it: after its ties when ascending, before
// them when descending (a descending view is the reversed ascending one).
func (g *Grid) insertPosition(r Record) int {
	order := g.recordComparator(g.sortCol)
	if g.sortAsc {
		return sort.Search(len(g.view), func(i int) bool {
			return order(g.view[i], r) > 0
		})
	}
	return sort.Search(len(g.view), func(i int) bool {
		return order(g.view[i], r) <= 0
	})
}
