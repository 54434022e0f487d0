package grid

import "slices"

// PageCount returns ceil(len(FilteredView) / pageSize), 0 for an empty view
// and 1 for a non-empty view without a page size.
func (g *Grid) PageCount() int {
	n := len(g.view)
	if n == 0 {
		return 0
	}
	if g.pageSize <= 0 {
		return 1
	}
	return (n + g.pageSize - 1) / g.pageSize
}

// Page returns the current zero-based page.
func (g *Grid) Page() int { return g.page }

// PageSize returns the configured page size; zero means unlimited.
func (g *Grid) PageSize() int { return g.pageSize }

// GoToPage moves to page n and re-renders.
func (g *Grid) GoToPage(n int) error {
	if pc := g.PageCount(); n < 0 || n >= pc {
		return &OutOfRangeError{Page: n, PageCount: pc}
	}
	g.page = n
	g.refresh()
	return nil
}

// PageRows returns the records of the last rendered page.
func (g *Grid) PageRows() []Record {
	return slices.Clone(g.rendered)
}

// PageOffset returns the FilteredView index of the first rendered row.
func (g *Grid) PageOffset() int {
	start, _ := g.window()
	return start
}

// clampPage keeps the page window inside the FilteredView. After removing
// the only record of the last page this moves back exactly one page.
func (g *Grid) clampPage() {
	pc := g.PageCount()
	switch {
	case pc == 0:
		g.page = 0
	case g.page >= pc:
		g.page = pc - 1
	case g.page < 0:
		g.page = 0
	}
}

// window returns the [start, end) FilteredView range of the current page.
func (g *Grid) window() (int, int) {
	n := len(g.view)
	if n == 0 {
		return 0, 0
	}
	if g.pageSize <= 0 {
		return 0, n
	}
	start := g.page * g.pageSize
	end := min(start+g.pageSize, n)
	return start, end
}
