package grid

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"
)

// Link actions passed to Config.Link.
const (
	ActionSort   = "sort"
	ActionPage   = "page"
	ActionToggle = "toggle"
)

// Component returns the grid's current page as a templ component. The
// component reads grid state when rendered, not when created.
func (g *Grid) Component() templ.Component {
	return templ.ComponentFunc(g.Render)
}

// Render writes the rendered page as an HTML table followed by a pager.
// Column templates that are not registered fail the render with
// render.ErrTemplateNotFound.
func (g *Grid) Render(ctx context.Context, w io.Writer) error {
	hw := &htmlWriter{w: w}
	span := len(g.cols)
	if g.checkboxes {
		span++
	}

	hw.printf(`<div class="grid" id="grid-%s" data-version="%d">`, esc(g.name), g.version)
	hw.print(`<table class="grid-table"><thead><tr>`)
	if g.checkboxes {
		hw.print(`<th class="grid-check"></th>`)
	}
	for i, c := range g.cols {
		g.renderHeader(hw, i, c)
	}
	hw.print(`</tr></thead><tbody>`)

	if len(g.rendered) == 0 {
		hw.printf(`<tr class="grid-empty"><td colspan="%d">%s</td></tr>`, span, esc(g.emptyText))
	}

	offset := g.PageOffset()
	for pos, rec := range g.rendered {
		class := "grid-row"
		if h := g.HighlightOf(rec); h != "" {
			class += " " + h
		}
		hw.printf(`<tr class="%s" data-pos="%d" data-index="%d">`, esc(class), pos, offset+pos)
		if g.checkboxes {
			g.renderCheckbox(hw, pos, rec)
		}
		for _, c := range g.cols {
			hw.print(`<td`)
			if c.Class != "" {
				hw.printf(` class="%s"`, esc(c.Class))
			}
			hw.print(`>`)
			if hw.err == nil {
				if err := g.renderCell(ctx, hw, c, rec); err != nil {
					return fmt.Errorf("render column %q: %w", c.Title, err)
				}
			}
			hw.print(`</td>`)
		}
		hw.print(`</tr>`)

		if overlay, ok := g.overlays[pos]; ok {
			hw.printf(`<tr class="grid-child" data-pos="%d"><td colspan="%d">`, pos, span)
			if hw.err == nil {
				if err := overlay.Render(ctx, hw); err != nil {
					return fmt.Errorf("render child overlay %d: %w", pos, err)
				}
			}
			hw.print(`</td></tr>`)
		}
	}
	hw.print(`</tbody></table>`)

	g.renderPager(hw)
	hw.print(`</div>`)
	return hw.err
}

func (g *Grid) renderHeader(hw *htmlWriter, i int, c Column) {
	class := "grid-col"
	if c.Class != "" {
		class += " " + c.Class
	}
	if c.sortable() {
		class += " sortable"
		if g.sortCol == i {
			if g.sortAsc {
				class += " sort-asc"
			} else {
				class += " sort-desc"
			}
		}
	}
	hw.printf(`<th class="%s" data-col="%d"`, esc(class), i)
	if c.sortable() {
		g.renderLink(hw, ActionSort, i)
	}
	hw.printf(`>%s</th>`, esc(c.Title))
}

func (g *Grid) renderCheckbox(hw *htmlWriter, pos int, rec Record) {
	hw.printf(`<td class="grid-check"><input type="checkbox" data-pos="%d"`, pos)
	if g.IsChecked(rec) {
		hw.print(` checked`)
	}
	g.renderLink(hw, ActionToggle, pos)
	hw.print(`></td>`)
}

func (g *Grid) renderPager(hw *htmlWriter) {
	pc := g.PageCount()
	hw.printf(`<nav class="grid-pager" data-page="%d" data-pages="%d">`, g.page, pc)
	if pc > 1 {
		if g.page > 0 {
			hw.print(`<button class="grid-prev"`)
			g.renderLink(hw, ActionPage, g.page-1)
			hw.print(`>Previous</button>`)
		}
		hw.printf(`<span class="grid-page">Page %d of %d</span>`, g.page+1, pc)
		if g.page < pc-1 {
			hw.print(`<button class="grid-next"`)
			g.renderLink(hw, ActionPage, g.page+1)
			hw.print(`>Next</button>`)
		}
	}
	hw.print(`</nav>`)
}

// renderLink emits HTMX attributes when the grid has a link builder.
func (g *Grid) renderLink(hw *htmlWriter, action string, arg int) {
	if g.link == nil {
		return
	}
	hw.printf(` hx-post="%s" hx-target="#grid-%s" hx-swap="outerHTML"`, esc(g.link(action, arg)), esc(g.name))
}

// renderCell applies the column's single rendering strategy.
func (g *Grid) renderCell(ctx context.Context, w io.Writer, c Column, rec Record) error {
	var value any
	if c.Property != "" {
		value = rec[c.Property]
	}

	switch {
	case c.Render != nil:
		comp := c.Render(value, rec)
		if comp == nil {
			return nil
		}
		return comp.Render(ctx, w)

	case c.Template != "":
		tmpl, err := g.templates.Lookup(c.Template)
		if err != nil {
			return err
		}
		comp := tmpl(CellContext{Value: value, Record: rec, Column: c})
		if comp == nil {
			return nil
		}
		return comp.Render(ctx, w)

	case c.Format != nil:
		return writeCell(w, c.Type, c.Format(value, rec))
	}
	return writeCell(w, c.Type, FormatValue(value))
}

func writeCell(w io.Writer, typ, s string) error {
	if typ != TypeHTML {
		s = templ.EscapeString(s)
	}
	_, err := io.WriteString(w, s)
	return err
}

// FormatValue is the default text form of a cell value. NULL database values
// render as the empty string, dates as YYYY-MM-DD, booleans as Yes/No, and
// fractional numbers with two decimals.
func FormatValue(v any) string {
	v = normalize(v)
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02")
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case float32:
		return formatFloat(float64(val))
	case float64:
		return formatFloat(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func esc(s string) string { return templ.EscapeString(s) }

// htmlWriter remembers the first write error so markup can be written
// without checking every call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) Write(p []byte) (int, error) {
	if hw.err != nil {
		return 0, hw.err
	}
	n, err := hw.w.Write(p)
	hw.err = err
	return n, err
}

func (hw *htmlWriter) print(s string) {
	_, _ = io.WriteString(hw, s)
}

func (hw *htmlWriter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(hw, format, args...)
}
