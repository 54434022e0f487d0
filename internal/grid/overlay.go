package grid

import "github.com/a-h/templ"

// CreateChildOverlay attaches content beneath the row at pos in the rendered
// page. Overlays are presentation state only: they are keyed by page position,
// never stored on the record, and dropped on the next re-render.
func (g *Grid) CreateChildOverlay(pos int, content templ.Component) error {
	if pos < 0 || pos >= len(g.rendered) {
		return &PositionError{Position: pos, Reason: "outside rendered page"}
	}
	if _, ok := g.overlays[pos]; ok {
		return &PositionError{Position: pos, Reason: "row already has a child overlay"}
	}
	if content == nil {
		g.logger.Warn("nil child overlay content", "position", pos)
		content = templ.NopComponent
	}
	g.overlays[pos] = content
	return nil
}

// RemoveChildOverlay detaches the overlay at pos.
func (g *Grid) RemoveChildOverlay(pos int) error {
	if _, ok := g.overlays[pos]; !ok {
		return &PositionError{Position: pos, Reason: "no child overlay"}
	}
	delete(g.overlays, pos)
	return nil
}

// ChildOverlay returns the overlay at pos, if any.
func (g *Grid) ChildOverlay(pos int) (templ.Component, bool) {
	c, ok := g.overlays[pos]
	return c, ok
}
