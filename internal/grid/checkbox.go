package grid

// Checkbox state lives in a side-channel field of each record (CheckboxField)
// so it follows the record through sorting, filtering and paging.

// SetCheckboxMode turns the checkbox column on or off and re-renders.
// Existing flags are kept while the mode is off.
func (g *Grid) SetCheckboxMode(on bool) {
	if g.checkboxes == on {
		return
	}
	g.checkboxes = on
	g.refresh()
}

// CheckboxMode reports whether the checkbox column is shown.
func (g *Grid) CheckboxMode() bool { return g.checkboxes }

// CheckboxField returns the record field used for checkbox state.
func (g *Grid) CheckboxField() string { return g.checkField }

// IsChecked reports the checkbox flag of rec.
func (g *Grid) IsChecked(rec Record) bool {
	v, _ := rec[g.checkField].(bool)
	return v
}

// SetChecked sets the checkbox flag of h's record.
func (g *Grid) SetChecked(h *RowHandle, on bool) error {
	if !g.checkboxes {
		return ErrCheckboxesNotEnabled
	}
	ri, _, err := g.resolve(h)
	if err != nil {
		return err
	}
	g.rows[ri][g.checkField] = on
	return nil
}

// ToggleCheckedAt flips the checkbox of the row at pos in the rendered page
// and returns the new state.
func (g *Grid) ToggleCheckedAt(pos int) (bool, error) {
	if !g.checkboxes {
		return false, ErrCheckboxesNotEnabled
	}
	if pos < 0 || pos >= len(g.rendered) {
		return false, &PositionError{Position: pos, Reason: "outside rendered page"}
	}
	rec := g.rendered[pos]
	on := !g.IsChecked(rec)
	rec[g.checkField] = on
	return on, nil
}

// SetAllChecked sets the checkbox flag of every record in the FilteredView.
func (g *Grid) SetAllChecked(on bool) error {
	if !g.checkboxes {
		return ErrCheckboxesNotEnabled
	}
	for _, r := range g.view {
		r[g.checkField] = on
	}
	return nil
}

// CheckedRecords returns the checked records of the RowSet in RowSet order,
// including records currently filtered out.
func (g *Grid) CheckedRecords() ([]Record, error) {
	if !g.checkboxes {
		return nil, ErrCheckboxesNotEnabled
	}
	var out []Record
	for _, r := range g.rows {
		if g.IsChecked(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
