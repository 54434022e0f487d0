package grid

import (
	"errors"
	"testing"

	"github.com/JonMunkholm/viewkit/internal/render"
	"github.com/google/go-cmp/cmp"
)

func TestChildOverlay(t *testing.T) {
	g := newTestGrid(t, Config{Data: people(5), PageSize: 2})

	if err := g.CreateChildOverlay(1, render.Text("details")); err != nil {
		t.Fatalf("CreateChildOverlay error = %v", err)
	}
	if _, ok := g.ChildOverlay(1); !ok {
		t.Fatal("ChildOverlay(1) missing")
	}

	if err := g.CreateChildOverlay(1, render.Text("again")); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("duplicate overlay error = %v, want ErrInvalidPosition", err)
	}
	if err := g.CreateChildOverlay(2, render.Text("x")); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("overlay past page end error = %v, want ErrInvalidPosition", err)
	}
	if err := g.CreateChildOverlay(-1, render.Text("x")); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("negative overlay position error = %v, want ErrInvalidPosition", err)
	}

	if err := g.RemoveChildOverlay(1); err != nil {
		t.Errorf("RemoveChildOverlay error = %v", err)
	}
	if err := g.RemoveChildOverlay(1); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("second RemoveChildOverlay error = %v, want ErrInvalidPosition", err)
	}
}

func TestChildOverlay_DroppedOnRerender(t *testing.T) {
	rerenders := map[string]func(g *Grid){
		"page":   func(g *Grid) { _ = g.GoToPage(1) },
		"sort":   func(g *Grid) { _ = g.SortByColumn(0) },
		"filter": func(g *Grid) { g.SetFilter(nil) },
		"rows":   func(g *Grid) { g.SetRows(people(4)) },
		"remove": func(g *Grid) { h, _ := g.Handle(3); _ = h.Remove() },
	}

	for name, rerender := range rerenders {
		t.Run(name, func(t *testing.T) {
			g := newTestGrid(t, Config{Data: people(4), PageSize: 2})
			if err := g.CreateChildOverlay(0, render.Text("x")); err != nil {
				t.Fatalf("CreateChildOverlay error = %v", err)
			}

			rerender(g)

			if _, ok := g.ChildOverlay(0); ok {
				t.Error("overlay survived re-render")
			}
		})
	}
}

func TestCheckboxes_Disabled(t *testing.T) {
	g := newTestGrid(t, Config{Data: people(3)})

	if _, err := g.CheckedRecords(); !errors.Is(err, ErrCheckboxesNotEnabled) {
		t.Errorf("CheckedRecords error = %v, want ErrCheckboxesNotEnabled", err)
	}
	if _, err := g.ToggleCheckedAt(0); !errors.Is(err, ErrCheckboxesNotEnabled) {
		t.Errorf("ToggleCheckedAt error = %v, want ErrCheckboxesNotEnabled", err)
	}
	if err := g.SetAllChecked(true); !errors.Is(err, ErrCheckboxesNotEnabled) {
		t.Errorf("SetAllChecked error = %v, want ErrCheckboxesNotEnabled", err)
	}
}

func TestCheckboxes_StateFollowsRecord(t *testing.T) {
	g := newTestGrid(t, Config{Data: people(5), PageSize: 2, Checkboxes: true})

	on, err := g.ToggleCheckedAt(1)
	if err != nil || !on {
		t.Fatalf("ToggleCheckedAt(1) = %v, %v; want true, nil", on, err)
	}
	if err := g.SetChecked(mustLookup(t, g, 5), true); err != nil {
		t.Fatalf("SetChecked error = %v", err)
	}

	_ = g.SortByColumn(0)
	_ = g.SortByColumn(0)
	g.SetFilter(func(r Record) bool { return r["id"] != 5 })

	got, err := g.CheckedRecords()
	if err != nil {
		t.Fatalf("CheckedRecords error = %v", err)
	}
	if diff := cmp.Diff([]int{2, 5}, ids(got)); diff != "" {
		t.Errorf("CheckedRecords mismatch (-want +got):\n%s", diff)
	}
	if got[0][DefaultCheckboxField] != true {
		t.Errorf("checkbox field = %v, want true", got[0][DefaultCheckboxField])
	}

	if on, _ := g.ToggleCheckedAt(g.PageOffset() + 3); on {
		t.Error("ToggleCheckedAt past page end should fail")
	}
}

func TestCheckboxes_CustomFieldAndSetAll(t *testing.T) {
	g := newTestGrid(t, Config{
		Data:          people(4),
		CheckboxField: "selected",
		Filter:        func(r Record) bool { return r["name"] != "b" },
	})

	g.SetCheckboxMode(true)
	if err := g.SetAllChecked(true); err != nil {
		t.Fatalf("SetAllChecked error = %v", err)
	}

	got, _ := g.CheckedRecords()
	if diff := cmp.Diff([]int{1, 3, 4}, ids(got)); diff != "" {
		t.Errorf("CheckedRecords mismatch (-want +got):\n%s", diff)
	}
	if _, ok := got[0][DefaultCheckboxField]; ok {
		t.Error("default checkbox field written despite custom field")
	}

	g.SetCheckboxMode(false)
	g.SetCheckboxMode(true)
	got, _ = g.CheckedRecords()
	if len(got) != 3 {
		t.Errorf("CheckedRecords after mode toggle = %d, want 3", len(got))
	}
}
