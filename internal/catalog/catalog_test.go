package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/viewkit/internal/grid"
	"github.com/JonMunkholm/viewkit/internal/store"
	"github.com/JonMunkholm/viewkit/internal/validate"
	"github.com/google/go-cmp/cmp"
)

func keys(defs []Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Key
	}
	return out
}

func TestCatalog_Ordering(t *testing.T) {
	c := New()
	c.Register(Definition{Key: "sfdc_price_book", Group: "SFDC"})
	c.Register(Definition{Key: "anrok_transactions", Group: "Anrok"})
	c.Register(Definition{Key: "sfdc_customers", Group: "SFDC"})

	if diff := cmp.Diff([]string{"anrok_transactions", "sfdc_customers", "sfdc_price_book"}, keys(c.All())); diff != "" {
		t.Errorf("All mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"sfdc_customers", "sfdc_price_book"}, keys(c.ByGroup("SFDC"))); diff != "" {
		t.Errorf("ByGroup mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Anrok", "SFDC"}, c.Groups()); diff != "" {
		t.Errorf("Groups mismatch (-want +got):\n%s", diff)
	}
	if c.Count() != 3 {
		t.Errorf("Count = %d, want 3", c.Count())
	}

	if _, ok := c.Get("sfdc_customers"); !ok {
		t.Error("Get(sfdc_customers) not found")
	}
	c.Clear()
	if _, ok := c.Get("sfdc_customers"); ok || c.Count() != 0 {
		t.Error("Clear left definitions behind")
	}
}

func TestCatalog_RegisterDuplicatePanics(t *testing.T) {
	c := New()
	c.Register(Definition{Key: "a"})

	defer func() {
		if recover() == nil {
			t.Error("Register duplicate should panic")
		}
	}()
	c.Register(Definition{Key: "a"})
}

func TestDefinition_Equal(t *testing.T) {
	if (Definition{}).Equal() != nil {
		t.Error("Equal without UniqueKey should be nil")
	}

	eq := Definition{UniqueKey: []string{"id", "region"}}.Equal()
	a := grid.Record{"id": 1, "region": "us", "name": "old"}
	b := grid.Record{"id": 1, "region": "us", "name": "new"}
	c := grid.Record{"id": 1, "region": "eu", "name": "old"}
	if !eq(a, b) {
		t.Error("records with equal keys should match")
	}
	if eq(a, c) {
		t.Error("records with different keys should not match")
	}
}

func TestDefinition_NewGrid(t *testing.T) {
	def := Definition{
		Key:       "people",
		Columns:   []grid.Column{{Title: "Name", Property: "name", Sortable: true}},
		PageSize:  2,
		Checkbox:  true,
		UniqueKey: []string{"id"},
		Source: store.NewMemory([]grid.Record{
			{"id": 1, "name": "b"},
			{"id": 2, "name": "a"},
			{"id": 3, "name": "c"},
		}),
	}

	g, err := def.NewGrid(context.Background(), grid.Config{PageSize: 50})
	if err != nil {
		t.Fatalf("NewGrid error = %v", err)
	}
	if g.Name() != "people" || g.PageSize() != 2 || g.PageCount() != 2 || !g.CheckboxMode() {
		t.Errorf("grid = name %q size %d pages %d checkboxes %v", g.Name(), g.PageSize(), g.PageCount(), g.CheckboxMode())
	}

	// Reloaded records are found again through the unique key even when
	// other fields changed.
	h, err := g.Handle(0)
	if err != nil {
		t.Fatalf("Handle error = %v", err)
	}
	rows, _ := def.Load(context.Background())
	rows[0]["name"] = "renamed"
	g.SetRows(rows)
	if got := h.Index(); got != 0 {
		t.Fatalf("Index after reload = %d, want 0", got)
	}
	if h.Record()["name"] != "renamed" {
		t.Errorf("handle record = %v, want the reloaded record", h.Record())
	}
}

type failingSource struct{ err error }

func (s failingSource) Rows(context.Context) ([]grid.Record, error) { return nil, s.err }

func TestDefinition_LoadErrors(t *testing.T) {
	rows, err := Definition{Key: "none"}.Load(context.Background())
	if err != nil || rows != nil {
		t.Errorf("Load without source = %v, %v; want nil, nil", rows, err)
	}

	boom := errors.New("boom")
	if _, err := (Definition{Key: "x", Source: failingSource{boom}}).NewGrid(context.Background(), grid.Config{}); !errors.Is(err, boom) {
		t.Errorf("NewGrid error = %v, want boom", err)
	}
}

func TestDefinition_Compile(t *testing.T) {
	def := Definition{
		Key:         "customers",
		Rules:       validate.Spec{{Key: "name{account}", Rule: "required"}},
		RuleColumns: map[string]string{"name": "account_name"},
	}
	if !def.HasForm() || (Definition{}).HasForm() {
		t.Error("HasForm wrong")
	}

	e, err := def.Compile(validate.Options{})
	if err != nil {
		t.Fatalf("Compile error = %v", err)
	}
	if e.Name() != "customers" || e.GroupOf("name") != "account" {
		t.Errorf("engine = %q group %q", e.Name(), e.GroupOf("name"))
	}
}
