package grid

import (
	"bytes"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/viewkit/internal/bus"
	"github.com/google/go-cmp/cmp"
)

var testColumns = []Column{
	{Title: "ID", Property: "id", Type: TypeNumber, Sortable: true},
	{Title: "Name", Property: "name", Sortable: true},
}

// people returns records with ids 1..n and names cycling through a, b, c.
func people(n int) []Record {
	names := []string{"a", "b", "c"}
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{"id": i + 1, "name": names[i%len(names)]}
	}
	return out
}

func ids(recs []Record) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = r["id"].(int)
	}
	return out
}

func byID(id int) Filter {
	return func(r Record) bool { return r["id"] == id }
}

func newTestGrid(t *testing.T, cfg Config) *Grid {
	t.Helper()
	if cfg.Columns == nil {
		cfg.Columns = testColumns
	}
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	return g
}

// ============================================================================
// Setup
// ============================================================================

func TestNew_ColumnSetupErrors(t *testing.T) {
	format := func(any, Record) string { return "" }

	tests := []struct {
		name    string
		col     Column
		wantErr bool
	}{
		{"property only", Column{Title: "A", Property: "a"}, false},
		{"format with property", Column{Title: "A", Property: "a", Format: format}, false},
		{"template", Column{Title: "A", Template: "cell"}, false},
		{"comparator without property", Column{Title: "A", Template: "cell", Compare: func(a, b Record) int { return 0 }}, false},
		{"no strategy", Column{Title: "A"}, true},
		{"format without property", Column{Title: "A", Format: format}, true},
		{"two strategies", Column{Title: "A", Property: "a", Template: "cell", Format: format}, true},
		{"unknown type", Column{Title: "A", Property: "a", Type: "money"}, true},
		{"sortable without property", Column{Title: "A", Template: "cell", Sortable: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{Columns: []Column{tt.col}})
			if tt.wantErr {
				if !errors.Is(err, ErrSetup) {
					t.Errorf("New error = %v, want ErrSetup", err)
				}
				var se *SetupError
				if errors.As(err, &se) && se.Column != 0 {
					t.Errorf("SetupError.Column = %d, want 0", se.Column)
				}
				return
			}
			if err != nil {
				t.Errorf("New error = %v, want nil", err)
			}
		})
	}
}

func TestNew_DropsNilRecords(t *testing.T) {
	g := newTestGrid(t, Config{Data: []Record{{"id": 1}, nil, {"id": 2}}})

	if diff := cmp.Diff([]int{1, 2}, ids(g.Rows())); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
}

// ============================================================================
// Paging
// ============================================================================

func TestPageCount(t *testing.T) {
	tests := []struct {
		n, size, want int
	}{
		{0, 10, 0},
		{0, 0, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{5, 2, 3},
		{5, 0, 1},
		{5, -1, 1},
	}

	for _, tt := range tests {
		g := newTestGrid(t, Config{Data: people(tt.n), PageSize: tt.size})
		if got := g.PageCount(); got != tt.want {
			t.Errorf("PageCount(n=%d, size=%d) = %d, want %d", tt.n, tt.size, got, tt.want)
		}
	}
}

func TestGoToPage_Boundaries(t *testing.T) {
	g := newTestGrid(t, Config{Data: people(5), PageSize: 2})

	if err := g.GoToPage(2); err != nil {
		t.Fatalf("GoToPage(2) error = %v", err)
	}
	if diff := cmp.Diff([]int{5}, ids(g.PageRows())); diff != "" {
		t.Errorf("PageRows mismatch (-want +got):\n%s", diff)
	}

	err := g.GoToPage(3)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("GoToPage(3) error = %v, want ErrOutOfRange", err)
	}
	var oor *OutOfRangeError
	if !errors.As(err, &oor) || oor.Page != 3 || oor.PageCount != 3 {
		t.Errorf("GoToPage(3) error = %#v, want page 3 of 3", err)
	}
	if g.Page() != 2 {
		t.Errorf("Page after failed GoToPage = %d, want 2", g.Page())
	}

	if err := g.GoToPage(-1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("GoToPage(-1) error = %v, want ErrOutOfRange", err)
	}
}

func TestGoToPage_EmptyView(t *testing.T) {
	g := newTestGrid(t, Config{PageSize: 10})

	if err := g.GoToPage(0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("GoToPage(0) on empty grid error = %v, want ErrOutOfRange", err)
	}
	if len(g.PageRows()) != 0 {
		t.Errorf("PageRows = %v, want none", g.PageRows())
	}
}

func TestRemove_LastRecordOnLastPage(t *testing.T) {
	g := newTestGrid(t, Config{Data: people(5), PageSize: 2})
	if err := g.GoToPage(2); err != nil {
		t.Fatalf("GoToPage(2) error = %v", err)
	}

	h, err := g.HandleAt(0)
	if err != nil {
		t.Fatalf("HandleAt(0) error = %v", err)
	}
	if err := h.Remove(); err != nil {
		t.Fatalf("Remove error = %v", err)
	}

	if g.Page() != 1 {
		t.Errorf("Page = %d, want 1", g.Page())
	}
	if diff := cmp.Diff([]int{3, 4}, ids(g.PageRows())); diff != "" {
		t.Errorf("PageRows mismatch (-want +got):\n%s", diff)
	}
}

// ============================================================================
// Filtering and sorting
// ============================================================================

func TestSetFilter_ResetsPage(t *testing.T) {
	g := newTestGrid(t, Config{Data: people(9), PageSize: 2})
	_ = g.GoToPage(3)

	g.SetFilter(func(r Record) bool { return r["name"] == "a" })

	if g.Page() != 0 {
		t.Errorf("Page = %d, want 0", g.Page())
	}
	if diff := cmp.Diff([]int{1, 4, 7}, ids(g.Filtered())); diff != "" {
		t.Errorf("Filtered mismatch (-want +got):\n%s", diff)
	}

	g.SetFilter(nil)
	if g.Len() != 9 {
		t.Errorf("Len after clearing filter = %d, want 9", g.Len())
	}
}

func TestSortByColumn_ReversesOnSecondCall(t *testing.T) {
	g := newTestGrid(t, Config{
		Data:     []Record{{"id": 1, "name": "b"}, {"id": 2, "name": "a"}},
		PageSize: 10,
	})

	if err := g.SortByColumn(1); err != nil {
		t.Fatalf("SortByColumn error = %v", err)
	}
	if diff := cmp.Diff([]int{2, 1}, ids(g.Filtered())); diff != "" {
		t.Errorf("first sort mismatch (-want +got):\n%s", diff)
	}

	if err := g.SortByColumn(1); err != nil {
		t.Fatalf("SortByColumn error = %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, ids(g.Filtered())); diff != "" {
		t.Errorf("second sort mismatch (-want +got):\n%s", diff)
	}

	col, asc, ok := g.SortState()
	if !ok || col != 1 || asc {
		t.Errorf("SortState = (%d, %v, %v), want (1, false, true)", col, asc, ok)
	}
}

func TestSortByColumn_TiesReverseExactly(t *testing.T) {
	g := newTestGrid(t, Config{Data: people(7)})

	_ = g.SortByColumn(1)
	first := ids(g.Filtered())
	if diff := cmp.Diff([]int{1, 4, 7, 2, 5, 3, 6}, first); diff != "" {
		t.Fatalf("stable sort mismatch (-want +got):\n%s", diff)
	}

	_ = g.SortByColumn(1)
	second := ids(g.Filtered())
	for i := range first {
		if first[i] != second[len(second)-1-i] {
			t.Fatalf("second sort %v is not the reverse of %v", second, first)
		}
	}
}

func TestSortByColumn_ResetsPage(t *testing.T) {
	g := newTestGrid(t, Config{Data: people(6), PageSize: 2})
	_ = g.GoToPage(2)

	_ = g.SortByColumn(0)

	if g.Page() != 0 {
		t.Errorf("Page = %d, want 0", g.Page())
	}
}

func TestSortByColumn_NoComparator(t *testing.T) {
	cols := []Column{{Title: "ID", Property: "id"}}
	g := newTestGrid(t, Config{Columns: cols, Data: people(3)})

	if err := g.SortByColumn(0); err != nil {
		t.Errorf("SortByColumn error = %v, want nil", err)
	}
	if _, _, ok := g.SortState(); ok {
		t.Error("SortState ok = true for a column without comparator")
	}
	if err := g.SortByColumn(5); !errors.Is(err, ErrInvalidColumn) {
		t.Errorf("SortByColumn(5) error = %v, want ErrInvalidColumn", err)
	}
}

func TestSortByColumn_CustomComparator(t *testing.T) {
	cols := []Column{{
		Title:    "Name length",
		Property: "name",
		Compare: func(a, b Record) int {
			return len(a["name"].(string)) - len(b["name"].(string))
		},
	}}
	data := []Record{{"id": 1, "name": "ccc"}, {"id": 2, "name": "a"}, {"id": 3, "name": "bb"}}
	g := newTestGrid(t, Config{Columns: cols, Data: data})

	_ = g.SortByColumn(0)

	if diff := cmp.Diff([]int{2, 3, 1}, ids(g.Filtered())); diff != "" {
		t.Errorf("Filtered mismatch (-want +got):\n%s", diff)
	}
}

func TestSortByColumn_IncomparableKeepsOrder(t *testing.T) {
	type opaque struct{ n int }
	data := []Record{
		{"id": 1, "v": opaque{3}},
		{"id": 2, "v": opaque{1}},
		{"id": 3, "v": opaque{2}},
	}
	cols := []Column{{Title: "V", Property: "v", Sortable: true}}
	g := newTestGrid(t, Config{Columns: cols, Data: data})

	_ = g.SortByColumn(0)

	if diff := cmp.Diff([]int{1, 2, 3}, ids(g.Filtered())); diff != "" {
		t.Errorf("Filtered mismatch (-want +got):\n%s", diff)
	}
}

func TestSortByColumn_IncomparableCountIsPerSort(t *testing.T) {
	type opaque struct{ n int }
	var buf bytes.Buffer
	cols := []Column{
		{Title: "V", Property: "v", Sortable: true},
		{Title: "Name", Property: "name", Sortable: true},
	}
	g := newTestGrid(t, Config{
		Columns: cols,
		Data: []Record{
			{"id": 1, "v": opaque{1}, "name": "a"},
			{"id": 2, "v": opaque{2}, "name": "b"},
		},
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	})

	_ = g.SortByColumn(0)
	g.Append(Record{"id": 3, "v": opaque{3}, "name": "c"})
	buf.Reset()

	_ = g.SortByColumn(1)
	if strings.Contains(buf.String(), "incomparable") {
		t.Errorf("sorting comparable names logged incomparable pairs: %s", buf.String())
	}
}

func TestSetRows_KeepsActiveSort(t *testing.T) {
	g := newTestGrid(t, Config{Data: people(3)})
	_ = g.SortByColumn(0)
	_ = g.SortByColumn(0)

	g.SetRows(people(4))

	if diff := cmp.Diff([]int{4, 3, 2, 1}, ids(g.Filtered())); diff != "" {
		t.Errorf("Filtered mismatch (-want +got):\n%s", diff)
	}
}

func TestClearSort(t *testing.T) {
	g := newTestGrid(t, Config{Data: people(4)})
	_ = g.SortByColumn(1)

	g.ClearSort()

	if diff := cmp.Diff([]int{1, 2, 3, 4}, ids(g.Filtered())); diff != "" {
		t.Errorf("Filtered mismatch (-want +got):\n%s", diff)
	}
}

// TestFilteredView_Invariant drives random structural operations and checks
// that the FilteredView always holds exactly the matching RowSet records.
func TestFilteredView_Invariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	filters := []Filter{
		nil,
		func(r Record) bool { return r["id"].(int)%2 == 0 },
		func(r Record) bool { return r["name"] != "b" },
		func(Record) bool { return false },
	}

	g := newTestGrid(t, Config{Data: people(10), PageSize: 3})
	var current Filter

	for step := 0; step < 200; step++ {
		switch rng.IntN(4) {
		case 0:
			g.SetRows(people(rng.IntN(15)))
		case 1:
			current = filters[rng.IntN(len(filters))]
			g.SetFilter(current)
		case 2:
			_ = g.SortByColumn(rng.IntN(2))
		case 3:
			g.Append(Record{"id": 100 + step, "name": "b"})
		}

		rows := g.Rows()
		seen := make(map[int]bool)
		for _, r := range g.Filtered() {
			if current != nil && !current(r) {
				t.Fatalf("step %d: record %v fails the filter", step, r)
			}
			if indexOf(rows, r) < 0 {
				t.Fatalf("step %d: record %v not in RowSet", step, r)
			}
			if seen[r["id"].(int)] {
				t.Fatalf("step %d: record %v appears twice", step, r)
			}
			seen[r["id"].(int)] = true
		}

		want := 0
		for _, r := range rows {
			if current == nil || current(r) {
				want++
			}
		}
		if g.Len() != want {
			t.Fatalf("step %d: Len = %d, want %d", step, g.Len(), want)
		}
	}
}

func TestFilteredView_UnsortedKeepsRowOrder(t *testing.T) {
	g := newTestGrid(t, Config{
		Data:   people(6),
		Filter: func(r Record) bool { return r["id"].(int) > 2 },
	})

	if diff := cmp.Diff([]int{3, 4, 5, 6}, ids(g.Filtered())); diff != "" {
		t.Errorf("Filtered mismatch (-want +got):\n%s", diff)
	}
}

// ============================================================================
// Append
// ============================================================================

func TestAppend(t *testing.T) {
	t.Run("unsorted", func(t *testing.T) {
		g := newTestGrid(t, Config{Data: people(2)})
		g.Append(Record{"id": 3, "name": "z"})

		if diff := cmp.Diff([]int{1, 2, 3}, ids(g.Filtered())); diff != "" {
			t.Errorf("Filtered mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("sorted ascending after ties", func(t *testing.T) {
		g := newTestGrid(t, Config{Data: people(3)})
		_ = g.SortByColumn(1)
		g.Append(Record{"id": 9, "name": "a"})

		if diff := cmp.Diff([]int{1, 9, 2, 3}, ids(g.Filtered())); diff != "" {
			t.Errorf("Filtered mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("sorted descending", func(t *testing.T) {
		g := newTestGrid(t, Config{Data: people(3)})
		_ = g.SortByColumn(1)
		_ = g.SortByColumn(1)
		g.Append(Record{"id": 9, "name": "b"})

		if diff := cmp.Diff([]int{3, 9, 2, 1}, ids(g.Filtered())); diff != "" {
			t.Errorf("Filtered mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("same order as a rebuild", func(t *testing.T) {
		for _, descending := range []bool{false, true} {
			g := newTestGrid(t, Config{Data: []Record{{"id": 1, "name": "b"}, {"id": 3, "name": "a"}}})
			_ = g.SortByColumn(1)
			if descending {
				_ = g.SortByColumn(1)
			}
			g.Append(Record{"id": 2, "name": "b"})
			appended := ids(g.Filtered())

			g.SetFilter(nil)
			if diff := cmp.Diff(ids(g.Filtered()), appended); diff != "" {
				t.Errorf("descending=%v: append order differs from rebuild (-rebuild +append):\n%s", descending, diff)
			}
		}
	})

	t.Run("filtered out", func(t *testing.T) {
		g := newTestGrid(t, Config{
			Data:   people(2),
			Filter: func(r Record) bool { return r["name"] != "z" },
		})
		g.Append(Record{"id": 3, "name": "z"})

		if g.Len() != 2 || len(g.Rows()) != 3 {
			t.Errorf("Len = %d, Rows = %d, want 2 and 3", g.Len(), len(g.Rows()))
		}
	})
}

// ============================================================================
// Events
// ============================================================================

func TestRefresh_PublishesRendered(t *testing.T) {
	b := bus.New()
	defer b.Close()
	events, cancel := b.Subscribe(TopicRendered, 8)
	defer cancel()

	g := newTestGrid(t, Config{Name: "people", Data: people(5), PageSize: 2, Bus: b})
	_ = g.GoToPage(1)

	var got []RenderedEvent
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev.Payload.(RenderedEvent))
		case <-timeout:
			t.Fatalf("received %d events, want 2", len(got))
		}
	}

	want := []RenderedEvent{
		{Grid: "people", Version: 1, Page: 0, PageCount: 3, Rows: 5},
		{Grid: "people", Version: 2, Page: 1, PageCount: 3, Rows: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if g.Version() != 2 {
		t.Errorf("Version = %d, want 2", g.Version())
	}
}
