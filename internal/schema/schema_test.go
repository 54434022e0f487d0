package schema

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// fakeRows serves canned information_schema rows.
type fakeRows struct {
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos-1], nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *bool:
			*p = row[i].(bool)
		case *pgtype.Int4:
			if row[i] == nil {
				*p = pgtype.Int4{}
			} else {
				*p = pgtype.Int4{Int32: int32(row[i].(int)), Valid: true}
			}
		default:
			return fmt.Errorf("unexpected scan target %T", d)
		}
	}
	return nil
}

type fakeDB struct {
	rows    [][]any
	err     error
	queries int
	args    []any
}

func (db *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	db.queries++
	db.args = args
	if db.err != nil {
		return nil, db.err
	}
	return &fakeRows{data: db.rows}, nil
}

func TestPgProvider_Table(t *testing.T) {
	db := &fakeDB{rows: [][]any{
		{"id", "uuid", nil, false, true},
		{"account_name", "text", nil, false, false},
		{"state", "character varying", 2, true, false},
	}}
	p := NewPgProvider(db, "")

	got, err := p.Table(context.Background(), "customers")
	if err != nil {
		t.Fatalf("Table error = %v", err)
	}

	want := &Table{Name: "customers", Columns: []Column{
		{Name: "id", DataType: "uuid", HasDefault: true},
		{Name: "account_name", DataType: "text"},
		{Name: "state", DataType: "character varying", MaxLength: 2, Nullable: true},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Table mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"public", "customers"}, db.args); diff != "" {
		t.Errorf("query args mismatch (-want +got):\n%s", diff)
	}

	if c, _ := got.Column("ACCOUNT_NAME"); !c.Required() {
		t.Error("account_name should be required")
	}
	if c, _ := got.Column("id"); c.Required() {
		t.Error("id has a default and should not be required")
	}
}

func TestPgProvider_Errors(t *testing.T) {
	p := NewPgProvider(&fakeDB{}, "reporting")
	if _, err := p.Table(context.Background(), "missing"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("empty result error = %v, want ErrTableNotFound", err)
	}

	boom := errors.New("connection refused")
	p = NewPgProvider(&fakeDB{err: boom}, "")
	if _, err := p.Table(context.Background(), "t"); !errors.Is(err, boom) {
		t.Errorf("query failure error = %v, want %v", err, boom)
	}
}

type countingProvider struct {
	calls int
	fail  bool
}

func (p *countingProvider) Table(_ context.Context, name string) (*Table, error) {
	p.calls++
	if p.fail {
		return nil, ErrTableNotFound
	}
	return &Table{Name: name}, nil
}

func TestCached(t *testing.T) {
	next := &countingProvider{}
	c, err := NewCached(next, 2)
	if err != nil {
		t.Fatalf("NewCached error = %v", err)
	}
	ctx := context.Background()

	for range 3 {
		if _, err := c.Table(ctx, "a"); err != nil {
			t.Fatalf("Table error = %v", err)
		}
	}
	if next.calls != 1 {
		t.Errorf("provider calls = %d, want 1", next.calls)
	}

	_, _ = c.Table(ctx, "b")
	_, _ = c.Table(ctx, "c")
	_, _ = c.Table(ctx, "a")
	if next.calls != 4 {
		t.Errorf("provider calls after eviction = %d, want 4", next.calls)
	}

	next.fail = true
	c.Purge()
	_, _ = c.Table(ctx, "a")
	_, _ = c.Table(ctx, "a")
	if next.calls != 6 || c.Len() != 0 {
		t.Errorf("failures cached: calls = %d, len = %d", next.calls, c.Len())
	}

	if _, err := NewCached(next, 0); err == nil {
		t.Error("NewCached(size 0) should fail")
	}
}

func TestFetch(t *testing.T) {
	s := Static{"orders": {Name: "orders"}}

	tbl, err := Fetch(context.Background(), s, "orders").Wait(context.Background())
	if err != nil || tbl.Name != "orders" {
		t.Errorf("Fetch = %v, %v; want orders", tbl, err)
	}

	_, err = Fetch(context.Background(), s, "nope").Wait(context.Background())
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Fetch error = %v, want ErrTableNotFound", err)
	}

	if diff := cmp.Diff([]string{"orders"}, s.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}
