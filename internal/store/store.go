// Package store loads the records behind table views.
package store

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/JonMunkholm/viewkit/internal/grid"
	"github.com/jackc/pgx/v5"
)

// Source produces a fresh set of records on every call. Callers own the
// returned records.
type Source interface {
	Rows(ctx context.Context) ([]grid.Record, error)
}

// DBTX is the query surface PgStore needs.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

// PgStore loads every row of one table, ordered by its first column.
type PgStore struct {
	db      DBTX
	table   string
	columns []string
}

// NewPgStore creates a store reading columns from table. Values keep their
// pgx types (pgtype.Text, pgtype.Numeric, ...); the grid formats and
// compares them natively.
func NewPgStore(db DBTX, table string, columns []string) *PgStore {
	return &PgStore{db: db, table: table, columns: columns}
}

// Rows implements Source.
func (s *PgStore) Rows(ctx context.Context) ([]grid.Record, error) {
	if len(s.columns) == 0 {
		return nil, fmt.Errorf("store %s: no columns", s.table)
	}

	quoted := make([]string, len(s.columns))
	for i, c := range s.columns {
		quoted[i] = quoteIdentifier(c)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s ASC",
		strings.Join(quoted, ", "),
		quoteIdentifier(s.table),
		quoted[0],
	)

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []grid.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}

		rec := make(grid.Record, len(s.columns))
		for i, col := range s.columns {
			rec[col] = values[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// quoteIdentifier quotes a PostgreSQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Memory is an in-memory Source. Every call returns copies, so grids
// built from it never share records.
type Memory struct {
	mu   sync.RWMutex
	rows []grid.Record
}

// NewMemory creates a source serving copies of rows.
func NewMemory(rows []grid.Record) *Memory {
	m := &Memory{}
	m.Add(rows...)
	return m
}

// Add appends copies of recs.
func (m *Memory) Add(recs ...grid.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		m.rows = append(m.rows, maps.Clone(r))
	}
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Rows implements Source.
func (m *Memory) Rows(context.Context) ([]grid.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]grid.Record, len(m.rows))
	for i, r := range m.rows {
		out[i] = maps.Clone(r)
	}
	return out, nil
}
