package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the query surface the provider needs.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

const columnsQuery = `
SELECT column_name,
       data_type,
       character_maximum_length,
       is_nullable = 'YES',
       column_default IS NOT NULL
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// PgProvider reads column metadata from information_schema.
type PgProvider struct {
	db     DBTX
	schema string
}

// NewPgProvider creates a provider for tables in schemaName ("public" when
// empty).
func NewPgProvider(db DBTX, schemaName string) *PgProvider {
	if schemaName == "" {
		schemaName = "public"
	}
	return &PgProvider{db: db, schema: schemaName}
}

// Table implements Provider. A table without columns is reported as
// ErrTableNotFound.
func (p *PgProvider) Table(ctx context.Context, name string) (*Table, error) {
	rows, err := p.db.Query(ctx, columnsQuery, p.schema, name)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	t := &Table{Name: name}
	for rows.Next() {
		var (
			c         Column
			maxLength pgtype.Int4
		)
		if err := rows.Scan(&c.Name, &c.DataType, &maxLength, &c.Nullable, &c.HasDefault); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if maxLength.Valid {
			c.MaxLength = int(maxLength.Int32)
		}
		t.Columns = append(t.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, p.schema, name)
	}
	return t, nil
}
