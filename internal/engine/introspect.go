package engine

import (
	"context"
	"fmt"

	"github.com/datamorph-ai/datamorph/internal/spec"
)

// Introspector reads schemas, row counts and bounded samples for the
// source tables a specification references.
type Introspector struct {
	db DB
	// sampleRows bounds the per-table sample size.
	sampleRows int
}

// NewIntrospector creates an introspector. sampleRows defaults to 20.
func NewIntrospector(db DB, sampleRows int) *Introspector {
	if sampleRows <= 0 {
		sampleRows = 20
	}
	return &Introspector{db: db, sampleRows: sampleRows}
}

// ListTables names the base tables visible in the public schema.
func (in *Introspector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := in.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Introspect gathers metadata for the given tables.
func (in *Introspector) Introspect(ctx context.Context, tables []string) (*spec.Metadata, error) {
	meta := &spec.Metadata{
		Schemas:   make(map[string]spec.TableSchema, len(tables)),
		RowCounts: make(map[string]int64, len(tables)),
		Samples:   make(map[string][]map[string]any, len(tables)),
	}

	for _, table := range tables {
		schema, err := in.tableSchema(ctx, table)
		if err != nil {
			return nil, err
		}
		meta.Schemas[table] = schema

		count, err := in.rowCount(ctx, table)
		if err != nil {
			return nil, err
		}
		meta.RowCounts[table] = count

		sample, err := in.sample(ctx, table)
		if err != nil {
			return nil, err
		}
		meta.Samples[table] = sample
	}
	return meta, nil
}

// tableSchema lists a table's columns from information_schema.
func (in *Introspector) tableSchema(ctx context.Context, table string) (spec.TableSchema, error) {
	rows, err := in.db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_name = $1 ORDER BY ordinal_position`, table)
	if err != nil {
		return spec.TableSchema{}, fmt.Errorf("introspect %s: %w", table, err)
	}
	defer rows.Close()

	schema := spec.TableSchema{Table: table}
	for rows.Next() {
		var col spec.Column
		if err := rows.Scan(&col.Name, &col.DataType); err != nil {
			return spec.TableSchema{}, fmt.Errorf("scan column of %s: %w", table, err)
		}
		schema.Columns = append(schema.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return spec.TableSchema{}, err
	}
	if len(schema.Columns) == 0 {
		return spec.TableSchema{}, fmt.Errorf("table %s not found", table)
	}
	return schema, nil
}

// rowCount counts a table's rows.
func (in *Introspector) rowCount(ctx context.Context, table string) (int64, error) {
	ident := quoteIdent(table)
	if ident == "" {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	var count int64
	if err := in.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ident).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// sample reads a bounded excerpt of a table's rows.
func (in *Introspector) sample(ctx context.Context, table string) ([]map[string]any, error) {
	ident := quoteIdent(table)
	if ident == "" {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", ident, in.sampleRows))
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan sample row of %s: %w", table, err)
		}

		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
