package engine

import (
	"context"
	"fmt"
	"strings"
)

// Queries executes read-only test queries and shapes their results for
// expectation evaluation: a single-row single-column result comes back as
// a scalar, anything larger as a formatted string.
type Queries struct {
	db DB
}

// NewQueries creates a query service over the given database.
func NewQueries(db DB) *Queries {
	return &Queries{db: db}
}

// Run executes one test query.
func (q *Queries) Run(ctx context.Context, query string) (any, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		results = append(results, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, nil
	}
	if len(results) == 1 && len(cols) == 1 {
		return results[0][0], nil
	}

	// Multi-row results flatten to text so containment expectations can
	// still match.
	var sb strings.Builder
	for _, row := range results {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = fmt.Sprintf("%v", v)
		}
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
