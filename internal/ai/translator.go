package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/datamorph-ai/datamorph/internal/spec"
)

const translatorSystem = `You translate natural-language ETL requests into a strict JSON specification.
Respond with a single JSON object and nothing else. The object has:
  name (snake_case string), description (string),
  sources ([{table, columns[]}]), target (snake_case table name),
  joins ([{type: left|right|inner|full, left_table, right_table, left_column, right_column}]),
  filters ([{column, operator, value}]),
  aggregations ([{function, column, alias, group_by[]}]),
  derived_columns ([{name, expression}]).
Only reference tables and columns that appear in the provided schemas.`

// Translate converts a natural-language prompt into a validated
// Specification using the available schema context.
func (c *Client) Translate(ctx context.Context, prompt string, meta *spec.Metadata) (*spec.Specification, error) {
	var user strings.Builder
	user.WriteString("## Request\n\n")
	user.WriteString(prompt)
	if meta != nil {
		user.WriteString("\n\n## Available schemas\n\n")
		user.WriteString(meta.SchemaJSON())
	}

	response, err := c.complete(ctx, "translate specification", translatorSystem, user.String())
	if err != nil {
		return nil, err
	}

	var sp spec.Specification
	if err := extractJSON(response, &sp); err != nil {
		return nil, fmt.Errorf("parse specification response: %w", err)
	}
	if err := sp.Validate(); err != nil {
		return nil, fmt.Errorf("translated specification invalid: %w", err)
	}
	return &sp, nil
}
