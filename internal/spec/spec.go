// Package spec defines the transformation specification model.
// A Specification is created once per run, either parsed from a file or
// translated from a natural-language prompt, and never mutated afterwards;
// a corrected SQL artifact is a new derived object, not a specification edit.
package spec

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JoinType enumerates the supported join kinds.
type JoinType string

const (
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinInner JoinType = "inner"
	JoinFull  JoinType = "full"
)

// Source describes one input table and the columns the transformation reads.
type Source struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// Join describes a join between two source tables.
type Join struct {
	Type        JoinType `json:"type"`
	LeftTable   string   `json:"left_table"`
	RightTable  string   `json:"right_table"`
	LeftColumn  string   `json:"left_column"`
	RightColumn string   `json:"right_column"`
}

// Filter describes a row-level predicate applied to the output.
type Filter struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Aggregation describes an aggregate computed into the output.
type Aggregation struct {
	Function string   `json:"function"`
	Column   string   `json:"column"`
	Alias    string   `json:"alias"`
	GroupBy  []string `json:"group_by,omitempty"`
}

// DerivedColumn describes an output column computed from an expression.
type DerivedColumn struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// Specification is the immutable description of a requested transformation.
type Specification struct {
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Sources        []Source        `json:"sources"`
	Target         string          `json:"target"`
	Joins          []Join          `json:"joins,omitempty"`
	Filters        []Filter        `json:"filters,omitempty"`
	Aggregations   []Aggregation   `json:"aggregations,omitempty"`
	DerivedColumns []DerivedColumn `json:"derived_columns,omitempty"`
}

// Validate checks structural consistency of a specification.
func (s *Specification) Validate() error {
	if len(s.Sources) == 0 {
		return fmt.Errorf("specification has no sources")
	}
	if strings.TrimSpace(s.Target) == "" {
		return fmt.Errorf("specification has no target table")
	}
	tables := make(map[string]bool, len(s.Sources))
	for i, src := range s.Sources {
		if strings.TrimSpace(src.Table) == "" {
			return fmt.Errorf("source %d has no table name", i)
		}
		tables[src.Table] = true
	}
	for i, j := range s.Joins {
		switch j.Type {
		case JoinLeft, JoinRight, JoinInner, JoinFull:
		default:
			return fmt.Errorf("join %d has unknown type %q", i, j.Type)
		}
		if !tables[j.LeftTable] {
			return fmt.Errorf("join %d references unknown left table %q", i, j.LeftTable)
		}
		if !tables[j.RightTable] {
			return fmt.Errorf("join %d references unknown right table %q", i, j.RightTable)
		}
	}
	for i, a := range s.Aggregations {
		if strings.TrimSpace(a.Alias) == "" {
			return fmt.Errorf("aggregation %d has no output alias", i)
		}
	}
	return nil
}

// Parse decodes a specification from JSON and validates it.
func Parse(data []byte) (*Specification, error) {
	var s Specification
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode specification: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// JSON renders the specification for prompts and audit records.
func (s *Specification) JSON() string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// OutputColumns returns the column names the target table is expected to
// carry: grouped columns, aggregation aliases and derived columns when the
// spec aggregates, otherwise every referenced source column plus derived
// columns.
func (s *Specification) OutputColumns() []string {
	seen := make(map[string]bool)
	var cols []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		cols = append(cols, name)
	}

	if len(s.Aggregations) > 0 {
		for _, a := range s.Aggregations {
			for _, g := range a.GroupBy {
				add(g)
			}
			add(a.Alias)
		}
	} else {
		for _, src := range s.Sources {
			for _, c := range src.Columns {
				add(c)
			}
		}
	}
	for _, d := range s.DerivedColumns {
		add(d.Name)
	}
	return cols
}

// SourceFor returns the source entry for a table, if present.
func (s *Specification) SourceFor(table string) (Source, bool) {
	for _, src := range s.Sources {
		if src.Table == table {
			return src, true
		}
	}
	return Source{}, false
}

// Column describes one column of an introspected table.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// TableSchema is the introspected shape of one table.
type TableSchema struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

// Metadata carries the introspected environment a specification runs
// against: schemas, row counts and bounded samples for every source table.
// Samples are bounded so prompts stay small; they are never treated as a
// complete view of the data.
type Metadata struct {
	Schemas   map[string]TableSchema      `json:"schemas"`
	RowCounts map[string]int64            `json:"row_counts"`
	Samples   map[string][]map[string]any `json:"samples"`
}

// SchemaJSON renders schemas and row counts for prompt context.
func (m *Metadata) SchemaJSON() string {
	out := struct {
		Schemas   map[string]TableSchema `json:"schemas"`
		RowCounts map[string]int64       `json:"row_counts"`
	}{m.Schemas, m.RowCounts}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// SamplesJSON renders the bounded samples for prompt context.
func (m *Metadata) SamplesJSON() string {
	data, err := json.MarshalIndent(m.Samples, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
