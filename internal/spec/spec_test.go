package spec

import (
	"testing"
)

func validSpec() *Specification {
	return &Specification{
		Name:   "customer_totals",
		Target: "customer_totals",
		Sources: []Source{
			{Table: "customers", Columns: []string{"customer_id", "name"}},
			{Table: "orders", Columns: []string{"customer_id", "amount"}},
		},
		Joins: []Join{
			{Type: JoinLeft, LeftTable: "customers", RightTable: "orders", LeftColumn: "customer_id", RightColumn: "customer_id"},
		},
		Aggregations: []Aggregation{
			{Function: "sum", Column: "amount", Alias: "total_amount", GroupBy: []string{"customer_id", "name"}},
		},
	}
}

func TestValidate(t *testing.T) {
	if err := validSpec().Validate(); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Specification)
	}{
		{"no sources", func(s *Specification) { s.Sources = nil }},
		{"no target", func(s *Specification) { s.Target = "  " }},
		{"unknown join type", func(s *Specification) { s.Joins[0].Type = "cross" }},
		{"unknown join table", func(s *Specification) { s.Joins[0].RightTable = "payments" }},
		{"aggregation without alias", func(s *Specification) { s.Aggregations[0].Alias = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSpec()
			tt.mutate(s)
			if err := s.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := validSpec()
	parsed, err := Parse([]byte(original.JSON()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Target != original.Target {
		t.Errorf("target = %q, want %q", parsed.Target, original.Target)
	}
	if len(parsed.Sources) != 2 || len(parsed.Joins) != 1 {
		t.Errorf("round trip lost structure: %+v", parsed)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte("{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestOutputColumnsAggregated(t *testing.T) {
	cols := validSpec().OutputColumns()
	want := []string{"customer_id", "name", "total_amount"}
	if len(cols) != len(want) {
		t.Fatalf("OutputColumns = %v, want %v", cols, want)
	}
	for i, c := range want {
		if cols[i] != c {
			t.Errorf("OutputColumns[%d] = %q, want %q", i, cols[i], c)
		}
	}
}

func TestOutputColumnsPlain(t *testing.T) {
	s := validSpec()
	s.Aggregations = nil
	s.DerivedColumns = []DerivedColumn{{Name: "full_name", Expression: "upper(name)"}}

	cols := s.OutputColumns()
	// Referenced source columns, deduplicated, plus the derived column.
	want := []string{"customer_id", "name", "amount", "full_name"}
	if len(cols) != len(want) {
		t.Fatalf("OutputColumns = %v, want %v", cols, want)
	}
}

func TestSourceFor(t *testing.T) {
	s := validSpec()
	if _, ok := s.SourceFor("orders"); !ok {
		t.Error("orders source not found")
	}
	if _, ok := s.SourceFor("payments"); ok {
		t.Error("unexpected source for unknown table")
	}
}
