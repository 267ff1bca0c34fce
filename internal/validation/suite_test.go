package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/datamorph-ai/datamorph/internal/spec"
)

func testSpec() *spec.Specification {
	return &spec.Specification{
		Name:   "customer_totals",
		Target: "customer_totals",
		Sources: []spec.Source{
			{Table: "customers", Columns: []string{"customer_id", "name"}},
			{Table: "orders", Columns: []string{"customer_id", "amount"}},
		},
		Joins: []spec.Join{
			{Type: spec.JoinLeft, LeftTable: "customers", RightTable: "orders", LeftColumn: "customer_id", RightColumn: "customer_id"},
		},
	}
}

func testMeta() *spec.Metadata {
	return &spec.Metadata{
		Schemas: map[string]spec.TableSchema{
			"customers": {Table: "customers", Columns: []spec.Column{{Name: "customer_id", DataType: "integer"}, {Name: "name", DataType: "text"}}},
			"orders":    {Table: "orders", Columns: []spec.Column{{Name: "customer_id", DataType: "integer"}, {Name: "amount", DataType: "numeric"}}},
		},
		RowCounts: map[string]int64{"customers": 100, "orders": 250},
	}
}

// stubOracle implements TestOracle for suite and arbiter tests.
type stubOracle struct {
	tests       []TestCase
	generateErr error

	arbitrations map[string]Arbitration
	arbitrateErr error
	arbitrated   []string
}

func (s *stubOracle) GenerateTests(_ context.Context, _ *spec.Specification, _ *spec.Metadata, cap int) ([]TestCase, error) {
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	if len(s.tests) > cap {
		return s.tests[:cap], nil
	}
	return s.tests, nil
}

func (s *stubOracle) Arbitrate(_ context.Context, tc TestCase, _ string) (Arbitration, error) {
	s.arbitrated = append(s.arbitrated, tc.ID)
	if s.arbitrateErr != nil {
		return Arbitration{}, s.arbitrateErr
	}
	if v, ok := s.arbitrations[tc.ID]; ok {
		return v, nil
	}
	return Arbitration{IsGenuineDefect: true, Reasoning: "default"}, nil
}

func TestBuildRuleTests(t *testing.T) {
	b := NewSuiteBuilder(nil, DefaultSuiteConfig())
	tests := b.Build(context.Background(), testSpec(), testMeta())

	byCategory := map[string]int{}
	for _, tc := range tests {
		if tc.Origin != OriginRule {
			t.Errorf("test %s has origin %q, want rule", tc.ID, tc.Origin)
		}
		if tc.Outcome != OutcomeUnevaluated {
			t.Errorf("test %s starts in outcome %q", tc.ID, tc.Outcome)
		}
		byCategory[tc.Category]++
	}

	// One row presence test, three distinct referenced columns, one join,
	// one schema test.
	if byCategory["completeness"] != 1 {
		t.Errorf("completeness tests = %d, want 1", byCategory["completeness"])
	}
	if byCategory["extraction"] != 3 {
		t.Errorf("extraction tests = %d, want 3", byCategory["extraction"])
	}
	if byCategory["join"] != 1 {
		t.Errorf("join tests = %d, want 1", byCategory["join"])
	}
	if byCategory["schema"] != 1 {
		t.Errorf("schema tests = %d, want 1", byCategory["schema"])
	}
}

func TestBuildJoinBound(t *testing.T) {
	b := NewSuiteBuilder(nil, DefaultSuiteConfig())
	tests := b.Build(context.Background(), testSpec(), testMeta())

	var join *TestCase
	for i := range tests {
		if tests[i].Category == "join" {
			join = &tests[i]
		}
	}
	if join == nil {
		t.Fatal("no join test built")
	}
	// Left join: target rows must be at least the left table's 100 rows,
	// phrased as a strict comparator against 99.
	if join.RawExpectation != "greater than 99" {
		t.Errorf("join expectation = %q, want \"greater than 99\"", join.RawExpectation)
	}
	if !strings.Contains(join.Query, "customer_totals") {
		t.Errorf("join query does not target output table: %s", join.Query)
	}
}

func TestBuildAggregationTests(t *testing.T) {
	sp := testSpec()
	sp.Aggregations = []spec.Aggregation{
		{Function: "sum", Column: "amount", Alias: "total_amount", GroupBy: []string{"customer_id"}},
	}

	b := NewSuiteBuilder(nil, DefaultSuiteConfig())
	tests := b.Build(context.Background(), sp, testMeta())

	var agg, join *TestCase
	for i := range tests {
		switch tests[i].Category {
		case "aggregation":
			agg = &tests[i]
		case "join":
			join = &tests[i]
		}
	}
	if agg == nil {
		t.Fatal("no aggregation test built")
	}
	if !strings.Contains(agg.Query, "total_amount") {
		t.Errorf("aggregation test does not check output column: %s", agg.Query)
	}
	// Aggregations collapse rows, so the join bound degrades to non-empty.
	if join.RawExpectation != "greater than 0" {
		t.Errorf("aggregated join expectation = %q, want \"greater than 0\"", join.RawExpectation)
	}
}

func TestBuildSchemaCompleteness(t *testing.T) {
	b := NewSuiteBuilder(nil, DefaultSuiteConfig())
	tests := b.Build(context.Background(), testSpec(), testMeta())

	last := tests[len(tests)-1]
	if last.Category != "schema" {
		t.Fatalf("last rule test is %q, want schema", last.Category)
	}
	// Three distinct output columns expected, as an exact count.
	if last.RawExpectation != "3" {
		t.Errorf("schema expectation = %q, want \"3\"", last.RawExpectation)
	}
}

func TestBuildAIBatch(t *testing.T) {
	oracle := &stubOracle{
		tests: []TestCase{
			{Query: "SELECT COUNT(*) FROM customer_totals WHERE amount < 0", RawExpectation: "0"},
			{ID: "ai_custom", Query: "SELECT MAX(amount) FROM customer_totals", RawExpectation: "less than 100000"},
		},
	}

	b := NewSuiteBuilder(oracle, DefaultSuiteConfig())
	tests := b.Build(context.Background(), testSpec(), testMeta())

	var ai []TestCase
	for _, tc := range tests {
		if tc.Origin == OriginAI {
			ai = append(ai, tc)
		}
	}
	if len(ai) != 2 {
		t.Fatalf("ai tests = %d, want 2", len(ai))
	}
	if ai[0].ID == "" || ai[0].Category != "data_quality" {
		t.Errorf("ai test defaults not applied: %+v", ai[0])
	}
	if ai[1].ID != "ai_custom" {
		t.Errorf("oracle-provided ID overwritten: %q", ai[1].ID)
	}
	// Expectations are parsed at construction, not at evaluation.
	if ai[1].Expectation.Raw != "less than 100000" {
		t.Errorf("ai expectation not parsed: %+v", ai[1].Expectation)
	}
}

func TestBuildAICap(t *testing.T) {
	var many []TestCase
	for i := 0; i < 9; i++ {
		many = append(many, TestCase{Query: fmt.Sprintf("SELECT %d", i), RawExpectation: fmt.Sprintf("%d", i)})
	}
	oracle := &stubOracle{tests: many}

	b := NewSuiteBuilder(oracle, SuiteConfig{AITestCap: 5})
	tests := b.Build(context.Background(), testSpec(), testMeta())

	ai := 0
	for _, tc := range tests {
		if tc.Origin == OriginAI {
			ai++
		}
	}
	if ai != 5 {
		t.Errorf("ai tests = %d, want cap of 5", ai)
	}
}

func TestBuildOracleFailureDegrades(t *testing.T) {
	oracle := &stubOracle{generateErr: errors.New("rate limited")}

	b := NewSuiteBuilder(oracle, DefaultSuiteConfig())
	tests := b.Build(context.Background(), testSpec(), testMeta())

	if len(tests) == 0 {
		t.Fatal("oracle failure must not empty the suite")
	}
	for _, tc := range tests {
		if tc.Origin == OriginAI {
			t.Errorf("unexpected ai test %s after oracle failure", tc.ID)
		}
	}
}

func TestSanitizeIdent(t *testing.T) {
	tests := []struct{ in, want string }{
		{"customer_totals", "customer_totals"},
		{"Customer Totals", "customertotals"},
		{"drop table; --", "droptable"},
		{"1st_table", "_1st_table"},
	}
	for _, tt := range tests {
		if got := sanitizeIdent(tt.in); got != tt.want {
			t.Errorf("sanitizeIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
