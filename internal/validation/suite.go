package validation

import (
	"context"
	"fmt"
	"log"

	"github.com/datamorph-ai/datamorph/internal/expect"
	"github.com/datamorph-ai/datamorph/internal/spec"
)

// SuiteConfig carries the tunables for suite construction.
type SuiteConfig struct {
	// AITestCap bounds the number of AI-authored tests requested.
	AITestCap int
	// NumericTolerance is the absolute tolerance for numeric expectations.
	NumericTolerance float64
}

// DefaultSuiteConfig returns the defaults used when nothing is configured.
func DefaultSuiteConfig() SuiteConfig {
	return SuiteConfig{
		AITestCap:        5,
		NumericTolerance: expect.DefaultTolerance,
	}
}

// SuiteBuilder assembles the hybrid test suite for one validation attempt.
type SuiteBuilder struct {
	oracle TestOracle
	cfg    SuiteConfig
}

// NewSuiteBuilder creates a suite builder. The oracle may be nil, in which
// case the suite contains rule tests only.
func NewSuiteBuilder(oracle TestOracle, cfg SuiteConfig) *SuiteBuilder {
	if cfg.AITestCap <= 0 {
		cfg.AITestCap = DefaultSuiteConfig().AITestCap
	}
	if cfg.NumericTolerance <= 0 {
		cfg.NumericTolerance = expect.DefaultTolerance
	}
	return &SuiteBuilder{oracle: oracle, cfg: cfg}
}

// Build produces the full suite: deterministic rule tests followed by the
// AI batch. An oracle failure degrades the suite to rule tests only rather
// than failing the attempt; an empty AI batch simply yields a pass rate of
// 1.0 downstream.
func (b *SuiteBuilder) Build(ctx context.Context, sp *spec.Specification, meta *spec.Metadata) []TestCase {
	tests := b.buildRuleTests(sp, meta)

	if b.oracle == nil {
		return tests
	}

	aiTests, err := b.oracle.GenerateTests(ctx, sp, meta, b.cfg.AITestCap)
	if err != nil {
		log.Printf("[suite] AI test generation failed, continuing with %d rule tests: %v", len(tests), err)
		return tests
	}
	if len(aiTests) > b.cfg.AITestCap {
		aiTests = aiTests[:b.cfg.AITestCap]
	}
	for i := range aiTests {
		aiTests[i].Origin = OriginAI
		aiTests[i].Outcome = OutcomeUnevaluated
		if aiTests[i].ID == "" {
			aiTests[i].ID = fmt.Sprintf("ai_%03d", i+1)
		}
		if aiTests[i].Category == "" {
			aiTests[i].Category = "data_quality"
		}
		aiTests[i].Expectation = expect.ParseWithTolerance(aiTests[i].RawExpectation, b.cfg.NumericTolerance)
	}
	return append(tests, aiTests...)
}

// buildRuleTests derives the structural batch from the specification and
// schema metadata alone: no external calls, every expectation computed.
func (b *SuiteBuilder) buildRuleTests(sp *spec.Specification, meta *spec.Metadata) []TestCase {
	target := sanitizeIdent(sp.Target)
	outputCols := sp.OutputColumns()
	var tests []TestCase
	seq := 0

	add := func(category, query, expectation string) {
		seq++
		tests = append(tests, TestCase{
			ID:             fmt.Sprintf("rule_%03d", seq),
			Category:       category,
			Origin:         OriginRule,
			Query:          query,
			RawExpectation: expectation,
			Expectation:    expect.ParseWithTolerance(expectation, b.cfg.NumericTolerance),
			Outcome:        OutcomeUnevaluated,
		})
	}

	// The output must exist and hold rows before any finer claim matters.
	add("completeness", fmt.Sprintf("SELECT COUNT(*) FROM %s", target), "greater than 0")

	// Aggregation aliases get dedicated tests below.
	aliases := make(map[string]bool, len(sp.Aggregations))
	for _, a := range sp.Aggregations {
		aliases[sanitizeIdent(a.Alias)] = true
	}

	// One extraction test per expected output column.
	for _, col := range outputCols {
		c := sanitizeIdent(col)
		if c == "" || aliases[c] {
			continue
		}
		add("extraction", columnPresenceQuery(target, c), "greater than 0")
	}

	// One row-count test per join. The bound depends on the join type;
	// once aggregations collapse rows the only structural guarantee left
	// is a non-empty output.
	for _, j := range sp.Joins {
		add("join", fmt.Sprintf("SELECT COUNT(*) FROM %s", target), joinExpectation(j, sp, meta))
	}

	// One output-column test per aggregation.
	for _, a := range sp.Aggregations {
		add("aggregation", columnPresenceQuery(target, sanitizeIdent(a.Alias)), "greater than 0")
	}

	// Schema completeness: the target carries exactly the expected columns.
	add("schema",
		fmt.Sprintf("SELECT COUNT(*) FROM information_schema.columns WHERE table_name = '%s'", target),
		fmt.Sprintf("%d", len(outputCols)))

	return tests
}

// columnPresenceQuery counts a column's entry in the target schema.
func columnPresenceQuery(table, column string) string {
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM information_schema.columns WHERE table_name = '%s' AND column_name = '%s'",
		table, column)
}

// joinExpectation computes the row-count bound a join type implies.
// Comparators are strict, so lower bounds are phrased against count-1.
func joinExpectation(j spec.Join, sp *spec.Specification, meta *spec.Metadata) string {
	if len(sp.Aggregations) > 0 {
		return "greater than 0"
	}

	counts := map[string]int64{}
	if meta != nil {
		counts = meta.RowCounts
	}
	left := counts[j.LeftTable]
	right := counts[j.RightTable]

	switch j.Type {
	case spec.JoinLeft:
		return fmt.Sprintf("greater than %d", left-1)
	case spec.JoinRight:
		return fmt.Sprintf("greater than %d", right-1)
	case spec.JoinFull:
		bound := left
		if right > bound {
			bound = right
		}
		return fmt.Sprintf("greater than %d", bound-1)
	default:
		// An inner join has no deterministic lower bound; the structural
		// claim is only that the count query answers.
		return "greater than -1"
	}
}
