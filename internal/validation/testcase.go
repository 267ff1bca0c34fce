package validation

import (
	"context"
	"strings"

	"github.com/datamorph-ai/datamorph/internal/expect"
	"github.com/datamorph-ai/datamorph/internal/spec"
)

// Origin identifies which half of the suite a test case came from.
type Origin string

const (
	// OriginRule marks tests derived deterministically from the spec.
	OriginRule Origin = "rule"
	// OriginAI marks tests authored by the TestOracle collaborator.
	OriginAI Origin = "ai"
)

// Outcome is the lifecycle state of a test case.
type Outcome string

const (
	// OutcomeUnevaluated means the test has not been executed yet.
	OutcomeUnevaluated Outcome = "unevaluated"
	// OutcomePass means the actual value satisfied the expectation.
	OutcomePass Outcome = "pass"
	// OutcomeFail means the actual value did not satisfy the expectation.
	OutcomeFail Outcome = "fail"
	// OutcomeError means the query itself could not be executed.
	OutcomeError Outcome = "error"
)

// TestCase is one validation check against the transformation output.
// It is created by the SuiteBuilder, filled in by the Executor, possibly
// reclassified by the Arbiter, and frozen once a report is built from it.
type TestCase struct {
	// ID uniquely identifies the test within a suite.
	ID string `json:"id"`
	// Category groups tests for reporting (extraction, join, aggregation,
	// schema, data_quality).
	Category string `json:"category"`
	// Origin is rule or ai.
	Origin Origin `json:"origin"`
	// Query is the read-only SQL executed against the output.
	Query string `json:"query"`
	// RawExpectation is the expectation as authored.
	RawExpectation string `json:"expectation"`
	// Expectation is the parsed matcher, built once at construction.
	Expectation expect.Expectation `json:"-"`
	// Actual is the value the query produced.
	Actual any `json:"actual,omitempty"`
	// Outcome is the evaluation result.
	Outcome Outcome `json:"outcome"`
	// Reason explains a fail or error outcome.
	Reason string `json:"reason,omitempty"`
	// FalsePositive is set when the arbiter reclassified a failure as a
	// bad expectation rather than a defect.
	FalsePositive bool `json:"false_positive,omitempty"`
	// ArbiterReasoning is the arbiter's explanation, kept for audit.
	ArbiterReasoning string `json:"arbiter_reasoning,omitempty"`
}

// QueryService executes read-only test queries against the output target.
type QueryService interface {
	// Run executes a query and returns its result. Single-value results
	// are returned as scalars; multi-row results as a formatted string.
	Run(ctx context.Context, query string) (any, error)
}

// Arbitration is the oracle's judgement on a failing AI test.
type Arbitration struct {
	// IsGenuineDefect is true when the failure reflects a real problem in
	// the transformation output.
	IsGenuineDefect bool
	// Reasoning explains the judgement.
	Reasoning string
}

// TestOracle is the AI collaborator that authors data-quality tests and
// arbitrates their failures.
type TestOracle interface {
	// GenerateTests returns up to cap data-quality test cases for the
	// given spec and introspected metadata.
	GenerateTests(ctx context.Context, sp *spec.Specification, meta *spec.Metadata, cap int) ([]TestCase, error)
	// Arbitrate judges whether a failing AI test reflects a genuine
	// defect or an incorrect expectation.
	Arbitrate(ctx context.Context, tc TestCase, specContext string) (Arbitration, error)
}

// sanitizeIdent strips a SQL identifier down to alphanumerics and
// underscores so spec-provided names cannot break generated queries.
func sanitizeIdent(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := strings.ToLower(b.String())
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}
