package validation

import (
	"fmt"
	"strings"
)

// Status is the final verdict of one validation attempt.
type Status string

const (
	// StatusPass means the output satisfied the decision rule.
	StatusPass Status = "pass"
	// StatusFail means the output must be remediated.
	StatusFail Status = "fail"
)

// DefaultAIPassThreshold is the minimum aggregate AI pass rate.
const DefaultAIPassThreshold = 0.60

// Report aggregates per-test outcomes for one validation attempt.
// It is built once and never mutated; remediation produces a new report
// against freshly re-executed output.
type Report struct {
	// Tests is the evaluated suite, rule tests first.
	Tests []TestCase
	// RulePassCount is the number of passing rule tests.
	RulePassCount int
	// RuleTotal is the number of rule tests.
	RuleTotal int
	// AIPassRate is passes over total for the AI batch, 1.0 when empty.
	AIPassRate float64
	// FinalStatus is the verdict under the fixed decision rule.
	FinalStatus Status
}

// BuildReport applies the decision rule:
//
//	fail if any rule test did not pass
//	fail if the AI pass rate is below the threshold (boundary inclusive)
//	pass otherwise
//
// A rule failure is unconditionally fatal regardless of AI results; AI
// results only gate through the aggregate threshold, never individually.
// Errored tests count as failures for both halves.
func BuildReport(tests []TestCase, threshold float64) *Report {
	if threshold <= 0 {
		threshold = DefaultAIPassThreshold
	}

	r := &Report{Tests: tests, AIPassRate: 1.0}

	ruleFailures := 0
	aiTotal := 0
	aiPass := 0
	for _, tc := range tests {
		switch tc.Origin {
		case OriginRule:
			r.RuleTotal++
			if tc.Outcome == OutcomePass {
				r.RulePassCount++
			} else {
				ruleFailures++
			}
		case OriginAI:
			aiTotal++
			if tc.Outcome == OutcomePass {
				aiPass++
			}
		}
	}

	if aiTotal > 0 {
		r.AIPassRate = float64(aiPass) / float64(aiTotal)
	}

	switch {
	case ruleFailures > 0:
		r.FinalStatus = StatusFail
	case r.AIPassRate < threshold:
		r.FinalStatus = StatusFail
	default:
		r.FinalStatus = StatusPass
	}
	return r
}

// FailingTests returns the tests that did not pass.
func (r *Report) FailingTests() []TestCase {
	var out []TestCase
	for _, tc := range r.Tests {
		if tc.Outcome != OutcomePass {
			out = append(out, tc)
		}
	}
	return out
}

// FalsePositiveCount returns how many AI failures were reclassified.
func (r *Report) FalsePositiveCount() int {
	n := 0
	for _, tc := range r.Tests {
		if tc.FalsePositive {
			n++
		}
	}
	return n
}

// Summary renders a human-readable digest for logs and the CLI.
func (r *Report) Summary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Validation %s: %d/%d rule tests passed, AI pass rate %.2f\n",
		strings.ToUpper(string(r.FinalStatus)), r.RulePassCount, r.RuleTotal, r.AIPassRate)

	for _, tc := range r.FailingTests() {
		fmt.Fprintf(&sb, "  [%s/%s] %s: %s", tc.Origin, tc.Category, tc.ID, tc.Outcome)
		if tc.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", tc.Reason)
		}
		sb.WriteString("\n")
	}
	if fp := r.FalsePositiveCount(); fp > 0 {
		fmt.Fprintf(&sb, "  %d AI failure(s) reclassified as false positives\n", fp)
	}
	return sb.String()
}

// FailureContext renders the failing tests with reasons for the correction
// collaborator.
func (r *Report) FailureContext() string {
	var sb strings.Builder
	for _, tc := range r.FailingTests() {
		fmt.Fprintf(&sb, "- test %s (%s, %s): query %q expected %q", tc.ID, tc.Category, tc.Outcome, tc.Query, tc.RawExpectation)
		if tc.Actual != nil {
			fmt.Fprintf(&sb, ", got %v", tc.Actual)
		}
		if tc.Reason != "" {
			fmt.Fprintf(&sb, ": %s", tc.Reason)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
