package validation

import (
	"strings"
	"testing"
)

func ruleTests(passed, failed int) []TestCase {
	var out []TestCase
	for i := 0; i < passed; i++ {
		out = append(out, TestCase{ID: "rule_p", Origin: OriginRule, Outcome: OutcomePass})
	}
	for i := 0; i < failed; i++ {
		out = append(out, TestCase{ID: "rule_f", Origin: OriginRule, Outcome: OutcomeFail, Reason: "count mismatch"})
	}
	return out
}

func aiTests(passed, failed int) []TestCase {
	var out []TestCase
	for i := 0; i < passed; i++ {
		out = append(out, TestCase{ID: "ai_p", Origin: OriginAI, Outcome: OutcomePass})
	}
	for i := 0; i < failed; i++ {
		out = append(out, TestCase{ID: "ai_f", Origin: OriginAI, Outcome: OutcomeFail})
	}
	return out
}

// Any single rule failure is fatal, independent of AI results.
func TestReportRuleFailureIsFatal(t *testing.T) {
	tests := append(ruleTests(6, 1), aiTests(5, 0)...)
	r := BuildReport(tests, DefaultAIPassThreshold)

	if r.FinalStatus != StatusFail {
		t.Errorf("status = %q, want fail despite perfect AI batch", r.FinalStatus)
	}
	if r.AIPassRate != 1.0 {
		t.Errorf("ai pass rate = %v, want 1.0", r.AIPassRate)
	}
	if r.RulePassCount != 6 || r.RuleTotal != 7 {
		t.Errorf("rule counts = %d/%d, want 6/7", r.RulePassCount, r.RuleTotal)
	}
}

// The AI threshold boundary is inclusive: exactly 0.6 passes, 0.59 fails.
func TestReportThresholdBoundary(t *testing.T) {
	// 3 of 5 AI tests pass: rate 0.6, boundary inclusive.
	r := BuildReport(append(ruleTests(3, 0), aiTests(3, 2)...), 0.60)
	if r.FinalStatus != StatusPass {
		t.Errorf("rate 0.60 should pass, got %q", r.FinalStatus)
	}

	// 59 of 100 pass: rate 0.59 fails.
	r = BuildReport(append(ruleTests(3, 0), aiTests(59, 41)...), 0.60)
	if r.FinalStatus != StatusFail {
		t.Errorf("rate 0.59 should fail, got %q", r.FinalStatus)
	}
}

// An empty AI batch counts as a pass rate of 1.0.
func TestReportEmptyAIBatch(t *testing.T) {
	r := BuildReport(ruleTests(4, 0), DefaultAIPassThreshold)
	if r.AIPassRate != 1.0 {
		t.Errorf("ai pass rate = %v, want 1.0 for empty batch", r.AIPassRate)
	}
	if r.FinalStatus != StatusPass {
		t.Errorf("status = %q, want pass", r.FinalStatus)
	}
}

// Errored tests count against both halves.
func TestReportErrorCountsAsFailure(t *testing.T) {
	tests := []TestCase{
		{Origin: OriginRule, Outcome: OutcomeError},
	}
	r := BuildReport(tests, DefaultAIPassThreshold)
	if r.FinalStatus != StatusFail {
		t.Errorf("status = %q, want fail on rule error", r.FinalStatus)
	}
}

// Scenario: left-join spec where the target lost rows fails validation even
// with a perfect AI batch.
func TestReportScenarioJoinShortfall(t *testing.T) {
	join := makeTest("rule_join", "SELECT COUNT(*) FROM customer_totals", "greater than 99")
	join.Actual = int64(80)
	join.Outcome = OutcomeFail
	join.Reason = "expected greater than 99, got 80"

	tests := append([]TestCase{join}, aiTests(5, 0)...)
	r := BuildReport(tests, DefaultAIPassThreshold)

	if r.FinalStatus != StatusFail {
		t.Errorf("status = %q, want fail", r.FinalStatus)
	}
}

// Scenario: two AI failures both arbitrated as false positives recompute
// the pass rate as 5/5.
func TestReportScenarioFalsePositives(t *testing.T) {
	tests := ruleTests(7, 0)
	tests = append(tests, aiTests(3, 0)...)
	// Two reclassified failures: outcome pass, false positive flagged.
	for i := 0; i < 2; i++ {
		tests = append(tests, TestCase{
			Origin:           OriginAI,
			Outcome:          OutcomePass,
			FalsePositive:    true,
			ArbiterReasoning: "expectation guessed from sample",
		})
	}

	r := BuildReport(tests, DefaultAIPassThreshold)
	if r.AIPassRate != 1.0 {
		t.Errorf("ai pass rate = %v, want 1.0 after reclassification", r.AIPassRate)
	}
	if r.FinalStatus != StatusPass {
		t.Errorf("status = %q, want pass", r.FinalStatus)
	}
	if r.FalsePositiveCount() != 2 {
		t.Errorf("false positives = %d, want 2", r.FalsePositiveCount())
	}
}

func TestReportSummaryAndFailureContext(t *testing.T) {
	join := makeTest("rule_join", "SELECT COUNT(*) FROM t", "greater than 10")
	join.Actual = int64(5)
	join.Outcome = OutcomeFail
	join.Reason = "expected greater than 10, got 5"

	r := BuildReport([]TestCase{join}, DefaultAIPassThreshold)

	if !strings.Contains(r.Summary(), "FAIL") {
		t.Errorf("summary missing verdict: %s", r.Summary())
	}
	fc := r.FailureContext()
	if !strings.Contains(fc, "rule_join") || !strings.Contains(fc, "got 5") {
		t.Errorf("failure context incomplete: %s", fc)
	}
}
