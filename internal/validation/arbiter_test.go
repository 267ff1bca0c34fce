package validation

import (
	"context"
	"errors"
	"testing"
)

func TestArbiterReclassifiesFalsePositive(t *testing.T) {
	oracle := &stubOracle{arbitrations: map[string]Arbitration{
		"ai_001": {IsGenuineDefect: false, Reasoning: "expectation assumed a complete sample"},
	}}
	a := NewArbiter(oracle)

	tests := []TestCase{
		{ID: "ai_001", Origin: OriginAI, Outcome: OutcomeFail},
	}

	out := a.Review(context.Background(), tests, testSpec())

	if out[0].Outcome != OutcomePass {
		t.Errorf("outcome = %q, want pass after reclassification", out[0].Outcome)
	}
	if !out[0].FalsePositive {
		t.Error("false_positive flag not set")
	}
	if out[0].ArbiterReasoning == "" {
		t.Error("arbiter reasoning not retained")
	}
}

func TestArbiterKeepsGenuineDefect(t *testing.T) {
	oracle := &stubOracle{arbitrations: map[string]Arbitration{
		"ai_001": {IsGenuineDefect: true, Reasoning: "amounts really are negative"},
	}}
	a := NewArbiter(oracle)

	tests := []TestCase{{ID: "ai_001", Origin: OriginAI, Outcome: OutcomeFail}}
	out := a.Review(context.Background(), tests, testSpec())

	if out[0].Outcome != OutcomeFail {
		t.Errorf("outcome = %q, want fail kept", out[0].Outcome)
	}
	if out[0].FalsePositive {
		t.Error("genuine defect must not be flagged as false positive")
	}
}

// Rule failures are never arbitrated, and passing AI tests are not re-judged.
func TestArbiterAsymmetry(t *testing.T) {
	oracle := &stubOracle{}
	a := NewArbiter(oracle)

	tests := []TestCase{
		{ID: "rule_001", Origin: OriginRule, Outcome: OutcomeFail},
		{ID: "rule_002", Origin: OriginRule, Outcome: OutcomeError},
		{ID: "ai_001", Origin: OriginAI, Outcome: OutcomePass},
		{ID: "ai_002", Origin: OriginAI, Outcome: OutcomeError},
		{ID: "ai_003", Origin: OriginAI, Outcome: OutcomeFail},
	}

	out := a.Review(context.Background(), tests, testSpec())

	if len(oracle.arbitrated) != 1 || oracle.arbitrated[0] != "ai_003" {
		t.Errorf("arbitrated = %v, want only ai_003", oracle.arbitrated)
	}
	if out[0].Outcome != OutcomeFail || out[1].Outcome != OutcomeError {
		t.Error("rule outcomes must never change")
	}
}

func TestArbiterErrorKeepsFailure(t *testing.T) {
	oracle := &stubOracle{arbitrateErr: errors.New("timeout")}
	a := NewArbiter(oracle)

	tests := []TestCase{{ID: "ai_001", Origin: OriginAI, Outcome: OutcomeFail}}
	out := a.Review(context.Background(), tests, testSpec())

	if out[0].Outcome != OutcomeFail {
		t.Errorf("outcome = %q, want fail retained on arbitration error", out[0].Outcome)
	}
	if out[0].FalsePositive {
		t.Error("false positive set despite arbitration error")
	}
}

func TestArbiterNilOracle(t *testing.T) {
	var a *Arbiter
	tests := []TestCase{{ID: "ai_001", Origin: OriginAI, Outcome: OutcomeFail}}
	out := a.Review(context.Background(), tests, testSpec())
	if out[0].Outcome != OutcomeFail {
		t.Error("nil arbiter must leave tests untouched")
	}
}
