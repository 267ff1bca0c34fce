package validation

import (
	"context"
	"log"

	"github.com/datamorph-ai/datamorph/internal/spec"
)

// Arbiter reviews failing AI tests for false positives.
//
// Only AI-origin failures are ever arbitrated. Rule failures are derived
// deterministically from the specification, so they are always genuine;
// the asymmetry bounds the blast radius of AI test authorship errors
// without letting the same leniency mask defects in required structure.
type Arbiter struct {
	oracle TestOracle
}

// NewArbiter creates an arbiter backed by the given oracle.
func NewArbiter(oracle TestOracle) *Arbiter {
	return &Arbiter{oracle: oracle}
}

// Review sends each failing AI test to the oracle and reclassifies those
// judged to be bad expectations: the outcome flips fail→pass, the test is
// marked as a false positive, and the reasoning is retained for audit.
// Arbitration errors leave the failure standing as genuine.
func (a *Arbiter) Review(ctx context.Context, tests []TestCase, sp *spec.Specification) []TestCase {
	if a == nil || a.oracle == nil {
		return tests
	}

	out := make([]TestCase, len(tests))
	copy(out, tests)
	specContext := sp.JSON()

	for i := range out {
		if out[i].Origin != OriginAI || out[i].Outcome != OutcomeFail {
			continue
		}

		verdict, err := a.oracle.Arbitrate(ctx, out[i], specContext)
		if err != nil {
			log.Printf("[arbiter] arbitration of %s failed, keeping failure as genuine: %v", out[i].ID, err)
			continue
		}

		if !verdict.IsGenuineDefect {
			out[i].Outcome = OutcomePass
			out[i].FalsePositive = true
			out[i].ArbiterReasoning = verdict.Reasoning
			log.Printf("[arbiter] test %s reclassified as false positive", out[i].ID)
		} else {
			out[i].ArbiterReasoning = verdict.Reasoning
		}
	}
	return out
}
