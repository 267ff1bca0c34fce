package validation

import (
	"context"
	"log"

	"github.com/datamorph-ai/datamorph/internal/expect"
)

// Executor runs test queries through the QueryService and records outcomes.
type Executor struct {
	queries QueryService
}

// NewExecutor creates an executor backed by the given query service.
func NewExecutor(queries QueryService) *Executor {
	return &Executor{queries: queries}
}

// ExecuteAll runs every test in the suite and returns the evaluated slice.
// Execution failures are data, not control flow: a query error marks that
// test OutcomeError and records the message, and the batch always runs to
// completion. Tests are independent read-only queries, so ordering across
// them carries no meaning.
func (e *Executor) ExecuteAll(ctx context.Context, tests []TestCase) []TestCase {
	out := make([]TestCase, len(tests))
	copy(out, tests)

	for i := range out {
		out[i] = e.execute(ctx, out[i])
	}
	return out
}

// execute runs a single test case and fills in actual, outcome and reason.
func (e *Executor) execute(ctx context.Context, tc TestCase) TestCase {
	actual, err := e.queries.Run(ctx, tc.Query)
	if err != nil {
		tc.Outcome = OutcomeError
		tc.Reason = err.Error()
		log.Printf("[executor] test %s errored: %v", tc.ID, err)
		return tc
	}

	tc.Actual = actual
	outcome, reason := tc.Expectation.Evaluate(actual)
	if outcome == expect.Pass {
		tc.Outcome = OutcomePass
		tc.Reason = ""
	} else {
		tc.Outcome = OutcomeFail
		tc.Reason = reason
	}
	return tc
}
