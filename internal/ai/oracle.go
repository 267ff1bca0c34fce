package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/datamorph-ai/datamorph/internal/spec"
	"github.com/datamorph-ai/datamorph/internal/validation"
)

const oracleSystem = `You author data-quality tests for the output of a SQL transformation.
Each test is a single read-only PostgreSQL query against the target table
plus an expectation for its scalar result. Expectations are one of:
  - an exact value, e.g. "0" or "true"
  - a comparator phrase, e.g. "greater than 100" or "less than 5"
  - a substring the result should contain.
The sample rows you receive are a small excerpt, not the full data: never
assert exact row counts or exact aggregate values derived from the samples;
prefer comparator phrases and sanity bounds.
Respond with a JSON array only: [{"id", "category", "query", "expectation"}].`

const arbiterSystem = `You arbitrate a failing data-quality test for a SQL transformation.
The test was authored by a model from incomplete samples, so the failure may
reflect a wrong expectation rather than a defect in the output. Judge which
it is from the specification, the query, the expectation and the actual value.
Respond exactly in this format:
GENUINE_DEFECT: YES or NO
REASONING: <two or three sentences>`

// Oracle adapts the Claude client to the validation.TestOracle contract.
type Oracle struct {
	client *Client
}

// NewOracle creates a test oracle backed by the given client.
func NewOracle(client *Client) *Oracle {
	return &Oracle{client: client}
}

// GenerateTests asks the model for up to cap data-quality tests.
func (o *Oracle) GenerateTests(ctx context.Context, sp *spec.Specification, meta *spec.Metadata, cap int) ([]validation.TestCase, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Author at most %d tests for the target table %q.\n\n", cap, sp.Target)
	user.WriteString("## Specification\n\n")
	user.WriteString(sp.JSON())
	if meta != nil {
		user.WriteString("\n\n## Schemas\n\n")
		user.WriteString(meta.SchemaJSON())
		user.WriteString("\n\n## Sample rows (bounded excerpt)\n\n")
		user.WriteString(meta.SamplesJSON())
	}

	response, err := o.client.complete(ctx, "generate tests", oracleSystem, user.String())
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID          string `json:"id"`
		Category    string `json:"category"`
		Query       string `json:"query"`
		Expectation string `json:"expectation"`
	}
	if err := extractJSON(response, &raw); err != nil {
		return nil, fmt.Errorf("parse generated tests: %w", err)
	}

	var out []validation.TestCase
	for _, r := range raw {
		if strings.TrimSpace(r.Query) == "" {
			continue
		}
		out = append(out, validation.TestCase{
			ID:             r.ID,
			Category:       r.Category,
			Query:          r.Query,
			RawExpectation: r.Expectation,
		})
	}
	return out, nil
}

// Arbitrate judges whether a failing AI test reflects a genuine defect.
func (o *Oracle) Arbitrate(ctx context.Context, tc validation.TestCase, specContext string) (validation.Arbitration, error) {
	var user strings.Builder
	user.WriteString("## Specification\n\n")
	user.WriteString(specContext)
	user.WriteString("\n\n## Failing test\n\n")
	fmt.Fprintf(&user, "Query: %s\n", tc.Query)
	fmt.Fprintf(&user, "Expectation: %s\n", tc.RawExpectation)
	fmt.Fprintf(&user, "Actual: %v\n", tc.Actual)
	if tc.Reason != "" {
		fmt.Fprintf(&user, "Mismatch: %s\n", tc.Reason)
	}

	response, err := o.client.complete(ctx, "arbitrate test", arbiterSystem, user.String())
	if err != nil {
		return validation.Arbitration{}, err
	}

	verdict := strings.ToUpper(labeledField(response, "GENUINE_DEFECT"))
	reasoning := labeledField(response, "REASONING")
	if verdict == "" {
		return validation.Arbitration{}, fmt.Errorf("arbiter response missing verdict")
	}

	return validation.Arbitration{
		// An unclear verdict counts as genuine so leniency never hides
		// a real defect.
		IsGenuineDefect: !strings.HasPrefix(verdict, "NO"),
		Reasoning:       reasoning,
	}, nil
}

// Verify Oracle implements the contract at compile time.
var _ validation.TestOracle = (*Oracle)(nil)
