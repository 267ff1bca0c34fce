package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/datamorph-ai/datamorph/internal/spec"
)

const generatorSystem = `You write PostgreSQL transformation scripts for an ETL service.
The script must create the target table from scratch:
  - start with DROP TABLE IF EXISTS <target>;
  - follow with CREATE TABLE <target> AS SELECT ...;
  - implement every join, filter, aggregation and derived column in the spec;
  - reference only tables and columns from the provided schemas.
Respond with the SQL only, inside a single sql code fence.`

const correctorSystem = `You fix PostgreSQL transformation scripts for an ETL service.
You receive the specification, the current script, and the validation
failures observed after running it. Diagnose the defect and produce a
corrected script. The corrected script must still drop and recreate the
target table from scratch.
Respond exactly in this format:
ROOT_CAUSE: <one or two sentences naming the defect>
SQL:
<the full corrected script in a sql code fence>`

// Generate produces the initial SQL artifact for a specification.
func (c *Client) Generate(ctx context.Context, sp *spec.Specification, meta *spec.Metadata) (string, error) {
	var user strings.Builder
	user.WriteString("## Specification\n\n")
	user.WriteString(sp.JSON())
	if meta != nil {
		user.WriteString("\n\n## Schemas\n\n")
		user.WriteString(meta.SchemaJSON())
		user.WriteString("\n\n## Sample rows\n\n")
		user.WriteString(meta.SamplesJSON())
	}

	response, err := c.complete(ctx, "generate artifact", generatorSystem, user.String())
	if err != nil {
		return "", err
	}

	sql := stripFences(response)
	if strings.TrimSpace(sql) == "" {
		return "", fmt.Errorf("generator returned no SQL")
	}
	return sql, nil
}

// Correct produces a corrected SQL artifact from the prior artifact and the
// failure context, along with the model's root-cause diagnosis.
func (c *Client) Correct(ctx context.Context, sp *spec.Specification, priorArtifact, failureContext string) (sql, rootCause string, err error) {
	var user strings.Builder
	user.WriteString("## Specification\n\n")
	user.WriteString(sp.JSON())
	user.WriteString("\n\n## Current script\n\n```sql\n")
	user.WriteString(priorArtifact)
	user.WriteString("\n```\n\n## Validation failures\n\n")
	user.WriteString(failureContext)

	response, err := c.complete(ctx, "correct artifact", correctorSystem, user.String())
	if err != nil {
		return "", "", err
	}

	rootCause = labeledField(response, "ROOT_CAUSE")
	sql = stripFences(labeledSection(response, "SQL"))
	if strings.TrimSpace(sql) == "" {
		// Some responses skip the SQL label and return a bare fenced script.
		sql = stripFences(response)
	}
	if strings.TrimSpace(sql) == "" {
		return "", "", fmt.Errorf("corrector returned no SQL")
	}
	if rootCause == "" {
		rootCause = "root cause not reported"
	}
	return sql, rootCause, nil
}
