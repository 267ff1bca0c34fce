// Package remediation drives the bounded correct-and-retry loop that runs
// after a failed validation. Each iteration asks the correction
// collaborator for a new artifact, clears the target, re-executes and
// re-validates. The loop is an explicit counter, never recursion, and it
// keeps only the latest artifact and report, so memory stays bounded
// regardless of the iteration ceiling.
package remediation

import (
	"context"
	"fmt"
	"log"

	"github.com/datamorph-ai/datamorph/internal/artifact"
	"github.com/datamorph-ai/datamorph/internal/audit"
	"github.com/datamorph-ai/datamorph/internal/engine"
	"github.com/datamorph-ai/datamorph/internal/spec"
	"github.com/datamorph-ai/datamorph/internal/validation"
)

// State names a phase of the remediation machine.
type State string

const (
	StateIdle       State = "idle"
	StateAnalyzing  State = "analyzing"
	StateCorrecting State = "correcting"
	StateExecuting  State = "executing"
	StateValidating State = "validating"
	StateSuccess    State = "success"
	StateRetrying   State = "retrying"
	StateExhausted  State = "exhausted"
)

// DefaultMaxIterations bounds the loop when nothing is configured.
const DefaultMaxIterations = 5

// Corrector produces a corrected artifact from the failure context.
type Corrector interface {
	Correct(ctx context.Context, sp *spec.Specification, priorArtifact, failureContext string) (sql, rootCause string, err error)
}

// ExecutionEngine clears and re-runs the target. Clear must guarantee the
// target is empty before the next Run: the clean slate is a correctness
// requirement, not an optimization.
type ExecutionEngine interface {
	Clear(ctx context.Context, target string) error
	Run(ctx context.Context, artifactSQL, target string) engine.Result
}

// ValidateFunc re-runs one full validation attempt (suite build, execute,
// arbitrate, report) against the current output.
type ValidateFunc func(ctx context.Context) (*validation.Report, error)

// Controller is the remediation state machine.
type Controller struct {
	corrector Corrector
	engine    ExecutionEngine
	store     artifact.Store
	audit     audit.Logger
	maxIter   int
}

// NewController creates a controller. maxIterations <= 0 selects the
// default of 5.
func NewController(corrector Corrector, eng ExecutionEngine, store artifact.Store, auditLog audit.Logger, maxIterations int) *Controller {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if auditLog == nil {
		auditLog = audit.Discard{}
	}
	return &Controller{
		corrector: corrector,
		engine:    eng,
		store:     store,
		audit:     auditLog,
		maxIter:   maxIterations,
	}
}

// SetMaxIterations adjusts the iteration ceiling. Values <= 0 leave the
// current ceiling untouched.
func (c *Controller) SetMaxIterations(n int) {
	if n > 0 {
		c.maxIter = n
	}
}

// MaxIterations reports the configured iteration ceiling.
func (c *Controller) MaxIterations() int { return c.maxIter }

// Input is the failing state remediation starts from.
type Input struct {
	// RunID identifies the workflow run for artifacts and audit.
	RunID string
	// Spec is the run's immutable specification.
	Spec *spec.Specification
	// ArtifactSQL is the current failing artifact.
	ArtifactSQL string
	// ArtifactRef is the stored reference of the failing artifact.
	ArtifactRef string
	// Report is the failing validation report that triggered remediation.
	Report *validation.Report
	// ExecutionError carries the engine error when execution itself
	// failed, so the corrector sees it alongside test failures.
	ExecutionError string
}

// Outcome is the terminal result of the loop.
type Outcome struct {
	// Succeeded is true when some iteration's report passed.
	Succeeded bool
	// IterationsUsed is how many iterations ran.
	IterationsUsed int
	// FinalReport is the last report produced (passing on success, the
	// final failing report on exhaustion).
	FinalReport *validation.Report
	// ArtifactSQL and ArtifactRef identify the last artifact tried.
	ArtifactSQL string
	ArtifactRef string
	// RootCauses is the chain of per-iteration diagnoses, kept for the
	// exhaustion diagnostic trail.
	RootCauses []string
}

// Remediate runs the bounded loop until a validation passes or the
// iteration ceiling is reached. Failures inside an iteration never abort
// the run early; only exhaustion terminates it.
func (c *Controller) Remediate(ctx context.Context, validate ValidateFunc, in Input) (*Outcome, error) {
	out := &Outcome{
		FinalReport: in.Report,
		ArtifactSQL: in.ArtifactSQL,
		ArtifactRef: in.ArtifactRef,
	}

	// Only the latest failure context feeds the next correction; history
	// beyond the root-cause chain is dropped.
	failureContext := c.failureContext(in.Report, in.ExecutionError)

	for iter := 1; iter <= c.maxIter; iter++ {
		out.IterationsUsed = iter
		c.transition(in.RunID, iter, StateAnalyzing)

		if err := ctx.Err(); err != nil {
			return out, err
		}

		newSQL, rootCause, err := c.corrector.Correct(ctx, in.Spec, out.ArtifactSQL, failureContext)
		if err != nil {
			rootCause = fmt.Sprintf("correction attempt failed: %v", err)
			out.RootCauses = append(out.RootCauses, rootCause)
			log.Printf("[remediation] run %s iteration %d: %s", in.RunID, iter, rootCause)
			if c.retryOrExhaust(in.RunID, iter) {
				continue
			}
			break
		}
		out.RootCauses = append(out.RootCauses, rootCause)

		c.transition(in.RunID, iter, StateCorrecting)
		ref, err := c.store.Put(ctx, in.RunID, iter, newSQL)
		if err != nil {
			// Artifact persistence is for audit; a store failure does
			// not stop the attempt.
			log.Printf("[remediation] run %s iteration %d: artifact store failed: %v", in.RunID, iter, err)
			ref = out.ArtifactRef
		}
		out.ArtifactSQL = newSQL
		out.ArtifactRef = ref

		c.transition(in.RunID, iter, StateExecuting)
		if err := c.engine.Clear(ctx, in.Spec.Target); err != nil {
			failureContext = fmt.Sprintf("clearing target %s failed: %v", in.Spec.Target, err)
			log.Printf("[remediation] run %s iteration %d: %s", in.RunID, iter, failureContext)
			if c.retryOrExhaust(in.RunID, iter) {
				continue
			}
			break
		}
		if res := c.engine.Run(ctx, out.ArtifactSQL, in.Spec.Target); !res.Success {
			failureContext = fmt.Sprintf("execution failed: %s", res.ErrorDetail)
			log.Printf("[remediation] run %s iteration %d: %s", in.RunID, iter, failureContext)
			if c.retryOrExhaust(in.RunID, iter) {
				continue
			}
			break
		}

		c.transition(in.RunID, iter, StateValidating)
		report, err := validate(ctx)
		if err != nil {
			failureContext = fmt.Sprintf("validation could not run: %v", err)
			log.Printf("[remediation] run %s iteration %d: %s", in.RunID, iter, failureContext)
			if c.retryOrExhaust(in.RunID, iter) {
				continue
			}
			break
		}
		out.FinalReport = report

		if report.FinalStatus == validation.StatusPass {
			c.transition(in.RunID, iter, StateSuccess)
			out.Succeeded = true
			c.audit.Append(in.RunID, audit.Event{
				Type:        audit.EventRemediationCompleted,
				Title:       "remediation succeeded",
				Description: fmt.Sprintf("validation passed after %d iteration(s)", iter),
				Metadata:    map[string]any{"iterations": iter},
			})
			return out, nil
		}

		failureContext = c.failureContext(report, "")
		if !c.retryOrExhaust(in.RunID, iter) {
			break
		}
	}

	if out.FinalReport == nil {
		// Every iteration died before validation ran. Exhausted runs
		// still carry a report, so synthesize an empty failing one; the
		// root-cause chain holds the diagnosis.
		out.FinalReport = &validation.Report{FinalStatus: validation.StatusFail}
	}
	c.audit.Append(in.RunID, audit.Event{
		Type:        audit.EventRemediationCompleted,
		Title:       "remediation exhausted",
		Description: fmt.Sprintf("no passing validation after %d iterations", c.maxIter),
		Metadata:    map[string]any{"iterations": out.IterationsUsed, "root_causes": out.RootCauses},
	})
	return out, nil
}

// retryOrExhaust reports whether another iteration may run, logging the
// corresponding transition.
func (c *Controller) retryOrExhaust(runID string, iter int) bool {
	if iter < c.maxIter {
		c.transition(runID, iter, StateRetrying)
		return true
	}
	c.transition(runID, iter, StateExhausted)
	return false
}

// transition logs a state change and mirrors it into the audit trail.
func (c *Controller) transition(runID string, iter int, state State) {
	log.Printf("[remediation] run %s iteration %d/%d: %s", runID, iter, c.maxIter, state)
	c.audit.Append(runID, audit.Event{
		Type:        audit.EventInfo,
		Title:       fmt.Sprintf("remediation %s", state),
		Description: fmt.Sprintf("iteration %d of %d", iter, c.maxIter),
	})
}

// failureContext merges the failing report and any execution error into
// the text handed to the corrector.
func (c *Controller) failureContext(report *validation.Report, execError string) string {
	ctx := ""
	if report != nil {
		ctx = report.FailureContext()
	}
	if execError != "" {
		if ctx != "" {
			ctx += "\n"
		}
		ctx += "execution error: " + execError
	}
	return ctx
}
