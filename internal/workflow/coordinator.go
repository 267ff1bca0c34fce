// Package workflow wires the full run together: translate a natural
// language prompt into a specification, generate and execute the SQL
// artifact, validate the output, and remediate failures until the run
// terminates in success or exhaustion. Those are the only two terminal
// states; a run never ends mid-loop.
//
// The test suite is built once per run. Remediation iterations re-execute
// the same tests against the rebuilt output instead of asking the oracle
// for a fresh batch, so results stay comparable across iterations.
package workflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datamorph-ai/datamorph/internal/artifact"
	"github.com/datamorph-ai/datamorph/internal/audit"
	"github.com/datamorph-ai/datamorph/internal/remediation"
	"github.com/datamorph-ai/datamorph/internal/spec"
	"github.com/datamorph-ai/datamorph/internal/validation"
)

// Status is a terminal run state.
type Status string

const (
	// StatusSuccess means validation passed, possibly after remediation.
	StatusSuccess Status = "success"
	// StatusExhausted means the remediation budget ran out with no
	// passing validation.
	StatusExhausted Status = "exhausted"
)

// Translator turns a prompt into a specification.
type Translator interface {
	Translate(ctx context.Context, prompt string, meta *spec.Metadata) (*spec.Specification, error)
}

// Generator produces the initial SQL artifact for a specification.
type Generator interface {
	Generate(ctx context.Context, sp *spec.Specification, meta *spec.Metadata) (string, error)
}

// Introspector discovers tables and reads their metadata.
type Introspector interface {
	ListTables(ctx context.Context) ([]string, error)
	Introspect(ctx context.Context, tables []string) (*spec.Metadata, error)
}

// SpecificationError marks a failure to produce a usable specification.
// It is fatal: without a specification there is nothing to remediate.
type SpecificationError struct {
	Prompt string
	Err    error
}

func (e *SpecificationError) Error() string {
	return fmt.Sprintf("specification could not be derived from prompt: %v", e.Err)
}

func (e *SpecificationError) Unwrap() error { return e.Err }

// Config holds the coordinator's tunables.
type Config struct {
	// MaxIterations bounds the remediation loop.
	MaxIterations int
	// AIPassThreshold is the minimum AI-test pass rate, inclusive.
	AIPassThreshold float64
	// Suite configures test generation.
	Suite validation.SuiteConfig
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() Config {
	return Config{
		MaxIterations:   remediation.DefaultMaxIterations,
		AIPassThreshold: validation.DefaultAIPassThreshold,
		Suite:           validation.DefaultSuiteConfig(),
	}
}

// Result is the terminal outcome of a run.
type Result struct {
	RunID          string               `json:"run_id"`
	Status         Status               `json:"status"`
	Spec           *spec.Specification  `json:"spec"`
	ArtifactSQL    string               `json:"artifact_sql"`
	ArtifactRef    string               `json:"artifact_ref"`
	IterationsUsed int                  `json:"iterations_used"`
	FinalReport    *validation.Report   `json:"final_report"`
	RootCauses     []string             `json:"root_causes,omitempty"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     time.Time            `json:"finished_at"`
}

// Coordinator owns one run at a time from prompt to terminal state.
type Coordinator struct {
	translator Translator
	generator  Generator
	intro      Introspector
	engine     remediation.ExecutionEngine
	queries    validation.QueryService
	oracle     validation.TestOracle
	store      artifact.Store
	remediator *remediation.Controller
	audit      audit.Logger
	cfg        Config
}

// NewCoordinator wires the collaborators together. oracle may be nil,
// which degrades validation to rule tests only.
func NewCoordinator(
	translator Translator,
	generator Generator,
	intro Introspector,
	eng remediation.ExecutionEngine,
	queries validation.QueryService,
	oracle validation.TestOracle,
	store artifact.Store,
	remediator *remediation.Controller,
	auditLog audit.Logger,
	cfg Config,
) *Coordinator {
	if auditLog == nil {
		auditLog = audit.Discard{}
	}
	if remediator != nil {
		// The coordinator's config is authoritative for the loop bound.
		remediator.SetMaxIterations(cfg.MaxIterations)
	}
	return &Coordinator{
		translator: translator,
		generator:  generator,
		intro:      intro,
		engine:     eng,
		queries:    queries,
		oracle:     oracle,
		store:      store,
		remediator: remediator,
		audit:      auditLog,
		cfg:        cfg,
	}
}

// NewRunID returns a sortable run identifier, timestamp plus a short
// random suffix.
func NewRunID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102_150405"), suffix)
}

// Run executes a full workflow for the prompt. A returned error means the
// run could not reach a terminal state (bad prompt, unavailable database);
// validation failures alone never surface as errors, they drive
// remediation instead.
func (c *Coordinator) Run(ctx context.Context, runID, prompt string) (*Result, error) {
	if runID == "" {
		runID = NewRunID()
	}
	res := &Result{RunID: runID, StartedAt: time.Now().UTC()}
	log.Printf("[workflow] run %s started", runID)
	c.audit.Append(runID, audit.Event{
		Type:        audit.EventStart,
		Title:       "run started",
		Description: prompt,
	})

	tables, err := c.intro.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover source tables: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no source tables found in database")
	}
	meta, err := c.intro.Introspect(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("introspect sources: %w", err)
	}

	sp, err := c.translator.Translate(ctx, prompt, meta)
	if err != nil {
		c.auditError(runID, "translation failed", err)
		return nil, &SpecificationError{Prompt: prompt, Err: err}
	}
	if err := sp.Validate(); err != nil {
		c.auditError(runID, "specification invalid", err)
		return nil, &SpecificationError{Prompt: prompt, Err: err}
	}

	return c.execute(ctx, res, sp, meta)
}

// RunWithSpec executes a workflow from an already-built specification,
// skipping translation. Only the spec's source tables are introspected.
func (c *Coordinator) RunWithSpec(ctx context.Context, runID string, sp *spec.Specification) (*Result, error) {
	if err := sp.Validate(); err != nil {
		return nil, &SpecificationError{Err: err}
	}
	if runID == "" {
		runID = NewRunID()
	}
	res := &Result{RunID: runID, StartedAt: time.Now().UTC()}
	log.Printf("[workflow] run %s started from specification %q", runID, sp.Name)
	c.audit.Append(runID, audit.Event{
		Type:        audit.EventStart,
		Title:       "run started",
		Description: "specification supplied directly",
	})

	tables := make([]string, 0, len(sp.Sources))
	for _, src := range sp.Sources {
		tables = append(tables, src.Table)
	}
	meta, err := c.intro.Introspect(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("introspect sources: %w", err)
	}

	return c.execute(ctx, res, sp, meta)
}

// execute drives a run from a validated specification to its terminal
// state.
func (c *Coordinator) execute(ctx context.Context, res *Result, sp *spec.Specification, meta *spec.Metadata) (*Result, error) {
	runID := res.RunID
	res.Spec = sp
	c.audit.Append(runID, audit.Event{
		Type:        audit.EventSpecGenerated,
		Title:       "specification generated",
		Description: sp.Name,
		Metadata:    map[string]any{"target": sp.Target, "sources": len(sp.Sources)},
	})

	artifactSQL, err := c.generator.Generate(ctx, sp, meta)
	if err != nil {
		c.auditError(runID, "code generation failed", err)
		return nil, fmt.Errorf("generate artifact: %w", err)
	}
	ref, err := c.store.Put(ctx, runID, 0, artifactSQL)
	if err != nil {
		log.Printf("[workflow] run %s: artifact store failed: %v", runID, err)
	}
	res.ArtifactSQL = artifactSQL
	res.ArtifactRef = ref
	c.audit.Append(runID, audit.Event{
		Type:     audit.EventCodeGenerated,
		Title:    "artifact generated",
		Metadata: map[string]any{"artifact_ref": ref},
	})

	// The suite is built once per run; re-validation inside remediation
	// re-executes the same tests against the rebuilt output.
	builder := validation.NewSuiteBuilder(c.oracle, c.cfg.Suite)
	suite := builder.Build(ctx, sp, meta)
	c.audit.Append(runID, audit.Event{
		Type:     audit.EventTestsGenerated,
		Title:    "test suite built",
		Metadata: map[string]any{"tests": len(suite)},
	})

	executor := validation.NewExecutor(c.queries)
	arbiter := validation.NewArbiter(c.oracle)
	validate := func(ctx context.Context) (*validation.Report, error) {
		executed := executor.ExecuteAll(ctx, suite)
		reviewed := arbiter.Review(ctx, executed, sp)
		report := validation.BuildReport(reviewed, c.cfg.AIPassThreshold)
		c.audit.Append(runID, audit.Event{
			Type:        audit.EventValidationCompleted,
			Title:       "validation completed",
			Description: report.Summary(),
		})
		return report, nil
	}

	// First execution. A failure here is data for remediation, not a
	// run-level error.
	execError := ""
	var report *validation.Report
	if err := c.engine.Clear(ctx, sp.Target); err != nil {
		return nil, fmt.Errorf("clear target %s: %w", sp.Target, err)
	}
	if exec := c.engine.Run(ctx, artifactSQL, sp.Target); !exec.Success {
		execError = exec.ErrorDetail
		log.Printf("[workflow] run %s: initial execution failed: %s", runID, execError)
	} else {
		c.audit.Append(runID, audit.Event{
			Type:  audit.EventExecutionCompleted,
			Title: "artifact executed",
		})
		report, err = validate(ctx)
		if err != nil {
			return nil, fmt.Errorf("validate output: %w", err)
		}
	}

	if report != nil && report.FinalStatus == validation.StatusPass {
		res.Status = StatusSuccess
		res.FinalReport = report
		res.FinishedAt = time.Now().UTC()
		c.auditTerminal(res)
		return res, nil
	}

	c.audit.Append(runID, audit.Event{
		Type:  audit.EventRemediationStarted,
		Title: "remediation started",
	})
	outcome, err := c.remediator.Remediate(ctx, validate, remediation.Input{
		RunID:          runID,
		Spec:           sp,
		ArtifactSQL:    artifactSQL,
		ArtifactRef:    ref,
		Report:         report,
		ExecutionError: execError,
	})
	if err != nil {
		return nil, fmt.Errorf("remediate run %s: %w", runID, err)
	}

	res.Status = StatusExhausted
	if outcome.Succeeded {
		res.Status = StatusSuccess
	}
	res.IterationsUsed = outcome.IterationsUsed
	res.FinalReport = outcome.FinalReport
	res.ArtifactSQL = outcome.ArtifactSQL
	res.ArtifactRef = outcome.ArtifactRef
	res.RootCauses = outcome.RootCauses
	res.FinishedAt = time.Now().UTC()
	c.auditTerminal(res)
	return res, nil
}

func (c *Coordinator) auditError(runID, title string, err error) {
	c.audit.Append(runID, audit.Event{
		Type:        audit.EventError,
		Title:       title,
		Description: err.Error(),
	})
}

func (c *Coordinator) auditTerminal(res *Result) {
	log.Printf("[workflow] run %s finished: %s after %d remediation iteration(s)",
		res.RunID, res.Status, res.IterationsUsed)
	evType := audit.EventSuccess
	if res.Status == StatusExhausted {
		evType = audit.EventError
	}
	c.audit.Append(res.RunID, audit.Event{
		Type:        evType,
		Title:       fmt.Sprintf("run %s", res.Status),
		Description: fmt.Sprintf("%d remediation iteration(s) used", res.IterationsUsed),
		Metadata:    map[string]any{"status": string(res.Status), "iterations_used": res.IterationsUsed},
	})
}
