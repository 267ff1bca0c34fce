package remediation

import (
	"context"
	"fmt"
	"testing"

	"github.com/datamorph-ai/datamorph/internal/engine"
	"github.com/datamorph-ai/datamorph/internal/spec"
	"github.com/datamorph-ai/datamorph/internal/validation"
)

type fakeCorrector struct {
	calls    int
	err      error
	contexts []string
}

func (f *fakeCorrector) Correct(_ context.Context, _ *spec.Specification, _, failureContext string) (string, string, error) {
	f.calls++
	f.contexts = append(f.contexts, failureContext)
	if f.err != nil {
		return "", "", f.err
	}
	return fmt.Sprintf("-- attempt %d\nSELECT 1", f.calls), fmt.Sprintf("cause %d", f.calls), nil
}

type fakeEngine struct {
	clearErr  error
	runFails  int
	clearCnt  int
	runCnt    int
}

func (f *fakeEngine) Clear(_ context.Context, _ string) error {
	f.clearCnt++
	return f.clearErr
}

func (f *fakeEngine) Run(_ context.Context, _, _ string) engine.Result {
	f.runCnt++
	if f.runCnt <= f.runFails {
		return engine.Result{Success: false, ErrorDetail: "syntax error near SELECT"}
	}
	return engine.Result{Success: true}
}

type fakeStore struct {
	puts int
	err  error
}

func (f *fakeStore) Put(_ context.Context, runID string, iteration int, _ string) (string, error) {
	f.puts++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("mem://%s/%d", runID, iteration), nil
}

func (f *fakeStore) Get(_ context.Context, ref string) (string, error) {
	return "", fmt.Errorf("not found: %s", ref)
}

func failingReport() *validation.Report {
	return &validation.Report{
		Tests: []validation.TestCase{{
			ID:       "rule_001",
			Origin:   validation.OriginRule,
			Outcome:  validation.OutcomeFail,
			Reason:   "expected greater than 0, got 0",
			Query:    "SELECT count(*) FROM t",
		}},
		RuleTotal:   1,
		AIPassRate:  1.0,
		FinalStatus: validation.StatusFail,
	}
}

func passingReport() *validation.Report {
	return &validation.Report{
		Tests: []validation.TestCase{{
			ID:      "rule_001",
			Origin:  validation.OriginRule,
			Outcome: validation.OutcomePass,
		}},
		RulePassCount: 1,
		RuleTotal:     1,
		AIPassRate:    1.0,
		FinalStatus:   validation.StatusPass,
	}
}

func testInput() Input {
	return Input{
		RunID:       "20260830_120000_ab12cd34",
		Spec:        &spec.Specification{Name: "t", Target: "customer_totals", Sources: []spec.Source{{Table: "customers"}}},
		ArtifactSQL: "SELECT 0",
		ArtifactRef: "mem://initial",
		Report:      failingReport(),
	}
}

// validatorSequence returns reports in order, repeating the last one.
func validatorSequence(reports ...*validation.Report) ValidateFunc {
	i := 0
	return func(context.Context) (*validation.Report, error) {
		r := reports[i]
		if i < len(reports)-1 {
			i++
		}
		return r, nil
	}
}

func TestRemediateSucceedsMidway(t *testing.T) {
	corr := &fakeCorrector{}
	eng := &fakeEngine{}
	ctrl := NewController(corr, eng, &fakeStore{}, nil, 5)

	validate := validatorSequence(failingReport(), failingReport(), passingReport())
	out, err := ctrl.Remediate(context.Background(), validate, testInput())
	if err != nil {
		t.Fatalf("Remediate: %v", err)
	}
	if !out.Succeeded {
		t.Fatal("expected success")
	}
	if out.IterationsUsed != 3 {
		t.Errorf("IterationsUsed = %d, want 3", out.IterationsUsed)
	}
	if out.FinalReport.FinalStatus != validation.StatusPass {
		t.Errorf("FinalStatus = %s, want pass", out.FinalReport.FinalStatus)
	}
	if len(out.RootCauses) != 3 {
		t.Errorf("got %d root causes, want 3", len(out.RootCauses))
	}
	if corr.calls != 3 {
		t.Errorf("corrector called %d times, want 3", corr.calls)
	}
}

func TestRemediateExhaustsAfterExactlyMaxIterations(t *testing.T) {
	corr := &fakeCorrector{}
	eng := &fakeEngine{}
	ctrl := NewController(corr, eng, &fakeStore{}, nil, 5)

	out, err := ctrl.Remediate(context.Background(), validatorSequence(failingReport()), testInput())
	if err != nil {
		t.Fatalf("Remediate: %v", err)
	}
	if out.Succeeded {
		t.Fatal("expected exhaustion")
	}
	if out.IterationsUsed != 5 {
		t.Errorf("IterationsUsed = %d, want 5", out.IterationsUsed)
	}
	if corr.calls != 5 {
		t.Errorf("corrector called %d times, want exactly 5", corr.calls)
	}
	if len(out.RootCauses) != 5 {
		t.Errorf("got %d root causes, want 5", len(out.RootCauses))
	}
	if out.FinalReport.FinalStatus != validation.StatusFail {
		t.Errorf("final report should be the last failing report")
	}
}

func TestRemediateCorrectorErrorConsumesIteration(t *testing.T) {
	corr := &fakeCorrector{err: fmt.Errorf("model unavailable")}
	eng := &fakeEngine{}
	ctrl := NewController(corr, eng, &fakeStore{}, nil, 3)

	out, err := ctrl.Remediate(context.Background(), validatorSequence(failingReport()), testInput())
	if err != nil {
		t.Fatalf("Remediate: %v", err)
	}
	if out.Succeeded {
		t.Fatal("expected exhaustion")
	}
	if out.IterationsUsed != 3 {
		t.Errorf("IterationsUsed = %d, want 3", out.IterationsUsed)
	}
	// No artifact was ever produced, so execution never ran.
	if eng.runCnt != 0 {
		t.Errorf("engine ran %d times, want 0", eng.runCnt)
	}
	for i, rc := range out.RootCauses {
		if rc != "correction attempt failed: model unavailable" {
			t.Errorf("root cause %d = %q", i, rc)
		}
	}
}

func TestRemediateExecutionFailureFeedsNextCorrection(t *testing.T) {
	corr := &fakeCorrector{}
	eng := &fakeEngine{runFails: 1}
	ctrl := NewController(corr, eng, &fakeStore{}, nil, 5)

	out, err := ctrl.Remediate(context.Background(), validatorSequence(passingReport()), testInput())
	if err != nil {
		t.Fatalf("Remediate: %v", err)
	}
	if !out.Succeeded {
		t.Fatal("expected success on second iteration")
	}
	if out.IterationsUsed != 2 {
		t.Errorf("IterationsUsed = %d, want 2", out.IterationsUsed)
	}
	if len(corr.contexts) != 2 {
		t.Fatalf("corrector saw %d contexts, want 2", len(corr.contexts))
	}
	if want := "execution failed: syntax error near SELECT"; corr.contexts[1] != want {
		t.Errorf("second failure context = %q, want %q", corr.contexts[1], want)
	}
}

func TestRemediateClearsBeforeEveryRun(t *testing.T) {
	corr := &fakeCorrector{}
	eng := &fakeEngine{}
	ctrl := NewController(corr, eng, &fakeStore{}, nil, 5)

	out, err := ctrl.Remediate(context.Background(), validatorSequence(failingReport(), passingReport()), testInput())
	if err != nil {
		t.Fatalf("Remediate: %v", err)
	}
	if !out.Succeeded {
		t.Fatal("expected success")
	}
	if eng.clearCnt != eng.runCnt {
		t.Errorf("clear count %d != run count %d", eng.clearCnt, eng.runCnt)
	}
}

func TestRemediateStoreFailureDoesNotAbort(t *testing.T) {
	corr := &fakeCorrector{}
	eng := &fakeEngine{}
	ctrl := NewController(corr, eng, &fakeStore{err: fmt.Errorf("bucket gone")}, nil, 5)

	out, err := ctrl.Remediate(context.Background(), validatorSequence(passingReport()), testInput())
	if err != nil {
		t.Fatalf("Remediate: %v", err)
	}
	if !out.Succeeded {
		t.Fatal("expected success despite store failure")
	}
	if out.ArtifactRef != "mem://initial" {
		t.Errorf("ArtifactRef = %q, want prior ref kept", out.ArtifactRef)
	}
}

// A run whose initial execution failed starts remediation with no report.
// When every iteration also dies before validation, exhaustion must still
// hand back a failing report rather than nil.
func TestRemediateExhaustionWithoutValidationCarriesReport(t *testing.T) {
	corr := &fakeCorrector{}
	eng := &fakeEngine{runFails: 1 << 20}
	ctrl := NewController(corr, eng, &fakeStore{}, nil, 3)

	in := testInput()
	in.Report = nil
	in.ExecutionError = "relation \"customers\" does not exist"

	out, err := ctrl.Remediate(context.Background(), validatorSequence(passingReport()), in)
	if err != nil {
		t.Fatalf("Remediate: %v", err)
	}
	if out.Succeeded {
		t.Fatal("expected exhaustion")
	}
	if out.FinalReport == nil {
		t.Fatal("exhausted outcome must carry a report")
	}
	if out.FinalReport.FinalStatus != validation.StatusFail {
		t.Errorf("FinalStatus = %s, want fail", out.FinalReport.FinalStatus)
	}
	if len(out.RootCauses) != 3 {
		t.Errorf("got %d root causes, want 3", len(out.RootCauses))
	}
}

func TestNewControllerDefaultsIterations(t *testing.T) {
	ctrl := NewController(&fakeCorrector{}, &fakeEngine{}, &fakeStore{}, nil, 0)
	if ctrl.maxIter != DefaultMaxIterations {
		t.Errorf("maxIter = %d, want %d", ctrl.maxIter, DefaultMaxIterations)
	}
}

func TestSetMaxIterations(t *testing.T) {
	ctrl := NewController(&fakeCorrector{}, &fakeEngine{}, &fakeStore{}, nil, 5)
	ctrl.SetMaxIterations(2)
	if got := ctrl.MaxIterations(); got != 2 {
		t.Errorf("MaxIterations = %d, want 2", got)
	}
	ctrl.SetMaxIterations(0)
	if got := ctrl.MaxIterations(); got != 2 {
		t.Errorf("MaxIterations after zero = %d, want 2 unchanged", got)
	}
}
