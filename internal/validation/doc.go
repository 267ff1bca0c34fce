// Package validation builds and runs the hybrid test suite that decides
// whether a transformation's output is correct.
//
// The suite has two independent halves:
//
//  1. Rule tests, derived deterministically from the Specification and the
//     introspected schema metadata. Their expectations are computed, never
//     guessed, and a rule failure is always treated as a genuine defect.
//
//  2. AI tests, authored by the TestOracle collaborator from the spec and
//     bounded data samples. They are probabilistic signals: failures are
//     individually arbitrated for false positives, and the batch only gates
//     the final verdict through an aggregate pass-rate threshold.
//
// The flow for one validation attempt is SuiteBuilder.Build →
// Executor.ExecuteAll → Arbiter.Review → BuildReport. The resulting Report
// is immutable; remediation re-runs the whole flow against fresh output
// rather than patching a prior report.
package validation
