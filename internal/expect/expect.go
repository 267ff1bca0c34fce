// Package expect evaluates test expectations against live query results.
// Expectations arrive as free-form strings authored by the rule builder or
// the AI oracle; they are parsed exactly once into a closed set of matcher
// kinds and evaluated deterministically from then on.
package expect

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTolerance is the absolute tolerance applied when both the
// expectation and the actual value parse as numbers.
const DefaultTolerance = 0.01

// Kind identifies the matcher an expectation was parsed into.
type Kind int

const (
	// KindExact matches a literal value (bool or non-numeric literal).
	KindExact Kind = iota
	// KindGreaterThan matches numeric actuals strictly above a threshold.
	KindGreaterThan
	// KindLessThan matches numeric actuals strictly below a threshold.
	KindLessThan
	// KindNumericTolerance matches numbers within an absolute tolerance.
	KindNumericTolerance
	// KindContains matches substring containment in either direction,
	// after an exact-equality check.
	KindContains
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindGreaterThan:
		return "greater_than"
	case KindLessThan:
		return "less_than"
	case KindNumericTolerance:
		return "numeric_tolerance"
	case KindContains:
		return "contains"
	default:
		return "unknown"
	}
}

// Outcome is the result of evaluating an expectation.
type Outcome int

const (
	// Pass indicates the actual value satisfied the expectation.
	Pass Outcome = iota
	// Fail indicates the actual value did not satisfy the expectation.
	Fail
)

// Expectation is a parsed expectation, ready for repeated evaluation.
// Parsing happens once at construction; Evaluate never re-parses the raw
// string, so evaluating the same inputs always yields the same outcome.
type Expectation struct {
	// Kind selects the matcher.
	Kind Kind
	// Raw is the original expectation string, kept for reporting.
	Raw string
	// Value is the literal for exact and containment matches.
	Value string
	// Threshold is the numeric bound for comparator and tolerance matches.
	Threshold float64
	// Tolerance is the absolute tolerance for numeric matches.
	Tolerance float64
}

// Parse converts a raw expectation string into an Expectation using the
// default numeric tolerance.
func Parse(raw string) Expectation {
	return ParseWithTolerance(raw, DefaultTolerance)
}

// ParseWithTolerance converts a raw expectation string into an Expectation.
// Matcher selection, in order: comparator phrases ("greater than X",
// "less than X"), numeric literals, boolean literals, then plain strings
// (exact-or-containment).
func ParseWithTolerance(raw string, tolerance float64) Expectation {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)

	if rest, ok := strings.CutPrefix(lower, "greater than "); ok {
		if n, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
			return Expectation{Kind: KindGreaterThan, Raw: raw, Threshold: n, Tolerance: tolerance}
		}
	}
	if rest, ok := strings.CutPrefix(lower, "less than "); ok {
		if n, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
			return Expectation{Kind: KindLessThan, Raw: raw, Threshold: n, Tolerance: tolerance}
		}
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Expectation{Kind: KindNumericTolerance, Raw: raw, Threshold: n, Tolerance: tolerance}
	}
	if lower == "true" || lower == "false" {
		return Expectation{Kind: KindExact, Raw: raw, Value: lower, Tolerance: tolerance}
	}
	return Expectation{Kind: KindContains, Raw: raw, Value: trimmed, Tolerance: tolerance}
}

// Evaluate compares an actual value against the expectation.
// It is pure: no state, no side effects, identical inputs always produce
// identical outcomes.
func (e Expectation) Evaluate(actual any) (Outcome, string) {
	actualStr := Stringify(actual)

	switch e.Kind {
	case KindGreaterThan:
		n, ok := toFloat(actual)
		if !ok {
			return Fail, fmt.Sprintf("expected numeric value greater than %v, got non-numeric %q", e.Threshold, actualStr)
		}
		if n > e.Threshold {
			return Pass, ""
		}
		return Fail, fmt.Sprintf("expected greater than %v, got %v", e.Threshold, n)

	case KindLessThan:
		n, ok := toFloat(actual)
		if !ok {
			return Fail, fmt.Sprintf("expected numeric value less than %v, got non-numeric %q", e.Threshold, actualStr)
		}
		if n < e.Threshold {
			return Pass, ""
		}
		return Fail, fmt.Sprintf("expected less than %v, got %v", e.Threshold, n)

	case KindNumericTolerance:
		if n, ok := toFloat(actual); ok {
			diff := n - e.Threshold
			if diff < 0 {
				diff = -diff
			}
			if diff < e.Tolerance {
				return Pass, ""
			}
			return Fail, fmt.Sprintf("expected %v (±%v), got %v", e.Threshold, e.Tolerance, n)
		}
		// Non-numeric actual falls back to string comparison against the
		// raw expectation, then substring containment.
		if strings.TrimSpace(actualStr) == strings.TrimSpace(e.Raw) {
			return Pass, ""
		}
		if containsEither(e.Raw, actualStr) {
			return Pass, ""
		}
		return Fail, fmt.Sprintf("expected %q, got %q", e.Raw, actualStr)

	case KindExact:
		if strings.EqualFold(strings.TrimSpace(actualStr), e.Value) {
			return Pass, ""
		}
		return Fail, fmt.Sprintf("expected %q, got %q", e.Value, actualStr)

	case KindContains:
		if strings.TrimSpace(actualStr) == e.Value {
			return Pass, ""
		}
		if containsEither(e.Value, actualStr) {
			return Pass, ""
		}
		return Fail, fmt.Sprintf("expected %q, got %q", e.Value, actualStr)

	default:
		return Fail, fmt.Sprintf("unknown expectation kind %d", e.Kind)
	}
}

// containsEither reports substring containment in either direction,
// ignoring surrounding whitespace. Empty strings never match.
func containsEither(expected, actual string) bool {
	a := strings.TrimSpace(expected)
	b := strings.TrimSpace(actual)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(b, a) || strings.Contains(a, b)
}

// Stringify renders an actual value for comparison and reporting.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// toFloat attempts to interpret an actual value as a float64.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return n, err == nil
	default:
		return 0, false
	}
}
