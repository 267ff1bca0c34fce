package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// extractJSON pulls the first JSON object or array out of a model response,
// stripping code fences and repairing minor syntax damage before decoding.
func extractJSON(response string, v any) error {
	raw := stripFences(response)

	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return fmt.Errorf("no JSON found in response")
	}
	raw = raw[start:]

	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return fmt.Errorf("repair JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// labeledField extracts a "LABEL: value" line from a structured response.
// Returns the empty string when the label is absent.
func labeledField(response, label string) string {
	prefix := label + ":"
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// labeledSection extracts everything after a "LABEL:" marker up to the next
// all-caps label line, for multi-line values such as SQL bodies.
func labeledSection(response, label string) string {
	lines := strings.Split(response, "\n")
	var out []string
	collecting := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, label+":"); ok {
			collecting = true
			if rest = strings.TrimSpace(rest); rest != "" {
				out = append(out, rest)
			}
			continue
		}
		if collecting {
			if isLabelLine(trimmed) {
				break
			}
			out = append(out, line)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// isLabelLine reports whether a line looks like a new "LABEL:" marker.
func isLabelLine(line string) bool {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return false
	}
	head := line[:idx]
	if len(head) > 24 {
		return false
	}
	for _, r := range head {
		if (r < 'A' || r > 'Z') && r != '_' && r != ' ' {
			return false
		}
	}
	return true
}
