package recorder

import (
	"unicode/utf8"

	"skuldbot/compliance/pkg/evidence"
	"skuldbot/compliance/pkg/policy/engine"
	"skuldbot/compliance/pkg/telemetry/logging"
)

// redactSection returns a copy of section whose violation messages have
// been passed through the redactor and truncated to maxLen. The input is
// left untouched since it shares slices with the evaluation result.
func redactSection(section *evidence.ComplianceSection, r *logging.Redactor, maxLen int) *evidence.ComplianceSection {
	out := *section
	out.Violations = redactViolations(section.Violations, r, maxLen)
	out.Warnings = redactViolations(section.Warnings, r, maxLen)
	return &out
}

func redactViolations(in []engine.Violation, r *logging.Redactor, maxLen int) []engine.Violation {
	out := make([]engine.Violation, len(in))
	for i, v := range in {
		v.Message = TruncateString(r.RedactString(v.Message), maxLen)
		out[i] = v
	}
	return out
}

// TruncateString truncates s to at most maxLen bytes, ending in "..." when
// cut. The cut never splits a rune. A non-positive maxLen disables
// truncation.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:runeBoundary(s, maxLen)]
	}
	return s[:runeBoundary(s, maxLen-3)] + "..."
}

// runeBoundary returns the largest rune start in s at or before n.
func runeBoundary(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
