package analyzer

import "strings"

// Severity is a normalized diagnostic severity.
type Severity string

const (
	SeverityUnknown  Severity = "unknown"
	SeverityNote     Severity = "note"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns an integer rank for comparison (unknown=0, critical=5).
func (s Severity) Rank() int {
	switch s {
	case SeverityNote:
		return 1
	case SeverityLow:
		return 2
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 4
	case SeverityCritical:
		return 5
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity maps the spellings used by analyzers (SARIF levels,
// clang-tidy, cppcheck, CodeQL problem.severity) onto Severity. Anything
// unrecognized, including the empty string, is SeverityUnknown.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "note", "info", "information", "informational", "recommendation", "style":
		return SeverityNote
	case "low", "minor", "portability", "performance":
		return SeverityLow
	case "medium", "moderate", "warning", "major":
		return SeverityMedium
	case "high", "error", "serious":
		return SeverityHigh
	case "critical", "fatal", "blocker":
		return SeverityCritical
	default:
		return SeverityUnknown
	}
}

// maxSeverity returns the higher-ranked of a and b, preferring a on ties.
func maxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
