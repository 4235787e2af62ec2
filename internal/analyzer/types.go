package analyzer

import (
	"context"

	"github.com/gzhole/rulebench/internal/rule"
)

// Analyzer is the seam to an external static-analysis tool. An
// implementation analyzes one unit with the rule pack of one standard and
// returns the tool's diagnostics; it knows nothing about expected
// violations or scoring.
type Analyzer interface {
	// Name returns the analyzer's identifier (e.g., "process", "replay").
	Name() string

	// Analyze runs the pack for std against target. Warnings describe
	// diagnostics the tool emitted but that could not be used.
	Analyze(ctx context.Context, target Target, std rule.Standard) ([]Diagnostic, []string, error)
}

// Target identifies one corpus unit to analyze.
type Target struct {
	Unit string // corpus-relative, slash-separated
	Path string // absolute or working-directory relative path on disk
	Root string // corpus root
	// Dir is the directory the analyzer runs in. Relative diagnostic paths
	// that do not exist under Root resolve against it. The Adapter sets it.
	Dir string
}

// Diagnostic is one tool diagnostic after parsing but before rule mapping.
// Optional fields keep their documented defaults when absent: empty
// Message and SeverityUnknown.
type Diagnostic struct {
	Path     string
	Line     int
	Check    string
	Tags     []string
	Message  string
	Severity Severity
}

// Finding is a diagnostic attributed to a unit and mapped to a rule.
// Rule is the zero ID when the check could not be mapped. Seq is the
// emission position within the unit's unioned diagnostic stream and is the
// reconciler's final tie-breaker.
type Finding struct {
	Unit     string        `json:"unit" yaml:"unit"`
	Line     int           `json:"line" yaml:"line"`
	Rule     rule.ID       `json:"rule" yaml:"rule"`
	Check    string        `json:"check" yaml:"check"`
	Message  string        `json:"message,omitempty" yaml:"message,omitempty"`
	Severity Severity      `json:"severity" yaml:"severity"`
	Pack     rule.Standard `json:"pack" yaml:"pack"`
	Seq      int           `json:"seq" yaml:"seq"`
}

// Mapped reports whether the finding carries a known rule.
func (f Finding) Mapped() bool {
	return !f.Rule.IsZero()
}
