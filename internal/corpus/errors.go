package corpus

import (
	"fmt"
	"sort"
)

// Remediation hints attached to FormatError.
const (
	HintCodeFormat = "annotation regex did not match — check rule-code format"
	HintPlacement  = "place the marker comment on its own line directly above the violating statement"
	HintDuplicate  = "remove the repeated annotation; each rule may be declared once per line"
	HintComment    = "close marker comments on the line they open or move rule names out of the comment"
)

// FormatError is a malformed, misplaced or duplicate annotation. Any
// FormatError invalidates the ground truth and aborts the run.
type FormatError struct {
	Unit string
	Line int
	Msg  string
	hint string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Unit, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Unit, e.Msg)
}

// Hint returns a remediation hint for the author of the corpus.
func (e *FormatError) Hint() string {
	return e.hint
}

func formatErrorf(unit string, line int, hint, format string, args ...interface{}) *FormatError {
	return &FormatError{
		Unit: unit,
		Line: line,
		Msg:  fmt.Sprintf(format, args...),
		hint: hint,
	}
}

func sortFormatErrors(errs []*FormatError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Unit != errs[j].Unit {
			return errs[i].Unit < errs[j].Unit
		}
		return errs[i].Line < errs[j].Line
	})
}
