package analyzer

import (
	"fmt"
	"time"

	"github.com/gzhole/rulebench/internal/rule"
)

// TimeoutError reports an analyzer run that did not finish in time. It is
// recoverable: the adapter retries once with a longer timeout and then
// excludes the unit from scoring.
type TimeoutError struct {
	Unit    string
	Pack    rule.Standard
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: analysis with %s pack timed out after %s", e.Unit, e.Pack, e.Timeout)
}

// Hint returns a remediation hint.
func (e *TimeoutError) Hint() string {
	return "raise --timeout/--retry-timeout or split the unit into smaller snippets"
}

// InvocationError reports a crashed analyzer, an unexpected exit status or
// unreadable output. A broken tool cannot be scored, so the run aborts.
type InvocationError struct {
	Unit     string
	Pack     rule.Standard
	ExitCode int
	Stderr   string
	Err      error
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("%s: analyzer failed for %s pack", e.Unit, e.Pack)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}
	return msg
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Hint returns a remediation hint.
func (e *InvocationError) Hint() string {
	if e.ExitCode != 0 {
		return "check the analyzer installation, RULEBENCH_ANALYZER_TOKEN and success_exit_codes in the config"
	}
	return "check RULEBENCH_ANALYZER / RULEBENCH_ANALYZER_ARGS and the configured output format"
}
