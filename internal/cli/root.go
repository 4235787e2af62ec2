package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gzhole/rulebench/internal/config"
	"github.com/gzhole/rulebench/internal/logging"
	"github.com/gzhole/rulebench/internal/report"
)

var (
	configPath string
	logPath    string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "rulebench",
	Short: "rulebench - coverage harness for static analyzers",
	Long: `rulebench measures how completely a static analyzer detects the coding
standard violations declared in an annotated C/C++ test corpus. Every
"// CERT C EXP33-C" style marker is an expected violation; the analyzer's
diagnostics are reconciled against them and reported per rule.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitLogger(debug)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML file (default: ./rulebench.yaml when present, or $RULEBENCH_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to the JSONL analyzer invocation log")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging on stderr")
}

// exitError carries a process exit code. With a nil err the command has
// already reported its outcome and nothing more is printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// hintError attaches a remediation hint to an error raised by the CLI
// itself.
type hintError struct {
	err  error
	hint string
}

func (e *hintError) Error() string { return e.err.Error() }
func (e *hintError) Unwrap() error { return e.err }
func (e *hintError) Hint() string  { return e.hint }

type hinter interface {
	Hint() string
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	defer logging.Sync()
	return exitCode(rootCmd.Execute(), rootCmd.ErrOrStderr())
}

// exitCode prints err with its hints and maps it to an exit code. Errors
// without an explicit code are harness errors.
func exitCode(err error, w io.Writer) int {
	if err == nil {
		return report.ExitPass
	}
	code := report.ExitInternal
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
		if ee.err == nil {
			return code
		}
	}
	fmt.Fprintf(w, "error: %v\n", err)
	for _, h := range hints(err) {
		fmt.Fprintf(w, "hint: %s\n", h)
	}
	return code
}

// hints collects the distinct hints in err's tree, depth first.
func hints(err error) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if h, ok := e.(hinter); ok && h.Hint() != "" && !seen[h.Hint()] {
			seen[h.Hint()] = true
			out = append(out, h.Hint())
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

// loadConfig loads the layered config and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, &hintError{
			err:  fmt.Errorf("failed to load config: %w", err),
			hint: "fix the YAML file or point --config at a valid one",
		}
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	return cfg, nil
}
