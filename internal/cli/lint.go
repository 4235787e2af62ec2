package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gzhole/rulebench/internal/charscan"
	"github.com/gzhole/rulebench/internal/corpus"
	"github.com/gzhole/rulebench/internal/logging"
	"github.com/gzhole/rulebench/internal/report"
	"github.com/gzhole/rulebench/internal/rule"
)

var (
	lintCorpus   string
	lintStandard string
	lintFormat   string
	lintStrict   bool
)

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate corpus annotations without running the analyzer",
	Long: `Parse every corpus unit, report malformed or misplaced annotations and
print the inventory of expected violations per standard. With --standard
the individual violations of that standard are listed as well.

Units are also checked for bidirectional controls, invisible characters
and look-alike letters, which can make an annotation read differently
from what the parser sees. With --strict such errors fail the lint.

  rulebench lint --corpus tests/
  rulebench lint --corpus tests/ --standard MISRA-C`,
	Args: cobra.NoArgs,
	RunE: lintCommand,
}

func init() {
	lintCmd.Flags().StringVar(&lintCorpus, "corpus", "", "Corpus root directory (default: config corpus or .)")
	lintCmd.Flags().StringVar(&lintStandard, "standard", "", "List the expected violations of this standard")
	lintCmd.Flags().StringVar(&lintFormat, "format", "text", "Output format: text, json or yaml")
	lintCmd.Flags().BoolVar(&lintStrict, "strict", false, "Fail when a unit contains bidirectional or invisible characters")
	rootCmd.AddCommand(lintCmd)
}

// lintResult is the machine-readable lint output.
type lintResult struct {
	Corpus     string                     `json:"corpus" yaml:"corpus"`
	Units      int                        `json:"units" yaml:"units"`
	Standards  []corpus.StandardSummary   `json:"standards" yaml:"standards"`
	Violations []corpus.ExpectedViolation `json:"violations,omitempty" yaml:"violations,omitempty"`
	Hazards    []charscan.Hazard          `json:"hazards,omitempty" yaml:"hazards,omitempty"`
}

func lintCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("corpus") {
		cfg.Corpus = lintCorpus
	}
	var std rule.Standard
	if lintStandard != "" {
		if std, err = rule.ParseStandard(lintStandard); err != nil {
			return err
		}
	}

	root, err := filepath.Abs(cfg.Corpus)
	if err != nil {
		return err
	}
	paths, err := corpus.Discover(root, cfg.Extensions)
	if err != nil {
		return fmt.Errorf("discovering corpus: %w", err)
	}
	loader := &corpus.Loader{Root: root, Workers: cfg.Workers, Log: logging.Logger}
	units, err := loader.Load(cmd.Context(), paths)
	if err != nil {
		return err
	}

	res := lintResult{Corpus: cfg.Corpus, Units: len(units), Standards: corpus.Summarize(units)}
	if std != "" {
		for _, sel := range corpus.Select(units, std) {
			res.Violations = append(res.Violations, sel.Expected...)
		}
	}

	for _, u := range units {
		hazards, err := scanUnit(u)
		if err != nil {
			return err
		}
		res.Hazards = append(res.Hazards, hazards...)
	}

	if err := writeLint(cmd.OutOrStdout(), res, std); err != nil {
		return err
	}
	if lintStrict && len(charscan.Errors(res.Hazards)) > 0 {
		return &exitError{code: report.ExitFail}
	}
	return nil
}

func scanUnit(u corpus.Unit) ([]charscan.Hazard, error) {
	f, err := os.Open(u.AbsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return charscan.ScanSource(u.Path, f)
}

func writeLint(out io.Writer, res lintResult, std rule.Standard) error {
	switch strings.ToLower(lintFormat) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml", "yml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		return printLint(out, res, std)
	default:
		return fmt.Errorf("unknown lint format %q (expected text, json or yaml)", lintFormat)
	}
}

func printLint(w io.Writer, res lintResult, std rule.Standard) error {
	total := 0
	for _, s := range res.Standards {
		total += s.Violations
	}
	fmt.Fprintf(w, "Corpus %s: %d units, %d expected violations, annotations OK\n\n", res.Corpus, res.Units, total)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STANDARD\tUNITS\tRULES\tVIOLATIONS")
	for _, s := range res.Standards {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", s.Standard, s.Units, s.Rules, s.Violations)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if std != "" {
		fmt.Fprintf(w, "\n%s violations (%d):\n", std, len(res.Violations))
		for _, ev := range res.Violations {
			line := fmt.Sprintf("  %s:%d  %s", ev.Unit, ev.Line, ev.Rule)
			if ev.Function != "" {
				line += "  in " + ev.Function + "()"
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(res.Hazards) > 0 {
		fmt.Fprintf(w, "\nHidden or look-alike characters (%d):\n", len(res.Hazards))
		for _, h := range res.Hazards {
			fmt.Fprintf(w, "  %s\n", h)
		}
	}
	return nil
}
