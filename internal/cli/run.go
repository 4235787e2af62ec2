package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/rulebench/internal/analyzer"
	"github.com/gzhole/rulebench/internal/config"
	"github.com/gzhole/rulebench/internal/harness"
	"github.com/gzhole/rulebench/internal/logger"
	"github.com/gzhole/rulebench/internal/logging"
	"github.com/gzhole/rulebench/internal/reconcile"
	"github.com/gzhole/rulebench/internal/report"
	"github.com/gzhole/rulebench/internal/rule"
)

var (
	runCorpus         string
	runStandard       string
	runTolerance      int
	runStrict         bool
	runPacks          []string
	runFindings       string
	runFormat         string
	runOutput         string
	runWorkers        int
	runTimeout        time.Duration
	runRetryTimeout   time.Duration
	runAnalyzer       string
	runAnalyzerArgs   string
	runAnalyzerFormat string
	runRuleMaps       string
	runCombine        string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the analyzer over the corpus and report rule coverage",
	Long: `Run the configured analyzer over every corpus unit, reconcile its
diagnostics against the annotated violations and print a coverage report.

Exit status is 0 when every expected violation was found (and, with
--strict, nothing else was reported), 1 when the analyzer missed a
violation, and 2 when the harness itself failed.

Examples:
  rulebench run --corpus tests/ --standard CERT-C
  rulebench run --corpus tests/ --standard MISRA-C --pack CERT-C --format json
  rulebench run --corpus tests/ --standard CERT-C --findings results.sarif`,
	Args: cobra.NoArgs,
	RunE: runCommand,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runCorpus, "corpus", "", "Corpus root directory (default: config corpus or .)")
	f.StringVar(&runStandard, "standard", "", "Standard under test (CERT-C, CERT-CPP, MISRA-C, MISRA-CPP, AUTOSAR)")
	f.IntVar(&runTolerance, "tolerance", reconcile.DefaultTolerance, "Line tolerance when matching findings to expected violations")
	f.BoolVar(&runStrict, "strict", false, "Fail on false positives as well as false negatives")
	f.StringSliceVar(&runPacks, "pack", nil, "Additional rule pack to run for out-of-scope measurement (repeatable)")
	f.StringVar(&runFindings, "findings", "", "Replay diagnostics from a captured analyzer output file instead of running the analyzer")
	f.StringVar(&runFormat, "format", "", "Report format: text, json, yaml or markdown")
	f.StringVarP(&runOutput, "output", "o", "", "Write the report to a file instead of stdout")
	f.IntVar(&runWorkers, "workers", 0, "Parallel workers for parsing and analysis (default: number of CPUs)")
	f.DurationVar(&runTimeout, "timeout", analyzer.DefaultTimeout, "Per-invocation analyzer timeout")
	f.DurationVar(&runRetryTimeout, "retry-timeout", analyzer.DefaultRetryTimeout, "Timeout for the single retry after a timeout")
	f.StringVar(&runAnalyzer, "analyzer", "", "Analyzer executable (overrides $"+config.EnvAnalyzer+")")
	f.StringVar(&runAnalyzerArgs, "analyzer-args", "", "Analyzer argument template (overrides $"+config.EnvAnalyzerArgs+")")
	f.StringVar(&runAnalyzerFormat, "analyzer-format", "", "Analyzer output format: auto, sarif, json or jsonl")
	f.StringVar(&runRuleMaps, "rulemaps", "", "Directory of check-to-rule mapping packs (default: ./rulemaps)")
	f.StringVar(&runCombine, "combine", "", "How findings of several packs merge: union or keep_all")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overlays the flags the user actually set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("corpus") {
		cfg.Corpus = runCorpus
	}
	if f.Changed("standard") {
		cfg.Standard = runStandard
	}
	if f.Changed("tolerance") {
		cfg.Tolerance = runTolerance
	}
	if f.Changed("strict") {
		cfg.Strict = runStrict
	}
	if f.Changed("pack") {
		cfg.Packs = runPacks
	}
	if f.Changed("format") {
		cfg.Report.Format = runFormat
	}
	if f.Changed("output") {
		cfg.Report.Output = runOutput
	}
	if f.Changed("workers") {
		cfg.Workers = runWorkers
	}
	if f.Changed("timeout") {
		cfg.Analyzer.Timeout = config.Duration(runTimeout)
	}
	if f.Changed("retry-timeout") {
		cfg.Analyzer.RetryTimeout = config.Duration(runRetryTimeout)
	}
	if f.Changed("analyzer") {
		cfg.Analyzer.Executable = runAnalyzer
	}
	if f.Changed("analyzer-args") {
		cfg.Analyzer.Args = runAnalyzerArgs
	}
	if f.Changed("analyzer-format") {
		cfg.Analyzer.Format = runAnalyzerFormat
	}
	if f.Changed("rulemaps") {
		cfg.RuleMaps = runRuleMaps
	}
	if f.Changed("combine") {
		cfg.Analyzer.CombineStrategy = runCombine
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	log := logging.Logger

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(true); err != nil {
		return &hintError{
			err:  fmt.Errorf("invalid configuration: %w", err),
			hint: "check the flags, environment and " + config.DefaultConfigFile,
		}
	}
	std, _ := cfg.StandardUnderTest()
	extra, _ := cfg.ExtraPacks()
	format, _ := report.ParseFormat(cfg.Report.Format)
	outFormat, _ := analyzer.ParseFormat(cfg.Analyzer.Format)

	catalog, infos, err := rule.LoadPacks(cfg.RuleMaps)
	if err != nil {
		return &hintError{
			err:  fmt.Errorf("failed to load rule maps: %w", err),
			hint: "run 'rulebench packs' to see which mapping file is broken",
		}
	}
	log.Debugw("loaded rule maps", "dir", cfg.RuleMaps, "packs", len(infos), "checks", catalog.Len())

	var an analyzer.Analyzer
	if runFindings != "" {
		an = &analyzer.ReplayAnalyzer{Path: runFindings, Format: outFormat, Log: log}
		if len(extra) > 0 {
			// A capture holds one tool run; replaying it per extra pack
			// would only repeat the same diagnostics.
			log.Infow("ignoring extra packs in replay mode", "packs", extra)
			extra = nil
		}
	} else {
		if cfg.Analyzer.Executable == "" {
			return &hintError{
				err:  fmt.Errorf("no analyzer configured"),
				hint: "set --analyzer, $" + config.EnvAnalyzer + " or analyzer.executable, or replay a capture with --findings",
			}
		}
		an = &analyzer.ProcessAnalyzer{
			Executable:       cfg.Analyzer.Executable,
			Args:             cfg.Analyzer.Args,
			Format:           outFormat,
			Token:            cfg.Analyzer.Token,
			SuccessExitCodes: cfg.Analyzer.SuccessExitCodes,
			Dir:              cfg.Analyzer.WorkDir,
			Log:              log,
		}
	}

	var events *logger.InvocationLogger
	if cfg.LogPath != "" {
		events, err = logger.New(cfg.LogPath, cfg.Analyzer.Token)
		if err != nil {
			return fmt.Errorf("failed to open invocation log: %w", err)
		}
		defer events.Close()
	}

	adapter := &analyzer.Adapter{
		Analyzer:     an,
		Catalog:      catalog,
		Combiner:     analyzer.NewCombiner(analyzer.CombineStrategy(cfg.Analyzer.CombineStrategy)),
		WorkDir:      cfg.Analyzer.WorkDir,
		Timeout:      cfg.Analyzer.Timeout.Std(),
		RetryTimeout: cfg.Analyzer.RetryTimeout.Std(),
		Workers:      cfg.Workers,
		Events:       events,
		Log:          log,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := harness.Run(ctx, harness.Options{
		Root:       cfg.Corpus,
		Standard:   std,
		ExtraPacks: extra,
		Tolerance:  cfg.Tolerance,
		Strict:     cfg.Strict,
		Workers:    cfg.Workers,
		Extensions: cfg.Extensions,
	}, adapter, log)
	if err != nil {
		return err
	}

	if err := writeReport(cmd.OutOrStdout(), cfg.Report.Output, rep, format); err != nil {
		return err
	}
	if code := rep.ExitCode(); code != report.ExitPass {
		return &exitError{code: code}
	}
	return nil
}

func writeReport(stdout io.Writer, path string, rep *report.CoverageReport, format report.Format) error {
	if path == "" {
		return report.Render(stdout, rep, format, report.ColorEnabled(stdout))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := report.Render(f, rep, format, false); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
