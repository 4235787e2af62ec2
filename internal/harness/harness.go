package harness

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gzhole/rulebench/internal/analyzer"
	"github.com/gzhole/rulebench/internal/corpus"
	"github.com/gzhole/rulebench/internal/reconcile"
	"github.com/gzhole/rulebench/internal/report"
	"github.com/gzhole/rulebench/internal/rule"
	"github.com/gzhole/rulebench/internal/snapshot"
)

// Options describe one verification run.
type Options struct {
	Root       string
	Standard   rule.Standard
	ExtraPacks []rule.Standard
	Tolerance  int
	Strict     bool
	Workers    int
	Extensions []string
}

// Packs returns the packs to run: the standard under test first, then the
// extra packs in order, without duplicates.
func Packs(std rule.Standard, extra []rule.Standard) []rule.Standard {
	packs := []rule.Standard{std}
	seen := map[rule.Standard]bool{std: true}
	for _, p := range extra {
		if !seen[p] {
			seen[p] = true
			packs = append(packs, p)
		}
	}
	return packs
}

// Run discovers the corpus, loads it and analyzes it concurrently,
// reconciles every unit and folds the results into a report. Format errors
// and analyzer invocation failures abort the run and are returned as is;
// timed-out units are listed in the report. A corpus edited while the
// analyzer ran yields a *snapshot.ModifiedError, and a corpus without a
// single violation of opts.Standard a *NothingExpectedError.
func Run(ctx context.Context, opts Options, adapter *analyzer.Adapter, log *zap.SugaredLogger) (*report.CoverageReport, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if !opts.Standard.Valid() {
		return nil, fmt.Errorf("unknown standard %q", opts.Standard)
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}

	paths, err := corpus.Discover(root, opts.Extensions)
	if err != nil {
		return nil, fmt.Errorf("discovering corpus: %w", err)
	}
	log.Infow("discovered corpus", "root", root, "units", len(paths))

	before, err := snapshot.Capture(root, paths)
	if err != nil {
		return nil, fmt.Errorf("recording corpus state: %w", err)
	}

	targets := make([]analyzer.Target, len(paths))
	for i, p := range paths {
		targets[i] = analyzer.Target{Unit: p, Path: filepath.Join(root, filepath.FromSlash(p)), Root: root}
	}
	adapter.Root = root
	if adapter.Workers <= 0 {
		adapter.Workers = opts.Workers
	}
	packs := Packs(opts.Standard, opts.ExtraPacks)

	var units []corpus.Unit
	var analyzed []analyzer.UnitFindings
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loader := &corpus.Loader{Root: root, Workers: opts.Workers, Log: log}
		var err error
		units, err = loader.Load(gctx, paths)
		return err
	})
	g.Go(func() error {
		var err error
		analyzed, err = adapter.AnalyzeAll(gctx, targets, packs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	after, err := corpus.Discover(root, opts.Extensions)
	if err != nil {
		return nil, fmt.Errorf("discovering corpus: %w", err)
	}
	if err := snapshot.Verify(root, before, mergePaths(paths, after)); err != nil {
		return nil, err
	}

	selections := corpus.Select(units, opts.Standard)
	expected, skipped := 0, 0
	for _, sel := range selections {
		expected += len(sel.Expected)
		skipped += sel.Skipped
	}
	if expected == 0 {
		return nil, &NothingExpectedError{Standard: opts.Standard, Units: len(units), Skipped: skipped}
	}
	return Score(selections, analyzed, opts), nil
}

// NothingExpectedError reports a corpus that declares no violation of the
// standard under test. Full recall over an empty set would pass any
// analyzer, so the run cannot be scored.
type NothingExpectedError struct {
	Standard rule.Standard
	Units    int
	Skipped  int
}

func (e *NothingExpectedError) Error() string {
	return fmt.Sprintf("corpus declares no %s violations (%d units, %d markers of other standards)",
		e.Standard, e.Units, e.Skipped)
}

// Hint returns a remediation hint.
func (e *NothingExpectedError) Hint() string {
	return "put a marker comment such as // CERT C EXP33-C directly above each violating statement, or pick the standard the corpus declares"
}

func mergePaths(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Score reconciles each selection against the findings of the same index
// and builds the report. Each unit is reconciled into its own slot.
func Score(selections []corpus.Selection, analyzed []analyzer.UnitFindings, opts Options) *report.CoverageReport {
	results := make([]report.UnitResult, len(selections))
	for i, sel := range selections {
		res := analyzed[i]
		ur := report.UnitResult{
			Unit:     sel.Unit.Path,
			Status:   res.Status,
			Expected: len(sel.Expected),
			Skipped:  sel.Skipped,
			Foreign:  res.Foreign,
			Excluded: res.Excluded,
		}
		if res.Status != analyzer.StatusExcluded {
			ur.Results = reconcile.Reconcile(reconcile.Input{
				Unit:     sel.Unit.Path,
				Standard: opts.Standard,
				Expected: sel.Expected,
				Findings: res.Findings,
			}, reconcile.Options{Tolerance: opts.Tolerance})
		}
		results[i] = ur
	}
	return report.Build(results, report.Options{
		Standard:  opts.Standard,
		Strict:    opts.Strict,
		Tolerance: opts.Tolerance,
	})
}
