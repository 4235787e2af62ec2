package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gzhole/rulebench/internal/logger"
	"github.com/gzhole/rulebench/internal/normalize"
	"github.com/gzhole/rulebench/internal/rule"
)

const (
	DefaultTimeout      = 60 * time.Second
	DefaultRetryTimeout = 180 * time.Second
)

// UnitStatus says whether a unit's findings can be scored.
type UnitStatus string

const (
	StatusAnalyzed UnitStatus = "analyzed"
	// StatusExcluded marks a unit whose analysis timed out twice.
	StatusExcluded UnitStatus = "excluded"
)

// UnitFindings is the adapter's result for one unit.
type UnitFindings struct {
	Unit     string
	Status   UnitStatus
	Findings []Finding // combined, ordered by Seq
	// Foreign counts diagnostics the analyzer reported for other files
	// (headers, system includes). They are not scored.
	Foreign  int
	Excluded *TimeoutError
}

// commandLiner is implemented by analyzers that can describe the command
// they run, for the invocation log.
type commandLiner interface {
	CommandLine(target Target, std rule.Standard) ([]string, error)
}

// Adapter turns one analyzer into per-unit findings: it runs every pack,
// applies the timeout and retry budget, maps checks to rules and unions
// the results.
type Adapter struct {
	Analyzer     Analyzer
	Catalog      *rule.Catalog
	Combiner     *Combiner
	Root         string
	// WorkDir is the directory the analyzer runs in; relative diagnostic
	// paths not found under the corpus root resolve against it. Empty means
	// the harness's working directory.
	WorkDir      string
	Timeout      time.Duration
	RetryTimeout time.Duration
	Workers      int
	Events       *logger.InvocationLogger
	Log          *zap.SugaredLogger
}

func (a *Adapter) log() *zap.SugaredLogger {
	if a.Log == nil {
		return zap.NewNop().Sugar()
	}
	return a.Log
}

func (a *Adapter) workDir() string {
	if a.WorkDir == "" {
		cwd, _ := os.Getwd()
		return cwd
	}
	if abs, err := filepath.Abs(a.WorkDir); err == nil {
		return abs
	}
	return a.WorkDir
}

func (a *Adapter) timeouts() (time.Duration, time.Duration) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retry := a.RetryTimeout
	if retry <= 0 {
		retry = DefaultRetryTimeout
	}
	if retry < timeout {
		retry = timeout
	}
	return timeout, retry
}

// Analyze runs every pack against target, in order. A pack that times out
// twice excludes the unit; the remaining packs are not run. Any other
// analyzer failure is returned as an error.
func (a *Adapter) Analyze(ctx context.Context, target Target, packs []rule.Standard) (UnitFindings, error) {
	result := UnitFindings{Unit: target.Unit, Status: StatusAnalyzed}
	timeout, retryTimeout := a.timeouts()
	target.Dir = a.workDir()

	var findings []Finding
	seq := 0
	for _, pack := range packs {
		diags, err := a.invoke(ctx, target, pack, 1, timeout)
		var te *TimeoutError
		if errors.As(err, &te) {
			a.log().Warnw("analyzer timed out, retrying", "unit", target.Unit, "pack", pack,
				"timeout", timeout, "retry_timeout", retryTimeout)
			diags, err = a.invoke(ctx, target, pack, 2, retryTimeout)
			if errors.As(err, &te) {
				a.log().Warnw("excluding unit after second timeout", "unit", target.Unit, "pack", pack)
				result.Status = StatusExcluded
				result.Excluded = te
				return result, nil
			}
		}
		if err != nil {
			return result, err
		}

		for _, d := range diags {
			if normalize.UnitPath(d.Path, target.Root, target.Dir) != target.Unit {
				result.Foreign++
				continue
			}
			id, ok := a.Catalog.Resolve(d.Check, d.Tags, pack)
			if !ok {
				a.log().Debugw("unmapped check", "unit", target.Unit, "pack", pack, "check", d.Check)
			}
			findings = append(findings, Finding{
				Unit:     target.Unit,
				Line:     d.Line,
				Rule:     id,
				Check:    d.Check,
				Message:  d.Message,
				Severity: d.Severity,
				Pack:     pack,
				Seq:      seq,
			})
			seq++
		}
	}

	combiner := a.Combiner
	if combiner == nil {
		combiner = NewCombiner(StrategyUnion)
	}
	result.Findings = combiner.Combine(findings)
	return result, nil
}

func (a *Adapter) invoke(ctx context.Context, target Target, pack rule.Standard, attempt int, timeout time.Duration) ([]Diagnostic, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	diags, warnings, err := a.Analyzer.Analyze(callCtx, target, pack)
	elapsed := time.Since(start)
	for _, w := range warnings {
		a.log().Warnw("skipped analyzer diagnostic", "unit", target.Unit, "pack", pack, "reason", w)
	}

	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		var te *TimeoutError
		if !errors.As(err, &te) {
			err = &TimeoutError{Unit: target.Unit, Pack: pack}
		}
	}
	var te *TimeoutError
	if errors.As(err, &te) && te.Timeout == 0 {
		te.Timeout = timeout
	}

	a.record(target, pack, attempt, elapsed, len(diags), warnings, err)
	return diags, err
}

func (a *Adapter) record(target Target, pack rule.Standard, attempt int, elapsed time.Duration, count int, warnings []string, err error) {
	if a.Events == nil {
		return
	}
	event := logger.InvocationEvent{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Unit:        target.Unit,
		Pack:        string(pack),
		Analyzer:    a.Analyzer.Name(),
		Attempt:     attempt,
		DurationMS:  elapsed.Milliseconds(),
		Outcome:     logger.OutcomeOK,
		Diagnostics: count,
		Warnings:    warnings,
	}
	if cl, ok := a.Analyzer.(commandLiner); ok {
		if args, cerr := cl.CommandLine(target, pack); cerr == nil {
			event.Args = args
		}
	}

	var te *TimeoutError
	var ie *InvocationError
	switch {
	case err == nil:
	case errors.As(err, &te):
		event.Outcome = logger.OutcomeTimeout
		event.Error = err.Error()
	case errors.As(err, &ie):
		event.Outcome = logger.OutcomeFailed
		event.ExitCode = ie.ExitCode
		event.Error = err.Error()
	default:
		event.Outcome = logger.OutcomeFailed
		event.Error = err.Error()
	}

	if lerr := a.Events.Log(event); lerr != nil {
		a.log().Warnw("failed to write invocation log", "error", lerr)
	}
}

// AnalyzeAll analyzes targets on a bounded worker pool. Results are stored
// by index, so the output is ordered like targets. The first analyzer
// failure cancels the remaining work.
func (a *Adapter) AnalyzeAll(ctx context.Context, targets []Target, packs []rule.Standard) ([]UnitFindings, error) {
	workers := a.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]UnitFindings, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := a.Analyze(ctx, target, packs)
			if err != nil {
				return err
			}
			results[i] = res
			a.log().Debugw("analyzed unit", "unit", target.Unit, "status", res.Status,
				"findings", len(res.Findings), "foreign", res.Foreign)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
