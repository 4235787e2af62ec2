package analyzer

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/gzhole/rulebench/internal/normalize"
	"github.com/gzhole/rulebench/internal/rule"
)

// ReplayAnalyzer serves diagnostics from a previously captured analyzer
// output file instead of running a tool. The file is read and parsed once;
// each Analyze call returns the diagnostics whose path resolves to the
// requested unit, in file order.
type ReplayAnalyzer struct {
	Path   string
	Format Format
	Log    *zap.SugaredLogger

	once  sync.Once
	diags []Diagnostic
	err   error
}

func (r *ReplayAnalyzer) Name() string {
	return "replay"
}

func (r *ReplayAnalyzer) load() {
	log := r.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		r.err = fmt.Errorf("reading captured findings: %w", err)
		return
	}
	diags, warnings, err := ParseOutput(r.Format, data)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", r.Path, err)
		return
	}
	for _, w := range warnings {
		log.Warnw("skipped captured diagnostic", "file", r.Path, "reason", w)
	}
	log.Debugw("loaded captured findings", "file", r.Path, "diagnostics", len(diags))
	r.diags = diags
}

// Analyze returns the captured diagnostics of target.Unit. std is ignored:
// a capture holds whatever packs were active when it was taken. Relative
// paths in the capture resolve like the adapter resolves them, against
// target.Root and then target.Dir. Capture-level warnings are logged once
// when the file is loaded.
func (r *ReplayAnalyzer) Analyze(ctx context.Context, target Target, std rule.Standard) ([]Diagnostic, []string, error) {
	r.once.Do(r.load)
	if r.err != nil {
		return nil, nil, &InvocationError{Unit: target.Unit, Pack: std, Err: r.err}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	baseDir := target.Dir
	if baseDir == "" {
		baseDir, _ = os.Getwd()
	}

	var out []Diagnostic
	for _, d := range r.diags {
		if normalize.UnitPath(d.Path, target.Root, baseDir) == target.Unit {
			out = append(out, d)
		}
	}
	return out, nil, nil
}
