package corpus

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gzhole/rulebench/internal/rule"
)

// DefaultExtensions are the source suffixes treated as corpus units.
var DefaultExtensions = []string{".c", ".h", ".cc", ".cpp", ".cxx", ".hh", ".hpp", ".hxx"}

// Unit is one corpus source file and the violations it declares.
type Unit struct {
	Path     string              // slash-separated, relative to the corpus root
	AbsPath  string
	Expected []ExpectedViolation // sorted by line, then rule
}

// Discover returns the sorted relative paths of all units under root.
// Hidden directories are skipped.
func Discover(root string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "discover", Path: root, Err: errors.New("not a directory")}
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// Loader parses corpus units on a bounded worker pool.
type Loader struct {
	Root    string
	Workers int
	Log     *zap.SugaredLogger
}

// Load parses every unit in paths. The result is ordered like paths no
// matter which worker finishes first. All format errors found in the
// corpus are returned together, sorted by unit and line.
func (l *Loader) Load(ctx context.Context, paths []string) ([]Unit, error) {
	log := l.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	workers := l.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	units := make([]Unit, len(paths))
	unitErrs := make([][]*FormatError, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range paths {
		i, rel := i, rel
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			abs := filepath.Join(l.Root, filepath.FromSlash(rel))
			f, err := os.Open(abs)
			if err != nil {
				return err
			}
			defer f.Close()

			expected, errs := ParseSource(rel, f)
			units[i] = Unit{Path: rel, AbsPath: abs, Expected: expected}
			unitErrs[i] = errs
			log.Debugw("parsed corpus unit", "unit", rel, "expected", len(expected), "errors", len(errs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*FormatError
	for _, errs := range unitErrs {
		all = append(all, errs...)
	}
	if len(all) > 0 {
		sortFormatErrors(all)
		joined := make([]error, len(all))
		for i, e := range all {
			joined[i] = e
		}
		return units, errors.Join(joined...)
	}
	return units, nil
}

// Selection is the part of a unit under test for one standard.
type Selection struct {
	Unit     Unit
	Expected []ExpectedViolation
	// Skipped counts declared violations of other standards.
	Skipped int
}

// Select keeps the expected violations of std in each unit.
func Select(units []Unit, std rule.Standard) []Selection {
	out := make([]Selection, len(units))
	for i, u := range units {
		sel := Selection{Unit: u}
		for _, ev := range u.Expected {
			if ev.Rule.Standard == std {
				sel.Expected = append(sel.Expected, ev)
			} else {
				sel.Skipped++
			}
		}
		out[i] = sel
	}
	return out
}

// StandardSummary counts the violations a corpus declares for one
// standard.
type StandardSummary struct {
	Standard   rule.Standard `json:"standard" yaml:"standard"`
	Units      int           `json:"units" yaml:"units"`
	Rules      int           `json:"rules" yaml:"rules"`
	Violations int           `json:"violations" yaml:"violations"`
}

// Summarize returns one summary per standard present in units, in
// canonical standard order.
func Summarize(units []Unit) []StandardSummary {
	type acc struct {
		units map[string]bool
		rules map[string]bool
		count int
	}
	byStd := map[rule.Standard]*acc{}
	for _, u := range units {
		for _, ev := range u.Expected {
			a, ok := byStd[ev.Rule.Standard]
			if !ok {
				a = &acc{units: map[string]bool{}, rules: map[string]bool{}}
				byStd[ev.Rule.Standard] = a
			}
			a.units[u.Path] = true
			a.rules[ev.Rule.Code] = true
			a.count++
		}
	}

	out := make([]StandardSummary, 0, len(byStd))
	for std, a := range byStd {
		out = append(out, StandardSummary{
			Standard:   std,
			Units:      len(a.units),
			Rules:      len(a.rules),
			Violations: a.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Standard.Rank() < out[j].Standard.Rank() })
	return out
}
