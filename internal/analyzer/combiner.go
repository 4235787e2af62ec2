package analyzer

import (
	"sort"

	"github.com/gzhole/rulebench/internal/rule"
)

// CombineStrategy determines how the combiner merges the findings of all
// packs run against one unit.
type CombineStrategy string

const (
	// StrategyUnion merges findings that several packs report on the same
	// (Unit, Line, Rule) and keeps everything else. This is the default.
	StrategyUnion CombineStrategy = "union"

	// StrategyKeepAll keeps every finding, duplicates included. Useful when
	// measuring how often a tool reports the same defect twice.
	StrategyKeepAll CombineStrategy = "keep_all"
)

// Combiner merges the per-pack finding streams of one unit.
//
// Under StrategyUnion a cross-pack duplicate keeps the highest severity
// seen, the first emission position and the first message. Repeats within
// one pack are the tool's own behaviour and are kept, so the reconciler
// can count them as redundant. Unmapped findings have no rule to merge on
// and are kept as-is.
type Combiner struct {
	Strategy CombineStrategy
}

// NewCombiner creates a Combiner with the given strategy.
func NewCombiner(strategy CombineStrategy) *Combiner {
	if strategy == "" {
		strategy = StrategyUnion
	}
	return &Combiner{Strategy: strategy}
}

type findingKey struct {
	unit string
	line int
	rule string
}

// Combine returns the merged findings ordered by Seq. The input is not
// modified.
func (c *Combiner) Combine(findings []Finding) []Finding {
	out := make([]Finding, 0, len(findings))
	if c.Strategy == StrategyKeepAll {
		out = append(out, findings...)
		sortBySeq(out)
		return out
	}

	ordered := append([]Finding(nil), findings...)
	sortBySeq(ordered)

	type bucket struct {
		first int
		packs map[rule.Standard]bool
	}
	buckets := make(map[findingKey]*bucket, len(ordered))
	for _, f := range ordered {
		if !f.Mapped() {
			out = append(out, f)
			continue
		}
		key := findingKey{unit: f.Unit, line: f.Line, rule: f.Rule.String()}
		b, seen := buckets[key]
		if !seen {
			buckets[key] = &bucket{first: len(out), packs: map[rule.Standard]bool{f.Pack: true}}
			out = append(out, f)
			continue
		}
		if b.packs[f.Pack] {
			out = append(out, f)
			continue
		}
		b.packs[f.Pack] = true
		out[b.first].Severity = maxSeverity(out[b.first].Severity, f.Severity)
	}
	return out
}

func sortBySeq(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Seq < findings[j].Seq
	})
}
