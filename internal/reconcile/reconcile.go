package reconcile

import (
	"sort"

	"github.com/gzhole/rulebench/internal/analyzer"
	"github.com/gzhole/rulebench/internal/corpus"
	"github.com/gzhole/rulebench/internal/rule"
)

// DefaultTolerance is the line window within which a finding may satisfy
// an expected violation of the same rule.
const DefaultTolerance = 2

// Outcome classifies one MatchResult.
type Outcome string

const (
	TruePositive  Outcome = "true_positive"
	FalseNegative Outcome = "false_negative"
	FalsePositive Outcome = "false_positive"
	// Redundant is an extra report of a violation that was already matched.
	Redundant Outcome = "redundant"
	// OutOfScope is a finding of a standard other than the one under test.
	OutOfScope Outcome = "out_of_scope"
	// Unmapped is a finding whose check could not be mapped to a rule.
	Unmapped Outcome = "unmapped"
)

var outcomeRank = map[Outcome]int{
	TruePositive:  0,
	FalseNegative: 1,
	FalsePositive: 2,
	Redundant:     3,
	OutOfScope:    4,
	Unmapped:      5,
}

// Rank orders outcomes in reports.
func (o Outcome) Rank() int {
	if r, ok := outcomeRank[o]; ok {
		return r
	}
	return len(outcomeRank)
}

func (o Outcome) String() string {
	return string(o)
}

// MatchResult pairs an expected violation with the finding that satisfied
// it. Expected is nil for finding-only outcomes and Finding is nil for
// FalseNegative. Distance is the line distance of a TruePositive.
type MatchResult struct {
	Expected *corpus.ExpectedViolation `json:"expected,omitempty" yaml:"expected,omitempty"`
	Finding  *analyzer.Finding         `json:"finding,omitempty" yaml:"finding,omitempty"`
	Outcome  Outcome                   `json:"outcome" yaml:"outcome"`
	Distance int                       `json:"distance,omitempty" yaml:"distance,omitempty"`
}

// Rule is the rule the result is about.
func (m MatchResult) Rule() rule.ID {
	if m.Expected != nil {
		return m.Expected.Rule
	}
	if m.Finding != nil {
		return m.Finding.Rule
	}
	return rule.ID{}
}

// Line is the expected line when there is one, else the finding's line.
func (m MatchResult) Line() int {
	if m.Expected != nil {
		return m.Expected.Line
	}
	if m.Finding != nil {
		return m.Finding.Line
	}
	return 0
}

func (m MatchResult) seq() int {
	if m.Finding != nil {
		return m.Finding.Seq
	}
	return -1
}

// Input is everything known about one unit.
type Input struct {
	Unit     string
	Standard rule.Standard // the standard under test
	Expected []corpus.ExpectedViolation
	Findings []analyzer.Finding
}

type Options struct {
	Tolerance int
}

type candidate struct {
	e, f     int
	distance int
}

// Reconcile matches expected violations against findings one-to-one and
// classifies everything left over. Every expected violation and every
// finding appears in exactly one result, so
// len(results) == len(Expected) + len(Findings) - TruePositives.
//
// Candidates share a rule and lie within the tolerance window. They are
// assigned greedily by line distance, then by the finding's emission
// order, then by expected line and rule; the matching is then grown to
// maximum size, so a finding is never left over while an expected
// violation within reach of it stays unmatched. The result is sorted by rule,
// line, outcome and emission order; identical inputs give identical
// output.
func Reconcile(in Input, opts Options) []MatchResult {
	tolerance := opts.Tolerance
	if tolerance < 0 {
		tolerance = 0
	}
	// Results point into these copies, never into the caller's slices.
	in.Expected = append([]corpus.ExpectedViolation(nil), in.Expected...)
	in.Findings = append([]analyzer.Finding(nil), in.Findings...)

	var cands []candidate
	for i, e := range in.Expected {
		for j, f := range in.Findings {
			if !f.Mapped() || f.Rule != e.Rule {
				continue
			}
			if d := abs(f.Line - e.Line); d <= tolerance {
				cands = append(cands, candidate{e: i, f: j, distance: d})
			}
		}
	}
	sort.Slice(cands, func(a, b int) bool {
		ca, cb := cands[a], cands[b]
		if ca.distance != cb.distance {
			return ca.distance < cb.distance
		}
		fa, fb := in.Findings[ca.f], in.Findings[cb.f]
		if fa.Seq != fb.Seq {
			return fa.Seq < fb.Seq
		}
		ea, eb := in.Expected[ca.e], in.Expected[cb.e]
		if ea.Line != eb.Line {
			return ea.Line < eb.Line
		}
		if c := rule.Compare(ea.Rule, eb.Rule); c != 0 {
			return c < 0
		}
		if ca.f != cb.f {
			return ca.f < cb.f
		}
		return ca.e < cb.e
	})

	expectedMatch := make([]int, len(in.Expected))
	for i := range expectedMatch {
		expectedMatch[i] = -1
	}
	owner := make([]int, len(in.Findings))
	for j := range owner {
		owner[j] = -1
	}
	adj := make([][]int, len(in.Expected))
	for _, c := range cands {
		adj[c.e] = append(adj[c.e], c.f)
		if expectedMatch[c.e] >= 0 || owner[c.f] >= 0 {
			continue
		}
		expectedMatch[c.e] = c.f
		owner[c.f] = c.e
	}

	// The greedy pass can strand an expected violation whose only candidate
	// went to a neighbour that had another option. Augmenting paths keep
	// every greedy match matched and grow the matching to maximum size.
	var augment func(e int, visited []bool) bool
	augment = func(e int, visited []bool) bool {
		for _, f := range adj[e] {
			if visited[f] {
				continue
			}
			visited[f] = true
			if owner[f] < 0 || augment(owner[f], visited) {
				owner[f] = e
				expectedMatch[e] = f
				return true
			}
		}
		return false
	}
	for i := range in.Expected {
		if expectedMatch[i] < 0 && len(adj[i]) > 0 {
			augment(i, make([]bool, len(in.Findings)))
		}
	}

	results := make([]MatchResult, 0, len(in.Expected)+len(in.Findings))
	for i, j := range expectedMatch {
		if j < 0 {
			continue
		}
		results = append(results, MatchResult{
			Expected: &in.Expected[i],
			Finding:  &in.Findings[j],
			Outcome:  TruePositive,
			Distance: abs(in.Findings[j].Line - in.Expected[i].Line),
		})
	}

	for i := range in.Expected {
		if expectedMatch[i] < 0 {
			results = append(results, MatchResult{Expected: &in.Expected[i], Outcome: FalseNegative})
		}
	}

	for j := range in.Findings {
		if owner[j] >= 0 {
			continue
		}
		f := &in.Findings[j]
		results = append(results, MatchResult{Finding: f, Outcome: classify(f, in, expectedMatch, tolerance)})
	}

	sort.SliceStable(results, func(a, b int) bool {
		ra, rb := results[a], results[b]
		if c := rule.Compare(ra.Rule(), rb.Rule()); c != 0 {
			return c < 0
		}
		if ra.Line() != rb.Line() {
			return ra.Line() < rb.Line()
		}
		if ra.Outcome.Rank() != rb.Outcome.Rank() {
			return ra.Outcome.Rank() < rb.Outcome.Rank()
		}
		return ra.seq() < rb.seq()
	})
	return results
}

// classify labels a finding that satisfied no expected violation.
func classify(f *analyzer.Finding, in Input, expectedMatch []int, tolerance int) Outcome {
	if !f.Mapped() {
		return Unmapped
	}
	for i, e := range in.Expected {
		if expectedMatch[i] >= 0 && e.Rule == f.Rule && abs(f.Line-e.Line) <= tolerance {
			return Redundant
		}
	}
	if f.Rule.Standard != in.Standard {
		return OutOfScope
	}
	return FalsePositive
}

// Count tallies results by outcome.
func Count(results []MatchResult) map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	return counts
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
