package report

import (
	"sort"
	"time"

	"github.com/gzhole/rulebench/internal/analyzer"
	"github.com/gzhole/rulebench/internal/reconcile"
	"github.com/gzhole/rulebench/internal/rule"
)

// UnitResult is everything the harness learned about one unit.
type UnitResult struct {
	Unit     string
	Status   analyzer.UnitStatus
	Results  []reconcile.MatchResult
	Expected int // expected violations of the standard under test
	Skipped  int // expected violations of other standards
	Foreign  int // diagnostics reported for other files
	Excluded *analyzer.TimeoutError
}

type Options struct {
	Standard  rule.Standard
	Strict    bool
	Tolerance int
}

// Stats are the outcome counts of one rule, standard or the whole run.
// Recall and Precision are nil when their denominator is zero.
type Stats struct {
	TruePositives  int      `json:"true_positives" yaml:"true_positives"`
	FalseNegatives int      `json:"false_negatives" yaml:"false_negatives"`
	FalsePositives int      `json:"false_positives" yaml:"false_positives"`
	Redundant      int      `json:"redundant" yaml:"redundant"`
	OutOfScope     int      `json:"out_of_scope" yaml:"out_of_scope"`
	Recall         *float64 `json:"recall" yaml:"recall"`
	Precision      *float64 `json:"precision" yaml:"precision"`
}

func (s Stats) add(o reconcile.Outcome) Stats {
	switch o {
	case reconcile.TruePositive:
		s.TruePositives++
	case reconcile.FalseNegative:
		s.FalseNegatives++
	case reconcile.FalsePositive:
		s.FalsePositives++
	case reconcile.Redundant:
		s.Redundant++
	case reconcile.OutOfScope:
		s.OutOfScope++
	}
	return s
}

func (s Stats) merge(o Stats) Stats {
	s.TruePositives += o.TruePositives
	s.FalseNegatives += o.FalseNegatives
	s.FalsePositives += o.FalsePositives
	s.Redundant += o.Redundant
	s.OutOfScope += o.OutOfScope
	return s
}

// withRatios computes recall = TP/(TP+FN) and precision = TP/(TP+FP).
// Redundant and out-of-scope findings are not in either denominator.
func (s Stats) withRatios() Stats {
	s.Recall = ratio(s.TruePositives, s.TruePositives+s.FalseNegatives)
	s.Precision = ratio(s.TruePositives, s.TruePositives+s.FalsePositives)
	return s
}

func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

type RuleStats struct {
	Rule  rule.ID `json:"rule" yaml:"rule"`
	Stats `yaml:",inline"`
}

type StandardStats struct {
	Standard rule.Standard `json:"standard" yaml:"standard"`
	Rules    int           `json:"rules" yaml:"rules"`
	Stats    `yaml:",inline"`
}

// Entry is one reconciled expected violation or finding.
type Entry struct {
	Unit        string            `json:"unit" yaml:"unit"`
	Line        int               `json:"line" yaml:"line"`
	Rule        rule.ID           `json:"rule" yaml:"rule"`
	Outcome     reconcile.Outcome `json:"outcome" yaml:"outcome"`
	Function    string            `json:"function,omitempty" yaml:"function,omitempty"`
	FindingLine int               `json:"finding_line,omitempty" yaml:"finding_line,omitempty"`
	Check       string            `json:"check,omitempty" yaml:"check,omitempty"`
	Message     string            `json:"message,omitempty" yaml:"message,omitempty"`
	Severity    string            `json:"severity,omitempty" yaml:"severity,omitempty"`
}

type ExcludedUnit struct {
	Unit    string `json:"unit" yaml:"unit"`
	Pack    string `json:"pack" yaml:"pack"`
	Timeout string `json:"timeout" yaml:"timeout"`
	Hint    string `json:"hint" yaml:"hint"`
}

type UnitSummary struct {
	Unit     string              `json:"unit" yaml:"unit"`
	Status   analyzer.UnitStatus `json:"status" yaml:"status"`
	Expected int                 `json:"expected" yaml:"expected"`
	Skipped  int                 `json:"skipped" yaml:"skipped"`
	Foreign  int                 `json:"foreign" yaml:"foreign"`
	Unmapped int                 `json:"unmapped" yaml:"unmapped"`
	Stats    `yaml:",inline"`
}

// CoverageReport is the result of a run.
type CoverageReport struct {
	Standard  rule.Standard   `json:"standard" yaml:"standard"`
	Strict    bool            `json:"strict" yaml:"strict"`
	Tolerance int             `json:"tolerance" yaml:"tolerance"`
	Overall   Stats           `json:"overall" yaml:"overall"`
	Standards []StandardStats `json:"standards" yaml:"standards"`
	Rules     []RuleStats     `json:"rules" yaml:"rules"`
	Entries   []Entry         `json:"entries" yaml:"entries"`
	Unmapped  []Entry         `json:"unmapped" yaml:"unmapped"`
	Excluded  []ExcludedUnit  `json:"excluded" yaml:"excluded"`
	Units     []UnitSummary   `json:"units" yaml:"units"`
	Pass      bool            `json:"pass" yaml:"pass"`
}

// Build folds per-unit results into a report. It reads its input only and
// keeps all counters local, so the result depends on nothing but units and
// opts.
func Build(units []UnitResult, opts Options) *CoverageReport {
	rep := &CoverageReport{
		Standard:  opts.Standard,
		Strict:    opts.Strict,
		Tolerance: opts.Tolerance,
		Standards: []StandardStats{},
		Rules:     []RuleStats{},
		Entries:   []Entry{},
		Unmapped:  []Entry{},
		Excluded:  []ExcludedUnit{},
		Units:     []UnitSummary{},
	}

	byRule := make(map[rule.ID]Stats)
	for _, u := range units {
		summary := UnitSummary{
			Unit:     u.Unit,
			Status:   u.Status,
			Expected: u.Expected,
			Skipped:  u.Skipped,
			Foreign:  u.Foreign,
		}
		if u.Status == analyzer.StatusExcluded {
			ex := ExcludedUnit{Unit: u.Unit}
			if u.Excluded != nil {
				ex.Pack = string(u.Excluded.Pack)
				ex.Timeout = u.Excluded.Timeout.Round(time.Millisecond).String()
				ex.Hint = u.Excluded.Hint()
			}
			rep.Excluded = append(rep.Excluded, ex)
			rep.Units = append(rep.Units, summary)
			continue
		}

		for _, m := range u.Results {
			entry := toEntry(u.Unit, m)
			if m.Outcome == reconcile.Unmapped {
				summary.Unmapped++
				rep.Unmapped = append(rep.Unmapped, entry)
				continue
			}
			summary.Stats = summary.Stats.add(m.Outcome)
			byRule[m.Rule()] = byRule[m.Rule()].add(m.Outcome)
			rep.Entries = append(rep.Entries, entry)
		}
		summary.Stats = summary.Stats.withRatios()
		rep.Units = append(rep.Units, summary)
	}

	ids := make([]rule.ID, 0, len(byRule))
	for id := range byRule {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return compareIDs(ids[i], ids[j]) < 0 })

	byStd := make(map[rule.Standard]*StandardStats)
	var stdOrder []rule.Standard
	for _, id := range ids {
		stats := byRule[id]
		rep.Rules = append(rep.Rules, RuleStats{Rule: id, Stats: stats.withRatios()})

		ss, ok := byStd[id.Standard]
		if !ok {
			ss = &StandardStats{Standard: id.Standard}
			byStd[id.Standard] = ss
			stdOrder = append(stdOrder, id.Standard)
		}
		ss.Rules++
		ss.Stats = ss.Stats.merge(stats)
		rep.Overall = rep.Overall.merge(stats)
	}
	for _, std := range stdOrder {
		ss := byStd[std]
		ss.Stats = ss.Stats.withRatios()
		rep.Standards = append(rep.Standards, *ss)
	}
	rep.Overall = rep.Overall.withRatios()

	sortEntries(rep.Entries)
	sortEntries(rep.Unmapped)
	sort.Slice(rep.Units, func(i, j int) bool { return rep.Units[i].Unit < rep.Units[j].Unit })
	sort.Slice(rep.Excluded, func(i, j int) bool { return rep.Excluded[i].Unit < rep.Excluded[j].Unit })

	rep.Pass = rep.Overall.FalseNegatives == 0 && (!opts.Strict || rep.Overall.FalsePositives == 0)
	return rep
}

// compareIDs is rule.Compare with a final tie-break on the literal code so
// that the order is total.
func compareIDs(a, b rule.ID) int {
	if c := rule.Compare(a, b); c != 0 {
		return c
	}
	switch {
	case a.Code < b.Code:
		return -1
	case a.Code > b.Code:
		return 1
	}
	return 0
}

func toEntry(unit string, m reconcile.MatchResult) Entry {
	e := Entry{Unit: unit, Line: m.Line(), Rule: m.Rule(), Outcome: m.Outcome}
	if m.Expected != nil {
		e.Function = m.Expected.Function
	}
	if f := m.Finding; f != nil {
		if m.Expected != nil && f.Line != m.Expected.Line {
			e.FindingLine = f.Line
		}
		e.Check = f.Check
		e.Message = f.Message
		e.Severity = f.Severity.String()
	}
	return e
}

// sortEntries orders entries by standard, rule code, unit and line.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if c := compareIDs(a.Rule, b.Rule); c != 0 {
			return c < 0
		}
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Outcome.Rank() < b.Outcome.Rank()
	})
}

// Exit codes of a finished run.
const (
	ExitPass     = 0
	ExitFail     = 1
	ExitInternal = 2
)

// ExitCode maps the report onto the CI verdict. An excluded unit means the
// verdict is incomplete, which is a harness failure and outranks a plain
// coverage failure.
func (r *CoverageReport) ExitCode() int {
	switch {
	case len(r.Excluded) > 0:
		return ExitInternal
	case !r.Pass:
		return ExitFail
	default:
		return ExitPass
	}
}

// Recall returns the recall of one rule, if it appears in the report.
func (r *CoverageReport) Recall(id rule.ID) (*float64, bool) {
	for _, rs := range r.Rules {
		if rs.Rule == id {
			return rs.Recall, true
		}
	}
	return nil, false
}
