package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/gzhole/rulebench/internal/reconcile"
)

// Format selects a renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (expected text, json, yaml or markdown)", s)
	}
}

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiBold  = "\x1b[1m"
)

// ColorEnabled reports whether w is a terminal that should get ANSI colour.
// NO_COLOR disables colour everywhere.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Render writes rep to w. color only affects the text format.
func Render(w io.Writer, rep *CoverageReport, format Format, color bool) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, markdown(rep))
		return err
	case FormatText, "":
		return renderText(w, rep, color)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}

func paint(color bool, code, s string) string {
	if !color {
		return s
	}
	return code + s + ansiReset
}

func renderText(w io.Writer, rep *CoverageReport, color bool) error {
	strict := "off"
	if rep.Strict {
		strict = "on"
	}
	fmt.Fprintf(w, "%s\n", paint(color, ansiBold, fmt.Sprintf("Coverage for %s (tolerance %d, strict %s)", rep.Standard, rep.Tolerance, strict)))
	fmt.Fprintln(w, strings.Repeat("─", 72))

	// Rows are painted after alignment; escape codes inside cells would
	// count toward the column width.
	var table bytes.Buffer
	missed := make(map[int]bool)
	tw := tabwriter.NewWriter(&table, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tTP\tFN\tFP\tREDUNDANT\tOUT-OF-SCOPE\tRECALL\tPRECISION")
	for i, rs := range rep.Rules {
		if rs.FalseNegatives > 0 {
			missed[i+1] = true
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n", rs.Rule,
			rs.TruePositives, rs.FalseNegatives, rs.FalsePositives, rs.Redundant, rs.OutOfScope,
			pct(rs.Recall), pct(rs.Precision))
	}
	fmt.Fprintln(tw, "\t\t\t\t\t\t\t")
	for _, ss := range rep.Standards {
		fmt.Fprintf(tw, "%s (%d rules)\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n", ss.Standard, ss.Rules,
			ss.TruePositives, ss.FalseNegatives, ss.FalsePositives, ss.Redundant, ss.OutOfScope,
			pct(ss.Recall), pct(ss.Precision))
	}
	o := rep.Overall
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
		o.TruePositives, o.FalseNegatives, o.FalsePositives, o.Redundant, o.OutOfScope,
		pct(o.Recall), pct(o.Precision))
	if err := tw.Flush(); err != nil {
		return err
	}
	for i, line := range strings.SplitAfter(table.String(), "\n") {
		if missed[i] {
			line = paint(color, ansiRed, strings.TrimSuffix(line, "\n")) + "\n"
		}
		io.WriteString(w, line)
	}

	writeEntries(w, "Missed violations (false negatives)", rep.Entries, reconcile.FalseNegative)
	writeEntries(w, "False positives", rep.Entries, reconcile.FalsePositive)

	if len(rep.Unmapped) > 0 {
		fmt.Fprintf(w, "\nUnmapped findings (%d):\n", len(rep.Unmapped))
		for _, e := range rep.Unmapped {
			fmt.Fprintf(w, "  %s:%d  %s  %s\n", e.Unit, e.Line, e.Check, e.Message)
		}
	}
	if len(rep.Excluded) > 0 {
		fmt.Fprintf(w, "\nExcluded units (%d):\n", len(rep.Excluded))
		for _, ex := range rep.Excluded {
			fmt.Fprintf(w, "  %s  %s pack timed out after %s\n", ex.Unit, ex.Pack, ex.Timeout)
		}
	}

	fmt.Fprintln(w)
	switch {
	case len(rep.Excluded) > 0:
		fmt.Fprintln(w, paint(color, ansiRed, "INCOMPLETE: units were excluded after timing out"))
	case rep.Pass:
		fmt.Fprintln(w, paint(color, ansiGreen, "PASS"))
	default:
		fmt.Fprintln(w, paint(color, ansiRed, "FAIL"))
	}
	return nil
}

func writeEntries(w io.Writer, title string, entries []Entry, outcome reconcile.Outcome) {
	var selected []Entry
	for _, e := range entries {
		if e.Outcome == outcome {
			selected = append(selected, e)
		}
	}
	if len(selected) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(selected))
	for _, e := range selected {
		line := fmt.Sprintf("  %s:%d  %s", e.Unit, e.Line, e.Rule)
		if e.Function != "" {
			line += "  in " + e.Function + "()"
		}
		if e.Check != "" {
			line += "  [" + e.Check + "]"
		}
		fmt.Fprintln(w, line)
	}
}

func markdown(rep *CoverageReport) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Rule coverage: %s\n\n", rep.Standard)
	fmt.Fprintf(&sb, "**Tolerance:** %d lines\n", rep.Tolerance)
	fmt.Fprintf(&sb, "**Strict:** %t\n", rep.Strict)
	verdict := "FAIL"
	switch {
	case len(rep.Excluded) > 0:
		verdict = "INCOMPLETE"
	case rep.Pass:
		verdict = "PASS"
	}
	fmt.Fprintf(&sb, "**Verdict:** %s\n\n", verdict)

	sb.WriteString("## Rules\n\n")
	sb.WriteString("| Rule | TP | FN | FP | Redundant | Out of scope | Recall | Precision |\n")
	sb.WriteString("| :--- | ---: | ---: | ---: | ---: | ---: | ---: | ---: |\n")
	for _, rs := range rep.Rules {
		fmt.Fprintf(&sb, "| %s | %d | %d | %d | %d | %d | %s | %s |\n", rs.Rule,
			rs.TruePositives, rs.FalseNegatives, rs.FalsePositives, rs.Redundant, rs.OutOfScope,
			pct(rs.Recall), pct(rs.Precision))
	}
	o := rep.Overall
	fmt.Fprintf(&sb, "| **Total** | %d | %d | %d | %d | %d | %s | %s |\n",
		o.TruePositives, o.FalseNegatives, o.FalsePositives, o.Redundant, o.OutOfScope,
		pct(o.Recall), pct(o.Precision))

	var missed []Entry
	for _, e := range rep.Entries {
		if e.Outcome == reconcile.FalseNegative || e.Outcome == reconcile.FalsePositive {
			missed = append(missed, e)
		}
	}
	if len(missed) > 0 {
		fmt.Fprintf(&sb, "\n## Mismatches (%d)\n\n", len(missed))
		sb.WriteString("| Outcome | Rule | Location | Check |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, e := range missed {
			fmt.Fprintf(&sb, "| %s | %s | `%s:%d` | %s |\n", e.Outcome, e.Rule, e.Unit, e.Line,
				strings.ReplaceAll(e.Check, "|", "\\|"))
		}
	}

	if len(rep.Excluded) > 0 {
		fmt.Fprintf(&sb, "\n## Excluded units (%d)\n\n", len(rep.Excluded))
		sb.WriteString("> [!WARNING]\n")
		sb.WriteString("> These units timed out twice and were not scored.\n\n")
		for _, ex := range rep.Excluded {
			fmt.Fprintf(&sb, "- `%s` (%s, %s)\n", ex.Unit, ex.Pack, ex.Timeout)
		}
	}
	return sb.String()
}
