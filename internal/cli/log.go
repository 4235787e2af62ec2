package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/rulebench/internal/config"
	"github.com/gzhole/rulebench/internal/logger"
)

var (
	logFilterOutcome string
	logFilterUnit    string
	logLast          int
	logSummary       bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the analyzer invocation log",
	Long: `View the JSONL invocation log written by 'rulebench run --log <file>'.

Examples:
  rulebench log --log runs.jsonl                    # Show all invocations
  rulebench log --log runs.jsonl --last 20          # Show the last 20
  rulebench log --log runs.jsonl --outcome timeout  # Only timed-out runs
  rulebench log --log runs.jsonl --summary          # Totals and slowest units`,
	Args: cobra.NoArgs,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterOutcome, "outcome", "", "Filter by outcome (ok, timeout, failed)")
	logCmd.Flags().StringVar(&logFilterUnit, "unit", "", "Filter by unit path substring")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.LogPath == "" {
		return &hintError{
			err:  fmt.Errorf("no invocation log configured"),
			hint: "pass --log <file> or set log: in " + config.DefaultConfigFile,
		}
	}

	events, err := readInvocationLog(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("failed to read invocation log: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "No invocation log entries found.")
		return nil
	}

	filtered := filterEvents(events, logFilterOutcome, logFilterUnit)
	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}
	if len(filtered) == 0 {
		fmt.Fprintln(out, "No matching invocation log entries.")
		return nil
	}

	if logSummary {
		printSummary(out, filtered)
		return nil
	}
	printEvents(out, filtered)
	return nil
}

func readInvocationLog(path string) ([]logger.InvocationEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []logger.InvocationEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event logger.InvocationEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip malformed lines
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}

func filterEvents(events []logger.InvocationEvent, outcome, unit string) []logger.InvocationEvent {
	if outcome == "" && unit == "" {
		return events
	}

	var filtered []logger.InvocationEvent
	for _, e := range events {
		if outcome != "" && !strings.EqualFold(e.Outcome, outcome) {
			continue
		}
		if unit != "" && !strings.Contains(e.Unit, unit) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func printEvents(w io.Writer, events []logger.InvocationEvent) {
	for _, e := range events {
		fmt.Fprintf(w, "%-7s %s %s [%s] attempt %d, %dms, %d diagnostics\n",
			strings.ToUpper(e.Outcome), formatTimestamp(e.Timestamp), e.Unit, e.Pack, e.Attempt, e.DurationMS, e.Diagnostics)
		if len(e.Args) > 0 {
			fmt.Fprintf(w, "     Args: %s\n", strings.Join(e.Args, " "))
		}
		for _, warn := range e.Warnings {
			fmt.Fprintf(w, "     Warning: %s\n", warn)
		}
		if e.Error != "" {
			fmt.Fprintf(w, "     Error: %s\n", e.Error)
		}
	}
}

func printSummary(w io.Writer, events []logger.InvocationEvent) {
	counts := map[string]int{}
	var total int64
	for _, e := range events {
		counts[e.Outcome]++
		total += e.DurationMS
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintln(w, "  Analyzer Invocation Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  Invocations:     %d\n", len(events))
	fmt.Fprintf(w, "  ok:              %d\n", counts[logger.OutcomeOK])
	fmt.Fprintf(w, "  timeout:         %d\n", counts[logger.OutcomeTimeout])
	fmt.Fprintf(w, "  failed:          %d\n", counts[logger.OutcomeFailed])
	fmt.Fprintf(w, "  Total time:      %s\n", time.Duration(total)*time.Millisecond)
	fmt.Fprintln(w, "═══════════════════════════════════════════")

	fmt.Fprintf(w, "  First event:     %s\n", formatTimestamp(events[0].Timestamp))
	fmt.Fprintf(w, "  Last event:      %s\n", formatTimestamp(events[len(events)-1].Timestamp))

	slowest := append([]logger.InvocationEvent(nil), events...)
	sort.SliceStable(slowest, func(i, j int) bool { return slowest[i].DurationMS > slowest[j].DurationMS })
	if len(slowest) > 5 {
		slowest = slowest[:5]
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Slowest invocations:")
	for _, e := range slowest {
		fmt.Fprintf(w, "    %6dms  %s [%s]\n", e.DurationMS, e.Unit, e.Pack)
	}
	fmt.Fprintln(w)
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
