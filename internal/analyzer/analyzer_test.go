package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirkon/deepequal"

	"github.com/gzhole/rulebench/internal/logger"
	"github.com/gzhole/rulebench/internal/rule"
)

func mustID(t *testing.T, s string) rule.ID {
	t.Helper()
	id, err := rule.ParseID(s)
	if err != nil {
		t.Fatalf("ParseID(%q): %v", s, err)
	}
	return id
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"none", SeverityNote},
		{"note", SeverityNote},
		{"warning", SeverityMedium},
		{"error", SeverityHigh},
		{"Critical", SeverityCritical},
		{"style", SeverityNote},
		{"", SeverityUnknown},
		{"bogus", SeverityUnknown},
	}
	for _, tt := range tests {
		if got := ParseSeverity(tt.in); got != tt.want {
			t.Errorf("ParseSeverity(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestParseOutput_SARIF(t *testing.T) {
	data, err := os.ReadFile("testdata/codeql.sarif")
	if err != nil {
		t.Fatal(err)
	}

	diags, warnings, err := ParseOutput(FormatAuto, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []Diagnostic{
		{
			Path:     "file:///work/corpus/c/cert_c_violations.c",
			Line:     17,
			Check:    "cpp/uninitialized-local",
			Tags:     []string{"security", "external/cert/id/exp33-c"},
			Message:  "The variable 'x' may not be initialized here.",
			Severity: SeverityMedium,
		},
		{
			Path:     "file:///work/corpus/c/misra_violations.c",
			Line:     6,
			Check:    "misra-c2012-10.3",
			Tags:     []string{},
			Message:  "Implicit narrowing assignment.",
			Severity: SeverityNote,
		},
	}
	if !reflect.DeepEqual(expected, diags) {
		deepequal.SideBySide(t, "diagnostics", expected, diags)
		t.Errorf("SARIF diagnostics mismatch")
	}
	if len(warnings) != 2 {
		t.Errorf("expected 2 warnings for unusable results, got %d: %v", len(warnings), warnings)
	}
}

func TestParseOutput_GenericTolerant(t *testing.T) {
	data := strings.Join([]string{
		`{"file":"c/a.c","line":4,"rule":"cert-exp33-c","message":"uninit","severity":"error","column":9}`,
		``,
		`{"path":"c/a.c","line":7,"check_id":"misra-c2012-10.3"}`,
		`{"file":"c/a.c","line":0,"rule":"cert-mem30-c"}`,
		`{"file":"c/a.c","line":9}`,
	}, "\n")

	diags, warnings, err := ParseOutput(FormatAuto, []byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 3 {
		t.Fatalf("expected 3 diagnostics, got %d: %+v", len(diags), diags)
	}
	if diags[0].Severity != SeverityHigh || diags[0].Message != "uninit" {
		t.Errorf("first diagnostic: unexpected %+v", diags[0])
	}
	if diags[1].Check != "misra-c2012-10.3" || diags[1].Severity != SeverityUnknown || diags[1].Message != "" {
		t.Errorf("missing optional fields should default, got %+v", diags[1])
	}
	if diags[2].Check != "" {
		t.Errorf("check-less diagnostic should be kept with an empty check, got %+v", diags[2])
	}
	if len(warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", warnings)
	}
}

func TestParseOutput_JSONArray(t *testing.T) {
	data := `[{"file":"a.c","line":3,"ruleId":"A7-1-5","severity":"low"}]`
	diags, _, err := ParseOutput(FormatJSON, []byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 1 || diags[0].Check != "A7-1-5" || diags[0].Severity != SeverityLow {
		t.Errorf("unexpected diagnostics %+v", diags)
	}
}

func TestParseOutput_SyntaxError(t *testing.T) {
	tests := []struct {
		format Format
		data   string
	}{
		{FormatSARIF, `{"runs": [`},
		{FormatJSON, `[{"file":`},
		{FormatJSONL, "{\"file\":\"a.c\",\"line\":1}\nnot json"},
	}
	for _, tt := range tests {
		if _, _, err := ParseOutput(tt.format, []byte(tt.data)); err == nil {
			t.Errorf("ParseOutput(%s, %q): expected error", tt.format, tt.data)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatAuto {
		t.Errorf("empty format: expected auto, got %q (%v)", f, err)
	}
	if f, err := ParseFormat("SARIF"); err != nil || f != FormatSARIF {
		t.Errorf("SARIF: expected sarif, got %q (%v)", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Errorf("xml: expected error")
	}
}

func TestCombiner_Union(t *testing.T) {
	exp33 := mustID(t, "CERT-C/EXP33-C")
	findings := []Finding{
		{Unit: "a.c", Line: 5, Rule: exp33, Check: "cert-exp33-c", Message: "first", Severity: SeverityLow, Pack: rule.CertC, Seq: 0},
		{Unit: "a.c", Line: 9, Check: "readability-magic", Seq: 1},
		{Unit: "a.c", Line: 5, Rule: exp33, Check: "cpp/uninit", Message: "second", Severity: SeverityHigh, Pack: rule.MisraC, Seq: 2},
		{Unit: "a.c", Line: 9, Check: "readability-magic", Seq: 3},
		{Unit: "a.c", Line: 6, Rule: exp33, Pack: rule.CertC, Seq: 4},
		{Unit: "a.c", Line: 5, Rule: exp33, Check: "cert-exp33-c", Pack: rule.CertC, Seq: 5},
	}

	got := NewCombiner("").Combine(findings)
	if len(got) != 5 {
		t.Fatalf("expected 5 findings, got %d: %+v", len(got), got)
	}
	merged := got[0]
	if merged.Seq != 0 || merged.Message != "first" || merged.Severity != SeverityHigh || merged.Pack != rule.CertC {
		t.Errorf("merged duplicate should keep first seq/message and max severity, got %+v", merged)
	}
	if got[1].Seq != 1 || got[2].Seq != 3 {
		t.Errorf("unmapped findings must be kept as-is, got %+v", got)
	}
	if got[4].Seq != 5 {
		t.Errorf("a repeat within one pack must be kept, got %+v", got)
	}
	if findings[0].Severity != SeverityLow {
		t.Errorf("Combine must not modify its input")
	}

	all := NewCombiner(StrategyKeepAll).Combine(findings)
	if len(all) != len(findings) {
		t.Errorf("keep_all: expected %d findings, got %d", len(findings), len(all))
	}
}

func TestProcessAnalyzer_CommandLine(t *testing.T) {
	p := &ProcessAnalyzer{
		Executable: "scan",
		Args:       `--pack "$PACK" --standard=$STANDARD --token "$TOKEN" --root $CORPUS "$UNIT_PATH"`,
		Token:      "t0k",
	}
	target := Target{Unit: "c/a b.c", Path: "/corpus/c/a b.c", Root: "/corpus"}

	got, err := p.CommandLine(target, rule.MisraC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"--pack", "misra-c", "--standard=MISRA-C", "--token", "t0k", "--root", "/corpus", "/corpus/c/a b.c"}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("expected %q, got %q", want, got)
	}

	p.Args = ""
	got, _ = p.CommandLine(target, rule.MisraC)
	if len(got) != 1 || got[0] != "/corpus/c/a b.c" {
		t.Errorf("default template: expected the unit path, got %q", got)
	}

	p.Args = `"unterminated`
	if _, err := p.CommandLine(target, rule.MisraC); err == nil {
		t.Errorf("expected error for an invalid template")
	}
}

const fakeAnalyzer = `#!/bin/sh
# usage: fake.sh MODE PACK UNIT_PATH
case "$1" in
  ok)
    printf '{"file":"%s","line":4,"rule":"cert-exp33-c","message":"%s"}\n' "$3" "$RULEBENCH_ANALYZER_TOKEN"
    ;;
  output)
    printf '[{"file":"%s","line":8,"rule":"misra-c2012-10.3"}]' "$3" > "$4"
    ;;
  fail)
    echo "license checkout failed" >&2
    exit 3
    ;;
  garbage)
    echo "this is not json"
    ;;
  partial)
    printf '{"file":"%s","rule":"cert-exp33-c"}\n{"file":"%s","line":6,"rule":"cert-mem30-c"}\n' "$3" "$3"
    ;;
  slow)
    exec sleep 5
    ;;
esac
`

func fakeProcess(t *testing.T, mode string) (*ProcessAnalyzer, Target) {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "fake.sh")
	writeFile(t, script, fakeAnalyzer)
	unit := filepath.Join(dir, "corpus", "c", "a.c")
	writeFile(t, unit, "int main(void) { return 0; }\n")

	p := &ProcessAnalyzer{
		Executable: "/bin/sh",
		Args:       script + ` ` + mode + ` $PACK "$UNIT_PATH"`,
		Format:     FormatAuto,
		Token:      "secret-token",
	}
	return p, Target{Unit: "c/a.c", Path: unit, Root: filepath.Join(dir, "corpus")}
}

func TestProcessAnalyzer_Run(t *testing.T) {
	p, target := fakeProcess(t, "ok")

	diags, _, err := p.Analyze(context.Background(), target, rule.CertC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %+v", diags)
	}
	if diags[0].Path != target.Path || diags[0].Line != 4 || diags[0].Check != "cert-exp33-c" {
		t.Errorf("unexpected diagnostic %+v", diags[0])
	}
	if diags[0].Message != "secret-token" {
		t.Errorf("expected token in the child environment, got message %q", diags[0].Message)
	}
}

func TestProcessAnalyzer_ReturnsWarnings(t *testing.T) {
	p, target := fakeProcess(t, "partial")

	diags, warnings, err := p.Analyze(context.Background(), target, rule.CertC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 1 || diags[0].Line != 6 {
		t.Errorf("expected the complete diagnostic only, got %+v", diags)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "without a 1-based line") {
		t.Errorf("expected one warning for the diagnostic without a line, got %q", warnings)
	}
}

func TestProcessAnalyzer_OutputFile(t *testing.T) {
	p, target := fakeProcess(t, "output")
	p.Args += ` "$OUTPUT"`

	diags, _, err := p.Analyze(context.Background(), target, rule.MisraC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 1 || diags[0].Line != 8 {
		t.Errorf("expected the diagnostic written to $OUTPUT, got %+v", diags)
	}
}

func TestProcessAnalyzer_ExitCode(t *testing.T) {
	p, target := fakeProcess(t, "fail")

	_, _, err := p.Analyze(context.Background(), target, rule.CertC)
	var ie *InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InvocationError, got %v", err)
	}
	if ie.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", ie.ExitCode)
	}
	if !strings.Contains(ie.Stderr, "license checkout failed") {
		t.Errorf("expected stderr excerpt, got %q", ie.Stderr)
	}
	if ie.Hint() == "" {
		t.Errorf("expected a hint")
	}

	p.SuccessExitCodes = []int{0, 3}
	if _, _, err := p.Analyze(context.Background(), target, rule.CertC); err != nil {
		t.Errorf("exit code 3 configured as success: unexpected error %v", err)
	}
}

func TestProcessAnalyzer_UnreadableOutput(t *testing.T) {
	p, target := fakeProcess(t, "garbage")
	p.Format = FormatJSON

	_, _, err := p.Analyze(context.Background(), target, rule.CertC)
	var ie *InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InvocationError, got %v", err)
	}
}

func TestProcessAnalyzer_Timeout(t *testing.T) {
	p, target := fakeProcess(t, "slow")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, _, err := p.Analyze(ctx, target, rule.CertC)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestProcessAnalyzer_NoExecutable(t *testing.T) {
	p := &ProcessAnalyzer{}
	_, _, err := p.Analyze(context.Background(), Target{Unit: "a.c"}, rule.CertC)
	var ie *InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InvocationError, got %v", err)
	}
}

// stubAnalyzer serves fixed diagnostics per pack. The first hangs calls
// for each unit and pack block until their context is done.
type stubAnalyzer struct {
	diags    map[rule.Standard][]Diagnostic
	warnings map[rule.Standard][]string
	hangs    int
	err      error

	mu    sync.Mutex
	calls map[string]int
}

func (s *stubAnalyzer) Name() string { return "stub" }

func (s *stubAnalyzer) Analyze(ctx context.Context, target Target, std rule.Standard) ([]Diagnostic, []string, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	key := target.Unit + "|" + string(std)
	s.calls[key]++
	n := s.calls[key]
	s.mu.Unlock()

	if n <= s.hangs {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.diags[std], s.warnings[std], nil
}

func (s *stubAnalyzer) callCount(unit string, std rule.Standard) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[unit+"|"+string(std)]
}

func corpusRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "c", "a.c"), "int x;\n")
	return root
}

func TestAdapter_MapsAndUnions(t *testing.T) {
	root := corpusRoot(t)
	stub := &stubAnalyzer{diags: map[rule.Standard][]Diagnostic{
		rule.CertC: {
			{Path: "c/a.c", Line: 4, Check: "cert-exp33-c", Severity: SeverityLow},
			{Path: "include/other.h", Line: 1, Check: "cert-exp33-c"},
			{Path: filepath.Join(root, "c", "a.c"), Line: 9, Check: "readability-magic-numbers"},
		},
		rule.MisraC: {
			{Path: "c/a.c", Line: 4, Check: "cpp/uninitialized-local", Tags: []string{"external/cert/id/exp33-c"}, Severity: SeverityHigh},
			{Path: "c/a.c", Line: 7, Check: "misra-c2012-10.3"},
		},
	}}
	a := &Adapter{Analyzer: stub, Root: root, Timeout: time.Second, RetryTimeout: time.Second}

	got, err := a.Analyze(context.Background(), Target{Unit: "c/a.c", Path: filepath.Join(root, "c", "a.c"), Root: root},
		[]rule.Standard{rule.CertC, rule.MisraC})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusAnalyzed {
		t.Errorf("expected status analyzed, got %s", got.Status)
	}
	if got.Foreign != 1 {
		t.Errorf("expected 1 foreign diagnostic, got %d", got.Foreign)
	}

	var desc []string
	for _, f := range got.Findings {
		desc = append(desc, fmt.Sprintf("%s@%d#%d:%s", f.Rule, f.Line, f.Seq, f.Severity))
	}
	want := []string{
		"CERT-C/EXP33-C@4#0:high",
		"@9#1:unknown",
		"MISRA-C/Rule 10.3@7#3:unknown",
	}
	if !reflect.DeepEqual(want, desc) {
		t.Errorf("expected %q, got %q", want, desc)
	}
}

func TestAdapter_RetryThenSucceed(t *testing.T) {
	root := corpusRoot(t)
	stub := &stubAnalyzer{hangs: 1, diags: map[rule.Standard][]Diagnostic{
		rule.CertC: {{Path: "c/a.c", Line: 4, Check: "cert-exp33-c"}},
	}}
	a := &Adapter{Analyzer: stub, Root: root, Timeout: 20 * time.Millisecond, RetryTimeout: time.Second}

	got, err := a.Analyze(context.Background(), Target{Unit: "c/a.c", Root: root}, []rule.Standard{rule.CertC})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusAnalyzed || len(got.Findings) != 1 {
		t.Errorf("expected analyzed unit with 1 finding after retry, got %+v", got)
	}
	if n := stub.callCount("c/a.c", rule.CertC); n != 2 {
		t.Errorf("expected 2 invocations, got %d", n)
	}
}

func TestAdapter_ExcludesAfterSecondTimeout(t *testing.T) {
	root := corpusRoot(t)
	stub := &stubAnalyzer{hangs: 2}
	a := &Adapter{Analyzer: stub, Root: root, Timeout: 10 * time.Millisecond, RetryTimeout: 30 * time.Millisecond}

	got, err := a.Analyze(context.Background(), Target{Unit: "c/a.c", Root: root},
		[]rule.Standard{rule.CertC, rule.MisraC})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusExcluded || got.Excluded == nil {
		t.Fatalf("expected excluded unit, got %+v", got)
	}
	if got.Excluded.Timeout != 30*time.Millisecond {
		t.Errorf("expected the retry timeout in the error, got %s", got.Excluded.Timeout)
	}
	if n := stub.callCount("c/a.c", rule.MisraC); n != 0 {
		t.Errorf("remaining packs should not run after exclusion, got %d calls", n)
	}
}

func TestAdapter_AnalyzeAllAbortsOnInvocationError(t *testing.T) {
	root := corpusRoot(t)
	stub := &stubAnalyzer{err: &InvocationError{Unit: "c/a.c", Pack: rule.CertC, ExitCode: 2}}
	a := &Adapter{Analyzer: stub, Root: root, Workers: 2}

	targets := []Target{{Unit: "c/a.c", Root: root}, {Unit: "c/b.c", Root: root}}
	_, err := a.AnalyzeAll(context.Background(), targets, []rule.Standard{rule.CertC})
	var ie *InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InvocationError, got %v", err)
	}
}

func TestAdapter_AnalyzeAllKeepsOrder(t *testing.T) {
	root := t.TempDir()
	var targets []Target
	for _, name := range []string{"a.c", "b.c", "c.c", "d.c"} {
		writeFile(t, filepath.Join(root, name), "int x;\n")
		targets = append(targets, Target{Unit: name, Root: root})
	}
	a := &Adapter{Analyzer: &stubAnalyzer{}, Root: root, Workers: 3}

	got, err := a.AnalyzeAll(context.Background(), targets, []rule.Standard{rule.CertC})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, res := range got {
		if res.Unit != targets[i].Unit {
			t.Errorf("slot %d: expected %s, got %s", i, targets[i].Unit, res.Unit)
		}
	}
}

func TestReplayAnalyzer(t *testing.T) {
	root := corpusRoot(t)
	writeFile(t, filepath.Join(root, "c", "b.c"), "int y;\n")
	capture := filepath.Join(t.TempDir(), "findings.jsonl")
	writeFile(t, capture, strings.Join([]string{
		`{"file":"c/a.c","line":4,"rule":"cert-exp33-c"}`,
		`{"file":"c/b.c","line":2,"rule":"cert-exp33-c"}`,
		`{"file":"` + filepath.ToSlash(filepath.Join(root, "c", "a.c")) + `","line":6,"rule":"cert-mem30-c"}`,
	}, "\n"))

	r := &ReplayAnalyzer{Path: capture}
	diags, _, err := r.Analyze(context.Background(), Target{Unit: "c/a.c", Root: root}, rule.CertC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 2 || diags[0].Line != 4 || diags[1].Line != 6 {
		t.Errorf("expected the two c/a.c diagnostics in file order, got %+v", diags)
	}

	missing := &ReplayAnalyzer{Path: filepath.Join(t.TempDir(), "nope.jsonl")}
	_, _, err = missing.Analyze(context.Background(), Target{Unit: "c/a.c", Root: root}, rule.CertC)
	var ie *InvocationError
	if !errors.As(err, &ie) {
		t.Errorf("expected InvocationError for a missing capture, got %v", err)
	}
}

func TestAdapter_RecordsWarnings(t *testing.T) {
	root := corpusRoot(t)
	logPath := filepath.Join(t.TempDir(), "runs.jsonl")
	events, err := logger.New(logPath)
	if err != nil {
		t.Fatal(err)
	}
	stub := &stubAnalyzer{
		diags:    map[rule.Standard][]Diagnostic{rule.CertC: {{Path: "c/a.c", Line: 4, Check: "cert-exp33-c"}}},
		warnings: map[rule.Standard][]string{rule.CertC: {`diagnostic "cert-mem30-c" in c/a.c without a 1-based line`}},
	}
	a := &Adapter{Analyzer: stub, Root: root, Events: events}

	if _, err := a.Analyze(context.Background(), Target{Unit: "c/a.c", Root: root}, []rule.Standard{rule.CertC}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := events.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	var event logger.InvocationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("invalid log line %q: %v", data, err)
	}
	if event.Diagnostics != 1 || len(event.Warnings) != 1 || !strings.Contains(event.Warnings[0], "cert-mem30-c") {
		t.Errorf("expected the warning in the invocation event, got %+v", event)
	}
}

func TestAdapter_ResolvesAgainstWorkDir(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(root, "c", "a.c"), "int x;\n")
	workDir := filepath.Join(dir, "build", "out")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		t.Fatal(err)
	}

	stub := &stubAnalyzer{diags: map[rule.Standard][]Diagnostic{
		rule.CertC: {{Path: "../../src/c/a.c", Line: 4, Check: "cert-exp33-c"}},
	}}
	target := Target{Unit: "c/a.c", Path: filepath.Join(root, "c", "a.c"), Root: root}

	a := &Adapter{Analyzer: stub, Root: root, WorkDir: workDir}
	got, err := a.Analyze(context.Background(), target, []rule.Standard{rule.CertC})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Foreign != 0 || len(got.Findings) != 1 || got.Findings[0].Line != 4 {
		t.Errorf("expected the work-dir relative path to map onto the unit, got %+v", got)
	}

	a = &Adapter{Analyzer: stub, Root: root}
	got, err = a.Analyze(context.Background(), target, []rule.Standard{rule.CertC})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Foreign != 1 || len(got.Findings) != 0 {
		t.Errorf("without the work dir the path should not resolve, got %+v", got)
	}
}

func TestReplayAnalyzer_ResolvesAgainstTargetDir(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(root, "c", "a.c"), "int x;\n")
	capture := filepath.Join(dir, "findings.jsonl")
	writeFile(t, capture, `{"file":"../../src/c/a.c","line":4,"rule":"cert-exp33-c"}`+"\n")

	r := &ReplayAnalyzer{Path: capture}
	target := Target{Unit: "c/a.c", Root: root, Dir: filepath.Join(dir, "build", "out")}
	diags, _, err := r.Analyze(context.Background(), target, rule.CertC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 1 {
		t.Errorf("expected the diagnostic to resolve against the target dir, got %+v", diags)
	}
}
