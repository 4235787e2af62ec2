package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"mvdan.cc/sh/v3/shell"

	"github.com/gzhole/rulebench/internal/redact"
	"github.com/gzhole/rulebench/internal/rule"
)

// TokenEnv is the environment variable that carries the analyzer's
// license/config token into the child process.
const TokenEnv = "RULEBENCH_ANALYZER_TOKEN"

// maxStderr bounds the stderr excerpt kept in an InvocationError.
const maxStderr = 4096

// ProcessAnalyzer runs an external analyzer executable once per unit and
// pack. Args is a shell-word template; the variables $UNIT, $UNIT_PATH,
// $STANDARD, $PACK, $CORPUS, $TOKEN and $OUTPUT are expanded per
// invocation and every other variable comes from the environment. When the
// template references $OUTPUT the diagnostics are read from that file,
// otherwise from stdout.
type ProcessAnalyzer struct {
	Executable       string
	Args             string
	Format           Format
	Token            string
	SuccessExitCodes []int
	Dir              string
	Log              *zap.SugaredLogger
}

func (p *ProcessAnalyzer) Name() string {
	return "process"
}

// PackName is the value of $PACK for a standard, e.g. "misra-c".
func PackName(std rule.Standard) string {
	return strings.ToLower(string(std))
}

// CommandLine returns the expanded argument vector for one invocation.
// The returned vector may contain the token; redact it before logging.
func (p *ProcessAnalyzer) CommandLine(target Target, std rule.Standard) ([]string, error) {
	args, _, err := p.expand(target, std, "")
	return args, err
}

func (p *ProcessAnalyzer) expand(target Target, std rule.Standard, outputPath string) ([]string, bool, error) {
	usesOutput := false
	vars := map[string]string{
		"UNIT":      target.Unit,
		"UNIT_PATH": target.Path,
		"STANDARD":  string(std),
		"PACK":      PackName(std),
		"CORPUS":    target.Root,
		"TOKEN":     p.Token,
	}
	env := func(name string) string {
		if name == "OUTPUT" {
			usesOutput = true
			return outputPath
		}
		if v, ok := vars[name]; ok {
			return v
		}
		return os.Getenv(name)
	}

	template := p.Args
	if strings.TrimSpace(template) == "" {
		template = `"$UNIT_PATH"`
	}
	args, err := shell.Fields(template, env)
	if err != nil {
		return nil, false, fmt.Errorf("invalid analyzer argument template %q: %w", template, err)
	}
	return args, usesOutput, nil
}

// Analyze runs the executable for one unit and pack. A context deadline
// surfaces as a *TimeoutError; a crash, an exit status outside
// SuccessExitCodes or undecodable output as an *InvocationError.
func (p *ProcessAnalyzer) Analyze(ctx context.Context, target Target, std rule.Standard) ([]Diagnostic, []string, error) {
	log := p.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if p.Executable == "" {
		return nil, nil, &InvocationError{Unit: target.Unit, Pack: std,
			Err: errors.New("no analyzer executable configured (set RULEBENCH_ANALYZER)")}
	}

	tmpDir, err := os.MkdirTemp("", "rulebench-")
	if err != nil {
		return nil, nil, err
	}
	defer os.RemoveAll(tmpDir)
	outputPath := filepath.Join(tmpDir, "diagnostics")

	args, usesOutput, err := p.expand(target, std, outputPath)
	if err != nil {
		return nil, nil, &InvocationError{Unit: target.Unit, Pack: std, Err: err}
	}

	cmd := exec.CommandContext(ctx, p.Executable, args...)
	cmd.Dir = p.Dir
	cmd.Env = os.Environ()
	if p.Token != "" {
		cmd.Env = append(cmd.Env, TokenEnv+"="+p.Token)
	}
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r := redact.New(p.Token)
	log.Debugw("running analyzer", "unit", target.Unit, "pack", std,
		"executable", p.Executable, "args", r.Args(args), "env", r.Env(harnessEnv(cmd.Env)))

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, nil, &TimeoutError{Unit: target.Unit, Pack: std}
		}
		return nil, nil, ctxErr
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, nil, &InvocationError{Unit: target.Unit, Pack: std, Err: runErr}
		}
		if !p.successCode(exitErr.ExitCode()) {
			return nil, nil, &InvocationError{
				Unit:     target.Unit,
				Pack:     std,
				ExitCode: exitErr.ExitCode(),
				Stderr:   r.String(truncate(stderr.String(), maxStderr)),
			}
		}
	}

	data := stdout.Bytes()
	if usesOutput {
		data, err = os.ReadFile(outputPath)
		if err != nil {
			return nil, nil, &InvocationError{Unit: target.Unit, Pack: std,
				Err: fmt.Errorf("reading $OUTPUT: %w", err)}
		}
	}

	diags, warnings, err := ParseOutput(p.Format, data)
	if err != nil {
		return nil, nil, &InvocationError{Unit: target.Unit, Pack: std, Err: err,
			Stderr: r.String(truncate(stderr.String(), maxStderr))}
	}
	return diags, warnings, nil
}

func (p *ProcessAnalyzer) successCode(code int) bool {
	codes := p.SuccessExitCodes
	if len(codes) == 0 {
		codes = []int{0}
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// harnessEnv returns the RULEBENCH_ variables passed to the child.
func harnessEnv(env []string) []string {
	var out []string
	for _, kv := range env {
		if strings.HasPrefix(kv, "RULEBENCH_") {
			out = append(out, kv)
		}
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
