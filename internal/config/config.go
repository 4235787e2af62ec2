package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gzhole/rulebench/internal/analyzer"
	"github.com/gzhole/rulebench/internal/corpus"
	"github.com/gzhole/rulebench/internal/reconcile"
	"github.com/gzhole/rulebench/internal/report"
	"github.com/gzhole/rulebench/internal/rule"
)

const (
	DefaultConfigFile  = "rulebench.yaml"
	DefaultRuleMapsDir = "rulemaps"
)

// Environment variables. They override the config file; CLI flags
// override them.
const (
	EnvConfig         = "RULEBENCH_CONFIG"
	EnvAnalyzer       = "RULEBENCH_ANALYZER"
	EnvAnalyzerArgs   = "RULEBENCH_ANALYZER_ARGS"
	EnvAnalyzerFormat = "RULEBENCH_ANALYZER_FORMAT"
	EnvAnalyzerToken  = analyzer.TokenEnv
)

type Config struct {
	Corpus     string         `yaml:"corpus"`
	Standard   string         `yaml:"standard"`
	Packs      []string       `yaml:"packs"`
	Tolerance  int            `yaml:"tolerance"`
	Strict     bool           `yaml:"strict"`
	Workers    int            `yaml:"workers"`
	Extensions []string       `yaml:"extensions"`
	RuleMaps   string         `yaml:"rulemaps"`
	LogPath    string         `yaml:"log"`
	Report     ReportConfig   `yaml:"report"`
	Analyzer   AnalyzerConfig `yaml:"analyzer"`

	// Path is the config file that was loaded, if any.
	Path string `yaml:"-"`
}

type ReportConfig struct {
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AnalyzerConfig controls how the external analyzer is invoked.
type AnalyzerConfig struct {
	Executable       string   `yaml:"executable"`
	Args             string   `yaml:"args"`
	Format           string   `yaml:"format"`
	SuccessExitCodes []int    `yaml:"success_exit_codes"`
	Timeout          Duration `yaml:"timeout"`
	RetryTimeout     Duration `yaml:"retry_timeout"`
	CombineStrategy  string   `yaml:"combine_strategy"`
	WorkDir          string   `yaml:"workdir"`
	// Token is read from the environment only, never from the file.
	Token string `yaml:"-"`
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Corpus:     ".",
		Tolerance:  reconcile.DefaultTolerance,
		Workers:    runtime.NumCPU(),
		Extensions: append([]string(nil), corpus.DefaultExtensions...),
		RuleMaps:   DefaultRuleMapsDir,
		Report:     ReportConfig{Format: string(report.FormatText)},
		Analyzer: AnalyzerConfig{
			Format:           string(analyzer.FormatAuto),
			SuccessExitCodes: []int{0},
			Timeout:          Duration(analyzer.DefaultTimeout),
			RetryTimeout:     Duration(analyzer.DefaultRetryTimeout),
			CombineStrategy:  string(analyzer.StrategyUnion),
		},
	}
}

// Load builds the configuration from defaults, the config file and the
// environment. path is the --config flag; when empty, RULEBENCH_CONFIG and
// then ./rulebench.yaml are tried. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if env := getenv(EnvConfig); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultConfigFile
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.applyEnv(getenv)
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvAnalyzer); v != "" {
		c.Analyzer.Executable = v
	}
	if v := getenv(EnvAnalyzerArgs); v != "" {
		c.Analyzer.Args = v
	}
	if v := getenv(EnvAnalyzerFormat); v != "" {
		c.Analyzer.Format = v
	}
	if v := getenv(EnvAnalyzerToken); v != "" {
		c.Analyzer.Token = v
	}
}

// Validate checks the settings a run depends on. The standard is only
// required when requireStandard is set, since lint and packs work without
// one.
func (c *Config) Validate(requireStandard bool) error {
	var errs []error
	if requireStandard || c.Standard != "" {
		if _, err := rule.ParseStandard(c.Standard); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range c.Packs {
		if _, err := rule.ParseStandard(p); err != nil {
			errs = append(errs, fmt.Errorf("pack: %w", err))
		}
	}
	if c.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("tolerance must be >= 0, got %d", c.Tolerance))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.Analyzer.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("analyzer timeout must be positive"))
	}
	if c.Analyzer.RetryTimeout < c.Analyzer.Timeout {
		errs = append(errs, fmt.Errorf("analyzer retry_timeout (%s) must not be shorter than timeout (%s)",
			c.Analyzer.RetryTimeout.Std(), c.Analyzer.Timeout.Std()))
	}
	if _, err := analyzer.ParseFormat(c.Analyzer.Format); err != nil {
		errs = append(errs, err)
	}
	switch analyzer.CombineStrategy(c.Analyzer.CombineStrategy) {
	case "", analyzer.StrategyUnion, analyzer.StrategyKeepAll:
	default:
		errs = append(errs, fmt.Errorf("unknown combine_strategy %q (expected union or keep_all)", c.Analyzer.CombineStrategy))
	}
	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// StandardUnderTest parses Standard.
func (c *Config) StandardUnderTest() (rule.Standard, error) {
	return rule.ParseStandard(c.Standard)
}

// ExtraPacks parses Packs.
func (c *Config) ExtraPacks() ([]rule.Standard, error) {
	packs := make([]rule.Standard, 0, len(c.Packs))
	for _, p := range c.Packs {
		std, err := rule.ParseStandard(p)
		if err != nil {
			return nil, err
		}
		packs = append(packs, std)
	}
	return packs, nil
}
