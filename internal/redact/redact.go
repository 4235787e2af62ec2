package redact

import (
	"regexp"
	"sort"
	"strings"
)

var sensitivePatterns = []*regexp.Regexp{
	// License servers and analyzer tokens passed on the command line
	regexp.MustCompile(`(?i)(--?(license|licence|token|api-key|apikey|password)[=\s])\S{6,}`),
	regexp.MustCompile(`(?i)(license_key|licence_key|license_token|analyzer_token)\s*[=:]\s*['"]?[^\s'"]{6,}['"]?`),

	// GitHub (CI runners invoking the benchmark)
	regexp.MustCompile(`(?i)(github_token|gh_token|github_pat)\s*[=:]\s*['"]?[A-Za-z0-9_-]{30,}['"]?`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),

	// Generic API keys
	regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|secretkey|secret-key|access_token|auth_token)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`),

	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_.-]{20,}`),

	// Basic auth in URLs
	regexp.MustCompile(`https?://[^:/\s]+:[^@\s]+@`),

	regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`),
}

const redactedPlaceholder = "[REDACTED]"

var sensitiveEnvNames = []string{
	"RULEBENCH_ANALYZER_TOKEN",
	"LICENSE",
	"LICENCE",
	"GITHUB_TOKEN",
	"GH_TOKEN",
	"GITHUB_PAT",
	"API_KEY",
	"SECRET_KEY",
	"AUTH_TOKEN",
	"ACCESS_TOKEN",
	"PASSWORD",
	"PASSWD",
}

// Redactor scrubs known secret values and secret-looking patterns from
// strings destined for logs and error messages.
type Redactor struct {
	secrets []string
}

// New returns a Redactor that, on top of the built-in patterns, replaces
// every occurrence of the given literal values. Empty values are ignored.
func New(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		if s != "" {
			r.secrets = append(r.secrets, s)
		}
	}
	// Longest first so a secret that contains another is replaced whole.
	sort.Slice(r.secrets, func(i, j int) bool {
		return len(r.secrets[i]) > len(r.secrets[j])
	})
	return r
}

// String redacts a single string.
func (r *Redactor) String(input string) string {
	result := input
	if r != nil {
		for _, s := range r.secrets {
			result = strings.ReplaceAll(result, s, redactedPlaceholder)
		}
	}
	return Redact(result)
}

// Args redacts every element of an argument vector.
func (r *Redactor) Args(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = r.String(arg)
	}
	return result
}

// Env redacts NAME=value pairs whose name looks sensitive, and any value
// containing a known secret.
func (r *Redactor) Env(envVars []string) []string {
	result := RedactEnvVars(envVars)
	for i, env := range result {
		if strings.HasSuffix(env, "="+redactedPlaceholder) {
			continue
		}
		result[i] = r.String(env)
	}
	return result
}

func Redact(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, redactedPlaceholder)
	}
	return result
}

func RedactEnvVars(envVars []string) []string {
	result := make([]string, 0, len(envVars))
	for _, env := range envVars {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			result = append(result, env)
			continue
		}

		name := strings.ToUpper(parts[0])
		isSensitive := false
		for _, sensitive := range sensitiveEnvNames {
			if strings.Contains(name, sensitive) {
				isSensitive = true
				break
			}
		}

		if isSensitive {
			result = append(result, parts[0]+"="+redactedPlaceholder)
		} else {
			result = append(result, env)
		}
	}
	return result
}
