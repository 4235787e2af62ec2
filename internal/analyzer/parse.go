package analyzer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Format is the shape of the analyzer's diagnostic stream.
type Format string

const (
	FormatAuto  Format = "auto"
	FormatSARIF Format = "sarif"
	FormatJSON  Format = "json"  // array of generic diagnostics
	FormatJSONL Format = "jsonl" // one generic diagnostic per line
)

// ParseFormat validates a format name; the empty string means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatSARIF, FormatJSON, FormatJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("unknown analyzer output format %q (expected auto, sarif, json or jsonl)", s)
	}
}

// genericDiagnostic is the tool-neutral diagnostic record. Several field
// spellings are accepted so that thin wrapper scripts around clang-tidy,
// cppcheck or commercial tools need no reshaping.
type genericDiagnostic struct {
	File     string   `json:"file"`
	Path     string   `json:"path"`
	Line     int      `json:"line"`
	Rule     string   `json:"rule"`
	Check    string   `json:"check"`
	CheckID  string   `json:"check_id"`
	RuleID   string   `json:"ruleId"`
	Message  string   `json:"message"`
	Severity string   `json:"severity"`
	Tags     []string `json:"tags"`
}

func (g genericDiagnostic) toDiagnostic() Diagnostic {
	return Diagnostic{
		Path:     firstNonEmpty(g.File, g.Path),
		Line:     g.Line,
		Check:    firstNonEmpty(g.Rule, g.Check, g.CheckID, g.RuleID),
		Tags:     g.Tags,
		Message:  g.Message,
		Severity: ParseSeverity(g.Severity),
	}
}

// ParseOutput decodes an analyzer's output. A document that cannot be
// decoded at all is an error; individual diagnostics lacking a path or a
// line are dropped and described in warnings. Diagnostics without a check
// are kept and end up unmapped.
func ParseOutput(format Format, data []byte) ([]Diagnostic, []string, error) {
	if format == FormatAuto || format == "" {
		format = detectFormat(data)
	}

	switch format {
	case FormatSARIF:
		diags, warnings, err := parseSARIF(data)
		if err != nil {
			return nil, nil, err
		}
		kept, more := dropIncomplete(diags)
		return kept, append(warnings, more...), nil
	case FormatJSON:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 {
			return nil, nil, nil
		}
		var raw []genericDiagnostic
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, nil, fmt.Errorf("invalid JSON diagnostics: %w", err)
		}
		diags := make([]Diagnostic, 0, len(raw))
		for _, g := range raw {
			diags = append(diags, g.toDiagnostic())
		}
		kept, warnings := dropIncomplete(diags)
		return kept, warnings, nil
	case FormatJSONL:
		var diags []Diagnostic
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var g genericDiagnostic
			if err := json.Unmarshal(line, &g); err != nil {
				return nil, nil, fmt.Errorf("invalid JSONL diagnostic on line %d: %w", lineNo, err)
			}
			diags = append(diags, g.toDiagnostic())
		}
		if err := scanner.Err(); err != nil {
			return nil, nil, err
		}
		kept, warnings := dropIncomplete(diags)
		return kept, warnings, nil
	default:
		return nil, nil, fmt.Errorf("unknown analyzer output format %q", format)
	}
}

func detectFormat(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return FormatJSONL
	case trimmed[0] == '[':
		return FormatJSON
	case trimmed[0] == '{' && bytes.Contains(trimmed, []byte(`"runs"`)) && !bytes.Contains(trimmed, []byte("}\n{")):
		return FormatSARIF
	default:
		return FormatJSONL
	}
}

func dropIncomplete(diags []Diagnostic) ([]Diagnostic, []string) {
	kept := diags[:0]
	var warnings []string
	for _, d := range diags {
		switch {
		case d.Path == "":
			warnings = append(warnings, fmt.Sprintf("diagnostic %q without a file path", d.Check))
		case d.Line < 1:
			warnings = append(warnings, fmt.Sprintf("diagnostic %q in %s without a 1-based line", d.Check, d.Path))
		default:
			kept = append(kept, d)
		}
	}
	return kept, warnings
}
