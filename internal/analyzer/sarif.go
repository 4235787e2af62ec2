package analyzer

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// SARIF 2.1.0 subset. Unknown fields are ignored by encoding/json.

type sarifLog struct {
	Runs []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool               sarifTool                   `json:"tool"`
	Results            []sarifResult               `json:"results"`
	Artifacts          []sarifArtifact             `json:"artifacts"`
	OriginalURIBaseIDs map[string]sarifArtifactLoc `json:"originalUriBaseIds"`
}

type sarifTool struct {
	Driver     sarifDriver   `json:"driver"`
	Extensions []sarifDriver `json:"extensions"`
}

type sarifDriver struct {
	Name  string      `json:"name"`
	Rules []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID                   string          `json:"id"`
	Properties           sarifProperties `json:"properties"`
	DefaultConfiguration struct {
		Level string `json:"level"`
	} `json:"defaultConfiguration"`
}

type sarifProperties struct {
	Tags            []string `json:"tags"`
	ProblemSeverity string   `json:"problem.severity"`
	Severity        string   `json:"severity"`
}

type sarifResult struct {
	RuleID    string `json:"ruleId"`
	RuleIndex *int   `json:"ruleIndex"`
	Rule      *struct {
		ID    string `json:"id"`
		Index *int   `json:"index"`
	} `json:"rule"`
	Level   string `json:"level"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	Locations  []sarifLocation `json:"locations"`
	Properties sarifProperties `json:"properties"`
}

type sarifLocation struct {
	PhysicalLocation struct {
		ArtifactLocation sarifArtifactLoc `json:"artifactLocation"`
		Region           struct {
			StartLine int `json:"startLine"`
		} `json:"region"`
	} `json:"physicalLocation"`
}

type sarifArtifact struct {
	Location sarifArtifactLoc `json:"location"`
}

type sarifArtifactLoc struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
	Index     *int   `json:"index"`
}

// parseSARIF converts every result of every run into a Diagnostic. Results
// without a usable location are skipped and described in the returned
// warnings.
func parseSARIF(data []byte) ([]Diagnostic, []string, error) {
	var doc sarifLog
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("invalid SARIF: %w", err)
	}

	var diags []Diagnostic
	var warnings []string
	for ri, run := range doc.Runs {
		rules := run.Tool.Driver.Rules
		byID := make(map[string]sarifRule)
		for _, d := range append([]sarifDriver{run.Tool.Driver}, run.Tool.Extensions...) {
			for _, r := range d.Rules {
				if _, ok := byID[r.ID]; !ok {
					byID[r.ID] = r
				}
			}
		}

		for i, res := range run.Results {
			check, ruleDef := resolveSARIFRule(res, rules, byID)
			if len(res.Locations) == 0 {
				warnings = append(warnings, fmt.Sprintf("run %d result %d (%s): no location", ri, i, check))
				continue
			}
			loc := res.Locations[0].PhysicalLocation
			uri := artifactURI(run, loc.ArtifactLocation)
			if uri == "" || loc.Region.StartLine < 1 {
				warnings = append(warnings, fmt.Sprintf("run %d result %d (%s): missing path or line", ri, i, check))
				continue
			}

			level := res.Level
			if level == "" {
				level = ruleDef.DefaultConfiguration.Level
			}
			if level == "" {
				level = firstNonEmpty(res.Properties.ProblemSeverity, ruleDef.Properties.ProblemSeverity,
					res.Properties.Severity, ruleDef.Properties.Severity)
			}

			tags := append(append([]string{}, ruleDef.Properties.Tags...), res.Properties.Tags...)
			diags = append(diags, Diagnostic{
				Path:     uri,
				Line:     loc.Region.StartLine,
				Check:    check,
				Tags:     tags,
				Message:  res.Message.Text,
				Severity: ParseSeverity(level),
			})
		}
	}
	return diags, warnings, nil
}

func resolveSARIFRule(res sarifResult, rules []sarifRule, byID map[string]sarifRule) (string, sarifRule) {
	id := res.RuleID
	index := res.RuleIndex
	if res.Rule != nil {
		if id == "" {
			id = res.Rule.ID
		}
		if index == nil {
			index = res.Rule.Index
		}
	}
	if index != nil && *index >= 0 && *index < len(rules) {
		def := rules[*index]
		if id == "" {
			id = def.ID
		}
		return id, def
	}
	return id, byID[id]
}

// artifactURI resolves an artifact location, following artifact indexes
// and uriBaseId indirections.
func artifactURI(run sarifRun, loc sarifArtifactLoc) string {
	uri := loc.URI
	baseID := loc.URIBaseID
	if uri == "" && loc.Index != nil && *loc.Index >= 0 && *loc.Index < len(run.Artifacts) {
		art := run.Artifacts[*loc.Index].Location
		uri = art.URI
		if baseID == "" {
			baseID = art.URIBaseID
		}
	}
	if uri == "" || baseID == "" {
		return uri
	}
	base, ok := run.OriginalURIBaseIDs[baseID]
	if !ok || base.URI == "" {
		return uri
	}
	if u, err := url.Parse(uri); err == nil && u.IsAbs() {
		return uri
	}
	return strings.TrimSuffix(base.URI, "/") + "/" + path.Clean(uri)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
