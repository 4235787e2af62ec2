package corpus

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gzhole/rulebench/internal/rule"
)

// tagFamily binds the textual family prefix of a marker to a standard and
// the rule-code grammar that must follow it.
type tagFamily struct {
	std    rule.Standard
	prefix *regexp.Regexp
	code   *regexp.Regexp
}

// Order matters: C++ families must be tried before their C counterparts.
var tagFamilies = []tagFamily{
	{
		std:    rule.CertCPP,
		prefix: regexp.MustCompile(`^CERT[ -]?(?:C\+\+|CPP)`),
		code:   regexp.MustCompile(`^[A-Z]{3}\d{2}-(?:CPP|C)`),
	},
	{
		std:    rule.CertC,
		prefix: regexp.MustCompile(`^CERT[ -]?C`),
		code:   regexp.MustCompile(`^[A-Z]{3}\d{2}-(?:CPP|C)`),
	},
	{
		std:    rule.MisraCPP,
		prefix: regexp.MustCompile(`^MISRA[ -]?(?:C\+\+|CPP)(?:[ :-]?2008)?`),
		code:   regexp.MustCompile(`^Rule \d+-\d+-\d+`),
	},
	{
		std:    rule.MisraC,
		prefix: regexp.MustCompile(`^MISRA[ -]?C(?:[ :-]?(?:2004|2012|2023))?`),
		code:   regexp.MustCompile(`^(?:Rule|Dir) \d+\.\d+`),
	},
	{
		std:    rule.Autosar,
		prefix: regexp.MustCompile(`^AUTOSAR(?:[ -]?C\+\+14)?`),
		code:   regexp.MustCompile(`^[AM]\d+-\d+-\d+`),
	},
}

var keywordRegex = regexp.MustCompile(`\b(CERT|MISRA|AUTOSAR)\b`)

// markerTag is one parsed STANDARD RULECODE tag.
type markerTag struct {
	rule rule.ID
	line int
}

// hasKeyword reports whether text mentions a standard family keyword and
// therefore must parse as a marker.
func hasKeyword(text string) bool {
	return keywordRegex.MatchString(text)
}

// containsTag reports whether text holds at least one complete, valid
// tag. Prose that merely names a standard does not count.
func containsTag(text string) bool {
	for _, loc := range keywordRegex.FindAllStringIndex(text, -1) {
		if _, err := parseTagAt(text[loc[0]:]); err == nil {
			return true
		}
	}
	return false
}

// parseTags extracts every tag from a marker comment body. Every keyword
// occurrence must resolve to a valid tag; the parser never skips text it
// cannot understand.
func parseTags(body string) ([]rule.ID, error) {
	var ids []rule.ID
	locs := keywordRegex.FindAllStringIndex(body, -1)
	for _, loc := range locs {
		id, err := parseTagAt(body[loc[0]:])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseTagAt(s string) (rule.ID, error) {
	for _, fam := range tagFamilies {
		prefix := fam.prefix.FindString(s)
		if prefix == "" {
			continue
		}
		rest := s[len(prefix):]
		if rest != "" && !isSeparator(rest[0]) {
			continue
		}
		rest = strings.TrimLeft(rest, " \t:")

		code := fam.code.FindString(rest)
		if code == "" || !codeEnds(rest[len(code):]) {
			return rule.ID{}, fmt.Errorf("%q does not name a valid %s rule (expected %s)",
				snippet(s), fam.std, fam.std.CodeFormat())
		}
		return rule.NewID(fam.std, code)
	}
	return rule.ID{}, fmt.Errorf("%q does not name a recognized standard (expected one of CERT C, CERT C++, MISRA C, MISRA C++, AUTOSAR)",
		snippet(s))
}

func isSeparator(c byte) bool {
	return c == ' ' || c == '\t' || c == ':'
}

// codeEnds reports whether a rule code is properly terminated: the next
// character must not continue an identifier or a dotted/dashed number.
func codeEnds(rest string) bool {
	if rest == "" {
		return true
	}
	c := rest[0]
	if isAlnum(c) || c == '_' {
		return false
	}
	if (c == '.' || c == '-') && len(rest) > 1 && isAlnum(rest[1]) {
		return false
	}
	return true
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, " —"); i > 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return strings.TrimRight(s, " */")
}
