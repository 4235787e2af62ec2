// Package charscan finds characters in corpus sources that make the
// displayed text differ from what a compiler or the annotation parser sees:
// bidirectional controls ("Trojan Source"), invisible characters and
// look-alike letters inside rule names.
package charscan

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Severity of a hazard.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Hazard is one suspicious character in a source unit.
type Hazard struct {
	Unit        string `json:"unit" yaml:"unit"`
	Line        int    `json:"line" yaml:"line"`
	Column      int    `json:"column" yaml:"column"` // 1-based, in bytes
	Category    string `json:"category" yaml:"category"`
	Codepoint   string `json:"codepoint" yaml:"codepoint"`
	Description string `json:"description" yaml:"description"`
	Severity    string `json:"severity" yaml:"severity"`
}

func (h Hazard) String() string {
	return fmt.Sprintf("%s:%d:%d: %s %s: %s", h.Unit, h.Line, h.Column, h.Severity, h.Codepoint, h.Description)
}

// ScanSource reports every hazard in r. A byte order mark at the very
// start of the unit is allowed.
func ScanSource(unit string, r io.Reader) ([]Hazard, error) {
	var hazards []Hazard
	br := bufio.NewReader(r)
	lineNo := 0
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lineNo++
			if lineNo == 1 {
				line = strings.TrimPrefix(line, "\uFEFF")
			}
			hazards = append(hazards, ScanLine(unit, lineNo, line)...)
		}
		if err == io.EOF {
			return hazards, nil
		}
		if err != nil {
			return hazards, err
		}
	}
}

// ScanLine reports the hazards in one physical line.
func ScanLine(unit string, lineNo int, line string) []Hazard {
	var hazards []Hazard
	i := 0
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		if r == utf8.RuneError && size == 1 {
			hazards = append(hazards, Hazard{
				Unit:        unit,
				Line:        lineNo,
				Column:      i + 1,
				Category:    "invalid-utf8",
				Codepoint:   fmt.Sprintf("0x%02X", line[i]),
				Description: "invalid UTF-8 byte sequence",
				Severity:    SeverityWarning,
			})
			i++
			continue
		}
		if category, desc, severity, found := classifyRune(r); found {
			hazards = append(hazards, Hazard{
				Unit:        unit,
				Line:        lineNo,
				Column:      i + 1,
				Category:    category,
				Codepoint:   fmt.Sprintf("U+%04X", r),
				Description: desc,
				Severity:    severity,
			})
		}
		i += size
	}
	return hazards
}

// Errors returns the hazards of error severity.
func Errors(hazards []Hazard) []Hazard {
	var out []Hazard
	for _, h := range hazards {
		if h.Severity == SeverityError {
			out = append(out, h)
		}
	}
	return out
}

func classifyRune(r rune) (category, description, severity string, found bool) {
	switch {
	case isBidiControl(r):
		return "bidi-control", "bidirectional control character reorders the displayed source", SeverityError, true
	case isZeroWidth(r):
		return "zero-width", "invisible character can hide text from review", SeverityError, true
	case isTagCharacter(r):
		return "tag-char", "Unicode tag character is invisible", SeverityError, true
	case isUnsafeControl(r):
		return "control-char", "control character in source text", SeverityWarning, true
	}
	if latin, ok := cyrillicHomoglyphs[r]; ok && unicode.Is(unicode.Cyrillic, r) {
		return "homoglyph-cyrillic", fmt.Sprintf("Cyrillic letter looks like Latin '%c'", latin), SeverityWarning, true
	}
	if latin, ok := greekHomoglyphs[r]; ok && unicode.Is(unicode.Greek, r) {
		return "homoglyph-greek", fmt.Sprintf("Greek letter looks like Latin '%c'", latin), SeverityWarning, true
	}
	if latin, ok := dashHomoglyphs[r]; ok {
		return "homoglyph-punctuation", fmt.Sprintf("punctuation looks like ASCII '%c'", latin), SeverityWarning, true
	}
	return "", "", "", false
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', // ZERO WIDTH SPACE
		'\u200C', // ZERO WIDTH NON-JOINER
		'\u200D', // ZERO WIDTH JOINER
		'\uFEFF', // ZERO WIDTH NO-BREAK SPACE (BOM)
		'\u2060', // WORD JOINER
		'\u180E', // MONGOLIAN VOWEL SEPARATOR
		'\u00AD': // SOFT HYPHEN
		return true
	}
	return false
}

func isBidiControl(r rune) bool {
	switch r {
	case '\u202A', // LEFT-TO-RIGHT EMBEDDING
		'\u202B', // RIGHT-TO-LEFT EMBEDDING
		'\u202C', // POP DIRECTIONAL FORMATTING
		'\u202D', // LEFT-TO-RIGHT OVERRIDE
		'\u202E', // RIGHT-TO-LEFT OVERRIDE
		'\u2066', // LEFT-TO-RIGHT ISOLATE
		'\u2067', // RIGHT-TO-LEFT ISOLATE
		'\u2068', // FIRST STRONG ISOLATE
		'\u2069', // POP DIRECTIONAL ISOLATE
		'\u200E', // LEFT-TO-RIGHT MARK
		'\u200F', // RIGHT-TO-LEFT MARK
		'\u061C': // ARABIC LETTER MARK
		return true
	}
	return false
}

func isTagCharacter(r rune) bool {
	return r >= 0xE0001 && r <= 0xE007F
}

// isUnsafeControl excludes tab, newline, carriage return and form feed,
// which legitimately appear in C sources.
func isUnsafeControl(r rune) bool {
	switch r {
	case '\t', '\n', '\r', '\f':
		return false
	}
	return r <= 0x1F || r == 0x7F || (r >= 0x80 && r <= 0x9F)
}

var cyrillicHomoglyphs = map[rune]rune{
	'а': 'a',
	'А': 'A',
	'В': 'B',
	'с': 'c',
	'С': 'C',
	'е': 'e',
	'Е': 'E',
	'Н': 'H',
	'і': 'i',
	'І': 'I',
	'К': 'K',
	'М': 'M',
	'о': 'o',
	'О': 'O',
	'р': 'p',
	'Р': 'P',
	'Т': 'T',
	'х': 'x',
	'Х': 'X',
	'у': 'y',
	'У': 'Y',
}

var greekHomoglyphs = map[rune]rune{
	'Α': 'A',
	'Β': 'B',
	'Ε': 'E',
	'Η': 'H',
	'Ι': 'I',
	'Κ': 'K',
	'Μ': 'M',
	'Ν': 'N',
	'Ο': 'O',
	'ο': 'o',
	'Ρ': 'P',
	'Τ': 'T',
	'Χ': 'X',
	'Υ': 'Y',
	'Ζ': 'Z',
}

// Hyphen look-alikes break rule codes such as EXP33-C while reading the
// same. U+2014 (em dash) is common in prose comments and is not listed.
var dashHomoglyphs = map[rune]rune{
	'\u2010': '-', // HYPHEN
	'\u2011': '-', // NON-BREAKING HYPHEN
	'\u2012': '-', // FIGURE DASH
	'\u2212': '-', // MINUS SIGN
	'\uFF0D': '-', // FULLWIDTH HYPHEN-MINUS
}
