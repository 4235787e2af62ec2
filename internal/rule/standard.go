package rule

import (
	"fmt"
	"regexp"
	"strings"
)

// Standard is one coding-standard family. The set is closed: anything else
// is rejected at parse time.
type Standard string

const (
	CertC    Standard = "CERT-C"
	CertCPP  Standard = "CERT-CPP"
	MisraC   Standard = "MISRA-C"
	MisraCPP Standard = "MISRA-CPP"
	Autosar  Standard = "AUTOSAR"
)

// Standards lists every recognized standard in canonical order.
var Standards = []Standard{CertC, CertCPP, MisraC, MisraCPP, Autosar}

var codePatterns = map[Standard]*regexp.Regexp{
	CertC:    regexp.MustCompile(`^[A-Z]{3}\d{2}-(C|CPP)$`),
	CertCPP:  regexp.MustCompile(`^[A-Z]{3}\d{2}-(C|CPP)$`),
	MisraC:   regexp.MustCompile(`^(Rule|Dir) \d+\.\d+$`),
	MisraCPP: regexp.MustCompile(`^Rule \d+-\d+-\d+$`),
	Autosar:  regexp.MustCompile(`^[AM]\d+-\d+-\d+$`),
}

var codeFormats = map[Standard]string{
	CertC:    "XXX00-C or XXX00-CPP",
	CertCPP:  "XXX00-C or XXX00-CPP",
	MisraC:   "Rule N.N or Dir N.N",
	MisraCPP: "Rule N-N-N",
	Autosar:  "AN-N-N or MN-N-N",
}

var standardAliases = map[string]Standard{
	"cert-c":         CertC,
	"cert c":         CertC,
	"certc":          CertC,
	"cert-cpp":       CertCPP,
	"cert-c++":       CertCPP,
	"cert c++":       CertCPP,
	"cert cpp":       CertCPP,
	"certcpp":        CertCPP,
	"misra-c":        MisraC,
	"misra c":        MisraC,
	"misra-c2012":    MisraC,
	"misra-c-2012":   MisraC,
	"misra c 2012":   MisraC,
	"misra-cpp":      MisraCPP,
	"misra-c++":      MisraCPP,
	"misra c++":      MisraCPP,
	"misra-cpp2008":  MisraCPP,
	"misra c++ 2008": MisraCPP,
	"autosar":        Autosar,
	"autosar-c++14":  Autosar,
	"autosar c++14":  Autosar,
	"autosar-cpp14":  Autosar,
}

// ParseStandard resolves a canonical standard name or a common alias.
func ParseStandard(s string) (Standard, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if std, ok := standardAliases[key]; ok {
		return std, nil
	}
	for _, std := range Standards {
		if strings.EqualFold(string(std), key) {
			return std, nil
		}
	}
	return "", fmt.Errorf("unknown standard %q (expected one of %s)", s, standardList())
}

// Valid reports whether s is one of the recognized standards.
func (s Standard) Valid() bool {
	_, ok := codePatterns[s]
	return ok
}

func (s Standard) String() string {
	return string(s)
}

// Rank orders standards for reports.
func (s Standard) Rank() int {
	for i, std := range Standards {
		if std == s {
			return i
		}
	}
	return len(Standards)
}

// ValidCode reports whether code matches the rule-code grammar of s.
func (s Standard) ValidCode(code string) bool {
	re, ok := codePatterns[s]
	return ok && re.MatchString(code)
}

// CodeFormat describes the expected rule-code shape for error hints.
func (s Standard) CodeFormat() string {
	return codeFormats[s]
}

func standardList() string {
	names := make([]string, len(Standards))
	for i, std := range Standards {
		names[i] = string(std)
	}
	return strings.Join(names, ", ")
}
