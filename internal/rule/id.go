package rule

import (
	"fmt"
	"strings"
)

// ID identifies one rule of one standard, e.g. CERT-C/EXP33-C.
type ID struct {
	Standard Standard `json:"standard" yaml:"standard"`
	Code     string   `json:"code" yaml:"code"`
}

// NewID validates code against the grammar of std.
func NewID(std Standard, code string) (ID, error) {
	if !std.Valid() {
		return ID{}, fmt.Errorf("unknown standard %q", std)
	}
	if !std.ValidCode(code) {
		return ID{}, fmt.Errorf("rule code %q is not a valid %s code (expected %s)", code, std, std.CodeFormat())
	}
	return ID{Standard: std, Code: code}, nil
}

// ParseID parses the STANDARD/CODE form produced by String.
func ParseID(s string) (ID, error) {
	stdPart, code, ok := strings.Cut(s, "/")
	if !ok {
		return ID{}, fmt.Errorf("rule id %q: expected STANDARD/CODE", s)
	}
	std, err := ParseStandard(stdPart)
	if err != nil {
		return ID{}, fmt.Errorf("rule id %q: %w", s, err)
	}
	return NewID(std, strings.TrimSpace(code))
}

// IsZero reports whether id is the zero value (an unmapped rule).
func (id ID) IsZero() bool {
	return id.Standard == "" && id.Code == ""
}

func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	return string(id.Standard) + "/" + id.Code
}

// Compare orders ids by standard and then by rule code, comparing digit
// runs numerically so that Rule 2.2 sorts before Rule 10.1.
func Compare(a, b ID) int {
	if a.Standard != b.Standard {
		ra, rb := a.Standard.Rank(), b.Standard.Rank()
		if ra != rb {
			return ra - rb
		}
		return strings.Compare(string(a.Standard), string(b.Standard))
	}
	return NaturalCompare(a.Code, b.Code)
}

// NaturalCompare compares strings treating runs of ASCII digits as numbers.
func NaturalCompare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				return len(na) - len(nb)
			}
			if c := strings.Compare(na, nb); c != 0 {
				return c
			}
			continue
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
		i++
		j++
	}
	return (len(a) - i) - (len(b) - j)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
