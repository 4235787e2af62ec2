package corpus

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gzhole/rulebench/internal/rule"
)

// ExpectedViolation is one intentional rule breach declared by the corpus.
// Line is the physical line of the violating statement; MarkerLine is the
// line of the comment that declared it.
type ExpectedViolation struct {
	Unit       string  `json:"unit" yaml:"unit"`
	Line       int     `json:"line" yaml:"line"`
	Rule       rule.ID `json:"rule" yaml:"rule"`
	Function   string  `json:"function,omitempty" yaml:"function,omitempty"`
	MarkerLine int     `json:"marker_line" yaml:"marker_line"`
}

var (
	funcHeaderRegex = regexp.MustCompile(`(~?[A-Za-z_]\w*(?:::~?[A-Za-z_]\w*)*)\s*\(`)
	scopeRegex      = regexp.MustCompile(`^\s*(?:namespace\b|extern\s+"C"|(?:template\s*<.*>\s*)?(?:class|struct|union)\b)`)
)

var notFunctionNames = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"sizeof": true, "catch": true, "static_assert": true, "decltype": true,
	"alignof": true, "alignas": true, "defined": true, "noexcept": true,
	"__attribute__": true, "__declspec": true,
}

type frameKind int

const (
	frameScope frameKind = iota // namespace, extern "C", class body
	frameFunction
	frameBlock
)

type frame struct {
	kind frameKind
	name string
}

// functionTracker follows brace nesting to name the function enclosing a
// line. It is a heuristic over the lexer's code text, not a C++ parser.
type functionTracker struct {
	stack        []frame
	pendingFunc  string
	pendingScope bool
}

func (ft *functionTracker) current() string {
	for i := len(ft.stack) - 1; i >= 0; i-- {
		if ft.stack[i].kind == frameFunction {
			return ft.stack[i].name
		}
	}
	return ""
}

// atDeclarationLevel reports whether function definitions can start here.
func (ft *functionTracker) atDeclarationLevel() bool {
	for _, f := range ft.stack {
		if f.kind != frameScope {
			return false
		}
	}
	return true
}

// advance consumes one line of code text and returns the function the line
// belongs to.
func (ft *functionTracker) advance(code string) string {
	trimmed := strings.TrimSpace(code)
	if strings.HasPrefix(trimmed, "#") {
		return ft.current()
	}

	name := ft.current()
	if ft.atDeclarationLevel() && trimmed != "" {
		if scopeRegex.MatchString(code) && !strings.Contains(code, "(") {
			ft.pendingScope = true
		} else if m := funcHeaderRegex.FindStringSubmatch(code); m != nil && !notFunctionNames[m[1]] && ft.pendingFunc == "" {
			ft.pendingFunc = m[1]
		}
		if ft.pendingFunc != "" {
			name = ft.pendingFunc
		}
	}

	for i := 0; i < len(code); i++ {
		switch code[i] {
		case '{':
			switch {
			case ft.pendingFunc != "" && ft.atDeclarationLevel():
				ft.stack = append(ft.stack, frame{kind: frameFunction, name: ft.pendingFunc})
			case ft.pendingScope && ft.atDeclarationLevel():
				ft.stack = append(ft.stack, frame{kind: frameScope})
			default:
				ft.stack = append(ft.stack, frame{kind: frameBlock})
			}
			ft.pendingFunc = ""
			ft.pendingScope = false
		case '}':
			if len(ft.stack) > 0 {
				ft.stack = ft.stack[:len(ft.stack)-1]
			}
		case ';':
			if ft.atDeclarationLevel() {
				ft.pendingFunc = ""
				ft.pendingScope = false
			}
		}
	}
	return name
}

// pendingMarker is a parsed marker line waiting for its statement.
type pendingMarker struct {
	line  int
	rules []rule.ID
}

// ParseSource extracts the expected violations of one unit.
//
// Marker policy: a marker is a comment that is alone on its line (a //
// comment or a /* */ comment closed on the same line). A run of consecutive
// marker lines applies to the first line after the run, so a single marker
// sits at offset +1 from its statement. Text inside multi-line block
// comments is documentation and never a marker; a complete rule tag there
// (a banner above a function, say) is a FormatError, since it names a
// violation without binding it to a line.
func ParseSource(unit string, r io.Reader) ([]ExpectedViolation, []*FormatError) {
	var (
		expected []ExpectedViolation
		errs     []*FormatError
		pending  []pendingMarker
		lx       lexer
		ft       functionTracker
	)
	seen := make(map[string]int)

	flushError := func(why string) {
		for _, pm := range pending {
			errs = append(errs, formatErrorf(unit, pm.line, HintPlacement,
				"marker is not immediately above a statement (%s)", why))
		}
		pending = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		continuing := lx.inBlock
		ls := lx.scan(text)
		fn := ft.advance(ls.code)

		if continuing && len(ls.comments) > 0 && containsTag(ls.comments[0].text) {
			errs = append(errs, formatErrorf(unit, lineNo, HintPlacement,
				"rule tag inside a multi-line block comment is not bound to a statement"))
		}

		if ls.hasCode() {
			for idx, c := range ls.comments {
				if continuing && idx == 0 {
					continue
				}
				if hasKeyword(c.text) {
					errs = append(errs, formatErrorf(unit, lineNo, HintPlacement,
						"annotation must sit on its own line above the violating statement"))
					break
				}
			}
			for _, pm := range pending {
				for _, id := range pm.rules {
					key := id.String() + "@" + strconv.Itoa(lineNo)
					if prev, dup := seen[key]; dup {
						errs = append(errs, formatErrorf(unit, pm.line, HintDuplicate,
							"duplicate annotation %s for line %d (already declared at line %d)", id, lineNo, prev))
						continue
					}
					seen[key] = pm.line
					expected = append(expected, ExpectedViolation{
						Unit:       unit,
						Line:       lineNo,
						Rule:       id,
						Function:   fn,
						MarkerLine: pm.line,
					})
				}
			}
			pending = nil
			continue
		}

		if len(ls.comments) == 0 {
			if len(pending) > 0 {
				flushError(fmt.Sprintf("line %d is blank", lineNo))
			}
			continue
		}

		marker, isMarker, err := markerFromLine(ls, continuing)
		if err != nil {
			errs = append(errs, &FormatError{Unit: unit, Line: lineNo, Msg: err.Error(), hint: hintFor(err)})
			continue
		}
		if !isMarker {
			if len(pending) > 0 {
				flushError(fmt.Sprintf("line %d is a comment", lineNo))
			}
			continue
		}
		marker.line = lineNo
		pending = append(pending, marker)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, formatErrorf(unit, lineNo, "", "read failed: %v", err))
		return nil, errs
	}
	if len(pending) > 0 {
		flushError("end of file")
	}

	sort.SliceStable(expected, func(i, j int) bool {
		if expected[i].Line != expected[j].Line {
			return expected[i].Line < expected[j].Line
		}
		return rule.Compare(expected[i].Rule, expected[j].Rule) < 0
	})
	sortFormatErrors(errs)
	return expected, errs
}

type placementError struct{ msg string }

func (e placementError) Error() string { return e.msg }

func hintFor(err error) string {
	if _, ok := err.(placementError); ok {
		return HintComment
	}
	return HintCodeFormat
}

// markerFromLine classifies a comment-only line. It returns isMarker=false
// for plain comments and block-comment continuation lines.
func markerFromLine(ls lineScan, continuing bool) (pendingMarker, bool, error) {
	if continuing && len(ls.comments) == 1 {
		return pendingMarker{}, false, nil
	}

	var rules []rule.ID
	for idx, c := range ls.comments {
		if continuing && idx == 0 {
			continue
		}
		if !hasKeyword(c.text) {
			continue
		}
		if !c.closed {
			return pendingMarker{}, false, placementError{msg: "marker comment must be closed on the line it opens"}
		}
		ids, err := parseTags(c.text)
		if err != nil {
			return pendingMarker{}, false, err
		}
		rules = append(rules, ids...)
	}
	if len(rules) == 0 {
		return pendingMarker{}, false, nil
	}
	return pendingMarker{rules: rules}, true, nil
}
