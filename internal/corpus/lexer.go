package corpus

import "strings"

// comment is one comment fragment found on a physical line.
type comment struct {
	text string
	// opened is true when the comment starts on this line.
	opened bool
	// closed is true for line comments and for block comments that end on
	// this line.
	closed bool
}

// lineScan is the lexical summary of one physical source line.
type lineScan struct {
	code     string // source text outside comments and literals, literals blanked
	comments []comment
}

func (l lineScan) hasCode() bool {
	return strings.TrimSpace(l.code) != ""
}

// lexer splits C/C++ source lines into code and comments. It understands
// just enough of the lexical grammar to keep string and character literals
// from being mistaken for comments; nothing is parsed beyond that.
type lexer struct {
	inBlock bool
}

func (lx *lexer) scan(line string) lineScan {
	var out lineScan
	var code strings.Builder

	i := 0
	if lx.inBlock {
		end := strings.Index(line, "*/")
		if end < 0 {
			out.comments = append(out.comments, comment{text: line})
			return out
		}
		out.comments = append(out.comments, comment{text: line[:end], closed: true})
		lx.inBlock = false
		i = end + 2
	}

	for i < len(line) {
		c := line[i]
		switch {
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			out.comments = append(out.comments, comment{text: line[i+2:], opened: true, closed: true})
			out.code = code.String()
			return out
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			rest := line[i+2:]
			end := strings.Index(rest, "*/")
			if end < 0 {
				out.comments = append(out.comments, comment{text: rest, opened: true})
				lx.inBlock = true
				out.code = code.String()
				return out
			}
			out.comments = append(out.comments, comment{text: rest[:end], opened: true, closed: true})
			code.WriteByte(' ')
			i += 2 + end + 2
		case c == '"' || c == '\'':
			j := skipLiteral(line, i)
			code.WriteByte(c)
			code.WriteString(strings.Repeat(" ", max(j-i-2, 0)))
			code.WriteByte(c)
			i = j
		default:
			code.WriteByte(c)
			i++
		}
	}

	out.code = code.String()
	return out
}

// skipLiteral returns the index just past the literal starting at i.
// An unterminated literal runs to the end of the line.
func skipLiteral(line string, i int) int {
	quote := line[i]
	j := i + 1
	for j < len(line) {
		switch line[j] {
		case '\\':
			j += 2
			continue
		case quote:
			return j + 1
		}
		j++
	}
	return len(line)
}
