package pug

import (
	"fmt"
	"strings"
)

// Error is a compilation error with its position in the source
type Error struct {
	Code     string
	Msg      string
	Line     int
	Column   int
	Filename string

	// Src is the template source; set only for debug compilations
	Src string
}

// NewError creates an error at line and column. src may be empty.
func NewError(code, msg string, line, column int, filename, src string) *Error {
	return &Error{
		Code:     code,
		Msg:      msg,
		Line:     line,
		Column:   column,
		Filename: filename,
		Src:      src,
	}
}

// Error prints the position, a source snippet when Src is set, and the
// message
func (e *Error) Error() string {
	name := e.Filename
	if name == "" {
		name = "Pug"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d", name, e.Line)
	if e.Column > 0 {
		fmt.Fprintf(&b, ":%d", e.Column)
	}
	b.WriteByte('\n')

	if e.Src != "" {
		lines := strings.Split(e.Src, "\n")
		start := max(e.Line-3, 0)
		end := min(e.Line+3, len(lines))
		width := len(fmt.Sprint(end))
		for i := start; i < end; i++ {
			marker := "  "
			if i+1 == e.Line {
				marker = "> "
			}
			fmt.Fprintf(&b, "%s%*d| %s\n", marker, width, i+1, lines[i])
			if i+1 == e.Line && e.Column > 0 {
				b.WriteString(strings.Repeat("-", width+3+e.Column) + "^\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(e.Msg)
	return b.String()
}
