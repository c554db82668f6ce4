package pug

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja/parser"
)

// TokenType identifies a lexer token
type TokenType int

const (
	TokEOS TokenType = iota
	TokNewline
	TokIndent
	TokOutdent
	TokTag
	TokID
	TokClass
	TokAttribute
	TokText
	TokTextHTML
	TokInterpolatedCode
	TokCode
	TokComment
	TokDoctype
	TokDot
	TokSlash
	TokColon
	TokStartPipelessText
	TokEndPipelessText
	TokIf
	TokElseIf
	TokElse
	TokUnless
	TokEach
	TokMixin
	TokCall
	TokBlock
)

var tokenNames = [...]string{
	TokEOS:               "eos",
	TokNewline:           "newline",
	TokIndent:            "indent",
	TokOutdent:           "outdent",
	TokTag:               "tag",
	TokID:                "id",
	TokClass:             "class",
	TokAttribute:         "attribute",
	TokText:              "text",
	TokTextHTML:          "text-html",
	TokInterpolatedCode:  "interpolated-code",
	TokCode:              "code",
	TokComment:           "comment",
	TokDoctype:           "doctype",
	TokDot:               "dot",
	TokSlash:             "slash",
	TokColon:             "colon",
	TokStartPipelessText: "start-pipeless-text",
	TokEndPipelessText:   "end-pipeless-text",
	TokIf:                "if",
	TokElseIf:            "else-if",
	TokElse:              "else",
	TokUnless:            "unless",
	TokEach:              "each",
	TokMixin:             "mixin",
	TokCall:              "call",
	TokBlock:             "block",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is one lexer token
type Token struct {
	Type   TokenType
	Line   int
	Column int
	Val    string

	// Name and MustEscape describe attributes; MustEscape also applies
	// to buffered and interpolated code
	Name       string
	MustEscape bool

	// Buffer is set for code whose value is output and for comments
	// that are rendered
	Buffer bool

	// Key and Code are the index name and collection of each
	Key  string
	Code string

	// Args are mixin parameters or call arguments
	Args string

	// Mode is prepend or append for blocks
	Mode string
}

var (
	reTagName = regexp.MustCompile(`^\w(?:[-:\w]*\w)?`)
	reID      = regexp.MustCompile(`^#([\w-]+)`)
	reClass   = regexp.MustCompile(`^\.([_a-zA-Z0-9\-]*[_a-zA-Z][_a-zA-Z0-9\-]*)`)

	reDoctype     = regexp.MustCompile(`^doctype(?:[ \t]+(.*))?$`)
	reIf          = regexp.MustCompile(`^if\b[ \t]*(.*)$`)
	reElseIf      = regexp.MustCompile(`^else[ \t]+if\b[ \t]*(.*)$`)
	reElse        = regexp.MustCompile(`^else\b[ \t]*(.*)$`)
	reUnless      = regexp.MustCompile(`^unless\b[ \t]*(.*)$`)
	reEach        = regexp.MustCompile(`^(?:each|for)[ \t]+([a-zA-Z_$][\w$]*)(?:[ \t]*,[ \t]*([a-zA-Z_$][\w$]*))?[ \t]+in[ \t]+(.+)$`)
	reEachLike    = regexp.MustCompile(`^(?:each|for)\b`)
	reMixin       = regexp.MustCompile(`^mixin[ \t]+([-\w]+)(?:[ \t]*\((.*)\))?[ \t]*$`)
	reCall        = regexp.MustCompile(`^\+([-\w]+)(?:[ \t]*\((.*)\))?[ \t]*$`)
	reBlock       = regexp.MustCompile(`^block(?:[ \t]+(?:(prepend|append)[ \t]+)?([-\w]+))?[ \t]*$`)
	reUnsupported = regexp.MustCompile(`^(include|extends|case|while)\b`)
)

// IsExpression reports whether src parses as a JavaScript expression
func IsExpression(src string) bool {
	_, err := parser.ParseFile(nil, "", "("+src+"\n)", 0)
	return err == nil
}

// Lexer turns template source into tokens. Indentation may use spaces or
// tabs, but not both.
type Lexer struct {
	input    string
	pos      int
	line     int
	col      int
	filename string
	src      string

	indents    []int
	indentChar byte
	tokens     []*Token

	isExpression func(string) bool
}

// NewLexer creates a lexer for input
func NewLexer(filename, input string) *Lexer {
	input = strings.TrimPrefix(input, "\ufeff")
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")
	return &Lexer{
		input:        input,
		line:         1,
		col:          1,
		filename:     filename,
		indents:      []int{0},
		isExpression: IsExpression,
	}
}

// SetExpressionCheck replaces the check attribute values must pass
func (l *Lexer) SetExpressionCheck(fn func(string) bool) {
	l.isExpression = fn
}

// SetSource attaches the source to errors for snippet output
func (l *Lexer) SetSource(src string) {
	l.src = src
}

// Lex tokenizes the whole input
func (l *Lexer) Lex() ([]*Token, error) {
	for l.pos < len(l.input) {
		if err := l.lexLine(); err != nil {
			return nil, err
		}
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.tok(TokOutdent, "")
	}
	l.tok(TokEOS, "")
	return l.tokens, nil
}

func (l *Lexer) lexLine() error {
	width := 0
	var ch byte
	mixed := false
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		c := l.input[l.pos]
		if ch == 0 {
			ch = c
		} else if c != ch {
			mixed = true
		}
		width++
		l.advance()
	}

	// blank line
	if l.pos >= len(l.input) {
		return nil
	}
	if l.input[l.pos] == '\n' {
		l.advance()
		return nil
	}

	if width > 0 {
		if l.indentChar == 0 {
			l.indentChar = ch
		}
		if mixed || ch != l.indentChar {
			return l.errorAt("PUG:INVALID_INDENTATION", "Invalid indentation, you can use tabs or spaces but not both", l.line, 1)
		}
	}
	if err := l.indent(width); err != nil {
		return err
	}
	if err := l.lexContent(); err != nil {
		return err
	}
	return l.endLine()
}

func (l *Lexer) indent(width int) error {
	top := l.indents[len(l.indents)-1]
	switch {
	case width > top:
		l.indents = append(l.indents, width)
		l.tok(TokIndent, "")
	case width < top:
		for width < l.indents[len(l.indents)-1] {
			l.indents = l.indents[:len(l.indents)-1]
			l.tok(TokOutdent, "")
		}
		if cur := l.indents[len(l.indents)-1]; cur != width {
			return l.error("PUG:INCONSISTENT_INDENTATION",
				fmt.Sprintf("Inconsistent indentation. Expecting either %d or %d spaces/tabs.", cur, top))
		}
	default:
		if len(l.tokens) > 0 {
			l.tok(TokNewline, "")
		}
	}
	return nil
}

func (l *Lexer) endLine() error {
	if l.pos >= len(l.input) {
		return nil
	}
	if l.input[l.pos] != '\n' {
		return l.error("PUG:UNEXPECTED_TEXT", fmt.Sprintf("Unexpected text %q", l.restOfLine()))
	}
	l.advance()
	return nil
}

// lexContent lexes one statement; it may recurse for block expansion
func (l *Lexer) lexContent() error {
	rest := l.restOfLine()
	switch {
	case strings.HasPrefix(rest, "//"):
		return l.lexComment()
	case strings.HasPrefix(rest, "|"):
		l.advance()
		if l.peek(" ") {
			l.advance()
		}
		line, col := l.line, l.col
		return l.lexText(l.takeLine(), line, col)
	case strings.HasPrefix(rest, "<"):
		l.tok(TokTextHTML, l.takeLine())
		return nil
	case strings.HasPrefix(rest, "!="), strings.HasPrefix(rest, "="), strings.HasPrefix(rest, "-"):
		return l.lexCode()
	}

	if ok, err := l.lexKeyword(rest); ok || err != nil {
		return err
	}
	return l.lexTag()
}

func (l *Lexer) lexKeyword(rest string) (bool, error) {
	line := strings.TrimRight(rest, " \t")

	if m := reUnsupported.FindStringSubmatch(line); m != nil {
		return true, l.error("PUG:UNSUPPORTED", fmt.Sprintf("%s is not supported", m[1]))
	}

	var t *Token
	switch {
	case reDoctype.MatchString(line):
		m := reDoctype.FindStringSubmatch(line)
		t = l.tok(TokDoctype, strings.TrimSpace(m[1]))
	case reElseIf.MatchString(line):
		t = l.tok(TokElseIf, strings.TrimSpace(reElseIf.FindStringSubmatch(line)[1]))
		if t.Val == "" {
			return true, l.error("PUG:MISSING_CONDITION", "else if requires a condition")
		}
	case reElse.MatchString(line):
		if m := reElse.FindStringSubmatch(line); strings.TrimSpace(m[1]) != "" {
			return true, l.error("PUG:ELSE_CONDITION", "`else` cannot have a condition, perhaps you meant `else if`")
		}
		t = l.tok(TokElse, "")
	case reIf.MatchString(line):
		t = l.tok(TokIf, strings.TrimSpace(reIf.FindStringSubmatch(line)[1]))
		if t.Val == "" {
			return true, l.error("PUG:MISSING_CONDITION", "if requires a condition")
		}
	case reUnless.MatchString(line):
		t = l.tok(TokUnless, strings.TrimSpace(reUnless.FindStringSubmatch(line)[1]))
		if t.Val == "" {
			return true, l.error("PUG:MISSING_CONDITION", "unless requires a condition")
		}
	case reEach.MatchString(line):
		m := reEach.FindStringSubmatch(line)
		t = l.tok(TokEach, m[1])
		t.Key = m[2]
		t.Code = strings.TrimSpace(m[3])
	case reEachLike.MatchString(line):
		return true, l.error("PUG:MALFORMED_EACH", "malformed each statement, expected `each item[, key] in collection`")
	case reMixin.MatchString(line):
		m := reMixin.FindStringSubmatch(line)
		t = l.tok(TokMixin, m[1])
		t.Args = strings.TrimSpace(m[2])
	case reCall.MatchString(line):
		m := reCall.FindStringSubmatch(line)
		t = l.tok(TokCall, m[1])
		t.Args = strings.TrimSpace(m[2])
	case reBlock.MatchString(line):
		m := reBlock.FindStringSubmatch(line)
		t = l.tok(TokBlock, m[2])
		t.Mode = m[1]
	default:
		return false, nil
	}
	l.takeLine()
	return true, nil
}

func (l *Lexer) lexComment() error {
	t := l.tok(TokComment, "")
	l.advanceN(2)
	t.Buffer = true
	if l.peek("-") {
		l.advance()
		t.Buffer = false
	}
	t.Val = l.takeLine()
	if lines := l.pipelessLines(); len(lines) > 0 {
		return l.emitPipeless(lines, false)
	}
	return nil
}

func (l *Lexer) lexCode() error {
	t := l.tok(TokCode, "")
	switch {
	case l.consume("!="):
		t.Buffer = true
	case l.consume("="):
		t.Buffer = true
		t.MustEscape = true
	default:
		l.consume("-")
	}
	t.Val = strings.TrimSpace(l.takeLine())
	if !t.Buffer && t.Val == "" {
		lines := l.pipelessLines()
		code := make([]string, len(lines))
		for i, ln := range lines {
			code[i] = ln.text
		}
		t.Val = strings.Join(code, "\n")
	}
	return nil
}

func (l *Lexer) lexTag() error {
	rest := l.restOfLine()
	switch {
	case reTagName.MatchString(rest):
		name := reTagName.FindString(rest)
		l.tok(TokTag, name)
		l.advanceN(len(name))
	case reID.MatchString(rest), reClass.MatchString(rest):
		l.tok(TokTag, "div")
	default:
		word, _, _ := strings.Cut(rest, " ")
		return l.error("PUG:UNEXPECTED_TEXT", fmt.Sprintf("Unexpected text %q", word))
	}

attrs:
	for {
		rest = l.restOfLine()
		switch {
		case reID.MatchString(rest):
			m := reID.FindStringSubmatch(rest)
			l.tok(TokID, m[1])
			l.advanceN(len(m[0]))
		case reClass.MatchString(rest):
			m := reClass.FindStringSubmatch(rest)
			l.tok(TokClass, m[1])
			l.advanceN(len(m[0]))
		case strings.HasPrefix(rest, "("):
			if err := l.lexAttributes(); err != nil {
				return err
			}
		default:
			break attrs
		}
	}

	rest = l.restOfLine()
	switch {
	case rest == "":
		return nil
	case strings.TrimRight(rest, " \t") == ".":
		l.tok(TokDot, "")
		l.takeLine()
		if lines := l.pipelessLines(); len(lines) > 0 {
			return l.emitPipeless(lines, true)
		}
		return nil
	case strings.HasPrefix(rest, "/"):
		l.tok(TokSlash, "")
		l.advance()
		if extra := strings.TrimSpace(l.takeLine()); extra != "" {
			return l.error("PUG:UNEXPECTED_TEXT", fmt.Sprintf("Unexpected text %q after self-closing tag", extra))
		}
		return nil
	case strings.HasPrefix(rest, ":"):
		l.tok(TokColon, "")
		l.advance()
		l.skipSpaces()
		if l.restOfLine() == "" {
			return l.error("PUG:NO_EXPANSION", "Expected a tag after ':'")
		}
		return l.lexContent()
	case strings.HasPrefix(rest, "!="), strings.HasPrefix(rest, "="):
		return l.lexCode()
	case rest[0] == ' ' || rest[0] == '\t':
		l.advance()
		line, col := l.line, l.col
		return l.lexText(l.takeLine(), line, col)
	}
	return l.error("PUG:UNEXPECTED_TEXT", fmt.Sprintf("Unexpected text %q", rest))
}

// lexAttributes lexes a parenthesized attribute list, which may span
// lines
func (l *Lexer) lexAttributes() error {
	line, col := l.line, l.col
	l.advance()
	for {
		for !l.eof() && strings.IndexByte(" \t\n,", l.input[l.pos]) >= 0 {
			l.advance()
		}
		if l.eof() {
			return l.errorAt("PUG:NO_END_BRACKET", "The end of the string reached with no closing bracket ) found.", line, col)
		}
		if l.consume(")") {
			return nil
		}

		t := l.tok(TokAttribute, "")
		t.MustEscape = true
		name, err := l.attributeName()
		if err != nil {
			return err
		}
		t.Name = name

		l.skipSpaces()
		switch {
		case l.consume("!="):
			t.MustEscape = false
			t.Val, err = l.attributeValue()
		case l.consume("="):
			t.Val, err = l.attributeValue()
		default:
			t.Val = "true"
		}
		if err != nil {
			return err
		}
	}
}

func (l *Lexer) attributeName() (string, error) {
	if q := l.input[l.pos]; q == '"' || q == '\'' {
		l.advance()
		start := l.pos
		for !l.eof() && l.input[l.pos] != q {
			l.advance()
		}
		if l.eof() {
			return "", l.error("PUG:UNTERMINATED_ATTRIBUTE", "Unterminated quoted attribute name")
		}
		name := l.input[start:l.pos]
		l.advance()
		return name, nil
	}

	start := l.pos
	for !l.eof() {
		c := l.input[l.pos]
		if strings.IndexByte("=,) \t\n", c) >= 0 || (c == '!' && l.peekAt(1) == '=') {
			break
		}
		l.advance()
	}
	if l.pos == start {
		return "", l.error("PUG:UNEXPECTED_TEXT", fmt.Sprintf("Unexpected character %q in attributes", l.input[l.pos]))
	}
	return l.input[start:l.pos], nil
}

// attributeValue scans a JavaScript expression. The value ends at a
// top-level comma or closing bracket, or at whitespace once what was read
// is a complete expression not followed by an operator.
func (l *Lexer) attributeValue() (string, error) {
	l.skipSpaces()
	line, col := l.line, l.col
	start := l.pos
	var stack []byte
	var quote byte

scan:
	for !l.eof() {
		c := l.input[l.pos]
		if quote != 0 {
			if c == '\\' {
				l.advance()
				if !l.eof() {
					l.advance()
				}
				continue
			}
			if c == quote {
				quote = 0
			}
			l.advance()
			continue
		}

		switch c {
		case '"', '\'', '`':
			quote = c
		case '(':
			stack = append(stack, ')')
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ')', ']', '}':
			if len(stack) == 0 {
				if c == ')' {
					break scan
				}
			} else if stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		case ',':
			if len(stack) == 0 {
				break scan
			}
		case ' ', '\t', '\n':
			if len(stack) == 0 {
				val := strings.TrimSpace(l.input[start:l.pos])
				if val != "" && l.isExpression(val) && !continuesExpression(l.nextNonSpace()) {
					break scan
				}
			}
		}
		l.advance()
	}

	val := strings.TrimSpace(l.input[start:l.pos])
	if val == "" {
		return "", l.errorAt("PUG:SYNTAX_ERROR", "Missing attribute value", line, col)
	}
	if !l.isExpression(val) {
		return "", l.errorAt("PUG:SYNTAX_ERROR", fmt.Sprintf("Syntax Error: %q is not a valid attribute expression", val), line, col)
	}
	return val, nil
}

func continuesExpression(c byte) bool {
	return c != 0 && strings.IndexByte("+*/%?|&<>=.^", c) >= 0
}

// lexText splits text into text and interpolated-code tokens. \#{ and
// \!{ escape an interpolation.
func (l *Lexer) lexText(text string, line, col int) error {
	var buf strings.Builder
	segment := 0
	flush := func() {
		if buf.Len() > 0 {
			l.tokens = append(l.tokens, &Token{Type: TokText, Val: buf.String(), Line: line, Column: col + segment})
			buf.Reset()
		}
	}

	for i := 0; i < len(text); {
		c := text[i]
		if c == '\\' && i+2 < len(text) && (text[i+1] == '#' || text[i+1] == '!') && text[i+2] == '{' {
			buf.WriteString(text[i+1 : i+3])
			i += 3
			continue
		}
		if (c == '#' || c == '!') && i+1 < len(text) && text[i+1] == '{' {
			end, ok := matchBracket(text, i+1)
			if !ok {
				return l.errorAt("PUG:NO_END_BRACKET", "End of line was reached with no closing bracket for interpolation.", line, col+i)
			}
			flush()
			l.tokens = append(l.tokens, &Token{
				Type:       TokInterpolatedCode,
				Val:        strings.TrimSpace(text[i+2 : end]),
				Buffer:     true,
				MustEscape: c == '#',
				Line:       line,
				Column:     col + i,
			})
			i = end + 1
			segment = i
			continue
		}
		buf.WriteByte(c)
		i++
	}
	flush()
	return nil
}

// matchBracket returns the index of the bracket closing s[open]
func matchBracket(s string, open int) (int, bool) {
	var stack []byte
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(':
			stack = append(stack, ')')
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

type rawLine struct {
	text string
	line int
	col  int
}

// pipelessLines consumes the lines below the current one that are
// indented deeper than the current level, with the block's indentation
// removed. Blank lines inside the block are kept; trailing ones are not
// consumed.
func (l *Lexer) pipelessLines() []rawLine {
	base := l.indents[len(l.indents)-1]
	blockIndent := -1
	var lines []rawLine
	var blanks int

	for p := l.pos; p < len(l.input) && l.input[p] == '\n'; {
		next := p + 1
		end := strings.IndexByte(l.input[next:], '\n')
		if end < 0 {
			end = len(l.input)
		} else {
			end += next
		}
		raw := l.input[next:end]

		if strings.TrimSpace(raw) == "" {
			blanks++
			p = end
			continue
		}
		w := len(raw) - len(strings.TrimLeft(raw, " \t"))
		if w <= base {
			break
		}
		if blockIndent < 0 {
			blockIndent = w
		}

		// consume pending blank lines and this one
		for ; blanks > 0; blanks-- {
			l.advance()
			lines = append(lines, rawLine{line: l.line, col: 1})
			l.advanceTo(strings.IndexByte(l.input[l.pos:], '\n') + l.pos)
		}
		l.advance()
		line := l.line
		cut := min(w, blockIndent)
		l.advanceTo(end)
		lines = append(lines, rawLine{text: raw[cut:], line: line, col: cut + 1})
		p = end
	}
	return lines
}

func (l *Lexer) emitPipeless(lines []rawLine, interpolate bool) error {
	l.tokens = append(l.tokens, &Token{Type: TokStartPipelessText, Line: lines[0].line, Column: lines[0].col})
	for i, ln := range lines {
		if i > 0 {
			l.tokens = append(l.tokens, &Token{Type: TokNewline, Line: ln.line, Column: 1})
		}
		if ln.text == "" {
			continue
		}
		if !interpolate {
			l.tokens = append(l.tokens, &Token{Type: TokText, Val: ln.text, Line: ln.line, Column: ln.col})
			continue
		}
		if err := l.lexText(ln.text, ln.line, ln.col); err != nil {
			return err
		}
	}
	l.tok(TokEndPipelessText, "")
	return nil
}

// Helper methods

func (l *Lexer) tok(typ TokenType, val string) *Token {
	t := &Token{Type: typ, Val: val, Line: l.line, Column: l.col}
	l.tokens = append(l.tokens, t)
	return t
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) peek(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset < len(l.input) {
		return l.input[l.pos+offset]
	}
	return 0
}

func (l *Lexer) consume(s string) bool {
	if l.peek(s) {
		l.advanceN(len(s))
		return true
	}
	return false
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *Lexer) advanceN(n int) {
	for i := 0; i < n; i++ {
		l.advance()
	}
}

func (l *Lexer) advanceTo(pos int) {
	for l.pos < pos {
		l.advance()
	}
}

func (l *Lexer) skipSpaces() {
	for !l.eof() && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		l.advance()
	}
}

func (l *Lexer) nextNonSpace() byte {
	for i := l.pos; i < len(l.input); i++ {
		if c := l.input[i]; c != ' ' && c != '\t' && c != '\n' {
			return c
		}
	}
	return 0
}

func (l *Lexer) restOfLine() string {
	rest := l.input[l.pos:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// takeLine returns the rest of the line and advances to its end
func (l *Lexer) takeLine() string {
	s := l.restOfLine()
	l.advanceN(len(s))
	return s
}

func (l *Lexer) error(code, msg string) error {
	return l.errorAt(code, msg, l.line, l.col)
}

func (l *Lexer) errorAt(code, msg string, line, col int) error {
	return NewError(code, msg, line, col, l.filename, l.src)
}
