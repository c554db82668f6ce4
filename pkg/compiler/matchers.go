package compiler

import (
	"regexp"
	"strings"
)

// Shorthand is a reactive output expression: {{ expr }} renders escaped
// text, {- expr -} renders raw HTML
type Shorthand struct {
	Expr    string
	Escaped bool
}

// Directive returns the directive the shorthand expands to
func (s Shorthand) Directive() string {
	if s.Escaped {
		return "x-text"
	}
	return "x-html"
}

// ShorthandSpan is a shorthand found at s[Start:End]
type ShorthandSpan struct {
	Shorthand
	Start int
	End   int
}

var reShorthand = regexp.MustCompile(`\{\{\s*([\s\S]+?)\s*\}\}|\{-\s*([\s\S]+?)\s*-\}`)

// MatchShorthand reports whether s, ignoring surrounding whitespace, is
// exactly one shorthand
func MatchShorthand(s string) (Shorthand, bool) {
	s = strings.TrimSpace(s)
	spans := FindShorthands(s)
	if len(spans) != 1 || spans[0].Start != 0 || spans[0].End != len(s) {
		return Shorthand{}, false
	}
	return spans[0].Shorthand, true
}

// FindShorthands returns every shorthand in s in order
func FindShorthands(s string) []ShorthandSpan {
	var spans []ShorthandSpan
	for _, m := range reShorthand.FindAllStringSubmatchIndex(s, -1) {
		span := ShorthandSpan{Start: m[0], End: m[1]}
		if m[2] >= 0 {
			span.Expr = s[m[2]:m[3]]
			span.Escaped = true
		} else {
			span.Expr = s[m[4]:m[5]]
		}
		if span.Expr = strings.TrimSpace(span.Expr); span.Expr == "" {
			continue
		}
		spans = append(spans, span)
	}
	return spans
}

// IsShorthandExpression reports whether s is a shorthand the lexer must
// accept as an attribute value
func IsShorthandExpression(s string) bool {
	_, ok := MatchShorthand(s)
	return ok
}
