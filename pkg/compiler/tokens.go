package compiler

import (
	"html"
	"strings"

	"github.com/pupperjs/core-sub000/pkg/pug"
)

// aliases maps short directive names to runtime attribute names
var aliases = map[string]string{
	"p-if":        "x-if",
	"p-for":       "x-for",
	"p-text":      "x-text",
	"p-html":      "x-html",
	"p-show":      "x-show",
	"p-model":     "x-model",
	"p-ref":       "x-ref",
	"p-id":        "x-id",
	"p-component": "x-component",
}

// TranslateDirective returns the runtime name of a directive attribute.
// Names that are not aliases are returned unchanged.
func TranslateDirective(name string) string {
	if a, ok := aliases[name]; ok {
		return a
	}
	switch {
	case strings.HasPrefix(name, "p-on:"):
		return "x-on:" + name[len("p-on:"):]
	case strings.HasPrefix(name, "p-bind:"):
		return "x-bind:" + name[len("p-bind:"):]
	case len(name) > 1 && name[0] == '@':
		return "x-on:" + name[1:]
	case len(name) > 1 && name[0] == ':':
		return "x-bind:" + name[1:]
	}
	return name
}

func translateDirectives(_ *Plugin, tokens []*pug.Token) ([]*pug.Token, error) {
	for _, t := range tokens {
		if t.Type == pug.TokAttribute {
			t.Name = TranslateDirective(t.Name)
		}
	}
	return tokens, nil
}

// expandShorthands rewrites {{ }} and {- -} in attributes, text and code
// into directive attributes. Raw text blocks are left alone.
func expandShorthands(_ *Plugin, tokens []*pug.Token) ([]*pug.Token, error) {
	out := make([]*pug.Token, 0, len(tokens))
	raw := false
	for _, t := range tokens {
		switch t.Type {
		case pug.TokStartPipelessText:
			raw = true
		case pug.TokEndPipelessText:
			raw = false
		}
		if raw {
			out = append(out, t)
			continue
		}

		switch t.Type {
		case pug.TokAttribute:
			val := t.Val
			if s, ok := pug.Unquote(strings.TrimSpace(val)); ok {
				val = s
			}
			if sh, ok := MatchShorthand(val); ok {
				if !strings.HasPrefix(t.Name, "x-") {
					t.Name = "x-bind:" + t.Name
				}
				t.Val = pug.Quote(sh.Expr)
				t.MustEscape = false
			} else if sh, ok := MatchShorthand(t.Name); ok && t.Val == "true" {
				t.Name = sh.Directive()
				t.Val = pug.Quote(sh.Expr)
				t.MustEscape = false
			}

		case pug.TokText:
			if sh, ok := MatchShorthand(t.Val); ok && followsTag(out) {
				out = append(out, shorthandAttr(t, sh))
				continue
			}
			if spans := FindShorthands(t.Val); len(spans) > 0 {
				t.Val = shorthandMarkup(t.Val, spans)
			}

		case pug.TokCode:
			if sh, ok := MatchShorthand(t.Val); ok {
				if !followsTag(out) {
					out = append(out, &pug.Token{Type: pug.TokTag, Val: "span", Line: t.Line, Column: t.Column})
				}
				out = append(out, shorthandAttr(t, sh))
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// followsTag reports whether the next token continues a tag's line
func followsTag(tokens []*pug.Token) bool {
	for i := len(tokens) - 1; i >= 0; i-- {
		switch tokens[i].Type {
		case pug.TokID, pug.TokClass, pug.TokAttribute:
			continue
		case pug.TokTag:
			return true
		}
		return false
	}
	return false
}

func shorthandAttr(at *pug.Token, sh Shorthand) *pug.Token {
	return &pug.Token{
		Type:   pug.TokAttribute,
		Name:   sh.Directive(),
		Val:    pug.Quote(sh.Expr),
		Line:   at.Line,
		Column: at.Column,
	}
}

// shorthandMarkup replaces each shorthand in text with a span carrying
// the directive
func shorthandMarkup(text string, spans []ShorthandSpan) string {
	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.Start])
		b.WriteString(`<span ` + s.Directive() + `="` + html.EscapeString(s.Expr) + `"></span>`)
		last = s.End
	}
	b.WriteString(text[last:])
	return b.String()
}
