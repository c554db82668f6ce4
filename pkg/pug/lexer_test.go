package pug

import (
	"reflect"
	"testing"
)

func tokenTypes(tokens []*Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, t := range tokens {
		types[i] = t.Type
	}
	return types
}

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{
			name:  "tag with id class attribute and text",
			input: "div#a.b(c=1) hi",
			want:  []TokenType{TokTag, TokID, TokClass, TokAttribute, TokText, TokEOS},
		},
		{
			name:  "indentation",
			input: "ul\n  li a\n  li b\np",
			want: []TokenType{
				TokTag, TokIndent, TokTag, TokText, TokNewline, TokTag, TokText,
				TokOutdent, TokTag, TokEOS,
			},
		},
		{
			name:  "blank lines are ignored",
			input: "p\n\n\np",
			want:  []TokenType{TokTag, TokNewline, TokTag, TokEOS},
		},
		{
			name:  "dot block",
			input: "p.\n  a\n\n  b",
			want: []TokenType{
				TokTag, TokDot, TokStartPipelessText, TokText, TokNewline,
				TokNewline, TokText, TokEndPipelessText, TokEOS,
			},
		},
		{
			name:  "interpolation",
			input: "p Hi #{name}!",
			want:  []TokenType{TokTag, TokText, TokInterpolatedCode, TokText, TokEOS},
		},
		{
			name:  "block expansion",
			input: "ul: li x",
			want:  []TokenType{TokTag, TokColon, TokTag, TokText, TokEOS},
		},
		{
			name:  "self closing",
			input: "img/",
			want:  []TokenType{TokTag, TokSlash, TokEOS},
		},
		{
			name:  "code",
			input: "- var x = 1\n= x\n!= x",
			want:  []TokenType{TokCode, TokNewline, TokCode, TokNewline, TokCode, TokEOS},
		},
		{
			name:  "conditionals",
			input: "if a\n  p\nelse if b\n  p\nelse\n  p",
			want: []TokenType{
				TokIf, TokIndent, TokTag, TokOutdent,
				TokElseIf, TokIndent, TokTag, TokOutdent,
				TokElse, TokIndent, TokTag, TokOutdent, TokEOS,
			},
		},
		{
			name:  "mixins",
			input: "mixin m(a)\n  p\n+m(1)",
			want:  []TokenType{TokMixin, TokIndent, TokTag, TokOutdent, TokCall, TokEOS},
		},
		{
			name:  "comments",
			input: "// shown\n//- hidden",
			want:  []TokenType{TokComment, TokNewline, TokComment, TokEOS},
		},
		{
			name:  "implicit div",
			input: ".box",
			want:  []TokenType{TokTag, TokClass, TokEOS},
		},
		{
			name:  "pipe and html text",
			input: "| plain\n<b>raw</b>",
			want:  []TokenType{TokText, TokNewline, TokTextHTML, TokEOS},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := NewLexer("", tt.input).Lex()
			if err != nil {
				t.Fatalf("Lex() error = %v", err)
			}
			if got := tokenTypes(tokens); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Lex() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLexer_Attributes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][3]string
	}{
		{
			name:  "literals and expressions",
			input: `a(href='/x' data-n=1 + 2, title="t")`,
			want:  [][3]string{{"href", "'/x'", "esc"}, {"data-n", "1 + 2", "esc"}, {"title", `"t"`, "esc"}},
		},
		{
			name:  "boolean and unescaped",
			input: `input(checked x!=y)`,
			want:  [][3]string{{"checked", "true", "esc"}, {"x", "y", "raw"}},
		},
		{
			name:  "spanning lines",
			input: "div(\n  a=1\n  b=[1, 2]\n)",
			want:  [][3]string{{"a", "1", "esc"}, {"b", "[1, 2]", "esc"}},
		},
		{
			name:  "call with nested parens",
			input: `div(x=fn(a, b) y=obj.z)`,
			want:  [][3]string{{"x", "fn(a, b)", "esc"}, {"y", "obj.z", "esc"}},
		},
		{
			name:  "quoted name",
			input: `div("@click"='go()')`,
			want:  [][3]string{{"@click", "'go()'", "esc"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := NewLexer("", tt.input).Lex()
			if err != nil {
				t.Fatalf("Lex() error = %v", err)
			}
			var got [][3]string
			for _, tok := range tokens {
				if tok.Type != TokAttribute {
					continue
				}
				esc := "raw"
				if tok.MustEscape {
					esc = "esc"
				}
				got = append(got, [3]string{tok.Name, tok.Val, esc})
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("attributes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLexer_Each(t *testing.T) {
	tokens, err := NewLexer("", "each item, i in list.rows").Lex()
	if err != nil {
		t.Fatalf("Lex() error = %v", err)
	}
	tok := tokens[0]
	if tok.Type != TokEach || tok.Val != "item" || tok.Key != "i" || tok.Code != "list.rows" {
		t.Errorf("each token = %+v", tok)
	}
}

func TestLexer_Positions(t *testing.T) {
	tokens, err := NewLexer("", "div\n  span hi").Lex()
	if err != nil {
		t.Fatalf("Lex() error = %v", err)
	}
	span := tokens[2]
	if span.Type != TokTag || span.Line != 2 || span.Column != 3 {
		t.Errorf("span token = %+v, want tag at 2:3", span)
	}
}

func TestLexer_Normalizes(t *testing.T) {
	tokens, err := NewLexer("", "\ufeffp\r\n  | a").Lex()
	if err != nil {
		t.Fatalf("Lex() error = %v", err)
	}
	want := []TokenType{TokTag, TokIndent, TokText, TokOutdent, TokEOS}
	if got := tokenTypes(tokens); !reflect.DeepEqual(got, want) {
		t.Errorf("Lex() = %v, want %v", got, want)
	}
}

func TestIsExpression(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"a", true},
		{"'x'", true},
		{"a + b", true},
		{"{a: 1}", true},
		{"() => 1", true},
		{"a +", false},
		{"'open", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsExpression(tt.src); got != tt.want {
			t.Errorf("IsExpression(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}
