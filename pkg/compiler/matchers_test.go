package compiler

import (
	"reflect"
	"testing"
)

func TestMatchShorthand(t *testing.T) {
	tests := []struct {
		src  string
		want Shorthand
		ok   bool
	}{
		{"{{ name }}", Shorthand{Expr: "name", Escaped: true}, true},
		{"  {- body -}  ", Shorthand{Expr: "body"}, true},
		{"{{user.name + '!'}}", Shorthand{Expr: "user.name + '!'", Escaped: true}, true},
		{"{{ a }} and {{ b }}", Shorthand{}, false},
		{"x {{ a }}", Shorthand{}, false},
		{"{{ }}", Shorthand{}, false},
		{"name", Shorthand{}, false},
	}

	for _, tt := range tests {
		got, ok := MatchShorthand(tt.src)
		if ok != tt.ok || got != tt.want {
			t.Errorf("MatchShorthand(%q) = %+v, %v; want %+v, %v", tt.src, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFindShorthands(t *testing.T) {
	got := FindShorthands("a {{x}} b {-y-}")
	want := []ShorthandSpan{
		{Shorthand: Shorthand{Expr: "x", Escaped: true}, Start: 2, End: 7},
		{Shorthand: Shorthand{Expr: "y"}, Start: 10, End: 15},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindShorthands() = %+v, want %+v", got, want)
	}

	if spans := FindShorthands("no output here"); spans != nil {
		t.Errorf("Expected no spans, got %+v", spans)
	}
}

func TestShorthand_Directive(t *testing.T) {
	if d := (Shorthand{Escaped: true}).Directive(); d != "x-text" {
		t.Errorf("escaped shorthand directive = %q", d)
	}
	if d := (Shorthand{}).Directive(); d != "x-html" {
		t.Errorf("raw shorthand directive = %q", d)
	}
}

func TestTranslateDirective(t *testing.T) {
	tests := map[string]string{
		"p-if":                "x-if",
		"p-for":               "x-for",
		"p-text":              "x-text",
		"p-html":              "x-html",
		"p-show":              "x-show",
		"p-model":             "x-model",
		"p-ref":               "x-ref",
		"p-component":         "x-component",
		"p-on:submit.prevent": "x-on:submit.prevent",
		"p-bind:class":        "x-bind:class",
		"@click":              "x-on:click",
		":value":              "x-bind:value",
		"x-if":                "x-if",
		"class":               "class",
		"@":                   "@",
	}
	for name, want := range tests {
		if got := TranslateDirective(name); got != want {
			t.Errorf("TranslateDirective(%q) = %q, want %q", name, got, want)
		}
	}
}
