package styling

import (
	"strings"
	"testing"
)

func TestStyle(t *testing.T) {
	css := `.card { background: white; }`
	style := Style(css)

	if len(style.Hash) != 8 {
		t.Errorf("Expected an 8 character hash, got %q", style.Hash)
	}
	if style.CSS != css {
		t.Errorf("Expected CSS to be stored, got %s", style.CSS)
	}
	if Style(css).Hash != style.Hash {
		t.Error("Expected the hash to be stable")
	}
	if Style(`.card { background: black; }`).Hash == style.Hash {
		t.Error("Expected different stylesheets to hash differently")
	}
	if got := style.Attribute(); got != "data-p"+style.Hash {
		t.Errorf("Attribute() = %q", got)
	}

	var nilStyle *ComponentStyle
	if nilStyle.Attribute() != "" || nilStyle.GetHash() != "" {
		t.Error("Expected a nil style to have no attribute and hash")
	}
}

func TestScope(t *testing.T) {
	const attr = "[data-px]"
	tests := []struct {
		name string
		css  string
		want string
	}{
		{"class", `.a { color: red }`, `.a[data-px] { color: red }`},
		{"selector list", `.a,.b{x:1}`, `.a[data-px], .b[data-px] {x:1}`},
		{"descendant", `.a .b {x:1}`, `.a .b[data-px] {x:1}`},
		{"child", `ul > li {x:1}`, `ul > li[data-px] {x:1}`},
		{"pseudo class", `a:hover {x:1}`, `a[data-px]:hover {x:1}`},
		{"pseudo element", `p::before {x:1}`, `p[data-px]::before {x:1}`},
		{"not", `p:not(.a b) {x:1}`, `p[data-px]:not(.a b) {x:1}`},
		{"attribute selector", `input[type="a b"] {x:1}`, `input[type="a b"][data-px] {x:1}`},
		{"media", `@media (max-width: 10px) { .a {x:1} }`, `@media (max-width: 10px) { .a[data-px] {x:1} }`},
		{"keyframes", `@keyframes spin { from {x:1} to {x:2} }`, `@keyframes spin { from {x:1} to {x:2} }`},
		{"import", `@import "a.css"; .a {x:1}`, `@import "a.css"; .a[data-px] {x:1}`},
		{"braces in strings", `.a { content: "{" }`, `.a[data-px] { content: "{" }`},
		{"keeps spacing", "\n.a {x:1}\n.b {y:2}\n", "\n.a[data-px] {x:1}\n.b[data-px] {y:2}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scope(tt.css, attr); got != tt.want {
				t.Errorf("scope(%q) = %q, want %q", tt.css, got, tt.want)
			}
		})
	}
}

func TestStyle_ScopedDropsComments(t *testing.T) {
	style := Style("/* card */ .card {x:1}")
	want := " .card[data-p" + style.Hash + "] {x:1}"
	if style.Scoped != want {
		t.Errorf("Scoped = %q, want %q", style.Scoped, want)
	}
}

func TestStyleRegistry(t *testing.T) {
	r := NewRegistry()
	r.Add(`.test1 { color: red; }`)
	r.Add(`.test2 { color: blue; }`)
	r.Add(`.test1 { color: red; }`)
	r.Add("  ")

	if r.Len() != 2 {
		t.Errorf("Expected 2 styles, got %d", r.Len())
	}
	want := ".test1 { color: red; }\n.test2 { color: blue; }\n"
	if got := r.CSS(); got != want {
		t.Errorf("CSS() = %q, want %q", got, want)
	}

	r.Reset()
	if r.CSS() != "" {
		t.Error("Expected empty registry after reset")
	}
}

func TestStyleRegistry_RegisterPrefersScoped(t *testing.T) {
	Reset()
	defer Reset()

	style := Style(`.a {x:1}`)
	Register(style)
	Register(nil)

	if got := GetAllCSS(); !strings.Contains(got, "[data-p"+style.Hash+"]") {
		t.Errorf("Expected scoped CSS, got %q", got)
	}
}
