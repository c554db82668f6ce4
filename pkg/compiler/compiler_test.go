package compiler

import (
	"bytes"
	"errors"
	"log"
	"reflect"
	"strings"
	"testing"

	"github.com/pupperjs/core-sub000/pkg/pug"
)

func render(t *testing.T, src string) string {
	t.Helper()
	res, err := Compile(src, Options{FileName: "t.pupper"})
	if err != nil {
		t.Fatalf("Compile(%q) error = %v", src, err)
	}
	html, err := pug.Run(res.Code, nil)
	if err != nil {
		t.Fatalf("Run(%q) error = %v", src, err)
	}
	return html
}

func TestCompile_Conditional(t *testing.T) {
	got := render(t, "if x\n  p Hello\nelse\n  p Bye")
	want := `<template x-if="x"><p>Hello</p></template><template x-if="!(x)"><p>Bye</p></template>`
	if got != want {
		t.Errorf("got %s\nwant %s", got, want)
	}
}

func TestCompile_Render(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "text shorthand",
			src:  "p {{ name }}",
			want: `<p x-text="name"></p>`,
		},
		{
			name: "html shorthand",
			src:  "div {- body -}",
			want: `<div x-html="body"></div>`,
		},
		{
			name: "shorthand within text",
			src:  "p Hi {{ name }}!",
			want: `<p>Hi <span x-text="name"></span>!</p>`,
		},
		{
			name: "attribute shorthand",
			src:  "input(value={{ v }})",
			want: `<input x-bind:value="v"/>`,
		},
		{
			name: "quoted attribute shorthand",
			src:  `a(href="{{ url }}") go`,
			want: `<a x-bind:href="url">go</a>`,
		},
		{
			name: "event alias",
			src:  `button(@click="go()") ok`,
			want: `<button x-on:click="go()">ok</button>`,
		},
		{
			name: "bind alias",
			src:  `div(:class="c")`,
			want: `<div x-bind:class="c"></div>`,
		},
		{
			name: "directive alias",
			src:  `div(p-show="open")`,
			want: `<div x-show="open"></div>`,
		},
		{
			name: "loop",
			src:  "each item in items\n  li {{ item }}",
			want: `<template x-for="item of items"><li x-text="item"></li></template>`,
		},
		{
			name: "loop with key",
			src:  "each v, k in obj\n  i {{ k }}",
			want: `<template x-for="v, k of obj"><i x-text="k"></i></template>`,
		},
		{
			name: "loop with else",
			src:  "each n in list\n  b {{ n }}\nelse\n  p empty",
			want: `<template x-for="n of list"><b x-text="n"></b></template><template x-if="!(list) || (list).length === 0"><p>empty</p></template>`,
		},
		{
			name: "else if chain",
			src:  "if a\n  p 1\nelse if b\n  p 2\nelse\n  p 3",
			want: `<template x-if="a"><p>1</p></template><template x-if="!(a)"><template x-if="b"><p>2</p></template><template x-if="!(b)"><p>3</p></template></template>`,
		},
		{
			name: "nested conditional",
			src:  "div\n  if ok\n    p y",
			want: `<div><template x-if="ok"><p>y</p></template></div>`,
		},
		{
			name: "conditional inside loop",
			src:  "each n in list\n  if n\n    b x",
			want: `<template x-for="n of list"><template x-if="n"><b>x</b></template></template>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(t, tt.src); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestCompile_NegationIsExact(t *testing.T) {
	for _, cond := range []string{"x", "a && b", "items.length > 0", "!done"} {
		got := render(t, "if "+cond+"\n  p a\nelse\n  p b")
		want := `<template x-if="` + cond + `"><p>a</p></template><template x-if="!(` + cond + `)"><p>b</p></template>`
		if got != want {
			t.Errorf("got  %s\nwant %s", got, want)
		}
	}
}

func TestCompile_RootControlFlowIsNotAComponent(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"if else", "if x\n  p Hello\nelse\n  p Bye", []string{`x-if=\"x\"`, `x-if=\"!(x)\"`, "Bye"}},
		{"each", "each n in list\n  li {{ n }}", []string{`x-for=\"n of list\"`, `x-text=\"n\"`}},
		{"each else", "each n in list\n  li= n\nelse\n  p none", []string{`x-for=\"n of list\"`, "none"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compile(tt.src, Options{})
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if len(res.Components) != 0 {
				t.Errorf("Expected no components, got %d", len(res.Components))
			}
			if strings.Contains(res.Code, "defineComponent") {
				t.Errorf("Expected a template function, got\n%s", res.Code)
			}
			for _, want := range tt.want {
				if !strings.Contains(res.Code, want) {
					t.Errorf("Expected %q in\n%s", want, res.Code)
				}
			}
		})
	}
}

func TestCompile_ComponentWithControlFlowRoot(t *testing.T) {
	src := strings.Join([]string{
		"template",
		"  if ready",
		"    p {{ name }}",
		"  else",
		"    p loading",
		"script",
		"  export default defineComponent({})",
	}, "\n")
	res, err := Compile(src, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(res.Components) != 1 {
		t.Fatalf("components = %+v", res.Components)
	}
	for _, want := range []string{`x-if=\"ready\"`, `x-if=\"!(ready)\"`, "loading"} {
		if !strings.Contains(res.Code, want) {
			t.Errorf("Expected %q in\n%s", want, res.Code)
		}
	}
}

func TestCompile_PlainTemplatesUnchanged(t *testing.T) {
	sources := []string{
		"ul\n  li a\n  li b",
		"p#x.y Hello",
		"a(href='/x') link",
		"doctype html\nhtml\n  body\n    br",
	}
	for _, src := range sources {
		want, err := pug.Render(src, nil, pug.Options{})
		if err != nil {
			t.Fatalf("Render(%q) error = %v", src, err)
		}
		if got := render(t, src); got != want {
			t.Errorf("%q: got %s, want %s", src, got, want)
		}
	}
}

func TestCompile_Component(t *testing.T) {
	src := "template\n  p {{ name }}\nscript\n  export default defineComponent({})"
	res, err := Compile(src, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if len(res.Components) != 1 || !res.Components[0].Default {
		t.Fatalf("components = %+v", res.Components)
	}
	for _, want := range []string{
		"export default defineComponent({\n",
		"render: (function () {\n",
		`x-text=\"name\"`,
		"return template;\n})(),\n",
	} {
		if !strings.Contains(res.Code, want) {
			t.Errorf("Expected %q in\n%s", want, res.Code)
		}
	}
	if strings.Contains(res.Code, "import { defineComponent }") {
		t.Error("Expected no defineComponent import when the script defines the component")
	}
}

func TestCompile_ComponentMembers(t *testing.T) {
	src := strings.Join([]string{
		"template",
		"  p {{ count }}",
		"data",
		"  count: 1",
		"implementation",
		"  method#inc(by = 1)",
		"    this.count += by",
		"  event#onClick.click",
		"    this.inc()",
		"  when mounted",
		"    this.inc()",
		"style",
		"  p { color: red }",
	}, "\n")

	res, err := Compile(src, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !strings.HasPrefix(res.Code, "import { defineComponent } from \"@pupperjs/renderer\";\nexport default defineComponent({\n") {
		t.Errorf("unexpected module head:\n%s", res.Code)
	}

	c := res.Components[0]
	wantMethods := []Method{{Name: "inc", Params: []Param{{Name: "by", Default: "1"}}, Body: "this.count += by"}}
	if !reflect.DeepEqual(c.Methods, wantMethods) {
		t.Errorf("methods = %+v", c.Methods)
	}
	wantEvents := []Method{{Name: "__pupperEvent_onClick", Body: "this.inc()", Covers: []string{"click"}}}
	if !reflect.DeepEqual(c.Events, wantEvents) {
		t.Errorf("events = %+v", c.Events)
	}
	if len(c.When) != 1 || c.When[0].Name != "mounted" {
		t.Errorf("when = %+v", c.When)
	}
	if c.Data != "count: 1" {
		t.Errorf("data = %q", c.Data)
	}
	if !reflect.DeepEqual(res.Styles, []string{"p { color: red }"}) {
		t.Errorf("styles = %q", res.Styles)
	}

	for _, want := range []string{
		"data() {\nreturn {\ncount: 1\n};\n},\n",
		"inc(by = 1) {\nthis.count += by\n},\n",
		"{ method: \"__pupperEvent_onClick\", covers: [\"click\"] },\n",
		"when: {\nmounted() {\nthis.inc()\n},\n},\n",
	} {
		if !strings.Contains(res.Code, want) {
			t.Errorf("Expected %q in\n%s", want, res.Code)
		}
	}
}

func TestCompile_ScopedComponentsAndImports(t *testing.T) {
	src := strings.Join([]string{
		`import Card(from="./card.pupper")`,
		`component(name="Item")`,
		`  template`,
		`    li {{ label }}`,
		`template`,
		`  ul`,
		`    Item(label="a")`,
		`    Card`,
	}, "\n")

	res, err := Compile(src, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	wantImports := []Import{{Name: "Card", Path: "./card.pupper", Line: 1}}
	if !reflect.DeepEqual(res.Imports, wantImports) {
		t.Errorf("imports = %+v", res.Imports)
	}
	head := "import Card from \"./card.pupper\";\nimport { defineComponent } from \"@pupperjs/renderer\";\nconst Item = defineComponent({\nname: \"Item\",\n"
	if !strings.HasPrefix(res.Code, head) {
		t.Errorf("unexpected module head:\n%s", res.Code)
	}
	for _, want := range []string{
		`<template x-component=\"Item\" label=\"a\"></template>`,
		`<template x-component=\"Card\"></template>`,
		"\"Item\": Item,\n",
		"\"Card\": Card,\n",
	} {
		if !strings.Contains(res.Code, want) {
			t.Errorf("Expected %q in\n%s", want, res.Code)
		}
	}
	if strings.Index(res.Code, "const Item") > strings.Index(res.Code, "export default") {
		t.Error("Expected scoped components before the default export")
	}
}

func TestCompile_ScopedStyle(t *testing.T) {
	src := "template\n  p hi\nstyle(scoped)\n  p { color: red }"
	res, err := Compile(src, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	c := res.Components[0]
	if c.ScopedStyle == nil {
		t.Fatal("Expected a scoped style")
	}
	attr := c.ScopedStyle.Attribute()
	if want := "p[" + attr + "] { color: red }"; c.Style != want {
		t.Errorf("style = %q, want %q", c.Style, want)
	}
	if want := `<p ` + attr + `=\"\">hi</p>`; !strings.Contains(res.Code, want) {
		t.Errorf("Expected %q in\n%s", want, res.Code)
	}
}

func TestCompile_ComponentErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
		line int
	}{
		{"missing name", "component\n  template\n    p", "COMPONENT:MISSING_NAME", 1},
		{"no script or template", "component(name=\"A\")\n  data\n    x: 1", "COMPONENT:NO_SCRIPT_OR_TEMPLATE", 1},
		{"duplicate name", "component(name=\"A\")\n  template\n    p\ncomponent(name=\"A\")\n  template\n    p", "COMPONENT:DUPLICATE_NAME", 4},
		{"multiple defaults", "template\n  p\ncomponent(export)\n  template\n    p", "COMPONENT:MULTIPLE_DEFAULT_EXPORTS", 3},
		{"invalid member", "template\n  p\nimplementation\n  div hi", "COMPONENT:INVALID_IMPLEMENTATION", 4},
		{"unnamed method", "template\n  p\nimplementation\n  method\n    x()", "COMPONENT:INVALID_IMPLEMENTATION", 4},
		{"multiple roots", "template\n  p a\n  p b", "COMPONENT:MULTIPLE_ROOTS", 3},
		{"multiple roots in scoped component", "component(name=\"A\")\n  template\n    p a\n\n    p b\ntemplate\n  A", "COMPONENT:MULTIPLE_ROOTS", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src, Options{FileName: "c.pupper", Logger: log.New(&bytes.Buffer{}, "", 0)})
			var perr *pug.Error
			if !errors.As(err, &perr) {
				t.Fatalf("Expected a *pug.Error, got %v", err)
			}
			if perr.Code != tt.code || perr.Line != tt.line {
				t.Errorf("got %s at line %d, want %s at line %d", perr.Code, perr.Line, tt.code, tt.line)
			}
			if perr.Filename != "c.pupper" {
				t.Errorf("filename = %q", perr.Filename)
			}
		})
	}
}

func TestCompileTemplate_NoRewriting(t *testing.T) {
	got, err := CompileTemplate(`p(@click="go") {{ name }}`, Options{})
	if err != nil {
		t.Fatalf("CompileTemplate() error = %v", err)
	}
	if want := `<p @click="go">{{ name }}</p>`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	got, err = CompileTemplate("p= name", Options{Locals: map[string]any{"name": "Bo"}})
	if err != nil {
		t.Fatalf("CompileTemplate() error = %v", err)
	}
	if got != "<p>Bo</p>" {
		t.Errorf("got %s", got)
	}
}

func TestPlugin_Order(t *testing.T) {
	p, err := newPlugin(Options{}, ModeComponent)
	if err != nil {
		t.Fatalf("newPlugin() error = %v", err)
	}
	want := []string{"normalize", "alias", "shorthand", "conditional", "loop", "import", "component", "scope"}
	if got := p.Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
}

func TestPlugin_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		hooks []*Hook
		msg   string
		names []string
	}{
		{
			name:  "cycle",
			hooks: []*Hook{{Name: "a", RunsBefore: []string{"b"}}, {Name: "b", RunsBefore: []string{"a"}}, {Name: "c"}},
			msg:   "ordering cycle",
			names: []string{"a", "b"},
		},
		{
			name:  "unknown",
			hooks: []*Hook{{Name: "a", RunsAfter: []string{"missing"}}},
			msg:   "unknown hook",
			names: []string{"a", "missing"},
		},
		{
			name:  "duplicate",
			hooks: []*Hook{{Name: "a"}, {Name: "a"}},
			msg:   "duplicate hook",
			names: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlugin(Options{}, ModeComponent)
			for _, h := range tt.hooks {
				p.RegisterHook(h)
			}
			err := p.Prepare()
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Expected a *ConfigError, got %v", err)
			}
			if cerr.Msg != tt.msg || !reflect.DeepEqual(cerr.Hooks, tt.names) {
				t.Errorf("got %q %v, want %q %v", cerr.Msg, cerr.Hooks, tt.msg, tt.names)
			}
		})
	}
}

func TestPlugin_RunsAfter(t *testing.T) {
	p := NewPlugin(Options{}, ModeComponent)
	p.RegisterHook(&Hook{Name: "late", RunsAfter: []string{"early"}})
	p.RegisterHook(&Hook{Name: "early"})
	if err := p.Prepare(); err != nil {
		t.Fatal(err)
	}
	if got := p.Order(); !reflect.DeepEqual(got, []string{"early", "late"}) {
		t.Errorf("Order() = %v", got)
	}
}

func TestPlugin_PanicIsReported(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlugin(Options{Logger: log.New(&buf, "", 0)}, ModeComponent)
	p.RegisterHook(&Hook{Name: "boom", Parse: func(*Plugin, *pug.Block) (*pug.Block, error) {
		panic("bad")
	}})
	if err := p.Prepare(); err != nil {
		t.Fatal(err)
	}

	_, err := pug.Compile("p", pug.Options{Plugins: []pug.Plugin{p}})
	if err == nil || !strings.Contains(err.Error(), "parse hook boom panicked: bad") {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("Expected the failure to be logged, got %q", buf.String())
	}
}

func TestPlugin_PhasesSkippedInRenderMode(t *testing.T) {
	rewrite := func(*Plugin, string) (string, error) { return "p rewritten", nil }
	for _, mode := range []Mode{ModeComponent, ModeRender} {
		p := NewPlugin(Options{}, mode)
		p.RegisterPhase(&Hook{Name: "phase", PreLex: rewrite})
		if err := p.Prepare(); err != nil {
			t.Fatal(err)
		}
		got, err := p.PreLex("p a")
		if err != nil {
			t.Fatal(err)
		}
		want := "p a"
		if mode == ModeComponent {
			want = "p rewritten"
		}
		if got != want {
			t.Errorf("mode %d: PreLex() = %q, want %q", mode, got, want)
		}
	}
}
