package compiler

import (
	"testing"
)

func TestFindDefinition(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		start  int
		inside int
		ok     bool
	}{
		{"object", "export default {}", 0, 16, true},
		{"define call", "export default defineComponent ( { a: 1 })", 0, 34, true},
		{"after comment", "// export default {\nexport default {}", 20, 36, true},
		{"after block comment", "/* export default { */export default {}", 22, 38, true},
		{"after string", `const s = "export default {"; export default {}`, 30, 46, true},
		{"identifier", "export default foo", 0, 0, false},
		{"named export", "export const x = {}", 0, 0, false},
		{"none", "console.log(1)", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, inside, ok := findDefinition(tt.src)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if start != tt.start || inside != tt.inside {
				t.Errorf("start, inside = %d, %d; want %d, %d", start, inside, tt.start, tt.inside)
			}
			if got := tt.src[start:end]; got != "export default" {
				t.Errorf("keywords = %q", got)
			}
		})
	}
}

func TestIdentifier(t *testing.T) {
	tests := map[string]string{
		"Item":      "Item",
		"todo-list": "todo_list",
		"2col":      "_2col",
		"$store":    "$store",
	}
	for name, want := range tests {
		if got := identifier(name); got != want {
			t.Errorf("identifier(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestComponentModule(t *testing.T) {
	tests := []struct {
		name   string
		c      *Component
		comps  []string
		want   string
		define bool
	}{
		{
			name: "scoped with definition",
			c:    &Component{Name: "Item", Script: "export default { a: 1 }"},
			want: "const Item = {\nname: \"Item\",\n a: 1 }",
		},
		{
			name: "exported with define call",
			c:    &Component{Name: "Item", Exported: true, Script: "export default defineComponent({})"},
			want: "export const Item = defineComponent({\nname: \"Item\",\n})",
		},
		{
			name: "default keeps its export",
			c:    &Component{Default: true, Exported: true, Script: "import x from 'y';\nexport default {}"},
			want: "import x from 'y';\nexport default {\n}",
		},
		{
			name:   "script without definition",
			c:      &Component{Default: true, Exported: true, Script: "console.log(1)\n"},
			want:   "console.log(1)\nexport default defineComponent({\n});\n",
			define: true,
		},
		{
			name:   "no script",
			c:      &Component{Name: "Box", Data: "n: 1"},
			comps:  []string{"Card"},
			want:   "const Box = defineComponent({\nname: \"Box\",\ndata() {\nreturn {\nn: 1\n};\n},\ncomponents: {\n\"Card\": Card,\n},\n});\n",
			define: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, define := componentModule(tt.c, tt.comps)
			if got != tt.want {
				t.Errorf("componentModule() =\n%s\nwant\n%s", got, tt.want)
			}
			if define != tt.define {
				t.Errorf("define = %v, want %v", define, tt.define)
			}
		})
	}
}

func TestProperties_Members(t *testing.T) {
	c := &Component{
		Methods: []Method{{Name: "inc", Params: []Param{{Name: "by", Default: "1"}}, Body: "this.n += by"}},
		Events:  []Method{{Name: "__pupperEvent_go", Body: "this.inc()", Covers: []string{"click", "keyup"}}},
		When:    []Method{{Name: "mounted", Body: "this.inc()"}},
		Style:   `p { content: "x" }`,
	}
	want := "methods: {\ninc(by = 1) {\nthis.n += by\n},\n__pupperEvent_go() {\nthis.inc()\n},\n},\n" +
		"when: {\nmounted() {\nthis.inc()\n},\n},\n" +
		"events: [\n{ method: \"__pupperEvent_go\", covers: [\"click\", \"keyup\"] },\n],\n" +
		"style: \"p { content: \\\"x\\\" }\",\n"
	if got := properties(c, nil); got != want {
		t.Errorf("properties() =\n%s\nwant\n%s", got, want)
	}
}
