package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pupperjs/core-sub000/pkg/pug"
)

// RuntimeModule is the module generated definitions import
// defineComponent from
const RuntimeModule = "@pupperjs/renderer"

// scanCode calls visit with the index of every byte of src outside
// strings and comments until visit returns false
func scanCode(src string, from int, visit func(i int) bool) {
	for i := from; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return
			}
			i += end + 3
		case c == '"' || c == '\'' || c == '`':
			i++
			for i < len(src) && src[i] != c {
				if src[i] == '\\' {
					i++
				}
				i++
			}
		default:
			if !visit(i) {
				return
			}
		}
	}
}

// findDefinition locates the object literal exported as default, either
// directly or through defineComponent(...). It returns the span of the
// "export default" keywords and the index just inside the object's brace.
func findDefinition(src string) (start, end, inside int, ok bool) {
	start = -1
	scanCode(src, 0, func(i int) bool {
		if !strings.HasPrefix(src[i:], "export") || (i > 0 && isIdentByte(src[i-1])) {
			return true
		}
		rest := strings.TrimLeft(src[i+len("export"):], " \t\n")
		if !strings.HasPrefix(rest, "default") {
			return true
		}
		start = i
		end = len(src) - len(rest) + len("default")
		return false
	})
	if start < 0 {
		return 0, 0, 0, false
	}

	j := skipSpace(src, end)
	if strings.HasPrefix(src[j:], "defineComponent") {
		j = skipSpace(src, j+len("defineComponent"))
		if j >= len(src) || src[j] != '(' {
			return 0, 0, 0, false
		}
		j = skipSpace(src, j+1)
	}
	if j >= len(src) || src[j] != '{' {
		return 0, 0, 0, false
	}
	return start, end, j + 1, true
}

func skipSpace(src string, i int) int {
	for i < len(src) && strings.IndexByte(" \t\r\n", src[i]) >= 0 {
		i++
	}
	return i
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

var reNonIdent = regexp.MustCompile(`[^\w$]`)

// identifier turns a component name into a JavaScript identifier
func identifier(name string) string {
	id := reNonIdent.ReplaceAllString(name, "_")
	if id == "" || (id[0] >= '0' && id[0] <= '9') {
		id = "_" + id
	}
	return id
}

func params(list []Param) string {
	parts := make([]string, len(list))
	for i, p := range list {
		parts[i] = p.Name
		if p.Default != "" {
			parts[i] += " = " + p.Default
		}
	}
	return strings.Join(parts, ", ")
}

func methodsObject(methods []Method) string {
	var b strings.Builder
	b.WriteString("{\n")
	for _, m := range methods {
		fmt.Fprintf(&b, "%s(%s) {\n%s\n},\n", m.Name, params(m.Params), m.Body)
	}
	b.WriteString("}")
	return b.String()
}

// properties renders the definition members injected for c
func properties(c *Component, components []string) string {
	var b strings.Builder
	if c.Name != "" {
		fmt.Fprintf(&b, "name: %s,\n", pug.Quote(c.Name))
	}
	if c.template != nil {
		fmt.Fprintf(&b, "render: (function () {\n%s\nreturn template;\n})(),\n", c.Template)
	}
	if data := strings.TrimSpace(c.Data); data != "" {
		if !strings.HasPrefix(data, "{") {
			data = "{\n" + data + "\n}"
		}
		fmt.Fprintf(&b, "data() {\nreturn %s;\n},\n", data)
	}

	methods := append(append([]Method(nil), c.Methods...), c.Events...)
	if len(methods) > 0 {
		fmt.Fprintf(&b, "methods: %s,\n", methodsObject(methods))
	}
	if len(c.When) > 0 {
		fmt.Fprintf(&b, "when: %s,\n", methodsObject(c.When))
	}
	if len(c.Events) > 0 {
		b.WriteString("events: [\n")
		for _, ev := range c.Events {
			covers := make([]string, len(ev.Covers))
			for i, name := range ev.Covers {
				covers[i] = pug.Quote(name)
			}
			fmt.Fprintf(&b, "{ method: %s, covers: [%s] },\n", pug.Quote(ev.Name), strings.Join(covers, ", "))
		}
		b.WriteString("],\n")
	}
	if c.Style != "" {
		fmt.Fprintf(&b, "style: %s,\n", pug.Quote(c.Style))
	}
	if len(components) > 0 {
		b.WriteString("components: {\n")
		for _, name := range components {
			fmt.Fprintf(&b, "%s: %s,\n", pug.Quote(name), identifier(name))
		}
		b.WriteString("},\n")
	}
	return b.String()
}

// componentModule renders the module code of c. It reports whether the
// code calls a defineComponent it does not import itself.
func componentModule(c *Component, components []string) (string, bool) {
	binding := "export default "
	if !c.Default {
		binding = "const " + identifier(c.Name) + " = "
		if c.Exported {
			binding = "export " + binding
		}
	}
	props := properties(c, components)
	generated := binding + "defineComponent({\n" + props + "});\n"

	if strings.TrimSpace(c.Script) == "" {
		return generated, true
	}
	start, end, inside, ok := findDefinition(c.Script)
	if !ok {
		return strings.TrimRight(c.Script, "\n") + "\n" + generated, true
	}
	if c.Default {
		binding = c.Script[start:end] + " "
	}
	return c.Script[:start] + binding + strings.TrimLeft(c.Script[end:inside], " ") + "\n" + props + c.Script[inside:], false
}

// synthesize replaces the document code with the component module when
// the document declares components
func synthesize(p *Plugin, code string) (string, error) {
	if len(p.components) == 0 {
		return code, nil
	}

	var ordered []*Component
	for _, c := range p.components {
		if !c.Default {
			ordered = append(ordered, c)
		}
	}
	for _, c := range p.components {
		if c.Default {
			ordered = append(ordered, c)
		}
	}

	var scope []string
	for _, imp := range p.imports {
		scope = append(scope, imp.Name)
	}

	var body strings.Builder
	define := false
	for _, c := range ordered {
		mod, usesDefine := componentModule(c, scope)
		define = define || usesDefine
		body.WriteString(mod)
		if c.Name != "" {
			scope = append(scope, c.Name)
		}
	}

	var b strings.Builder
	for _, imp := range p.imports {
		fmt.Fprintf(&b, "import %s from %s;\n", imp.Name, pug.Quote(imp.Path))
	}
	if define {
		fmt.Fprintf(&b, "import { defineComponent } from %s;\n", pug.Quote(RuntimeModule))
	}
	b.WriteString(body.String())
	return b.String(), nil
}
