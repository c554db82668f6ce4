package pug

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	reDeclaration = regexp.MustCompile(`(?:^|[^\w$.])(var|let|const|function)\s+([A-Za-z_$][\w$]*)`)
	reIdentifier  = regexp.MustCompile(`^[A-Za-z_$][\w$]*`)
)

// runtime is prepended to every generated template
const runtime = `function pug_escape(v) {
  var s = "" + v;
  if (!/[&<>"]/.test(s)) return s;
  return s.replace(/&/g, "&amp;").replace(/</g, "&lt;").replace(/>/g, "&gt;").replace(/"/g, "&quot;");
}
function pug_join(vals) {
  return vals.filter(function (v) { return v != null && v !== false && v !== ""; }).join(" ");
}
function pug_attr(key, val, escaped, terse) {
  if (key === "class" && Array.isArray(val)) val = pug_join(val);
  if (key === "style" && val && typeof val === "object") {
    val = Object.keys(val).map(function (k) { return k + ":" + val[k]; }).join(";");
  }
  if (val === false || val == null || (!val && (key === "class" || key === "style"))) return "";
  if (val === true) return " " + (terse ? key : key + '="' + key + '"');
  if (typeof val.toJSON === "function") val = val.toJSON();
  if (typeof val !== "string") {
    val = JSON.stringify(val);
    if (!escaped && val.indexOf('"') !== -1) return " " + key + "='" + val.replace(/'/g, "&#39;") + "'";
  }
  if (escaped) val = pug_escape(val);
  return " " + key + '="' + val + '"';
}
`

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var doctypes = map[string]string{
	"html":         "<!DOCTYPE html>",
	"xml":          `<?xml version="1.0" encoding="utf-8" ?>`,
	"transitional": `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">`,
	"strict":       `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">`,
	"frameset":     `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Frameset//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-frameset.dtd">`,
	"1.1":          `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd">`,
}

// generator emits JavaScript for a template AST. Static output is
// buffered and flushed as one string append.
type generator struct {
	code     strings.Builder
	declared []string
	static   strings.Builder
	terse    bool
	xml      bool
	counter  int
}

// Generate emits a JavaScript function template(locals) returning the
// rendered HTML
func Generate(ast *Block, opts Options) (string, error) {
	g := &generator{}
	g.setDoctype(opts.Doctype)

	g.visitBlock(ast)
	g.flush()

	declared := make([]string, len(g.declared))
	for i, name := range g.declared {
		declared[i] = Quote(name)
	}

	// Names declared by unbuffered code live in the function scope, so
	// the locals proxy must not claim them.
	var out strings.Builder
	out.WriteString(runtime)
	out.WriteString("function template(locals) {\n")
	out.WriteString("var pug_html = \"\", pug_mixins = {}, pug_interp;\n")
	out.WriteString("var pug_declared = [" + strings.Join(declared, ", ") + "];\n")
	out.WriteString("var locals_for_with = new Proxy(locals || {}, {\n")
	out.WriteString("  has: function (t, k) { return typeof k === \"string\" && k.slice(0, 4) !== \"pug_\" && pug_declared.indexOf(k) === -1 && (k in t || !(k in globalThis)); }\n")
	out.WriteString("});\n")
	out.WriteString("with (locals_for_with) {\n")
	out.WriteString(g.code.String())
	out.WriteString("}\n")
	out.WriteString("return pug_html;\n")
	out.WriteString("}\n")
	return out.String(), nil
}

// declare records the variables and functions an unbuffered statement
// declares
func (g *generator) declare(code string) {
	for _, name := range DeclaredNames(code) {
		if !slices.Contains(g.declared, name) {
			g.declared = append(g.declared, name)
		}
	}
}

// DeclaredNames returns the names bound by var, let, const and function
// declarations in code. Destructuring patterns are not followed.
func DeclaredNames(code string) []string {
	var names []string
	for _, m := range reDeclaration.FindAllStringSubmatchIndex(code, -1) {
		keyword := code[m[2]:m[3]]
		names = append(names, code[m[4]:m[5]])
		if keyword == "function" {
			continue
		}
		names = append(names, declarationList(code[m[5]:])...)
	}
	return names
}

// declarationList reads the names after the first one in a
// comma-separated declaration, skipping initializers
func declarationList(rest string) []string {
	var names []string
	depth := 0
	var quote byte
	for i := 0; i < len(rest); i++ {
		ch := rest[i]
		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'' || ch == '`':
			quote = ch
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case ch == ')' || ch == ']' || ch == '}':
			if depth == 0 {
				return names
			}
			depth--
		case ch == ';' && depth == 0:
			return names
		case ch == ',' && depth == 0:
			if m := reIdentifier.FindString(strings.TrimLeft(rest[i+1:], " \t\n")); m != "" {
				names = append(names, m)
			}
		}
	}
	return names
}

func (g *generator) setDoctype(name string) {
	switch strings.ToLower(name) {
	case "":
	case "html", "5":
		g.terse = true
	case "xml":
		g.xml = true
	}
}

func (g *generator) buffer(s string) {
	g.static.WriteString(s)
}

func (g *generator) flush() {
	if g.static.Len() == 0 {
		return
	}
	g.code.WriteString("pug_html = pug_html + " + Quote(g.static.String()) + ";\n")
	g.static.Reset()
}

func (g *generator) emit(code string) {
	g.flush()
	g.code.WriteString(code)
	g.code.WriteString("\n")
}

func (g *generator) visitBlock(b *Block) {
	if b == nil {
		return
	}
	for _, n := range b.Nodes {
		g.visit(n)
	}
}

func (g *generator) visit(n Node) {
	switch n := n.(type) {
	case *Block:
		g.visitBlock(n)
	case *Tag:
		g.visitTag(n)
	case *Text:
		g.buffer(n.Val)
	case *Code:
		g.visitCode(n)
	case *Conditional:
		g.visitConditional(n)
	case *Each:
		g.visitEach(n)
	case *Mixin:
		g.visitMixin(n)
	case *MixinBlock:
		g.emit("block && block();")
	case *Comment:
		if n.Buffer {
			g.buffer("<!--" + n.Val + "-->")
		}
	case *BlockComment:
		if n.Buffer {
			g.buffer("<!--" + n.Val)
			g.visitBlock(n.Block)
			g.buffer("-->")
		}
	case *Doctype:
		g.visitDoctype(n)
	case *NamedBlock:
		g.visitBlock(n.Block)
	}
}

func (g *generator) visitDoctype(d *Doctype) {
	name := d.Val
	if name == "" {
		name = "html"
	}
	g.setDoctype(name)
	if dt, ok := doctypes[strings.ToLower(name)]; ok {
		g.buffer(dt)
		return
	}
	g.buffer("<!DOCTYPE " + name + ">")
}

func (g *generator) visitTag(t *Tag) {
	g.buffer("<" + t.Name)
	g.visitAttributes(t.Attrs)

	isVoid := voidElements[t.Name] || (g.xml && t.SelfClosing)
	if isVoid && len(t.Block.Nodes) == 0 {
		if g.terse {
			g.buffer(">")
		} else {
			g.buffer("/>")
		}
		return
	}

	// non-void self-closing tags render as an open/close pair
	g.buffer(">")
	g.visitBlock(t.Block)
	g.buffer("</" + t.Name + ">")
}

type attrGroup struct {
	name  string
	attrs []*Attr
}

// visitAttributes merges same-named attributes by space concatenation,
// folding literal values at compile time
func (g *generator) visitAttributes(attrs []*Attr) {
	var groups []*attrGroup
	index := make(map[string]*attrGroup)
	for _, a := range attrs {
		grp, ok := index[a.Name]
		if !ok {
			grp = &attrGroup{name: a.Name}
			index[a.Name] = grp
			groups = append(groups, grp)
		}
		grp.attrs = append(grp.attrs, a)
	}

	for _, grp := range groups {
		if s, ok := g.staticAttribute(grp); ok {
			g.buffer(s)
			continue
		}

		escaped := false
		vals := make([]string, len(grp.attrs))
		for i, a := range grp.attrs {
			vals[i] = "(" + a.Val + ")"
			escaped = escaped || a.MustEscape
		}
		val := vals[0]
		if len(vals) > 1 {
			val = "pug_join([" + strings.Join(vals, ", ") + "])"
		}
		g.emit(fmt.Sprintf("pug_html = pug_html + pug_attr(%s, %s, %t, %t);", Quote(grp.name), val, escaped, g.terse))
	}
}

// staticAttribute renders a group whose values are all literals
func (g *generator) staticAttribute(grp *attrGroup) (string, bool) {
	var parts []string
	boolean := false
	escaped := false
	for _, a := range grp.attrs {
		c, ok := constant(a.Val)
		if !ok {
			return "", false
		}
		escaped = escaped || a.MustEscape
		switch v := c.(type) {
		case bool:
			if v {
				boolean = true
			}
		case nil:
		case string:
			if v != "" {
				parts = append(parts, v)
			}
		}
	}

	name := grp.name
	switch {
	case len(parts) > 0:
		val := strings.Join(parts, " ")
		if escaped {
			return " " + name + `="` + html.EscapeString(val) + `"`, true
		}
		if strings.Contains(val, `"`) {
			return " " + name + "='" + strings.ReplaceAll(val, "'", "&#39;") + "'", true
		}
		return " " + name + `="` + val + `"`, true
	case boolean:
		if g.terse {
			return " " + name, true
		}
		return " " + name + `="` + name + `"`, true
	case name == "class" || name == "style":
		return "", true
	}

	// a lone empty string keeps the attribute
	if len(grp.attrs) == 1 {
		if c, _ := constant(grp.attrs[0].Val); c == "" {
			return " " + name + `=""`, true
		}
	}
	return "", true
}

// constant evaluates a literal attribute expression: a string, a number,
// true, false, null or undefined. Other expressions are not constant.
func constant(src string) (any, bool) {
	src = strings.TrimSpace(src)
	switch src {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null", "undefined":
		return nil, true
	}
	if src != "" && strings.ContainsRune("-.0123456789", rune(src[0])) {
		if _, err := strconv.ParseFloat(src, 64); err == nil {
			return src, true
		}
	}
	if s, ok := Unquote(src); ok {
		return s, true
	}
	return nil, false
}

// Unquote decodes a single- or double-quoted JavaScript string literal,
// or a template literal without substitutions
func Unquote(src string) (string, bool) {
	if len(src) < 2 {
		return "", false
	}
	q := src[0]
	if (q != '"' && q != '\'' && q != '`') || src[len(src)-1] != q {
		return "", false
	}
	body := src[1 : len(src)-1]
	if q == '`' {
		if strings.Contains(body, "${") || strings.Contains(body, "`") {
			return "", false
		}
		return body, true
	}

	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			if body[i+1] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte(c)
				b.WriteByte(body[i+1])
			}
			i++
		case c == q:
			return "", false
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	s, err := strconv.Unquote(b.String())
	if err != nil {
		return "", false
	}
	return s, true
}

func (g *generator) visitCode(c *Code) {
	if c.Buffer {
		val := "(null == (pug_interp = (" + c.Val + ")) ? \"\" : pug_interp)"
		if c.MustEscape {
			val = "pug_escape" + val
		}
		g.emit("pug_html = pug_html + " + val + ";")
		return
	}
	g.declare(c.Val)
	if c.Block == nil {
		g.emit(c.Val)
		return
	}
	g.emit(c.Val + " {")
	g.visitBlock(c.Block)
	g.emit("}")
}

func (g *generator) visitConditional(c *Conditional) {
	g.emit("if (" + c.Test + ") {")
	g.visitBlock(c.Consequent)
	switch alt := c.Alternate.(type) {
	case *Conditional:
		g.emit("} else {")
		g.visitConditional(alt)
		g.emit("}")
	case *Block:
		g.emit("} else {")
		g.visitBlock(alt)
		g.emit("}")
	default:
		g.emit("}")
	}
}

func (g *generator) visitEach(e *Each) {
	key := e.Key
	if key == "" {
		key = fmt.Sprintf("pug_index%d", g.counter)
		g.counter++
	}

	g.emit(";(function(){")
	g.emit("var $$obj = (" + e.Obj + ");")
	g.emit("var $$l = 0;")
	g.emit("if ($$obj != null && typeof $$obj.length === \"number\") {")
	g.emit("for (var " + key + " = 0; " + key + " < $$obj.length; " + key + "++) {")
	g.emit("$$l++;")
	g.emit("var " + e.Val + " = $$obj[" + key + "];")
	g.visitBlock(e.Block)
	g.emit("}")
	g.emit("} else if ($$obj != null) {")
	g.emit("for (var " + key + " in $$obj) {")
	g.emit("$$l++;")
	g.emit("var " + e.Val + " = $$obj[" + key + "];")
	g.visitBlock(e.Block)
	g.emit("}")
	g.emit("}")
	if e.Alternate != nil {
		g.emit("if ($$l === 0) {")
		g.visitBlock(e.Alternate)
		g.emit("}")
	}
	g.emit("}).call(this);")
}

func (g *generator) visitMixin(m *Mixin) {
	name := Quote(m.Name)
	if m.Call {
		if len(m.Block.Nodes) == 0 {
			g.emit("pug_mixins[" + name + "].call({}" + args(m.Args) + ");")
			return
		}
		g.emit("pug_mixins[" + name + "].call({")
		g.emit("block: function(){")
		g.visitBlock(m.Block)
		g.emit("}")
		g.emit("}" + args(m.Args) + ");")
		return
	}

	g.emit("pug_mixins[" + name + "] = pug_interp = function(" + m.Args + "){")
	g.emit("var block = (this && this.block), attributes = (this && this.attributes) || {};")
	g.visitBlock(m.Block)
	g.emit("};")
}

func args(a string) string {
	if strings.TrimSpace(a) == "" {
		return ""
	}
	return ", " + a
}

// Quote quotes s as a JavaScript string literal
func Quote(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(b.String(), "\n")
}
