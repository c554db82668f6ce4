package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pupperjs/core-sub000/pkg/pug"
	"github.com/pupperjs/core-sub000/pkg/renderer"
	"github.com/pupperjs/core-sub000/pkg/styling"
)

// Import is an inline import declaration
type Import struct {
	Name string
	Path string
	Line int
}

// Param is a method parameter. Default is JavaScript source, empty when
// the parameter has none.
type Param struct {
	Name    string
	Default string
}

// Method is an implementation member. Covers lists the DOM events an
// event member handles.
type Method struct {
	Name   string
	Params []Param
	Body   string
	Covers []string
}

// Component describes one component declaration
type Component struct {
	// Name is empty for a default export
	Name     string
	Exported bool
	Default  bool

	// Template is the compiled render code
	Template string
	Script   string
	Style    string
	Data     string

	// ScopedStyle is set when the style only applies to this component
	ScopedStyle *styling.ComponentStyle

	Methods []Method
	When    []Method
	Events  []Method

	Line   int
	Column int

	template *TagNode
}

// componentParts are the child tags that make a document a component
var componentParts = []string{"template", "script", "style", "data", "implementation"}

func isComponentRoot(root Node) bool {
	for _, name := range componentParts {
		if findPart(root, name) != nil {
			return true
		}
	}
	return false
}

// extractComponents finds the root component and component tags,
// compiles their templates and removes them from the document
func extractComponents(p *Plugin, ast *pug.Block) (*pug.Block, error) {
	root := Wrap(ast, nil)

	var found []*Component
	var consumed []Node
	if isComponentRoot(root) {
		c, err := p.describe(root, nil)
		if err != nil {
			return nil, err
		}
		found = append(found, c)
		for _, child := range root.Children() {
			if tag, ok := child.(*TagNode); ok && isPart(tag.Name()) && !structural(tag) {
				consumed = append(consumed, child)
			}
		}
	}
	for _, child := range root.Children() {
		tag, ok := child.(*TagNode)
		if !ok || tag.Name() != "component" {
			continue
		}
		c, err := p.describe(tag, tag)
		if err != nil {
			return nil, err
		}
		found = append(found, c)
		consumed = append(consumed, child)
	}

	names := make(map[string]bool)
	var def *Component
	for _, c := range found {
		if c.Default {
			if def != nil {
				return nil, pug.NewError("COMPONENT:MULTIPLE_DEFAULT_EXPORTS", "Only one component can be the default export", c.Line, c.Column, p.opts.FileName, p.debugSrc())
			}
			def = c
		}
		if c.Name == "" {
			continue
		}
		if names[c.Name] {
			return nil, pug.NewError("COMPONENT:DUPLICATE_NAME", fmt.Sprintf("Component %q is declared twice", c.Name), c.Line, c.Column, p.opts.FileName, p.debugSrc())
		}
		names[c.Name] = true
		p.known[c.Name] = true
	}

	for _, c := range found {
		if c.template == nil {
			continue
		}
		code, err := p.compileTemplate(c)
		if err != nil {
			return nil, err
		}
		c.Template = code
	}

	for _, n := range consumed {
		n.Delete()
	}
	p.components = append(p.components, found...)
	return ast, nil
}

// recordTemplateRoots notes component templates with more than one root
// before conditionals and loops are split into sibling templates
func recordTemplateRoots(p *Plugin, ast *pug.Block) (*pug.Block, error) {
	root := Wrap(ast, nil)
	parents := []Node{root}
	for _, child := range root.Children() {
		if tag, ok := child.(*TagNode); ok && tag.Name() == "component" {
			parents = append(parents, tag)
		}
	}
	for _, parent := range parents {
		tmpl := findPart(parent, "template")
		if tmpl == nil {
			continue
		}
		var roots []Node
		for _, child := range tmpl.Children() {
			switch n := child.Native().(type) {
			case *pug.Comment:
				continue
			case *pug.Text:
				if strings.TrimSpace(n.Val) == "" {
					continue
				}
			}
			roots = append(roots, child)
		}
		if len(roots) > 1 {
			p.extraRoots[tmpl.tag] = roots[1]
		}
	}
	return ast, nil
}

// structural reports whether tag is a template produced for a conditional,
// a loop or a component use. Those never count as component parts.
func structural(tag *TagNode) bool {
	if tag.Name() != "template" {
		return false
	}
	for _, attr := range []string{"x-if", "x-for", "x-component"} {
		if tag.HasAttribute(attr) {
			return true
		}
	}
	return false
}

// findPart returns the first direct child of n that is the named
// component part
func findPart(n Node, name string) *TagNode {
	for _, c := range n.Children() {
		if tag, ok := c.(*TagNode); ok && tag.Name() == name && !structural(tag) {
			return tag
		}
	}
	return nil
}

func isPart(name string) bool {
	for _, part := range componentParts {
		if name == part {
			return true
		}
	}
	return false
}

// describe builds the descriptor of a component whose parts are children
// of n. decl is the component tag, nil for the document root.
func (p *Plugin) describe(n Node, decl *TagNode) (*Component, error) {
	c := &Component{Line: n.Line(), Column: n.Column()}
	if decl == nil {
		c.Default, c.Exported = true, true
		c.Line, c.Column = 1, 1
	} else {
		c.Name, _ = decl.Attribute("name")
		c.Exported = decl.HasAttribute("export")
		if c.Name == "" && !c.Exported {
			return nil, p.errorAt(n, "COMPONENT:MISSING_NAME", "Scoped components must have a name")
		}
		c.Default = c.Exported && c.Name == ""
	}

	c.template = findPart(n, "template")
	if c.template != nil {
		if extra, ok := p.extraRoots[c.template.tag]; ok {
			return nil, p.errorAt(extra, "COMPONENT:MULTIPLE_ROOTS", "Templates must have a single root element")
		}
	}
	script := findPart(n, "script")
	if c.template == nil && script == nil {
		return nil, p.errorAt(n, "COMPONENT:NO_SCRIPT_OR_TEMPLATE", "Components must have a script or a template")
	}
	if script != nil {
		c.Script = textContent(script)
	}
	if data := findPart(n, "data"); data != nil {
		c.Data = textContent(data)
	}
	if style := findPart(n, "style"); style != nil {
		c.Style = textContent(style)
		if style.HasAttribute("scoped") && strings.TrimSpace(c.Style) != "" {
			c.ScopedStyle = styling.Style(c.Style)
			c.Style = c.ScopedStyle.Scoped
		}
	}
	if impl := findPart(n, "implementation"); impl != nil {
		if err := p.implementation(c, impl); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// implementation reads the method, event and when members
func (p *Plugin) implementation(c *Component, impl *TagNode) error {
	for _, child := range impl.Children() {
		tag, ok := child.(*TagNode)
		if !ok {
			if t, isText := child.Native().(*pug.Text); isText && strings.TrimSpace(t.Val) == "" {
				continue
			}
			return p.errorAt(child, "COMPONENT:INVALID_IMPLEMENTATION", "Implementations may only contain method, event and when declarations")
		}

		switch tag.Name() {
		case "method", "event", "event-when":
		default:
			return p.errorAt(tag, "COMPONENT:INVALID_IMPLEMENTATION", fmt.Sprintf("Unexpected %q in implementation, expected method, event or when", tag.Name()))
		}
		id, _ := tag.Attribute("id")
		if id == "" {
			return p.errorAt(tag, "COMPONENT:INVALID_IMPLEMENTATION", fmt.Sprintf("%s declarations need a name, as in %s#name", tag.Name(), tag.Name()))
		}
		m := Method{Name: id, Body: textContent(tag)}
		for _, a := range tag.Attrs() {
			if a.Name == "id" || a.Name == "class" {
				continue
			}
			param := Param{Name: a.Name}
			if v := strings.TrimSpace(a.Val); v != "undefined" {
				param.Default = v
			}
			m.Params = append(m.Params, param)
		}

		switch tag.Name() {
		case "method":
			c.Methods = append(c.Methods, m)
		case "event":
			m.Covers = tag.Classes()
			m.Name = renderer.EventMethodPrefix + m.Name
			c.Events = append(c.Events, m)
		case "event-when":
			c.When = append(c.When, m)
		}
	}
	return nil
}

// textContent concatenates the literal text of a raw text block
func textContent(tag *TagNode) string {
	var b strings.Builder
	for _, n := range tag.tag.Block.Nodes {
		switch n := n.(type) {
		case *pug.Text:
			b.WriteString(n.Val)
		case *pug.Code:
			if !n.IsInline {
				continue
			}
			if n.MustEscape {
				b.WriteString("#{" + n.Val + "}")
			} else {
				b.WriteString("!{" + n.Val + "}")
			}
		}
	}
	return b.String()
}

// templateSource slices the body of a template tag out of the source and
// removes its indentation. It returns the slice with the line and column
// offsets of its first character.
func (p *Plugin) templateSource(tag *TagNode) (string, int, int) {
	lines := strings.Split(p.src, "\n")
	start := tag.Line()
	indent := tag.Column() - 1

	end := start
	for end < len(lines) {
		line := lines[end]
		if strings.TrimSpace(line) != "" && len(line)-len(strings.TrimLeft(line, " \t")) <= indent {
			break
		}
		end++
	}
	body := lines[start:end]
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}

	dedent := -1
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if w := len(line) - len(strings.TrimLeft(line, " \t")); dedent < 0 || w < dedent {
			dedent = w
		}
	}
	for i, line := range body {
		if len(line) >= dedent && dedent > 0 {
			body[i] = line[dedent:]
		} else {
			body[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(body, "\n"), start, max(dedent, 0)
}

// compileTemplate compiles a component template with a nested plugin in
// render mode. Error positions are mapped back to the file.
func (p *Plugin) compileTemplate(c *Component) (string, error) {
	src, lineOffset, colOffset := p.templateSource(c.template)

	child, err := newPlugin(p.opts, ModeRender)
	if err != nil {
		return "", err
	}
	for name := range p.known {
		child.known[name] = true
	}
	if c.ScopedStyle != nil {
		child.scopeAttr = c.ScopedStyle.Attribute()
	}

	code, err := pug.Compile(src, pug.Options{
		Filename: p.opts.FileName,
		Debug:    p.opts.Debug,
		Plugins:  []pug.Plugin{child},
	})
	var perr *pug.Error
	if errors.As(err, &perr) {
		perr.Line += lineOffset
		perr.Column += colOffset
		perr.Src = p.debugSrc()
		return "", perr
	}
	return code, err
}
