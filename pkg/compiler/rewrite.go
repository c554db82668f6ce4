package compiler

import (
	"strings"

	"github.com/pupperjs/core-sub000/pkg/pug"
)

// templateTag builds a synthetic template element around body
func templateTag(at pug.Node, attr, value string, body *pug.Block) *pug.Tag {
	if body == nil {
		body = &pug.Block{Pos: pos(at)}
	}
	return &pug.Tag{
		Pos:   pos(at),
		Name:  "template",
		Attrs: []*pug.Attr{{Name: attr, Val: pug.Quote(value)}},
		Block: body,
	}
}

// rewriteConditionals turns every if/else chain below n into
// template(x-if="C") and template(x-if="!(C)") siblings
func rewriteConditionals(n Node) {
	for _, child := range n.Children() {
		c, ok := child.(*ConditionalNode)
		if !ok {
			rewriteConditionals(child)
			continue
		}
		for _, t := range c.ReplaceWith(conditionalTemplates(c.cond)...) {
			rewriteConditionals(t)
		}
	}
}

func conditionalTemplates(c *pug.Conditional) []pug.Node {
	nodes := []pug.Node{templateTag(c, "x-if", c.Test, c.Consequent)}
	switch alt := c.Alternate.(type) {
	case *pug.Block:
		nodes = append(nodes, templateTag(c, "x-if", "!("+c.Test+")", alt))
	case *pug.Conditional:
		body := &pug.Block{Pos: pos(alt), Nodes: []pug.Node{alt}}
		nodes = append(nodes, templateTag(c, "x-if", "!("+c.Test+")", body))
	}
	return nodes
}

// LoopHeader formats the x-for value of a loop
func LoopHeader(item, key, collection string) string {
	if key != "" {
		return item + ", " + key + " of " + collection
	}
	return item + " of " + collection
}

// rewriteLoops turns every each loop below n into template(x-for). An
// else branch becomes a sibling shown while the collection is empty.
func rewriteLoops(n Node) {
	for _, child := range n.Children() {
		e, ok := child.(*EachNode)
		if !ok {
			rewriteLoops(child)
			continue
		}
		nodes := []pug.Node{templateTag(e.each, "x-for", LoopHeader(e.Item(), e.Key(), e.Collection()), e.each.Block)}
		if e.each.Alternate != nil {
			empty := "!(" + e.Collection() + ") || (" + e.Collection() + ").length === 0"
			nodes = append(nodes, templateTag(e.each, "x-if", empty, e.each.Alternate))
		}
		for _, t := range e.ReplaceWith(nodes...) {
			rewriteLoops(t)
		}
	}
}

// rewriteComponentTags turns tags naming a known component into
// template(x-component) markers. The original attributes are passed as
// props.
func (p *Plugin) rewriteComponentTags(n Node) {
	for _, child := range n.Children() {
		tag, ok := child.(*TagNode)
		if ok && p.known[tag.Name()] {
			marker := templateTag(tag.tag, "x-component", tag.Name(), tag.tag.Block)
			marker.Attrs = append(marker.Attrs, tag.tag.Attrs...)
			marker.SelfClosing = len(tag.tag.Block.Nodes) == 0
			child = child.ReplaceWith(marker)[0]
		}
		p.rewriteComponentTags(child)
	}
}

// addScopeAttribute marks every element below n with the scoped style
// attribute
func addScopeAttribute(n Node, attr string) {
	for _, child := range n.Children() {
		if tag, ok := child.(*TagNode); ok && tag.Name() != "template" && !tag.HasAttribute(attr) {
			tag.tag.Attrs = append(tag.tag.Attrs, &pug.Attr{Name: attr, Val: "''"})
		}
		addScopeAttribute(child, attr)
	}
}

func conditionalHook(_ *Plugin, ast *pug.Block) (*pug.Block, error) {
	rewriteConditionals(Wrap(ast, nil))
	return ast, nil
}

func loopHook(_ *Plugin, ast *pug.Block) (*pug.Block, error) {
	rewriteLoops(Wrap(ast, nil))
	return ast, nil
}

func importHook(p *Plugin, ast *pug.Block) (*pug.Block, error) {
	if len(p.known) > 0 {
		p.rewriteComponentTags(Wrap(ast, nil))
	}
	return ast, nil
}

func scopeHook(p *Plugin, ast *pug.Block) (*pug.Block, error) {
	if p.scopeAttr != "" {
		addScopeAttribute(Wrap(ast, nil), p.scopeAttr)
	}
	return ast, nil
}

// stripImports blanks root-level import lines and records them
func stripImports(p *Plugin, src string) (string, error) {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		m := reImport.FindStringSubmatch(strings.TrimRight(line, " \t\r"))
		if m == nil {
			continue
		}
		path, _ := pug.Unquote(m[2])
		p.imports = append(p.imports, Import{Name: m[1], Path: path, Line: i + 1})
		p.known[m[1]] = true
		lines[i] = ""
	}
	return strings.Join(lines, "\n"), nil
}
