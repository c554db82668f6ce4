package compiler

import (
	"strings"

	"github.com/pupperjs/core-sub000/pkg/pug"
)

// Node wraps a template AST node with navigation and editing. The set of
// implementations is closed: TagNode, ConditionalNode, EachNode, MixinNode
// and GenericNode.
type Node interface {
	Native() pug.Node
	Parent() Node
	Type() string
	Line() int
	Column() int

	// Children wraps the nodes of every child container in order
	Children() []Node
	SetChildren(nodes ...pug.Node)

	ReplaceWith(nodes ...pug.Node) []Node
	InsertAfter(nodes ...pug.Node) []Node
	Delete()

	node()
}

// Wrap wraps native. Unknown node kinds get a GenericNode.
func Wrap(native pug.Node, parent Node) Node {
	var w Node
	var b *base
	switch n := native.(type) {
	case *pug.Tag:
		t := &TagNode{tag: n}
		w, b = t, &t.base
	case *pug.Conditional:
		c := &ConditionalNode{cond: n}
		w, b = c, &c.base
	case *pug.Each:
		e := &EachNode{each: n}
		w, b = e, &e.base
	case *pug.Mixin:
		m := &MixinNode{mixin: n}
		w, b = m, &m.base
	default:
		g := &GenericNode{}
		w, b = g, &g.base
	}
	b.native, b.parent, b.self = native, parent, w
	return w
}

type base struct {
	native pug.Node
	parent Node

	// self is the wrapper embedding this base
	self Node
}

func (b *base) Native() pug.Node { return b.native }
func (b *base) Parent() Node     { return b.parent }
func (b *base) Type() string     { return b.native.Type() }
func (b *base) node()            {}

func (b *base) Line() int {
	line, _ := b.native.Position()
	return line
}

func (b *base) Column() int {
	_, col := b.native.Position()
	return col
}

// containers returns the child lists of a native node
func containers(n pug.Node) []*pug.Block {
	var blocks []*pug.Block
	add := func(b *pug.Block) {
		if b != nil {
			blocks = append(blocks, b)
		}
	}
	switch n := n.(type) {
	case *pug.Block:
		add(n)
	case *pug.Tag:
		add(n.Block)
	case *pug.Conditional:
		add(n.Consequent)
		if alt, ok := n.Alternate.(*pug.Block); ok {
			add(alt)
		}
	case *pug.Each:
		add(n.Block)
		add(n.Alternate)
	case *pug.Mixin:
		add(n.Block)
	case *pug.Code:
		add(n.Block)
	case *pug.BlockComment:
		add(n.Block)
	case *pug.NamedBlock:
		add(n.Block)
	}
	return blocks
}

func (b *base) wrapAll(natives []pug.Node) []Node {
	nodes := make([]Node, len(natives))
	for i, n := range natives {
		nodes[i] = Wrap(n, b.self)
	}
	return nodes
}

func (b *base) Children() []Node {
	var natives []pug.Node
	for _, blk := range containers(b.native) {
		natives = append(natives, blk.Nodes...)
	}
	if c, ok := b.native.(*pug.Conditional); ok {
		if alt, ok := c.Alternate.(*pug.Conditional); ok {
			natives = append(natives, alt)
		}
	}
	return b.wrapAll(natives)
}

// SetChildren replaces the primary child list
func (b *base) SetChildren(nodes ...pug.Node) {
	if blocks := containers(b.native); len(blocks) > 0 {
		blocks[0].Nodes = append([]pug.Node(nil), nodes...)
	}
}

// locate finds the parent container holding the node. Conditional
// alternates that are themselves conditionals are not in a block; set is
// used for them instead.
func (b *base) locate() (blk *pug.Block, index int, set func(pug.Node)) {
	if b.parent == nil {
		return nil, -1, nil
	}
	parent := b.parent.Native()
	if c, ok := parent.(*pug.Conditional); ok && c.Alternate == b.native {
		return nil, -1, func(n pug.Node) { c.Alternate = n }
	}
	for _, blk := range containers(parent) {
		for i, n := range blk.Nodes {
			if n == b.native {
				return blk, i, nil
			}
		}
	}
	return nil, -1, nil
}

// ReplaceWith splices nodes into the parent in place of this node
func (b *base) ReplaceWith(nodes ...pug.Node) []Node {
	blk, i, set := b.locate()
	switch {
	case set != nil:
		set(&pug.Block{Pos: pos(b.native), Nodes: nodes})
	case blk != nil:
		spliced := make([]pug.Node, 0, len(blk.Nodes)-1+len(nodes))
		spliced = append(spliced, blk.Nodes[:i]...)
		spliced = append(spliced, nodes...)
		spliced = append(spliced, blk.Nodes[i+1:]...)
		blk.Nodes = spliced
	default:
		return nil
	}
	return b.wrapSiblings(nodes)
}

// InsertAfter adds nodes after this node in its parent
func (b *base) InsertAfter(nodes ...pug.Node) []Node {
	blk, i, set := b.locate()
	switch {
	case set != nil:
		set(&pug.Block{Pos: pos(b.native), Nodes: append([]pug.Node{b.native}, nodes...)})
	case blk != nil:
		spliced := make([]pug.Node, 0, len(blk.Nodes)+len(nodes))
		spliced = append(spliced, blk.Nodes[:i+1]...)
		spliced = append(spliced, nodes...)
		spliced = append(spliced, blk.Nodes[i+1:]...)
		blk.Nodes = spliced
	default:
		return nil
	}
	return b.wrapSiblings(nodes)
}

// Delete removes this node from its parent
func (b *base) Delete() {
	blk, i, set := b.locate()
	switch {
	case set != nil:
		set(nil)
	case blk != nil:
		blk.Nodes = append(blk.Nodes[:i:i], blk.Nodes[i+1:]...)
	}
}

func (b *base) wrapSiblings(nodes []pug.Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = Wrap(n, b.parent)
	}
	return out
}

func pos(n pug.Node) pug.Pos {
	line, col := n.Position()
	return pug.Pos{Line: line, Column: col}
}

// TagNode wraps an element
type TagNode struct {
	base
	tag *pug.Tag
}

// Name returns the tag name
func (t *TagNode) Name() string { return t.tag.Name }

// Attrs returns the raw attribute list
func (t *TagNode) Attrs() []*pug.Attr { return t.tag.Attrs }

// HasAttribute reports whether the tag has an attribute called name
func (t *TagNode) HasAttribute(name string) bool {
	for _, a := range t.tag.Attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Attribute returns the value of name with string quotes removed.
// Values of repeated attributes are joined with a space, like the
// generated markup does.
func (t *TagNode) Attribute(name string) (string, bool) {
	var parts []string
	found := false
	for _, a := range t.tag.Attrs {
		if a.Name != name {
			continue
		}
		found = true
		if v := strings.TrimSpace(attrValue(a.Val)); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " "), found
}

func attrValue(val string) string {
	if s, ok := pug.Unquote(strings.TrimSpace(val)); ok {
		return s
	}
	return val
}

// SetAttribute replaces every attribute called name with one string
// value
func (t *TagNode) SetAttribute(name, value string) {
	t.RemoveAttribute(name)
	t.tag.Attrs = append(t.tag.Attrs, &pug.Attr{Name: name, Val: pug.Quote(value)})
}

// RemoveAttribute removes every attribute called name
func (t *TagNode) RemoveAttribute(name string) {
	attrs := t.tag.Attrs[:0]
	for _, a := range t.tag.Attrs {
		if a.Name != name {
			attrs = append(attrs, a)
		}
	}
	t.tag.Attrs = attrs
}

// Classes returns the tag's class names
func (t *TagNode) Classes() []string {
	v, _ := t.Attribute("class")
	return strings.Fields(v)
}

// FindFirstChildByTagName returns the first direct child tag called name
func (t *TagNode) FindFirstChildByTagName(name string) *TagNode {
	return findChildTag(t, name)
}

func findChildTag(n Node, name string) *TagNode {
	for _, c := range n.Children() {
		if tag, ok := c.(*TagNode); ok && tag.Name() == name {
			return tag
		}
	}
	return nil
}

// ConditionalNode wraps an if/else chain. It holds two containers: the
// consequent and the alternate.
type ConditionalNode struct {
	base
	cond *pug.Conditional
}

// Test returns the condition expression
func (c *ConditionalNode) Test() string { return c.cond.Test }

// Consequent returns the nodes rendered when Test holds
func (c *ConditionalNode) Consequent() []Node {
	return c.wrapAll(c.cond.Consequent.Nodes)
}

// Alternate returns the else branch. An else-if chain is returned as a
// single ConditionalNode.
func (c *ConditionalNode) Alternate() []Node {
	switch alt := c.cond.Alternate.(type) {
	case *pug.Block:
		return c.wrapAll(alt.Nodes)
	case *pug.Conditional:
		return []Node{Wrap(alt, c)}
	}
	return nil
}

// HasAlternate reports whether the chain has an else branch
func (c *ConditionalNode) HasAlternate() bool { return c.cond.Alternate != nil }

// EachNode wraps a loop
type EachNode struct {
	base
	each *pug.Each
}

func (e *EachNode) Item() string       { return e.each.Val }
func (e *EachNode) Key() string        { return e.each.Key }
func (e *EachNode) Collection() string { return e.each.Obj }

// MixinNode wraps a mixin declaration or call
type MixinNode struct {
	base
	mixin *pug.Mixin
}

func (m *MixinNode) Name() string { return m.mixin.Name }
func (m *MixinNode) IsCall() bool { return m.mixin.Call }

// GenericNode wraps every other node kind
type GenericNode struct {
	base
}
