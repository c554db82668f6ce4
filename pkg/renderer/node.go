package renderer

import (
	"strings"

	"github.com/pupperjs/core-sub000/pkg/reactive"
	"github.com/pupperjs/core-sub000/pkg/scheduler"
	"github.com/pupperjs/core-sub000/pkg/vdom"
)

// Sentinel tags for non-element nodes
const (
	TextTag    = "text"
	CommentTag = "!"
)

// Attr is one attribute of a node
type Attr struct {
	Name  string
	Value any
}

// Node is one node of the renderer tree. It mirrors a virtual node and
// carries the bookkeeping directives need between renders.
type Node struct {
	Tag        string
	Text       string
	Attrs      []Attr
	Properties map[string]any
	Listeners  map[string][]vdom.EventHandler
	Children   []*Node
	Parent     *Node

	// ReplacedWith is set once the node has been substituted
	ReplacedWith []*Node

	dirty      bool
	ignored    bool
	renderable bool

	scope     *Scope
	component *Instance
	owner     *reactive.Owner
	vnode     *vdom.VNode
	r         *Renderer
}

// NewNode creates an element node
func NewNode(tag string) *Node {
	return &Node{Tag: tag, renderable: tag != "template"}
}

// NewTextNode creates a text node
func NewTextNode(text string) *Node {
	return &Node{Tag: TextTag, Text: text, renderable: true}
}

// NewCommentNode creates a comment node, used as a structural marker
func NewCommentNode(text string) *Node {
	return &Node{Tag: CommentTag, Text: text, renderable: true}
}

// IsText reports whether n is a text node
func (n *Node) IsText() bool { return n.Tag == TextTag }

// IsComment reports whether n is a comment node
func (n *Node) IsComment() bool { return n.Tag == CommentTag }

// IsElement reports whether n is an element
func (n *Node) IsElement() bool { return !n.IsText() && !n.IsComment() }

// Renderable reports whether n produces a node of its own when rendered.
// Non-renderable nodes contribute their children to their parent.
func (n *Node) Renderable() bool { return n.renderable }

// SetRenderable sets whether n renders as a node of its own
func (n *Node) SetRenderable(v bool) { n.renderable = v }

// Ignored reports whether the walker skips n and its subtree
func (n *Node) Ignored() bool { return n.ignored }

// SetIgnored sets whether the walker skips n and its subtree
func (n *Node) SetIgnored(v bool) { n.ignored = v }

// Dirty reports whether n has a pending patch request
func (n *Node) Dirty() bool { return n.dirty }

// Attribute returns the value of the named attribute
func (n *Node) Attribute(name string) (any, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// AttributeString returns the named attribute as a string
func (n *Node) AttributeString(name string) string {
	v, _ := n.Attribute(name)
	if v == nil {
		return ""
	}
	return vdom.PropToString(v)
}

// HasAttribute reports whether the named attribute is set
func (n *Node) HasAttribute(name string) bool {
	_, ok := n.Attribute(name)
	return ok
}

// SetAttribute sets an attribute, keeping its position if it exists
func (n *Node) SetAttribute(name string, value any) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// RemoveAttribute removes an attribute
func (n *Node) RemoveAttribute(name string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs = append(n.Attrs[:i:i], n.Attrs[i+1:]...)
			return
		}
	}
}

// SetProperty records a DOM property intent
func (n *Node) SetProperty(name string, value any) {
	if n.Properties == nil {
		n.Properties = make(map[string]any)
	}
	n.Properties[name] = value
}

// AddEventListener appends a handler for the named event
func (n *Node) AddEventListener(event string, h vdom.EventHandler) {
	if n.Listeners == nil {
		n.Listeners = make(map[string][]vdom.EventHandler)
	}
	n.Listeners[event] = append(n.Listeners[event], h)
}

// SetParent sets the non-owning parent reference
func (n *Node) SetParent(parent *Node) {
	n.Parent = parent
}

// AppendChild appends child, detaching it from any previous parent
func (n *Node) AppendChild(child *Node) {
	child.detach()
	child.SetParent(n)
	n.Children = append(n.Children, child)
}

// InsertBefore inserts child before ref, or appends when ref is not a child
func (n *Node) InsertBefore(child, ref *Node) {
	child.detach()
	i := n.IndexOf(ref)
	if i < 0 {
		n.AppendChild(child)
		return
	}
	child.SetParent(n)
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = child
}

// SetChildren replaces the children of n
func (n *Node) SetChildren(children ...*Node) {
	for _, c := range n.Children {
		c.Parent = nil
	}
	n.Children = n.Children[:0:0]
	for _, c := range children {
		n.AppendChild(c)
	}
}

// IndexOf returns the position of child, or -1
func (n *Node) IndexOf(child *Node) int {
	if child == nil {
		return -1
	}
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// ReplaceWith substitutes nodes for n at its position in the parent
func (n *Node) ReplaceWith(nodes ...*Node) {
	parent := n.Parent
	n.ReplacedWith = nodes
	if parent == nil {
		return
	}
	for _, c := range nodes {
		c.detach()
	}
	i := parent.IndexOf(n)
	if i < 0 {
		return
	}
	rest := append([]*Node(nil), parent.Children[i+1:]...)
	parent.Children = append(parent.Children[:i], nodes...)
	parent.Children = append(parent.Children, rest...)
	for _, c := range nodes {
		c.SetParent(parent)
	}
	n.Parent = nil
}

// Delete removes n from its parent and disposes its directive effects
func (n *Node) Delete() {
	n.detach()
	n.dispose()
}

func (n *Node) dispose() {
	if n.owner != nil {
		n.owner.Dispose()
	}
	for _, c := range n.Children {
		c.dispose()
	}
}

func (n *Node) detach() {
	if n.Parent == nil {
		return
	}
	if i := n.Parent.IndexOf(n); i >= 0 {
		n.Parent.Children = append(n.Parent.Children[:i:i], n.Parent.Children[i+1:]...)
	}
	n.Parent = nil
}

// Clone deep-copies n. The clone is detached, unrendered and not ignored;
// it shares the scope of n unless one is assigned.
func (n *Node) Clone() *Node {
	c := &Node{
		Tag:        n.Tag,
		Text:       n.Text,
		Attrs:      append([]Attr(nil), n.Attrs...),
		renderable: n.renderable,
		scope:      n.scope,
		component:  n.component,
		r:          n.r,
	}
	if n.Properties != nil {
		c.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			c.Properties[k] = v
		}
	}
	for name, hs := range n.Listeners {
		for _, h := range hs {
			c.AddEventListener(name, h)
		}
	}
	for _, child := range n.Children {
		cc := child.Clone()
		cc.SetParent(c)
		c.Children = append(c.Children, cc)
	}
	return c
}

// SetDirty marks n as changed and asks the scheduler for a patch
func (n *Node) SetDirty() {
	n.dirty = true
	if n.r != nil {
		n.r.sched.Request(n)
	}
}

// Scope returns the nearest scope assigned to n or an ancestor
func (n *Node) Scope() *Scope {
	for c := n; c != nil; c = c.Parent {
		if c.scope != nil {
			return c.scope
		}
	}
	return nil
}

// SetScope assigns a scope to n and its subtree
func (n *Node) SetScope(s *Scope) {
	n.scope = s
}

// Component returns the component instance n belongs to
func (n *Node) Component() *Instance {
	for c := n; c != nil; c = c.Parent {
		if c.component != nil {
			return c.component
		}
	}
	return nil
}

// Owner returns the disposal scope of n's directive effects, creating it
// under the nearest ancestor's owner on first use.
func (n *Node) Owner() *reactive.Owner {
	if n.owner != nil && !n.owner.Disposed() {
		return n.owner
	}
	var parent *reactive.Owner
	for c := n.Parent; c != nil; c = c.Parent {
		if c.owner != nil && !c.owner.Disposed() {
			parent = c.owner
			break
		}
	}
	if parent == nil {
		if n.r == nil {
			return nil
		}
		parent = n.r.tracker.Owner()
	}
	n.owner = parent.NewChild()
	return n.owner
}

// TextContent returns the concatenated text of the subtree
func (n *Node) TextContent() string {
	if n.IsText() {
		return n.Text
	}
	var b strings.Builder
	for _, c := range n.Children {
		if !c.IsComment() {
			b.WriteString(c.TextContent())
		}
	}
	return b.String()
}

// ElementID returns the ID of the live element n was rendered into, or 0
func (n *Node) ElementID() uint32 {
	if n.vnode == nil {
		return 0
	}
	return n.vnode.ID
}

// PatchParent implements scheduler.Target
func (n *Node) PatchParent() scheduler.Target {
	if n.Parent == nil {
		return nil
	}
	return n.Parent
}

// Rendered implements scheduler.Target
func (n *Node) Rendered() bool {
	return n.renderable && n.vnode != nil && n.vnode.ID != 0 && n.attached()
}

// Patch implements scheduler.Target
func (n *Node) Patch() error {
	n.dirty = false
	if n.r == nil {
		return nil
	}
	return n.r.patch(n)
}

// attached reports whether n is reachable from the renderer root
func (n *Node) attached() bool {
	if n.r == nil {
		return false
	}
	c := n
	for c.Parent != nil {
		c = c.Parent
	}
	return c == n.r.root
}

// Find returns the first descendant element with the given tag
func (n *Node) Find(tag string) *Node {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
		if f := c.Find(tag); f != nil {
			return f
		}
	}
	return nil
}

// FindAll returns every descendant element with the given tag
func (n *Node) FindAll(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
		out = append(out, c.FindAll(tag)...)
	}
	return out
}

// adopt binds n and its subtree to r
func (n *Node) adopt(r *Renderer) {
	n.r = r
	for _, c := range n.Children {
		c.adopt(r)
	}
}
