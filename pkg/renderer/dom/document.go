// Package dom is an in-memory document that live patches are applied to.
//
// It plays the part of the browser DOM for the renderer: nodes carry
// stable numeric IDs that survive patches, events bubble from a target
// to the body, and the current state serializes to HTML.
package dom

import (
	"fmt"
	"strings"

	"github.com/pupperjs/core-sub000/pkg/renderer/html"
	"github.com/pupperjs/core-sub000/pkg/vdom"
)

// BodyID is the ID of the document body
const BodyID uint32 = 1

// debugLog is set by the debug package
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Node is a live document node
type Node struct {
	ID        uint32
	Kind      vdom.VKind
	Tag       string
	Text      string
	Attrs     map[string]string
	Props     map[string]any
	Listeners vdom.Listeners
	Parent    *Node
	Children  []*Node
}

// Attr returns the value of an attribute
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// TextContent returns the concatenated text of the node's subtree
func (n *Node) TextContent() string {
	if n.Kind == vdom.KindText {
		return n.Text
	}
	if n.Kind == vdom.KindComment {
		return ""
	}
	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

// VNode converts the subtree back into a virtual node
func (n *Node) VNode() *vdom.VNode {
	switch n.Kind {
	case vdom.KindText:
		return vdom.NewText(n.Text)
	case vdom.KindComment:
		return vdom.NewComment(n.Text)
	}
	v := &vdom.VNode{Kind: vdom.KindElement, Tag: n.Tag, Listeners: n.Listeners, ID: n.ID}
	if len(n.Attrs) > 0 {
		v.Props = make(vdom.Props, len(n.Attrs))
		for k, val := range n.Attrs {
			v.Props[k] = val
		}
	}
	if len(n.Props) > 0 {
		v.Properties = make(vdom.Props, len(n.Props))
		for k, val := range n.Props {
			v.Properties[k] = val
		}
	}
	for _, c := range n.Children {
		v.Kids = append(v.Kids, *c.VNode())
	}
	return v
}

func (n *Node) indexIn(parent *Node) int {
	for i, c := range parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

func (n *Node) detach() {
	if n.Parent == nil {
		return
	}
	if i := n.indexIn(n.Parent); i >= 0 {
		n.Parent.Children = append(n.Parent.Children[:i:i], n.Parent.Children[i+1:]...)
	}
	n.Parent = nil
}

// Document applies VNode patches to an in-memory node tree
type Document struct {
	Body        *Node
	nodeMap     map[uint32]*Node
	nodeCounter uint32
	applied     int
}

// NewDocument creates an empty document
func NewDocument() *Document {
	body := &Node{ID: BodyID, Kind: vdom.KindElement, Tag: "body", Attrs: map[string]string{}}
	return &Document{
		Body:        body,
		nodeMap:     map[uint32]*Node{BodyID: body},
		nodeCounter: BodyID + 1,
	}
}

// BodyVNode returns a mounted, childless vnode standing for the body
func (d *Document) BodyVNode() *vdom.VNode {
	return &vdom.VNode{Kind: vdom.KindElement, Tag: "body", ID: BodyID}
}

// Node returns the node with the given ID
func (d *Document) Node(id uint32) *Node {
	return d.nodeMap[id]
}

// Len returns the number of live nodes, the body included
func (d *Document) Len() int {
	return len(d.nodeMap)
}

// Applied returns how many patches the document has applied
func (d *Document) Applied() int {
	return d.applied
}

// Apply applies patches in order
func (d *Document) Apply(patches []vdom.Patch) error {
	for _, patch := range patches {
		if debugLog != nil {
			debugLog("[DOM] Applying patch:", patch.String())
		}
		if err := d.applyPatch(patch); err != nil {
			return fmt.Errorf("failed to apply patch %v: %w", patch, err)
		}
		d.applied++
	}
	return nil
}

// applyPatch applies a single patch
func (d *Document) applyPatch(patch vdom.Patch) error {
	switch patch.Op {
	case vdom.OpReplaceText:
		return d.replaceText(patch)
	case vdom.OpSetAttribute:
		return d.setAttribute(patch)
	case vdom.OpRemoveAttribute:
		return d.removeAttribute(patch)
	case vdom.OpSetProperty:
		return d.setProperty(patch)
	case vdom.OpRemoveNode:
		return d.removeNode(patch)
	case vdom.OpInsertNode:
		return d.insertNode(patch)
	case vdom.OpReplaceNode:
		return d.replaceNode(patch)
	case vdom.OpUpdateEvents:
		return d.updateEvents(patch)
	case vdom.OpMoveNode:
		return d.moveNode(patch)
	default:
		return fmt.Errorf("unknown patch operation: %v", patch.Op)
	}
}

func (d *Document) lookup(id uint32) (*Node, error) {
	node, ok := d.nodeMap[id]
	if !ok {
		return nil, fmt.Errorf("node %d not found", id)
	}
	return node, nil
}

// replaceText replaces the text of a text or comment node
func (d *Document) replaceText(patch vdom.Patch) error {
	node, err := d.lookup(patch.NodeID)
	if err != nil {
		return err
	}
	node.Text = patch.Value
	return nil
}

// setAttribute sets an attribute on an element
func (d *Document) setAttribute(patch vdom.Patch) error {
	node, err := d.lookup(patch.NodeID)
	if err != nil {
		return err
	}
	node.Attrs[patch.Key] = patch.Value
	return nil
}

// removeAttribute removes an attribute from an element
func (d *Document) removeAttribute(patch vdom.Patch) error {
	node, err := d.lookup(patch.NodeID)
	if err != nil {
		return err
	}
	delete(node.Attrs, patch.Key)
	return nil
}

// setProperty sets a DOM property; nil clears it
func (d *Document) setProperty(patch vdom.Patch) error {
	node, err := d.lookup(patch.NodeID)
	if err != nil {
		return err
	}
	if patch.Prop == nil {
		delete(node.Props, patch.Key)
		return nil
	}
	if node.Props == nil {
		node.Props = make(map[string]any)
	}
	node.Props[patch.Key] = patch.Prop
	return nil
}

// updateEvents replaces the listeners of an element
func (d *Document) updateEvents(patch vdom.Patch) error {
	node, err := d.lookup(patch.NodeID)
	if err != nil {
		return err
	}
	node.Listeners = patch.Listeners
	return nil
}

// removeNode removes a node and forgets its subtree
func (d *Document) removeNode(patch vdom.Patch) error {
	node, err := d.lookup(patch.NodeID)
	if err != nil {
		return err
	}
	node.detach()
	d.forget(node)
	return nil
}

func (d *Document) forget(n *Node) {
	delete(d.nodeMap, n.ID)
	for _, c := range n.Children {
		d.forget(c)
	}
}

// insertNode creates the patch's subtree and inserts it
func (d *Document) insertNode(patch vdom.Patch) error {
	if patch.Node == nil {
		return fmt.Errorf("insert patch missing node")
	}

	parent := d.Body
	if patch.ParentID != 0 {
		p, err := d.lookup(patch.ParentID)
		if err != nil {
			return fmt.Errorf("parent node %d not found", patch.ParentID)
		}
		parent = p
	}

	node := d.createTree(patch.Node)
	d.insertBefore(parent, node, patch.BeforeID)
	return nil
}

// replaceNode swaps a node for a freshly created subtree at the same position
func (d *Document) replaceNode(patch vdom.Patch) error {
	if patch.Node == nil {
		return fmt.Errorf("replace patch missing node")
	}
	old, err := d.lookup(patch.NodeID)
	if err != nil {
		return err
	}
	parent := old.Parent
	if parent == nil {
		return fmt.Errorf("node %d is detached", patch.NodeID)
	}

	node := d.createTree(patch.Node)
	i := old.indexIn(parent)
	parent.Children[i] = node
	node.Parent = parent
	old.Parent = nil
	d.forget(old)
	return nil
}

// moveNode moves a live node before BeforeID, or to the end of ParentID
func (d *Document) moveNode(patch vdom.Patch) error {
	node, err := d.lookup(patch.NodeID)
	if err != nil {
		return err
	}
	parent := node.Parent
	if patch.ParentID != 0 {
		if parent, err = d.lookup(patch.ParentID); err != nil {
			return err
		}
	}
	if parent == nil {
		return fmt.Errorf("node %d has no parent to move within", patch.NodeID)
	}
	node.detach()
	d.insertBefore(parent, node, patch.BeforeID)
	return nil
}

func (d *Document) insertBefore(parent, node *Node, beforeID uint32) {
	node.Parent = parent
	if beforeID != 0 {
		if before, ok := d.nodeMap[beforeID]; ok && before.Parent == parent {
			i := before.indexIn(parent)
			parent.Children = append(parent.Children, nil)
			copy(parent.Children[i+1:], parent.Children[i:])
			parent.Children[i] = node
			return
		}
	}
	parent.Children = append(parent.Children, node)
}

// createTree creates live nodes for v, assigning an ID to every vnode
func (d *Document) createTree(v *vdom.VNode) *Node {
	id := d.nodeCounter
	d.nodeCounter++
	v.ID = id

	node := &Node{
		ID:        id,
		Kind:      v.Kind,
		Tag:       v.Tag,
		Text:      v.Text,
		Listeners: v.Listeners,
	}
	d.nodeMap[id] = node

	if v.Kind != vdom.KindElement {
		return node
	}

	node.Attrs = make(map[string]string, len(v.Props))
	for k, val := range v.Props {
		if k == "key" {
			continue
		}
		node.Attrs[k] = vdom.PropToString(val)
	}
	for k, val := range v.Properties {
		if val == nil {
			continue
		}
		if node.Props == nil {
			node.Props = make(map[string]any)
		}
		node.Props[k] = val
	}
	for i := range v.Kids {
		child := d.createTree(&v.Kids[i])
		child.Parent = node
		node.Children = append(node.Children, child)
	}
	return node
}

// Dispatch delivers an event to the node targetID and bubbles it to the
// body. It returns false when a handler prevented the default action.
func (d *Document) Dispatch(targetID uint32, e *vdom.Event) (bool, error) {
	target, err := d.lookup(targetID)
	if err != nil {
		return false, err
	}
	e.Target = targetID

	for n := target; n != nil; n = n.Parent {
		handlers := n.Listeners[e.Type]
		if len(handlers) == 0 {
			continue
		}
		e.CurrentTarget = n.ID
		for _, h := range append([]vdom.EventHandler(nil), handlers...) {
			h(e)
		}
		if e.PropagationStopped() {
			break
		}
	}
	return !e.DefaultPrevented(), nil
}

// FindAll returns every element with the given tag in document order
func (d *Document) FindAll(tag string) []*Node {
	var out []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		if n.Kind == vdom.KindElement && n.Tag == tag {
			out = append(out, n)
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	for _, c := range d.Body.Children {
		visit(c)
	}
	return out
}

// Find returns the first element with the given tag
func (d *Document) Find(tag string) *Node {
	if all := d.FindAll(tag); len(all) > 0 {
		return all[0]
	}
	return nil
}

// HTML serializes the body's content
func (d *Document) HTML() string {
	out, err := html.RenderChildrenToString(d.Body.VNode())
	if err != nil {
		return ""
	}
	return out
}
