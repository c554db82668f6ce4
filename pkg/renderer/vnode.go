package renderer

import (
	"strings"

	"github.com/pupperjs/core-sub000/pkg/vdom"
)

// isDirectiveAttr reports whether an attribute is consumed by the runtime
// and never reaches the document
func isDirectiveAttr(name string) bool {
	return strings.HasPrefix(name, "x-") || strings.HasPrefix(name, "p-") ||
		strings.HasPrefix(name, "@") || strings.HasPrefix(name, ":")
}

// VNode builds the virtual node for a renderable node. Non-renderable
// descendants are flattened into their parent.
func (n *Node) VNode() *vdom.VNode {
	switch {
	case n.IsText():
		return vdom.NewText(n.Text)
	case n.IsComment():
		return vdom.NewComment(n.Text)
	}

	v := &vdom.VNode{Kind: vdom.KindElement, Tag: n.Tag}
	for _, a := range n.Attrs {
		if a.Value == nil || isDirectiveAttr(a.Name) {
			continue
		}
		if v.Props == nil {
			v.Props = make(vdom.Props, len(n.Attrs))
		}
		v.Props[a.Name] = a.Value
	}
	if key, ok := v.Props["key"]; ok {
		v.Key = vdom.PropToString(key)
		v.Flags |= vdom.FlagHasKey
	}
	if len(n.Properties) > 0 {
		v.Properties = make(vdom.Props, len(n.Properties))
		for k, val := range n.Properties {
			v.Properties[k] = val
		}
	}
	for name, hs := range n.Listeners {
		for _, h := range hs {
			v.AddListener(name, h)
		}
	}
	v.Kids = n.childVNodes(nil)
	return v
}

func (n *Node) childVNodes(kids []vdom.VNode) []vdom.VNode {
	for _, c := range n.Children {
		if !c.renderable {
			kids = c.childVNodes(kids)
			continue
		}
		kids = append(kids, *c.VNode())
	}
	return kids
}

// bindVNode records v as the last rendered vnode of n and of the
// descendants it was built from
func bindVNode(n *Node, v *vdom.VNode) {
	n.vnode = v
	i := 0
	bindKids(n, v.Kids, &i)
}

func bindKids(n *Node, kids []vdom.VNode, i *int) {
	for _, c := range n.Children {
		if !c.renderable {
			c.vnode = nil
			bindKids(c, kids, i)
			continue
		}
		if *i < len(kids) {
			bindVNode(c, &kids[*i])
			*i++
		} else {
			c.vnode = nil
		}
	}
}

// patch re-renders n into the document
func (r *Renderer) patch(n *Node) error {
	if n.vnode == nil || !n.attached() {
		return nil
	}

	var parentID uint32
	for p := n.Parent; p != nil; p = p.Parent {
		if p.renderable && p.vnode != nil {
			parentID = p.vnode.ID
			break
		}
	}

	next := n.VNode()
	patches := vdom.DiffUnder(parentID, n.vnode, next)
	if debugLog != nil {
		debugLog("[Renderer] Patching", n.Tag, "with", len(patches), "patches")
	}
	if err := r.doc.Apply(patches); err != nil {
		return err
	}
	*n.vnode = *next
	i := 0
	bindKids(n, n.vnode.Kids, &i)
	return nil
}
