package vdom

import "sort"

// VKind represents the type of virtual node
type VKind uint8

const (
	// KindElement represents a DOM element node
	KindElement VKind = iota
	// KindText represents a text node
	KindText
	// KindComment represents a comment node, used as a structural marker
	KindComment
)

// VNodeFlags are bitwise flags for VNode optimizations
type VNodeFlags uint8

const (
	// FlagStatic indicates this node and its children will never change
	FlagStatic VNodeFlags = 1 << iota
	// FlagHasKey indicates this node has a key for list reconciliation
	FlagHasKey
	// FlagHasEvents indicates this node has event listeners
	FlagHasEvents
)

// Props represents the attributes (or DOM properties) of a VNode
type Props map[string]any

// EventHandler receives a dispatched DOM event
type EventHandler func(e *Event)

// Listeners maps an event name to its ordered handlers
type Listeners map[string][]EventHandler

// VNode represents a virtual DOM node.
//
// ID is the identity of the live DOM node the vnode was last patched into.
// It is zero until a patch applier mounts the node, and Diff copies it from
// the previous tree onto every node it reuses.
type VNode struct {
	// Kind determines the type of this node
	Kind VKind

	// Tag is the element tag name (e.g., "div", "span")
	// Only used when Kind == KindElement
	Tag string

	// Props contains the node's attributes
	Props Props

	// Properties contains DOM property intents (value, checked, ...)
	Properties Props

	// Listeners contains event handlers keyed by event name
	Listeners Listeners

	// Kids contains child nodes
	Kids []VNode

	// Key is used for efficient list reconciliation
	Key string

	// Flags contains optimization hints
	Flags VNodeFlags

	// Text content (KindText and KindComment)
	Text string

	// ID of the mounted DOM node
	ID uint32
}

// NewElement creates a new element VNode
func NewElement(tag string, props Props, children ...*VNode) *VNode {
	var flags VNodeFlags
	key := ""
	if props != nil {
		if k, ok := props["key"].(string); ok && k != "" {
			key = k
			flags |= FlagHasKey
		}
	}

	kids := make([]VNode, 0, len(children))
	for _, child := range children {
		if child != nil {
			kids = append(kids, *child)
		}
	}

	return &VNode{
		Kind:  KindElement,
		Tag:   tag,
		Props: props,
		Kids:  kids,
		Key:   key,
		Flags: flags,
	}
}

// NewText creates a new text VNode
func NewText(text string) *VNode {
	return &VNode{
		Kind: KindText,
		Text: text,
	}
}

// NewComment creates a new comment VNode
func NewComment(text string) *VNode {
	return &VNode{
		Kind: KindComment,
		Text: text,
	}
}

// IsElement returns true if this is an element node
func (v VNode) IsElement() bool {
	return v.Kind == KindElement
}

// IsText returns true if this is a text node
func (v VNode) IsText() bool {
	return v.Kind == KindText
}

// IsComment returns true if this is a comment node
func (v VNode) IsComment() bool {
	return v.Kind == KindComment
}

// HasFlag returns true if the specified flag is set
func (v VNode) HasFlag(flag VNodeFlags) bool {
	return v.Flags&flag != 0
}

// GetKey returns the key of this node
func (v VNode) GetKey() string {
	if v.Key != "" {
		return v.Key
	}
	if v.Props != nil {
		if key, ok := v.Props["key"].(string); ok {
			return key
		}
	}
	return ""
}

// AddListener appends a handler for the named event
func (v *VNode) AddListener(event string, h EventHandler) {
	if v.Listeners == nil {
		v.Listeners = make(Listeners)
	}
	v.Listeners[event] = append(v.Listeners[event], h)
	v.Flags |= FlagHasEvents
}

// Walk visits v and every descendant depth-first, parents before children.
// Returning false from fn stops the descent into that node's children.
func (v *VNode) Walk(fn func(n *VNode) bool) {
	if !fn(v) {
		return
	}
	for i := range v.Kids {
		v.Kids[i].Walk(fn)
	}
}

// sortedKeys returns the union of the keys of a and b in lexical order
func sortedKeys(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
