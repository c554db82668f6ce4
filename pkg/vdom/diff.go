package vdom

import (
	"fmt"
	"sort"
)

// PatchOp represents the type of patch operation
type PatchOp uint8

const (
	// OpReplaceText replaces text or comment node content
	OpReplaceText PatchOp = 0x01
	// OpSetAttribute sets or replaces an attribute
	OpSetAttribute PatchOp = 0x02
	// OpRemoveNode removes a node
	OpRemoveNode PatchOp = 0x03
	// OpInsertNode inserts a new node
	OpInsertNode PatchOp = 0x04
	// OpUpdateEvents replaces the event listeners of a node
	OpUpdateEvents PatchOp = 0x05
	// OpRemoveAttribute removes an attribute
	OpRemoveAttribute PatchOp = 0x06
	// OpMoveNode moves a node to a new position
	OpMoveNode PatchOp = 0x07
	// OpReplaceNode swaps a node for a freshly created one in place
	OpReplaceNode PatchOp = 0x08
	// OpSetProperty sets a DOM property
	OpSetProperty PatchOp = 0x09
)

// Patch represents a single DOM mutation
type Patch struct {
	Op        PatchOp
	NodeID    uint32
	ParentID  uint32    // For insert and move operations
	BeforeID  uint32    // For insert and move operations (0 means append)
	Key       string    // Attribute or property name
	Value     string    // Text content or attribute value
	Prop      any       // Property value for OpSetProperty
	Node      *VNode    // For insert and replace operations
	Listeners Listeners // For event updates
}

// String returns a human-readable representation of the patch
func (p Patch) String() string {
	switch p.Op {
	case OpReplaceText:
		return fmt.Sprintf("ReplaceText(node=%d, text=%q)", p.NodeID, p.Value)
	case OpSetAttribute:
		return fmt.Sprintf("SetAttribute(node=%d, key=%q, value=%q)", p.NodeID, p.Key, p.Value)
	case OpRemoveAttribute:
		return fmt.Sprintf("RemoveAttribute(node=%d, key=%q)", p.NodeID, p.Key)
	case OpRemoveNode:
		return fmt.Sprintf("RemoveNode(node=%d)", p.NodeID)
	case OpInsertNode:
		return fmt.Sprintf("InsertNode(parent=%d, before=%d)", p.ParentID, p.BeforeID)
	case OpUpdateEvents:
		return fmt.Sprintf("UpdateEvents(node=%d, events=%d)", p.NodeID, len(p.Listeners))
	case OpMoveNode:
		return fmt.Sprintf("MoveNode(node=%d, parent=%d, before=%d)", p.NodeID, p.ParentID, p.BeforeID)
	case OpReplaceNode:
		return fmt.Sprintf("ReplaceNode(node=%d)", p.NodeID)
	case OpSetProperty:
		return fmt.Sprintf("SetProperty(node=%d, key=%q, value=%v)", p.NodeID, p.Key, p.Prop)
	default:
		return fmt.Sprintf("Unknown(op=%d)", p.Op)
	}
}

// DiffContext holds state during diffing
type DiffContext struct {
	patches []Patch
}

// newDiffContext creates a new diff context
func newDiffContext() *DiffContext {
	return &DiffContext{
		patches: make([]Patch, 0, 16),
	}
}

// addPatch adds a patch to the context
func (ctx *DiffContext) addPatch(patch Patch) {
	ctx.patches = append(ctx.patches, patch)
}

// Diff computes the patches needed to transform prev into next.
// Nodes of next that are reused from prev receive prev's IDs.
func Diff(prev, next *VNode) []Patch {
	return DiffUnder(0, prev, next)
}

// DiffUnder is Diff for a subtree mounted under the node parentID.
// Inserting a brand-new root targets parentID.
func DiffUnder(parentID uint32, prev, next *VNode) []Patch {
	ctx := newDiffContext()
	diffNode(ctx, prev, next, parentID)
	return ctx.patches
}

// diffNode recursively diffs two nodes
func diffNode(ctx *DiffContext, prev, next *VNode, parentID uint32) {
	// Both nil - nothing to do
	if prev == nil && next == nil {
		return
	}

	// Node removed
	if next == nil {
		ctx.addPatch(Patch{
			Op:     OpRemoveNode,
			NodeID: prev.ID,
		})
		return
	}

	// Node added
	if prev == nil || prev.ID == 0 {
		ctx.addPatch(Patch{
			Op:       OpInsertNode,
			ParentID: parentID,
			Node:     next,
		})
		return
	}

	// Different node types - replace in place
	if prev.Kind != next.Kind || prev.Tag != next.Tag || prev.GetKey() != next.GetKey() {
		ctx.addPatch(Patch{
			Op:     OpReplaceNode,
			NodeID: prev.ID,
			Node:   next,
		})
		return
	}

	next.ID = prev.ID

	switch prev.Kind {
	case KindText, KindComment:
		if prev.Text != next.Text {
			ctx.addPatch(Patch{
				Op:     OpReplaceText,
				NodeID: next.ID,
				Value:  next.Text,
			})
		}

	case KindElement:
		diffProps(ctx, next.ID, prev.Props, next.Props)
		diffProperties(ctx, next.ID, prev.Properties, next.Properties)
		diffListeners(ctx, next.ID, prev.Listeners, next.Listeners)
		diffChildren(ctx, next.ID, prev.Kids, next.Kids)
	}
}

// diffProps diffs attributes, in key order so patches are deterministic
func diffProps(ctx *DiffContext, nodeID uint32, prevProps, nextProps Props) {
	for _, key := range sortedKeys(prevProps, nextProps) {
		if key == "key" {
			continue
		}
		nextVal, inNext := nextProps[key]
		prevVal, inPrev := prevProps[key]
		switch {
		case !inNext:
			ctx.addPatch(Patch{
				Op:     OpRemoveAttribute,
				NodeID: nodeID,
				Key:    key,
			})
		case !inPrev || !propsEqual(prevVal, nextVal):
			ctx.addPatch(Patch{
				Op:     OpSetAttribute,
				NodeID: nodeID,
				Key:    key,
				Value:  PropToString(nextVal),
			})
		}
	}
}

// diffProperties diffs DOM property intents. Removed properties are reset
// to nil rather than deleted since a DOM property cannot be unset.
func diffProperties(ctx *DiffContext, nodeID uint32, prevProps, nextProps Props) {
	for _, key := range sortedKeys(prevProps, nextProps) {
		nextVal, inNext := nextProps[key]
		prevVal, inPrev := prevProps[key]
		if inNext && inPrev && propsEqual(prevVal, nextVal) {
			continue
		}
		ctx.addPatch(Patch{
			Op:     OpSetProperty,
			NodeID: nodeID,
			Key:    key,
			Prop:   nextVal,
		})
	}
}

// diffListeners emits a single event update carrying the next handler set
func diffListeners(ctx *DiffContext, nodeID uint32, prev, next Listeners) {
	if listenersEqual(prev, next) {
		return
	}
	ctx.addPatch(Patch{
		Op:        OpUpdateEvents,
		NodeID:    nodeID,
		Listeners: next,
	})
}

// diffChildren diffs child nodes with keyed and unkeyed reconciliation
func diffChildren(ctx *DiffContext, parentID uint32, prevKids, nextKids []VNode) {
	// Fast path: no children
	if len(prevKids) == 0 && len(nextKids) == 0 {
		return
	}

	// Fast path: all children removed
	if len(nextKids) == 0 {
		for i := range prevKids {
			diffNode(ctx, &prevKids[i], nil, parentID)
		}
		return
	}

	// Fast path: all children added
	if len(prevKids) == 0 {
		for i := range nextKids {
			diffNode(ctx, nil, &nextKids[i], parentID)
		}
		return
	}

	hasKeys := false
	for i := range nextKids {
		if nextKids[i].GetKey() != "" {
			hasKeys = true
			break
		}
	}

	if hasKeys {
		diffKeyedChildren(ctx, parentID, prevKids, nextKids)
	} else {
		diffUnkeyedChildren(ctx, parentID, prevKids, nextKids)
	}
}

// diffUnkeyedChildren performs simple index-based diffing
func diffUnkeyedChildren(ctx *DiffContext, parentID uint32, prevKids, nextKids []VNode) {
	minLen := len(prevKids)
	if len(nextKids) < minLen {
		minLen = len(nextKids)
	}

	// Diff common children
	for i := 0; i < minLen; i++ {
		diffNode(ctx, &prevKids[i], &nextKids[i], parentID)
	}

	// Remove extra old children
	for i := minLen; i < len(prevKids); i++ {
		diffNode(ctx, &prevKids[i], nil, parentID)
	}

	// Add extra new children
	for i := minLen; i < len(nextKids); i++ {
		diffNode(ctx, nil, &nextKids[i], parentID)
	}
}

// diffKeyedChildren reconciles children by key. Matched nodes keep their
// identity; when the surviving order changes or new nodes land between
// existing ones, every child is re-appended in its new order.
func diffKeyedChildren(ctx *DiffContext, parentID uint32, prevKids, nextKids []VNode) {
	prevKeyed := make(map[string]int, len(prevKids))
	for i := range prevKids {
		if key := prevKids[i].GetKey(); key != "" {
			prevKeyed[key] = i
		}
	}

	matched := make([]bool, len(prevKids))
	source := make([]int, len(nextKids))
	for i := range nextKids {
		source[i] = -1
		key := nextKids[i].GetKey()
		if key == "" {
			continue
		}
		if j, ok := prevKeyed[key]; ok && !matched[j] {
			matched[j] = true
			source[i] = j
		}
	}

	// Remove unmatched old children
	for i, wasMatched := range matched {
		if !wasMatched {
			diffNode(ctx, &prevKids[i], nil, parentID)
		}
	}

	// Decide whether the surviving nodes can stay in place
	inOrder := true
	last := -1
	sawNew := false
	for _, j := range source {
		if j < 0 {
			sawNew = true
			continue
		}
		if j < last || sawNew {
			inOrder = false
			break
		}
		last = j
	}

	for i := range nextKids {
		j := source[i]
		if j < 0 {
			diffNode(ctx, nil, &nextKids[i], parentID)
			continue
		}
		diffNode(ctx, &prevKids[j], &nextKids[i], parentID)
		if !inOrder && nextKids[i].ID != 0 {
			ctx.addPatch(Patch{
				Op:       OpMoveNode,
				NodeID:   nextKids[i].ID,
				ParentID: parentID,
			})
		}
	}
}

// Helper functions

// listenersEqual reports whether two listener sets can be treated as the
// same. Handlers are closures whose captured state cannot be compared, so
// any non-empty set is considered changed.
func listenersEqual(a, b Listeners) bool {
	return len(a) == 0 && len(b) == 0
}

func propsEqual(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// PropToString renders a prop value the way it appears in markup
func PropToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return ""
		}
		return "false"
	}
	return fmt.Sprintf("%v", v)
}

// EventNames returns the event names of l in lexical order
func EventNames(l Listeners) []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
