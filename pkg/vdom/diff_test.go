package vdom

import (
	"reflect"
	"testing"
)

// mounted assigns sequential IDs to every node of v, as an applier would
func mounted(v *VNode) *VNode {
	var id uint32
	v.Walk(func(n *VNode) bool {
		id++
		n.ID = id
		return true
	})
	return v
}

func ops(patches []Patch) []PatchOp {
	out := make([]PatchOp, 0, len(patches))
	for _, p := range patches {
		out = append(out, p.Op)
	}
	return out
}

func TestDiff_TextNodes(t *testing.T) {
	tests := []struct {
		name     string
		prev     *VNode
		next     *VNode
		expected []PatchOp
	}{
		{
			name:     "text content change",
			prev:     mounted(NewText("Hello")),
			next:     NewText("World"),
			expected: []PatchOp{OpReplaceText},
		},
		{
			name:     "text content unchanged",
			prev:     mounted(NewText("Same")),
			next:     NewText("Same"),
			expected: []PatchOp{},
		},
		{
			name:     "text to element",
			prev:     mounted(NewText("Text")),
			next:     NewElement("div", nil),
			expected: []PatchOp{OpReplaceNode},
		},
		{
			name:     "comment content change",
			prev:     mounted(NewComment("a")),
			next:     NewComment("b"),
			expected: []PatchOp{OpReplaceText},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ops(Diff(tt.prev, tt.next))
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Diff() ops = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDiff_Attributes(t *testing.T) {
	prev := mounted(NewElement("div", Props{"class": "old", "id": "test"}))
	next := NewElement("div", Props{"class": "new", "data-attr": "value"})

	patches := Diff(prev, next)
	expected := []Patch{
		{Op: OpSetAttribute, NodeID: 1, Key: "class", Value: "new"},
		{Op: OpSetAttribute, NodeID: 1, Key: "data-attr", Value: "value"},
		{Op: OpRemoveAttribute, NodeID: 1, Key: "id"},
	}
	if !reflect.DeepEqual(patches, expected) {
		t.Errorf("Diff() = %v, want %v", patches, expected)
	}
	if next.ID != 1 {
		t.Errorf("next.ID = %d, want identity copied from prev", next.ID)
	}
}

func TestDiff_Properties(t *testing.T) {
	prev := mounted(&VNode{Kind: KindElement, Tag: "input", Properties: Props{"value": "a"}})
	next := &VNode{Kind: KindElement, Tag: "input", Properties: Props{"value": "b"}}

	patches := Diff(prev, next)
	if len(patches) != 1 || patches[0].Op != OpSetProperty || patches[0].Prop != "b" {
		t.Fatalf("Diff() = %v, want one SetProperty to b", patches)
	}
}

func TestDiff_Listeners(t *testing.T) {
	handler := func(e *Event) {}
	other := func(e *Event) { e.PreventDefault() }

	withClick := func(h EventHandler) *VNode {
		v := NewElement("button", nil)
		v.AddListener("click", h)
		return v
	}

	if patches := Diff(mounted(NewElement("button", nil)), NewElement("button", nil)); len(patches) != 0 {
		t.Errorf("no handlers produced patches: %v", patches)
	}
	if got := ops(Diff(mounted(withClick(handler)), withClick(handler))); !reflect.DeepEqual(got, []PatchOp{OpUpdateEvents}) {
		t.Errorf("rebound handler ops = %v", got)
	}
	if got := ops(Diff(mounted(withClick(handler)), withClick(other))); !reflect.DeepEqual(got, []PatchOp{OpUpdateEvents}) {
		t.Errorf("changed handler ops = %v", got)
	}
	if got := ops(Diff(mounted(NewElement("button", nil)), withClick(handler))); !reflect.DeepEqual(got, []PatchOp{OpUpdateEvents}) {
		t.Errorf("added handler ops = %v", got)
	}
}

func TestDiff_UnkeyedChildren(t *testing.T) {
	prev := mounted(NewElement("ul", nil,
		NewElement("li", nil, NewText("1")),
		NewElement("li", nil, NewText("2")),
		NewComment("x-for"),
	))
	next := NewElement("ul", nil,
		NewElement("li", nil, NewText("1")),
		NewElement("li", nil, NewText("2")),
		NewElement("li", nil, NewText("3")),
		NewComment("x-for"),
	)

	patches := Diff(prev, next)
	got := ops(patches)
	want := []PatchOp{OpReplaceNode, OpInsertNode}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	if next.Kids[0].ID != prev.Kids[0].ID || next.Kids[1].ID != prev.Kids[1].ID {
		t.Error("leading children should keep their identity")
	}
	if patches[1].ParentID != prev.ID {
		t.Errorf("insert parent = %d, want %d", patches[1].ParentID, prev.ID)
	}
}

func TestDiff_KeyedChildren(t *testing.T) {
	item := func(key string) *VNode {
		return NewElement("li", Props{"key": key}, NewText(key))
	}

	t.Run("append keeps order without moves", func(t *testing.T) {
		prev := mounted(NewElement("ul", nil, item("a"), item("b")))
		next := NewElement("ul", nil, item("a"), item("b"), item("c"))
		got := ops(Diff(prev, next))
		if !reflect.DeepEqual(got, []PatchOp{OpInsertNode}) {
			t.Errorf("ops = %v", got)
		}
	})

	t.Run("reorder moves every child", func(t *testing.T) {
		prev := mounted(NewElement("ul", nil, item("a"), item("b")))
		next := NewElement("ul", nil, item("b"), item("a"))
		got := ops(Diff(prev, next))
		if !reflect.DeepEqual(got, []PatchOp{OpMoveNode, OpMoveNode}) {
			t.Errorf("ops = %v", got)
		}
		if next.Kids[0].ID != prev.Kids[1].ID {
			t.Error("moved child lost its identity")
		}
	})

	t.Run("removal", func(t *testing.T) {
		prev := mounted(NewElement("ul", nil, item("a"), item("b"), item("c")))
		next := NewElement("ul", nil, item("a"), item("c"))
		patches := Diff(prev, next)
		if len(patches) != 1 || patches[0].Op != OpRemoveNode || patches[0].NodeID != prev.Kids[1].ID {
			t.Errorf("patches = %v", patches)
		}
	})
}

func TestDiff_InsertRoot(t *testing.T) {
	next := NewElement("div", nil)
	patches := DiffUnder(7, nil, next)
	if len(patches) != 1 || patches[0].Op != OpInsertNode || patches[0].ParentID != 7 || patches[0].Node != next {
		t.Errorf("patches = %v", patches)
	}
}
