package vdom

import (
	"fmt"
	"testing"
)

func generateTree(n, changed int) *VNode {
	kids := make([]*VNode, 0, n)
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("item %d", i)
		if i == changed {
			text += " (changed)"
		}
		kids = append(kids, NewElement("li", Props{"key": fmt.Sprint(i)}, NewText(text)))
	}
	return NewElement("ul", nil, kids...)
}

// mount numbers the nodes the way a document does after insertion
func mount(v *VNode, next *uint32) {
	*next++
	v.ID = *next
	for i := range v.Kids {
		mount(&v.Kids[i], next)
	}
}

func mountedTree(n, changed int) *VNode {
	var id uint32
	v := generateTree(n, changed)
	mount(v, &id)
	return v
}

// BenchmarkDiff measures one changed row in a keyed list
func BenchmarkDiff(b *testing.B) {
	prev := mountedTree(100, -1)
	next := generateTree(100, 50)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Diff(prev, next)
	}
}

func TestDiff_SingleChangedRow(t *testing.T) {
	patches := Diff(mountedTree(100, -1), generateTree(100, 50))
	if len(patches) != 1 || patches[0].Op != OpReplaceText {
		t.Errorf("Diff() = %v, want one text replacement", patches)
	}
}
