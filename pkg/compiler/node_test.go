package compiler

import (
	"reflect"
	"testing"

	"github.com/pupperjs/core-sub000/pkg/pug"
)

func parse(t *testing.T, src string) *pug.Block {
	t.Helper()
	tokens, err := pug.NewLexer("", src).Lex()
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	ast, err := pug.NewParser(tokens, "", src).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return ast
}

func tagNames(nodes []Node) []string {
	var names []string
	for _, n := range nodes {
		if tag, ok := n.(*TagNode); ok {
			names = append(names, tag.Name())
		}
	}
	return names
}

func TestWrap_Types(t *testing.T) {
	root := Wrap(parse(t, "p a\nif x\n  b\neach i in l\n  c\nmixin m\n  d\n| text"), nil)

	var got []string
	for _, n := range root.Children() {
		switch n.(type) {
		case *TagNode:
			got = append(got, "tag")
		case *ConditionalNode:
			got = append(got, "conditional")
		case *EachNode:
			got = append(got, "each")
		case *MixinNode:
			got = append(got, "mixin")
		case *GenericNode:
			got = append(got, n.Type())
		}
	}
	want := []string{"tag", "conditional", "each", "mixin", "Text"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("children = %v, want %v", got, want)
	}

	each := root.Children()[2].(*EachNode)
	if each.Item() != "i" || each.Collection() != "l" || each.Key() != "" {
		t.Errorf("each = %q %q %q", each.Item(), each.Key(), each.Collection())
	}
	if each.Parent() != root {
		t.Error("Expected children to point at their parent")
	}
	if line := root.Children()[1].Line(); line != 2 {
		t.Errorf("conditional line = %d, want 2", line)
	}
}

func TestTagNode_Attributes(t *testing.T) {
	root := Wrap(parse(t, `div.a.b(class="c" title='t' hidden)`), nil)
	tag := root.Children()[0].(*TagNode)

	if v, ok := tag.Attribute("class"); !ok || v != "a b c" {
		t.Errorf("class = %q, %v", v, ok)
	}
	if got := tag.Classes(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Classes() = %v", got)
	}
	if v, _ := tag.Attribute("title"); v != "t" {
		t.Errorf("title = %q", v)
	}
	if !tag.HasAttribute("hidden") || tag.HasAttribute("id") {
		t.Error("HasAttribute mismatch")
	}

	tag.SetAttribute("class", "x y")
	tag.SetAttribute("class", "x y")
	if v, _ := tag.Attribute("class"); v != "x y" {
		t.Errorf("class after set = %q", v)
	}
	count := 0
	for _, a := range tag.Attrs() {
		if a.Name == "class" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected one class attribute, got %d", count)
	}

	tag.RemoveAttribute("title")
	if _, ok := tag.Attribute("title"); ok {
		t.Error("Expected title to be removed")
	}
}

func TestNode_Editing(t *testing.T) {
	ast := parse(t, "p a\np b\np c")
	root := Wrap(ast, nil)
	children := root.Children()

	children[1].Delete()
	if got := tagNames(root.Children()); !reflect.DeepEqual(got, []string{"p", "p"}) {
		t.Fatalf("after delete = %v", got)
	}

	inserted := children[0].InsertAfter(&pug.Tag{Name: "hr", Block: &pug.Block{}})
	if len(inserted) != 1 || inserted[0].Parent() != root {
		t.Fatalf("InsertAfter returned %v", inserted)
	}
	if got := tagNames(root.Children()); !reflect.DeepEqual(got, []string{"p", "hr", "p"}) {
		t.Errorf("after insert = %v", got)
	}

	children[0].ReplaceWith(&pug.Tag{Name: "h1", Block: &pug.Block{}}, &pug.Tag{Name: "h2", Block: &pug.Block{}})
	if got := tagNames(root.Children()); !reflect.DeepEqual(got, []string{"h1", "h2", "hr", "p"}) {
		t.Errorf("after replace = %v", got)
	}

	root.SetChildren(&pug.Tag{Name: "main", Block: &pug.Block{}})
	if got := tagNames(root.Children()); !reflect.DeepEqual(got, []string{"main"}) {
		t.Errorf("after SetChildren = %v", got)
	}
}

func TestConditionalNode_ReplaceAlternate(t *testing.T) {
	root := Wrap(parse(t, "if a\n  p x\nelse if b\n  p y"), nil)
	cond := root.Children()[0].(*ConditionalNode)

	if cond.Test() != "a" || !cond.HasAlternate() {
		t.Fatalf("unexpected conditional %q", cond.Test())
	}
	if len(cond.Consequent()) != 1 {
		t.Fatalf("consequent = %d nodes", len(cond.Consequent()))
	}

	alt := cond.Alternate()
	if len(alt) != 1 {
		t.Fatalf("alternate = %d nodes", len(alt))
	}
	inner, ok := alt[0].(*ConditionalNode)
	if !ok || inner.Test() != "b" {
		t.Fatalf("Expected an else-if conditional, got %T", alt[0])
	}

	text := &pug.Text{Val: "z"}
	inner.ReplaceWith(text)

	block, ok := cond.cond.Alternate.(*pug.Block)
	if !ok || len(block.Nodes) != 1 || block.Nodes[0] != pug.Node(text) {
		t.Fatalf("alternate after replace = %#v", cond.cond.Alternate)
	}
	if got := cond.Alternate(); len(got) != 1 || got[0].Native() != pug.Node(text) {
		t.Errorf("Alternate() = %v", got)
	}
}

func TestFindFirstChildByTagName(t *testing.T) {
	root := Wrap(parse(t, "div\n  span a\n  p b\n  p c"), nil)
	div := root.Children()[0].(*TagNode)

	p := div.FindFirstChildByTagName("p")
	if p == nil || p.Line() != 3 {
		t.Fatalf("FindFirstChildByTagName(p) = %v", p)
	}
	if div.FindFirstChildByTagName("ul") != nil {
		t.Error("Expected no ul child")
	}
}
