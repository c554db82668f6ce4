package pug

// AST node types for pug templates

// Node is the interface for all AST nodes
type Node interface {
	Type() string
	Position() (line, column int)
}

// Pos is the source position of a node
type Pos struct {
	Line   int
	Column int
}

// Position returns the line and column
func (p Pos) Position() (int, int) { return p.Line, p.Column }

// Block is an ordered list of nodes
type Block struct {
	Pos
	Nodes []Node
}

// Attr is one attribute. Val is a JavaScript expression; string
// literals keep their quotes.
type Attr struct {
	Name       string
	Val        string
	MustEscape bool
}

// Tag is an element
type Tag struct {
	Pos
	Name        string
	Attrs       []*Attr
	Block       *Block
	SelfClosing bool

	// TextOnly is set for dot blocks, whose content is raw text
	TextOnly bool
}

// Conditional is an if/else if/else chain. Alternate is nil, a *Block or
// another *Conditional.
type Conditional struct {
	Pos
	Test       string
	Consequent *Block
	Alternate  Node
}

// Each iterates Obj binding Val and optionally Key. Alternate renders
// when Obj is empty.
type Each struct {
	Pos
	Val       string
	Key       string
	Obj       string
	Block     *Block
	Alternate *Block
}

// Mixin is a mixin declaration, or a call when Call is set
type Mixin struct {
	Pos
	Name  string
	Args  string
	Call  bool
	Block *Block
}

// MixinBlock renders the block passed to the enclosing mixin
type MixinBlock struct {
	Pos
}

// Text is literal output. Text is not escaped.
type Text struct {
	Pos
	Val    string
	IsHTML bool
}

// Code is a JavaScript expression or statement
type Code struct {
	Pos
	Val        string
	Buffer     bool
	MustEscape bool
	IsInline   bool
	Block      *Block
}

// Comment is a single-line comment
type Comment struct {
	Pos
	Val    string
	Buffer bool
}

// BlockComment is a comment with an indented body
type BlockComment struct {
	Pos
	Val    string
	Buffer bool
	Block  *Block
}

// Doctype is a doctype declaration
type Doctype struct {
	Pos
	Val string
}

// NamedBlock is a "block name" declaration
type NamedBlock struct {
	Pos
	Name  string
	Mode  string
	Block *Block
}

func (*Block) Type() string        { return "Block" }
func (*Tag) Type() string          { return "Tag" }
func (*Conditional) Type() string  { return "Conditional" }
func (*Each) Type() string         { return "Each" }
func (*Mixin) Type() string        { return "Mixin" }
func (*MixinBlock) Type() string   { return "MixinBlock" }
func (*Text) Type() string         { return "Text" }
func (*Code) Type() string         { return "Code" }
func (*Comment) Type() string      { return "Comment" }
func (*BlockComment) Type() string { return "BlockComment" }
func (*Doctype) Type() string      { return "Doctype" }
func (*NamedBlock) Type() string   { return "NamedBlock" }

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the children of a node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	walkBlock := func(b *Block) {
		if b != nil {
			Walk(b, fn)
		}
	}
	switch n := n.(type) {
	case *Block:
		for _, c := range n.Nodes {
			Walk(c, fn)
		}
	case *Tag:
		walkBlock(n.Block)
	case *Conditional:
		walkBlock(n.Consequent)
		if n.Alternate != nil {
			Walk(n.Alternate, fn)
		}
	case *Each:
		walkBlock(n.Block)
		walkBlock(n.Alternate)
	case *Mixin:
		walkBlock(n.Block)
	case *Code:
		walkBlock(n.Block)
	case *BlockComment:
		walkBlock(n.Block)
	case *NamedBlock:
		walkBlock(n.Block)
	}
}
