package pug

import (
	"fmt"
)

// Parser is a recursive descent parser over lexer tokens
type Parser struct {
	tokens   []*Token
	pos      int
	filename string
	src      string
	inMixin  int
}

// NewParser creates a parser for tokens. src is attached to errors when
// set.
func NewParser(tokens []*Token, filename, src string) *Parser {
	return &Parser{
		tokens:   tokens,
		filename: filename,
		src:      src,
	}
}

// Parse parses the token stream into the root block
func (p *Parser) Parse() (*Block, error) {
	root := &Block{Pos: Pos{Line: 1, Column: 1}}
	if err := p.statements(root, TokEOS); err != nil {
		return nil, err
	}
	return root, nil
}

// statements parses nodes into b until a token of type end. Consecutive
// text lines are separated by a newline.
func (p *Parser) statements(b *Block, end TokenType) error {
	lastText := false
	for {
		t := p.peek()
		switch t.Type {
		case end:
			p.next()
			return nil
		case TokEOS:
			return nil
		case TokNewline:
			p.next()
			continue
		}

		isText := t.Type == TokText || t.Type == TokInterpolatedCode || t.Type == TokTextHTML
		if isText && lastText {
			b.Nodes = append(b.Nodes, &Text{Pos: pos(t), Val: "\n"})
		}
		nodes, err := p.expr()
		if err != nil {
			return err
		}
		b.Nodes = append(b.Nodes, nodes...)
		lastText = isText
	}
}

// optionalBlock parses an indented block into b if one follows
func (p *Parser) optionalBlock(b *Block) error {
	if p.peek().Type != TokIndent {
		return nil
	}
	p.next()
	return p.statements(b, TokOutdent)
}

func (p *Parser) expr() ([]Node, error) {
	t := p.peek()
	switch t.Type {
	case TokTag:
		return p.parseTag()
	case TokText, TokInterpolatedCode:
		return p.parseText(), nil
	case TokTextHTML:
		p.next()
		return []Node{&Text{Pos: pos(t), Val: t.Val, IsHTML: true}}, nil
	case TokCode:
		n, err := p.parseCode()
		return one(n, err)
	case TokComment:
		return one(p.parseComment(), nil)
	case TokDoctype:
		p.next()
		return []Node{&Doctype{Pos: pos(t), Val: t.Val}}, nil
	case TokIf, TokUnless:
		n, err := p.parseConditional()
		return one(n, err)
	case TokEach:
		n, err := p.parseEach()
		return one(n, err)
	case TokMixin, TokCall:
		n, err := p.parseMixin()
		return one(n, err)
	case TokBlock:
		return p.parseBlock()
	}
	return nil, p.error(t, "PUG:INVALID_TOKEN", fmt.Sprintf("Unexpected token %q", t.Type.String()))
}

func one(n Node, err error) ([]Node, error) {
	if err != nil {
		return nil, err
	}
	return []Node{n}, nil
}

func (p *Parser) parseTag() ([]Node, error) {
	t := p.next()
	tag := &Tag{Pos: pos(t), Name: t.Val, Block: &Block{Pos: pos(t)}}

attrs:
	for {
		a := p.peek()
		switch a.Type {
		case TokID:
			tag.Attrs = append(tag.Attrs, &Attr{Name: "id", Val: "'" + a.Val + "'"})
		case TokClass:
			tag.Attrs = append(tag.Attrs, &Attr{Name: "class", Val: "'" + a.Val + "'"})
		case TokAttribute:
			tag.Attrs = append(tag.Attrs, &Attr{Name: a.Name, Val: a.Val, MustEscape: a.MustEscape})
		default:
			break attrs
		}
		p.next()
	}

	switch n := p.peek(); n.Type {
	case TokDot:
		p.next()
		tag.TextOnly = true
		if p.peek().Type == TokStartPipelessText {
			p.pipeless(tag.Block)
		}
		return []Node{tag}, nil
	case TokSlash:
		p.next()
		tag.SelfClosing = true
	case TokColon:
		p.next()
		nodes, err := p.expr()
		if err != nil {
			return nil, err
		}
		tag.Block.Nodes = append(tag.Block.Nodes, nodes...)
		return []Node{tag}, nil
	case TokCode:
		p.next()
		tag.Block.Nodes = append(tag.Block.Nodes, &Code{Pos: pos(n), Val: n.Val, Buffer: n.Buffer, MustEscape: n.MustEscape, IsInline: true})
	case TokText, TokInterpolatedCode:
		tag.Block.Nodes = append(tag.Block.Nodes, p.parseText()...)
	}

	if p.peek().Type == TokIndent {
		if tag.SelfClosing {
			return nil, p.error(p.peek(), "PUG:SELF_CLOSING_CONTENT", fmt.Sprintf("%s is self closing and should not have content.", tag.Name))
		}
		if err := p.optionalBlock(tag.Block); err != nil {
			return nil, err
		}
	}
	return []Node{tag}, nil
}

// parseText consumes a run of text and interpolation tokens
func (p *Parser) parseText() []Node {
	var nodes []Node
	for {
		t := p.peek()
		switch t.Type {
		case TokText:
			nodes = append(nodes, &Text{Pos: pos(t), Val: t.Val})
		case TokInterpolatedCode:
			nodes = append(nodes, &Code{Pos: pos(t), Val: t.Val, Buffer: true, MustEscape: t.MustEscape, IsInline: true})
		default:
			return nodes
		}
		p.next()
	}
}

// pipeless parses the body of a dot block or block comment
func (p *Parser) pipeless(b *Block) {
	p.next()
	for {
		t := p.peek()
		switch t.Type {
		case TokEndPipelessText:
			p.next()
			return
		case TokEOS:
			return
		case TokNewline:
			p.next()
			b.Nodes = append(b.Nodes, &Text{Pos: pos(t), Val: "\n"})
		case TokText, TokInterpolatedCode:
			b.Nodes = append(b.Nodes, p.parseText()...)
		default:
			p.next()
		}
	}
}

func (p *Parser) parseCode() (Node, error) {
	t := p.next()
	c := &Code{Pos: pos(t), Val: t.Val, Buffer: t.Buffer, MustEscape: t.MustEscape}
	if p.peek().Type == TokIndent {
		if c.Buffer {
			return nil, p.error(p.peek(), "PUG:BLOCK_IN_BUFFERED_CODE", "Buffered code cannot have a block attached to it")
		}
		c.Block = &Block{Pos: pos(t)}
		if err := p.optionalBlock(c.Block); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (p *Parser) parseComment() Node {
	t := p.next()
	if p.peek().Type == TokStartPipelessText {
		bc := &BlockComment{Pos: pos(t), Val: t.Val, Buffer: t.Buffer, Block: &Block{Pos: pos(t)}}
		p.pipeless(bc.Block)
		return bc
	}
	return &Comment{Pos: pos(t), Val: t.Val, Buffer: t.Buffer}
}

func (p *Parser) parseConditional() (Node, error) {
	t := p.next()
	test := t.Val
	if t.Type == TokUnless {
		test = "!(" + t.Val + ")"
	}
	c := &Conditional{Pos: pos(t), Test: test, Consequent: &Block{Pos: pos(t)}}
	if err := p.optionalBlock(c.Consequent); err != nil {
		return nil, err
	}

	cur := c
	for {
		save := p.pos
		if p.peek().Type == TokNewline {
			p.next()
		}
		switch n := p.peek(); n.Type {
		case TokElseIf:
			p.next()
			alt := &Conditional{Pos: pos(n), Test: n.Val, Consequent: &Block{Pos: pos(n)}}
			if err := p.optionalBlock(alt.Consequent); err != nil {
				return nil, err
			}
			cur.Alternate = alt
			cur = alt
		case TokElse:
			p.next()
			alt := &Block{Pos: pos(n)}
			if err := p.optionalBlock(alt); err != nil {
				return nil, err
			}
			cur.Alternate = alt
			return c, nil
		default:
			p.pos = save
			return c, nil
		}
	}
}

func (p *Parser) parseEach() (Node, error) {
	t := p.next()
	e := &Each{Pos: pos(t), Val: t.Val, Key: t.Key, Obj: t.Code, Block: &Block{Pos: pos(t)}}
	if err := p.optionalBlock(e.Block); err != nil {
		return nil, err
	}

	save := p.pos
	if p.peek().Type == TokNewline {
		p.next()
	}
	if n := p.peek(); n.Type == TokElse {
		p.next()
		e.Alternate = &Block{Pos: pos(n)}
		if err := p.optionalBlock(e.Alternate); err != nil {
			return nil, err
		}
		return e, nil
	}
	p.pos = save
	return e, nil
}

func (p *Parser) parseMixin() (Node, error) {
	t := p.next()
	m := &Mixin{Pos: pos(t), Name: t.Val, Args: t.Args, Call: t.Type == TokCall, Block: &Block{Pos: pos(t)}}
	if !m.Call {
		p.inMixin++
		defer func() { p.inMixin-- }()
	}
	if err := p.optionalBlock(m.Block); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *Parser) parseBlock() ([]Node, error) {
	t := p.next()
	if t.Val == "" {
		if p.inMixin == 0 {
			return nil, p.error(t, "PUG:BLOCK_OUTSIDE_MIXIN", "Anonymous blocks are not allowed unless they are part of a mixin.")
		}
		return []Node{&MixinBlock{Pos: pos(t)}}, nil
	}
	nb := &NamedBlock{Pos: pos(t), Name: t.Val, Mode: t.Mode, Block: &Block{Pos: pos(t)}}
	if nb.Mode == "" {
		nb.Mode = "replace"
	}
	if err := p.optionalBlock(nb.Block); err != nil {
		return nil, err
	}
	return []Node{nb}, nil
}

// Helper methods

func (p *Parser) peek() *Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return &Token{Type: TokEOS}
}

func (p *Parser) next() *Token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *Parser) error(t *Token, code, msg string) error {
	return NewError(code, msg, t.Line, t.Column, p.filename, p.src)
}

func pos(t *Token) Pos {
	return Pos{Line: t.Line, Column: t.Column}
}
