package renderer

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// LoopHeader is a parsed x-for expression such as "(item, i) of items"
type LoopHeader struct {
	Item       string
	Index      string
	Collection string
}

type loopGrammar struct {
	Vars   *loopVars `parser:"( @@"`
	Op     string    `parser:"  @( \"of\" | \"in\" ) )?"`
	EndPos lexer.Position
}

type loopVars struct {
	Grouped []string `parser:"  ( \"(\" | \"[\" ) @Ident ( \",\" @Ident )? ( \")\" | \"]\" )"`
	Bare    []string `parser:"| @Ident ( \",\" @Ident )?"`
}

var loopLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$]*`},
	{Name: "Punct", Pattern: `[(),\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Other", Pattern: `.`},
})

var loopParser = participle.MustBuild[loopGrammar](
	participle.Lexer(loopLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(participle.MaxLookahead),
)

// ParseLoopHeader splits an x-for expression into its item and index
// names and the collection expression. A header without "of" or "in"
// iterates the whole expression as $item and $index.
func ParseLoopHeader(src string) (LoopHeader, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return LoopHeader{}, fmt.Errorf("empty loop expression")
	}

	g, err := loopParser.ParseString("x-for", src, participle.AllowTrailing(true))
	if err != nil {
		return LoopHeader{}, fmt.Errorf("invalid loop expression %q: %w", src, err)
	}

	h := LoopHeader{Item: "$item", Index: "$index"}
	if g.Vars == nil || g.Op == "" {
		h.Collection = src
		return h, nil
	}

	names := g.Vars.Grouped
	if names == nil {
		names = g.Vars.Bare
	}
	h.Item = names[0]
	if len(names) > 1 {
		h.Index = names[1]
	}
	if g.EndPos.Offset <= len(src) {
		h.Collection = strings.TrimSpace(src[g.EndPos.Offset:])
	}
	if h.Collection == "" {
		return LoopHeader{}, fmt.Errorf("loop expression %q has no collection", src)
	}
	return h, nil
}
