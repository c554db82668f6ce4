package pug

import "fmt"

// Link resolves mixin calls against the declarations in ast and hoists
// root-level declarations so a mixin can be called before the line that
// declares it.
func Link(ast *Block, filename, src string) (*Block, error) {
	declared := make(map[string]bool)
	Walk(ast, func(n Node) bool {
		if m, ok := n.(*Mixin); ok && !m.Call {
			declared[m.Name] = true
		}
		return true
	})

	var err error
	Walk(ast, func(n Node) bool {
		if err != nil {
			return false
		}
		if m, ok := n.(*Mixin); ok && m.Call && !declared[m.Name] {
			err = NewError("PUG:UNKNOWN_MIXIN", fmt.Sprintf("Unknown mixin %q", m.Name), m.Line, m.Column, filename, src)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	var decls, rest []Node
	for _, n := range ast.Nodes {
		if m, ok := n.(*Mixin); ok && !m.Call {
			decls = append(decls, n)
		} else {
			rest = append(rest, n)
		}
	}
	ast.Nodes = append(decls, rest...)
	return ast, nil
}
