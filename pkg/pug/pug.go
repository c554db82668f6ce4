// Package pug compiles indentation based templates into JavaScript
// render functions. Compilation runs in stages (lex, parse, link, code
// generation) and plugins may rewrite the output of each stage.
package pug

import (
	"fmt"

	"github.com/dop251/goja"
)

// Options configures a compilation
type Options struct {
	// Filename is used in error messages
	Filename string

	// Debug attaches a source snippet to errors
	Debug bool

	// Doctype sets the output mode when the template has no doctype
	Doctype string

	Plugins []Plugin
}

// Plugin hooks into the compilation stages. Embed BasePlugin to
// implement only some of them.
type Plugin interface {
	PreLex(src string) (string, error)
	IsExpression(src string) bool
	Lex(tokens []*Token) ([]*Token, error)
	Parse(ast *Block) (*Block, error)
	PreCodeGen(ast *Block) (*Block, error)
	PostCodeGen(code string) (string, error)
}

// BasePlugin implements Plugin without changing anything. Its
// IsExpression defers to the default check.
type BasePlugin struct{}

func (BasePlugin) PreLex(src string) (string, error)       { return src, nil }
func (BasePlugin) IsExpression(src string) bool            { return IsExpression(src) }
func (BasePlugin) Lex(tokens []*Token) ([]*Token, error)   { return tokens, nil }
func (BasePlugin) Parse(ast *Block) (*Block, error)        { return ast, nil }
func (BasePlugin) PreCodeGen(ast *Block) (*Block, error)   { return ast, nil }
func (BasePlugin) PostCodeGen(code string) (string, error) { return code, nil }

// Compile compiles src into JavaScript defining template(locals)
func Compile(src string, opts Options) (string, error) {
	var err error
	for _, p := range opts.Plugins {
		if src, err = p.PreLex(src); err != nil {
			return "", err
		}
	}

	lexer := NewLexer(opts.Filename, src)
	if opts.Debug {
		lexer.SetSource(src)
	}
	if len(opts.Plugins) > 0 {
		lexer.SetExpressionCheck(func(s string) bool {
			for _, p := range opts.Plugins {
				if p.IsExpression(s) {
					return true
				}
			}
			return false
		})
	}
	tokens, err := lexer.Lex()
	if err != nil {
		return "", err
	}
	for _, p := range opts.Plugins {
		if tokens, err = p.Lex(tokens); err != nil {
			return "", err
		}
	}

	debugSrc := ""
	if opts.Debug {
		debugSrc = src
	}
	ast, err := NewParser(tokens, opts.Filename, debugSrc).Parse()
	if err != nil {
		return "", err
	}
	if ast, err = Link(ast, opts.Filename, debugSrc); err != nil {
		return "", err
	}
	for _, p := range opts.Plugins {
		if ast, err = p.Parse(ast); err != nil {
			return "", err
		}
	}
	for _, p := range opts.Plugins {
		if ast, err = p.PreCodeGen(ast); err != nil {
			return "", err
		}
	}

	code, err := Generate(ast, opts)
	if err != nil {
		return "", err
	}
	for _, p := range opts.Plugins {
		if code, err = p.PostCodeGen(code); err != nil {
			return "", err
		}
	}
	return code, nil
}

// Render compiles src and renders it with locals
func Render(src string, locals map[string]any, opts Options) (string, error) {
	code, err := Compile(src, opts)
	if err != nil {
		return "", err
	}
	return Run(code, locals)
}

// Run executes compiled template code with locals
func Run(code string, locals map[string]any) (string, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	if _, err := vm.RunString(code); err != nil {
		return "", fmt.Errorf("pug: load template: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get("template"))
	if !ok {
		return "", fmt.Errorf("pug: code does not define template")
	}
	if locals == nil {
		locals = map[string]any{}
	}
	out, err := fn(goja.Undefined(), vm.ToValue(locals))
	if err != nil {
		return "", fmt.Errorf("pug: render: %w", err)
	}
	return out.String(), nil
}
