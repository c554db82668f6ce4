// Package compiler turns pupper component files into JavaScript modules.
//
// A component file is a pug document whose root holds template, script,
// style, data and implementation blocks, optionally alongside scoped
// component declarations. The compiler runs as a pug plugin: its hooks
// rewrite directives and shorthands, conditionals and loops into
// template elements the runtime understands, and its phases extract the
// component descriptors and synthesize the module.
package compiler

import (
	"log"

	"github.com/pupperjs/core-sub000/pkg/pug"
)

// Options configures a compilation
type Options struct {
	// Debug keeps the source around for error snippets
	Debug bool

	FileName string

	// Locals are the variables visible to CompileTemplate
	Locals map[string]any

	// Logger receives hook failures. log.Default() when nil.
	Logger *log.Logger
}

// Result is the output of Compile
type Result struct {
	// Code is the component module, or the template function when the
	// document declares no component
	Code string

	Components []*Component
	Imports    []Import

	// Styles holds the stylesheet of every component, scoped ones
	// already rewritten
	Styles []string
}

// newPlugin registers the compiler's phases and hooks
func newPlugin(opts Options, mode Mode) (*Plugin, error) {
	p := NewPlugin(opts, mode)

	p.RegisterPhase(&Hook{Name: "normalize", PreLex: normalizeBlocks, Parse: recordTemplateRoots})
	p.RegisterPhase(&Hook{Name: "component", Parse: extractComponents, PostCodeGen: synthesize})

	p.RegisterHook(&Hook{Name: "alias", RunsBefore: []string{"shorthand"}, Lex: translateDirectives})
	p.RegisterHook(&Hook{Name: "shorthand", Lex: expandShorthands})
	p.RegisterHook(&Hook{Name: "conditional", RunsBefore: []string{"component"}, Parse: conditionalHook})
	p.RegisterHook(&Hook{Name: "loop", RunsBefore: []string{"component"}, Parse: loopHook})
	p.RegisterHook(&Hook{Name: "import", RunsBefore: []string{"component"}, PreLex: stripImports, Parse: importHook})
	p.RegisterHook(&Hook{Name: "scope", PreCodeGen: scopeHook})

	if err := p.Prepare(); err != nil {
		return nil, err
	}
	return p, nil
}

// Compile compiles a component file
func Compile(src string, opts Options) (*Result, error) {
	p, err := newPlugin(opts, ModeComponent)
	if err != nil {
		return nil, err
	}

	code, err := pug.Compile(src, pug.Options{
		Filename: opts.FileName,
		Debug:    opts.Debug,
		Plugins:  []pug.Plugin{p},
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Code: code, Components: p.components, Imports: p.imports}
	for _, c := range p.components {
		if c.Style != "" {
			res.Styles = append(res.Styles, c.Style)
		}
	}
	return res, nil
}

// CompileTemplate renders src as plain pug with opts.Locals. Directives
// and shorthands are left as written.
func CompileTemplate(src string, opts Options) (string, error) {
	return pug.Render(src, opts.Locals, pug.Options{
		Filename: opts.FileName,
		Debug:    opts.Debug,
	})
}
