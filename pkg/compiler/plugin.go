package compiler

import (
	"fmt"
	"log"
	"strings"

	"github.com/pupperjs/core-sub000/pkg/pug"
)

// Mode selects which registered hooks run
type Mode int

const (
	// ModeComponent runs phases and hooks
	ModeComponent Mode = iota

	// ModeRender runs hooks only. Template slices of components are
	// compiled in this mode.
	ModeRender
)

// Stage is a compilation stage hooks can filter
type Stage string

const (
	StagePreLex      Stage = "preLex"
	StageLex         Stage = "lex"
	StageParse       Stage = "parse"
	StagePreCodeGen  Stage = "preCodeGen"
	StagePostCodeGen Stage = "postCodeGen"
)

// Hook is a named set of stage filters. RunsBefore and RunsAfter name
// other hooks or phases.
type Hook struct {
	Name       string
	RunsBefore []string
	RunsAfter  []string

	PreLex      func(p *Plugin, src string) (string, error)
	Lex         func(p *Plugin, tokens []*pug.Token) ([]*pug.Token, error)
	Parse       func(p *Plugin, ast *pug.Block) (*pug.Block, error)
	PreCodeGen  func(p *Plugin, ast *pug.Block) (*pug.Block, error)
	PostCodeGen func(p *Plugin, code string) (string, error)

	phase bool
}

// ConfigError reports hooks whose ordering constraints cannot be met
type ConfigError struct {
	Hooks []string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("hook configuration: %s: %s", e.Msg, strings.Join(e.Hooks, ", "))
}

// Plugin drives one compilation. It implements pug.Plugin by folding
// every registered hook over each stage.
type Plugin struct {
	opts Options
	mode Mode

	hooks []*Hook
	order []*Hook

	// src is the template after the pre-lex filters
	src string

	imports    []Import
	components []*Component

	// known maps tag names to components defined elsewhere in the file
	known map[string]bool

	// scopeAttr is added to every tag of a scoped-style template
	scopeAttr string

	// extraRoots maps component templates holding more than one root
	// element to the second one, as seen before any rewriting
	extraRoots map[*pug.Tag]Node
}

var _ pug.Plugin = (*Plugin)(nil)

// NewPlugin creates a plugin with no hooks
func NewPlugin(opts Options, mode Mode) *Plugin {
	return &Plugin{
		opts:  opts,
		mode:  mode,
		known: make(map[string]bool),

		extraRoots: make(map[*pug.Tag]Node),
	}
}

// RegisterPhase adds a hook that runs only in component mode
func (p *Plugin) RegisterPhase(h *Hook) {
	h.phase = true
	p.hooks = append(p.hooks, h)
	p.order = nil
}

// RegisterHook adds a hook that runs in every mode
func (p *Plugin) RegisterHook(h *Hook) {
	p.hooks = append(p.hooks, h)
	p.order = nil
}

// Prepare orders the registered hooks
func (p *Plugin) Prepare() error {
	order, err := sortHooks(p.hooks)
	if err != nil {
		return err
	}
	p.order = order
	return nil
}

// Order returns the hook names in the order they run
func (p *Plugin) Order() []string {
	names := make([]string, len(p.order))
	for i, h := range p.order {
		names[i] = h.Name
	}
	return names
}

// Imports returns the inline imports recorded so far
func (p *Plugin) Imports() []Import {
	return p.imports
}

// Components returns the extracted components
func (p *Plugin) Components() []*Component {
	return p.components
}

// sortHooks orders hooks topologically. Among hooks whose constraints are
// met, the earliest registered runs first.
func sortHooks(hooks []*Hook) ([]*Hook, error) {
	index := make(map[string]int, len(hooks))
	for i, h := range hooks {
		if _, dup := index[h.Name]; dup {
			return nil, &ConfigError{Hooks: []string{h.Name}, Msg: "duplicate hook"}
		}
		index[h.Name] = i
	}

	edges := make([][]int, len(hooks))
	indegree := make([]int, len(hooks))
	for i, h := range hooks {
		for _, name := range h.RunsBefore {
			j, ok := index[name]
			if !ok {
				return nil, &ConfigError{Hooks: []string{h.Name, name}, Msg: "unknown hook"}
			}
			edges[i] = append(edges[i], j)
			indegree[j]++
		}
		for _, name := range h.RunsAfter {
			j, ok := index[name]
			if !ok {
				return nil, &ConfigError{Hooks: []string{h.Name, name}, Msg: "unknown hook"}
			}
			edges[j] = append(edges[j], i)
			indegree[i]++
		}
	}

	order := make([]*Hook, 0, len(hooks))
	done := make([]bool, len(hooks))
	for len(order) < len(hooks) {
		next := -1
		for i := range hooks {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var cycle []string
			for i, h := range hooks {
				if !done[i] {
					cycle = append(cycle, h.Name)
				}
			}
			return nil, &ConfigError{Hooks: cycle, Msg: "ordering cycle"}
		}
		done[next] = true
		order = append(order, hooks[next])
		for _, j := range edges[next] {
			indegree[j]--
		}
	}
	return order, nil
}

func (p *Plugin) logger() *log.Logger {
	if p.opts.Logger != nil {
		return p.opts.Logger
	}
	return log.Default()
}

// applyFilters folds the stage filter of every active hook over value
func applyFilters[T any](p *Plugin, stage Stage, value T, filter func(*Hook) func(*Plugin, T) (T, error)) (T, error) {
	for _, h := range p.order {
		fn := filter(h)
		if fn == nil || (h.phase && p.mode != ModeComponent) {
			continue
		}
		out, err := runFilter(p, h, stage, fn, value)
		if err != nil {
			var zero T
			return zero, err
		}
		value = out
	}
	return value, nil
}

func runFilter[T any](p *Plugin, h *Hook, stage Stage, fn func(*Plugin, T) (T, error), value T) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s hook %s panicked: %v", stage, h.Name, r)
			p.logger().Printf("pupper: %v", err)
		}
	}()
	out, err = fn(p, value)
	if err != nil {
		p.logger().Printf("pupper: %s hook %s failed: %v", stage, h.Name, err)
	}
	return out, err
}

// PreLex implements pug.Plugin
func (p *Plugin) PreLex(src string) (string, error) {
	out, err := applyFilters(p, StagePreLex, src, func(h *Hook) func(*Plugin, string) (string, error) { return h.PreLex })
	if err != nil {
		return "", err
	}
	p.src = out
	return out, nil
}

// IsExpression implements pug.Plugin; shorthands are accepted as
// attribute values
func (p *Plugin) IsExpression(src string) bool {
	return IsShorthandExpression(src) || pug.IsExpression(src)
}

// Lex implements pug.Plugin
func (p *Plugin) Lex(tokens []*pug.Token) ([]*pug.Token, error) {
	return applyFilters(p, StageLex, tokens, func(h *Hook) func(*Plugin, []*pug.Token) ([]*pug.Token, error) { return h.Lex })
}

// Parse implements pug.Plugin
func (p *Plugin) Parse(ast *pug.Block) (*pug.Block, error) {
	return applyFilters(p, StageParse, ast, func(h *Hook) func(*Plugin, *pug.Block) (*pug.Block, error) { return h.Parse })
}

// PreCodeGen implements pug.Plugin
func (p *Plugin) PreCodeGen(ast *pug.Block) (*pug.Block, error) {
	return applyFilters(p, StagePreCodeGen, ast, func(h *Hook) func(*Plugin, *pug.Block) (*pug.Block, error) { return h.PreCodeGen })
}

// PostCodeGen implements pug.Plugin
func (p *Plugin) PostCodeGen(code string) (string, error) {
	return applyFilters(p, StagePostCodeGen, code, func(h *Hook) func(*Plugin, string) (string, error) { return h.PostCodeGen })
}

// errorAt builds a compilation error at a node
func (p *Plugin) errorAt(n Node, code, msg string) *pug.Error {
	return pug.NewError(code, msg, n.Line(), n.Column(), p.opts.FileName, p.debugSrc())
}

func (p *Plugin) debugSrc() string {
	if p.opts.Debug {
		return p.src
	}
	return ""
}
