package renderer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"github.com/pupperjs/core-sub000/pkg/reactive"
	"github.com/pupperjs/core-sub000/pkg/vdom"
)

// EventMethodPrefix marks methods generated for implementation events
const EventMethodPrefix = "__pupperEvent_"

// EventBinding routes the DOM events in Covers to a component method
type EventBinding struct {
	Method string
	Covers []string
}

// Definition describes a component
type Definition struct {
	Name string

	// Template is the component markup. Render, when set, produces it
	// instead.
	Template string
	Render   func() (string, error)

	// Data returns the initial state of a new instance
	Data func() map[string]any

	// Methods and When hooks are Go funcs or JavaScript functions; they
	// run with the instance state as this.
	Methods map[string]any
	When    map[string]any

	Events     []EventBinding
	Components map[string]*Definition
	Style      string
}

func (d *Definition) markup() (string, error) {
	if d.Render != nil {
		return d.Render()
	}
	return d.Template, nil
}

// Instance is a mounted component
type Instance struct {
	Def    *Definition
	Parent *Instance
	State  *reactive.Object
	Roots  []*Node

	scope *Scope
	owner *reactive.Owner
	r     *Renderer
}

// Scope returns the scope the instance's template is evaluated in
func (inst *Instance) Scope() *Scope {
	return inst.scope
}

// Dispose stops every effect of the instance
func (inst *Instance) Dispose() {
	inst.owner.Dispose()
}

// Call invokes a method or hook value with the instance state as this
func (inst *Instance) Call(fn goja.Value, args ...goja.Value) (goja.Value, error) {
	call, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, fmt.Errorf("%s is not a function", fn)
	}
	return call(inst.State.JS(), args...)
}

// hook runs a when-handler if the definition declares one
func (inst *Instance) hook(name string) {
	h, ok := inst.Def.When[name]
	if !ok {
		return
	}
	if _, err := inst.Call(inst.r.vm.ToValue(h)); err != nil {
		inst.r.logger().Printf("pupper: %s hook of %s failed: %v", name, inst.Def.Name, err)
	}
}

// lookupComponent resolves a component name through the local
// registrations of the enclosing instances, then the renderer's registry
func (r *Renderer) lookupComponent(from *Instance, name string) *Definition {
	for inst := from; inst != nil; inst = inst.Parent {
		if d, ok := inst.Def.Components[name]; ok {
			return d
		}
	}
	return r.components[name]
}

func (r *Renderer) componentNames(from *Instance) []string {
	seen := make(map[string]bool)
	for inst := from; inst != nil; inst = inst.Parent {
		for k := range inst.Def.Components {
			seen[k] = true
		}
	}
	for k := range r.components {
		seen[k] = true
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// instantiate creates an instance of def and walks its template. The
// returned instance's Roots are walked, ignored and ready for insertion.
func (r *Renderer) instantiate(def *Definition, props map[string]goja.Value, parent *Instance, owner *reactive.Owner, host *Node) (*Instance, error) {
	markup, err := def.markup()
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", def.Name, err)
	}
	nodes, err := ParseMarkup(markup)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template of %s: %w", def.Name, err)
	}

	inst := &Instance{
		Def:    def,
		Parent: parent,
		owner:  owner,
		r:      r,
	}

	var state *reactive.Object
	r.tracker.Untracked(func() {
		var data map[string]any
		if def.Data != nil {
			data = def.Data()
		}
		state = r.store.NewObject(data)
		inst.State = state

		names := make([]string, 0, len(def.Methods))
		for name := range def.Methods {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			state.Set(name, inst.bind(def.Methods[name]))
		}

		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			state.Set(k, props[k])
		}

		if parent != nil {
			state.Set("$parent", parent.State.JS())
		} else {
			state.Set("$parent", goja.Null())
		}
		state.Set("$refs", r.store.NewObject(nil).JS())
	})
	inst.scope = NewScope(r.globals.JS(), state.JS())

	inst.hook("created")

	frag := NewNode("template")
	frag.r = r
	frag.scope = inst.scope
	frag.component = inst
	frag.owner = owner
	if host != nil {
		frag.Parent = host.Parent
	}
	for _, n := range nodes {
		frag.AppendChild(n)
	}
	werr := r.Walk(frag)

	inst.Roots = append([]*Node(nil), frag.Children...)
	for _, n := range inst.Roots {
		n.scope = inst.scope
		n.component = inst
		if n.owner == nil {
			n.owner = owner.NewChild()
		}
		n.SetIgnored(true)
	}
	frag.SetChildren()
	frag.Parent = nil

	inst.bindEvents()
	for _, n := range inst.Roots {
		if n.IsElement() {
			r.tracker.Untracked(func() {
				state.Set("$el", r.elementValue(n))
			})
			break
		}
	}
	return inst, werr
}

// bind wraps a method so it always runs with the state as this
func (inst *Instance) bind(m any) goja.Value {
	v := inst.r.vm.ToValue(m)
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return v
	}
	return inst.r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		out, err := fn(inst.State.JS(), call.Arguments...)
		if ex, ok := err.(*goja.Exception); ok {
			panic(ex)
		} else if err != nil {
			panic(inst.r.vm.NewGoError(err))
		}
		return out
	})
}

// bindEvents attaches implementation events to the element roots
func (inst *Instance) bindEvents() {
	for _, ev := range inst.Def.Events {
		ev := ev
		for _, name := range ev.Covers {
			for _, root := range inst.Roots {
				if !root.IsElement() {
					continue
				}
				root.AddEventListener(name, func(e *vdom.Event) {
					m := inst.State.Get(ev.Method)
					if _, err := inst.Call(m, inst.r.eventValue(e)); err != nil {
						inst.r.logger().Printf("pupper: event %s of %s failed: %v", e.Type, inst.Def.Name, err)
					}
				})
			}
		}
	}
}

// componentDirective replaces a component marker with a new instance of
// the named component. x-bind: attributes are evaluated once as props;
// other plain attributes are passed as strings.
func componentDirective(r *Renderer, n *Node, inv *Invocation) Outcome {
	name := strings.TrimSpace(inv.Expression)
	parent := n.Component()
	def := r.lookupComponent(parent, name)
	if def == nil {
		if s := Suggest(name, r.componentNames(parent)); s != "" {
			r.logger().Printf("pupper: unknown component %q (did you mean %q?)", name, s)
		} else {
			r.logger().Printf("pupper: unknown component %q", name)
		}
		return Remove
	}

	props := make(map[string]goja.Value)
	r.tracker.Untracked(func() {
		for _, a := range n.Attrs {
			switch {
			case strings.HasPrefix(a.Name, "x-bind:"):
				props[strings.TrimPrefix(a.Name, "x-bind:")] = r.eval.Eval(vdom.PropToString(a.Value), inv.Scope)
			case isDirectiveAttr(a.Name):
			default:
				props[a.Name] = r.vm.ToValue(vdom.PropToString(a.Value))
			}
		}
	})

	owner := n.Owner().NewChild()
	inst, err := r.instantiate(def, props, parent, owner, n)
	if inst == nil {
		r.logger().Printf("pupper: %v", err)
		return Remove
	}
	if err != nil {
		r.logger().Printf("pupper: %v", err)
	}

	roots := inst.Roots
	if len(roots) == 0 {
		marker := NewCommentNode(" " + def.Name + " ")
		marker.SetIgnored(true)
		roots = []*Node{marker}
	}
	n.ReplaceWith(roots...)
	inst.hook("mounted")
	return Replaced
}

// Element is the handle scripts get for a node through $refs and $el
type Element struct {
	n *Node
}

// TagName returns the element's tag
func (e *Element) TagName() string { return e.n.Tag }

// TextContent returns the text of the element's subtree
func (e *Element) TextContent() string { return e.n.TextContent() }

// ElementID returns the ID of the rendered element, or 0
func (e *Element) ElementID() uint32 { return e.n.ElementID() }

// GetAttribute returns an attribute value, or nil
func (e *Element) GetAttribute(name string) any {
	v, _ := e.n.Attribute(name)
	return v
}

// SetAttribute sets an attribute and schedules a patch
func (e *Element) SetAttribute(name string, value any) {
	e.n.SetAttribute(name, value)
	e.n.SetDirty()
}

// Node returns the renderer node behind the handle
func (e *Element) Node() *Node { return e.n }

func (r *Renderer) elementValue(n *Node) goja.Value {
	return r.vm.ToValue(&Element{n: n})
}
