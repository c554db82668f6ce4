package renderer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/pupperjs/core-sub000/pkg/reactive"
	"github.com/pupperjs/core-sub000/pkg/vdom"
)

func registerBuiltins(reg *Registry) {
	reg.Register("ref", refDirective)
	reg.Register("id", idDirective)
	reg.Register("component", componentDirective)
	reg.Register("bind", bindDirective)
	reg.Register("if", ifDirective)
	reg.Register("for", forDirective)
	reg.Register("on", onDirective)
	reg.Register("text", textDirective)
	reg.Register("html", htmlDirective)
	reg.Register("show", showDirective)
	reg.Register("model", modelDirective)
}

// effect runs fn as an effect owned by n, so it stops once n is deleted
func (r *Renderer) effect(n *Node, fn func()) {
	r.tracker.RunWithOwner(n.Owner(), func() {
		r.tracker.Effect(fn)
	})
}

// refDirective registers the node in $refs under the attribute's value
func refDirective(r *Renderer, n *Node, inv *Invocation) Outcome {
	name := strings.TrimSpace(inv.Expression)
	if name == "" {
		return Next
	}
	refs, ok := r.eval.Eval("$refs", inv.Scope).(*goja.Object)
	if !ok {
		r.logger().Printf("pupper: x-ref %q used outside a component", name)
		return Next
	}
	if err := refs.Set(name, r.elementValue(n)); err != nil {
		r.logger().Printf("pupper: failed to set ref %q: %v", name, err)
	}
	return Next
}

// idDirective binds the element id
func idDirective(r *Renderer, n *Node, inv *Invocation) Outcome {
	r.effect(n, func() {
		v := r.eval.Eval(inv.Expression, inv.Scope)
		r.tracker.Untracked(func() {
			if IsNullish(v) {
				n.RemoveAttribute("id")
			} else {
				n.SetAttribute("id", v.String())
			}
			n.SetDirty()
		})
	})
	return Next
}

// bindDirective keeps an attribute in sync with an expression. Without an
// attribute name the expression must produce an object of attributes.
func bindDirective(r *Renderer, n *Node, inv *Invocation) Outcome {
	prop := inv.Value
	base := map[string]string{
		"class": strings.TrimSpace(n.AttributeString("class")),
		"style": strings.TrimSpace(n.AttributeString("style")),
	}
	var spread []string

	// structural directives clone n after bind has run, and every clone
	// binds again
	if !n.HasAttribute("x-if") && !n.HasAttribute("x-for") {
		n.RemoveAttribute(inv.Attribute)
	}

	r.effect(n, func() {
		v := r.eval.Eval(inv.Expression, inv.Scope)
		if prop != "" {
			r.tracker.Untracked(func() {
				r.applyBinding(n, prop, v, base[prop])
				n.SetDirty()
			})
			return
		}

		obj, ok := v.(*goja.Object)
		if !ok {
			return
		}
		keys := obj.Keys()
		values := make([]goja.Value, len(keys))
		for i, k := range keys {
			values[i] = obj.Get(k)
		}
		r.tracker.Untracked(func() {
			for _, old := range spread {
				n.RemoveAttribute(old)
			}
			spread = keys
			for i, k := range keys {
				r.applyBinding(n, k, values[i], base[k])
			}
			n.SetDirty()
		})
	})
	return Next
}

// applyBinding sets one bound attribute. false and nullish values remove
// the attribute; value and checked are mirrored into properties.
func (r *Renderer) applyBinding(n *Node, name string, v goja.Value, base string) {
	mirror := name == "value" || name == "checked" || name == "selected"

	if IsNullish(v) || v.StrictEquals(r.vm.ToValue(false)) {
		if base != "" {
			n.SetAttribute(name, base)
		} else {
			n.RemoveAttribute(name)
		}
		if mirror {
			if name == "value" {
				n.SetProperty(name, "")
			} else {
				n.SetProperty(name, false)
			}
		}
		return
	}

	var value any
	switch name {
	case "class":
		value = joinSpace(base, classString(v))
	case "style":
		value = joinStyle(base, styleString(v))
	default:
		value = r.store.Export(v)
		if _, isBool := value.(bool); !isBool {
			value = v.String()
		}
	}
	n.SetAttribute(name, value)
	if mirror {
		n.SetProperty(name, value)
	}
}

// classString flattens a class binding: strings pass through, arrays are
// joined and objects contribute their truthy keys.
func classString(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if obj.ClassName() == "Array" {
		var parts []string
		n := int(obj.Get("length").ToInteger())
		for i := 0; i < n; i++ {
			if item := obj.Get(strconv.Itoa(i)); Truthy(item) {
				parts = append(parts, classString(item))
			}
		}
		return strings.Join(parts, " ")
	}
	var parts []string
	for _, k := range obj.Keys() {
		if Truthy(obj.Get(k)) {
			parts = append(parts, k)
		}
	}
	return strings.Join(parts, " ")
}

func styleString(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	keys := obj.Keys()
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		if val := obj.Get(k); !IsNullish(val) {
			parts = append(parts, k+": "+val.String()+";")
		}
	}
	return strings.Join(parts, " ")
}

func joinSpace(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

func joinStyle(base, extra string) string {
	if base != "" && !strings.HasSuffix(base, ";") {
		base += ";"
	}
	return joinSpace(base, extra)
}

// structural replaces n with a comment placeholder and returns the
// placeholder together with the body to clone on every render: the
// children of a template, or n itself without the directive attribute.
func (r *Renderer) structural(n *Node, inv *Invocation) (*Node, []*Node) {
	var body []*Node
	if n.Tag == "template" {
		for _, c := range n.Children {
			body = append(body, c.Clone())
		}
	} else {
		t := n.Clone()
		t.RemoveAttribute(inv.Attribute)
		body = []*Node{t}
	}

	placeholder := NewCommentNode(" " + inv.Attribute + " ")
	placeholder.r = r
	placeholder.scope = n.scope
	placeholder.component = n.component
	placeholder.SetIgnored(true)
	n.ReplaceWith(placeholder)
	n.dispose()
	return placeholder, body
}

// renderClones walks clones in a detached fragment that resolves scope,
// component and owner like the placeholder would, then inserts them
// before the placeholder. The inserted nodes are returned.
func (r *Renderer) renderClones(placeholder *Node, owner *reactive.Owner, clones []*Node) []*Node {
	parent := placeholder.Parent
	if parent == nil {
		return nil
	}

	frag := NewNode("template")
	frag.r = r
	frag.Parent = parent
	frag.scope = placeholder.Scope()
	frag.component = placeholder.Component()
	frag.owner = owner
	for _, c := range clones {
		c.r = r
		c.owner = owner.NewChild()
		frag.AppendChild(c)
	}

	r.tracker.Untracked(func() {
		r.Walk(frag)
	})

	out := append([]*Node(nil), frag.Children...)
	for _, c := range out {
		c.SetIgnored(true)
		parent.InsertBefore(c, placeholder)
	}
	frag.Parent = nil
	return out
}

func cloneAll(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// ifDirective renders its body while the condition is truthy. The body
// is only rebuilt when the truthiness changes.
func ifDirective(r *Renderer, n *Node, inv *Invocation) Outcome {
	placeholder, body := r.structural(n, inv)

	var (
		rendered bool
		last     bool
		clones   []*Node
		owner    *reactive.Owner
	)
	r.effect(placeholder, func() {
		show := Truthy(r.eval.Eval(inv.Expression, inv.Scope))
		if rendered && show == last {
			return
		}
		rendered, last = true, show

		r.tracker.Untracked(func() {
			for _, c := range clones {
				c.Delete()
			}
			clones = nil
			if owner != nil {
				owner.Dispose()
				owner = nil
			}
			if show {
				owner = placeholder.Owner().NewChild()
				clones = r.renderClones(placeholder, owner, cloneAll(body))
			}
			if placeholder.Parent != nil {
				placeholder.Parent.SetDirty()
			}
		})
	})
	return Replaced
}

// forDirective renders one copy of its body per collection item. Every
// run replaces all copies from the previous run.
func forDirective(r *Renderer, n *Node, inv *Invocation) Outcome {
	header, err := ParseLoopHeader(inv.Expression)
	if err != nil {
		r.logger().Printf("pupper: %v", err)
		return Remove
	}
	placeholder, body := r.structural(n, inv)

	var (
		clones []*Node
		owner  *reactive.Owner
	)
	r.effect(placeholder, func() {
		collection := r.eval.Eval(header.Collection, inv.Scope)
		items := r.iterate(collection)

		r.tracker.Untracked(func() {
			for _, c := range clones {
				c.Delete()
			}
			clones = nil
			if owner != nil {
				owner.Dispose()
			}
			owner = placeholder.Owner().NewChild()

			var all []*Node
			for i, item := range items {
				layer := r.store.NewObject(map[string]any{
					header.Item:   item,
					header.Index:  i,
					"$collection": collection,
				})
				scope := inv.Scope.With(layer.JS())
				for _, b := range body {
					c := b.Clone()
					c.scope = scope
					all = append(all, c)
				}
			}
			clones = r.renderClones(placeholder, owner, all)
			if placeholder.Parent != nil {
				placeholder.Parent.SetDirty()
			}
		})
	})
	return Replaced
}

// iterate expands a loop collection: numbers count from 1, arrays yield
// their items and objects yield [key, value] pairs.
func (r *Renderer) iterate(v goja.Value) []goja.Value {
	if IsNullish(v) {
		return nil
	}
	if w, ok := r.store.Lookup(v); ok {
		switch c := w.(type) {
		case *reactive.Array:
			return c.Items()
		case *reactive.Object:
			keys := c.Keys()
			out := make([]goja.Value, len(keys))
			for i, k := range keys {
				out[i] = r.vm.NewArray(k, c.Get(k))
			}
			return out
		}
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		switch x := v.Export().(type) {
		case int64, float64:
			count := int(v.ToInteger())
			out := make([]goja.Value, 0, count)
			for i := 1; i <= count; i++ {
				out = append(out, r.vm.ToValue(i))
			}
			return out
		case string:
			var out []goja.Value
			for _, ch := range x {
				out = append(out, r.vm.ToValue(string(ch)))
			}
			return out
		}
		return nil
	}

	if obj.ClassName() == "Array" {
		n := int(obj.Get("length").ToInteger())
		out := make([]goja.Value, n)
		for i := 0; i < n; i++ {
			out[i] = obj.Get(strconv.Itoa(i))
		}
		return out
	}
	keys := obj.Keys()
	out := make([]goja.Value, len(keys))
	for i, k := range keys {
		out[i] = r.vm.NewArray(k, obj.Get(k))
	}
	return out
}

// eventValue builds the $event object handlers see
func (r *Renderer) eventValue(e *vdom.Event) *goja.Object {
	ev := r.vm.NewObject()
	_ = ev.Set("type", e.Type)
	_ = ev.Set("detail", e.Detail)
	_ = ev.Set("target", e.Target)
	_ = ev.Set("currentTarget", e.CurrentTarget)
	_ = ev.Set("preventDefault", func() { e.PreventDefault() })
	_ = ev.Set("stopPropagation", func() { e.StopPropagation() })
	return ev
}

// onDirective attaches an event listener. The handler runs with $event in
// scope; when it evaluates to a function, that function is called with
// the event.
func onDirective(r *Renderer, n *Node, inv *Invocation) Outcome {
	event := inv.Value
	if event == "" {
		r.logger().Printf("pupper: x-on without an event name on <%s>", n.Tag)
		return Next
	}

	fired := false
	n.AddEventListener(event, func(e *vdom.Event) {
		if inv.HasModifier("self") && e.Target != e.CurrentTarget {
			return
		}
		if inv.HasModifier("once") {
			if fired {
				return
			}
			fired = true
		}
		if inv.HasModifier("prevent") {
			e.PreventDefault()
		}
		if inv.HasModifier("stop") {
			e.StopPropagation()
		}

		ev := r.eventValue(e)
		layer := r.vm.NewObject()
		_ = layer.Set("$event", ev)
		v := r.eval.Exec(inv.Expression, inv.Scope.With(layer))
		if fn, ok := goja.AssertFunction(v); ok {
			if _, err := fn(r.thisFor(n), ev); err != nil {
				r.logger().Printf("pupper: %s handler failed: %v", event, err)
			}
		}
	})
	return Next
}

// thisFor returns the receiver for handlers declared on n
func (r *Renderer) thisFor(n *Node) goja.Value {
	if inst := n.Component(); inst != nil {
		return inst.State.JS()
	}
	return goja.Undefined()
}

// textDirective keeps the node's text in sync with an expression.
// Nullish results are reported and leave the previous text in place.
func textDirective(r *Renderer, n *Node, inv *Invocation) Outcome {
	r.effect(n, func() {
		v := r.eval.Eval(inv.Expression, inv.Scope)
		if !Truthy(v) {
			r.logger().Printf("pupper: x-text %q evaluated to falsy value %v, keeping content", inv.Expression, v)
			return
		}
		text := v.String()
		r.tracker.Untracked(func() {
			setText(n, text)
			n.SetDirty()
		})
	})
	return Next
}

func setText(n *Node, text string) {
	if n.IsText() {
		n.Text = text
		return
	}
	if len(n.Children) == 1 && n.Children[0].IsText() {
		n.Children[0].Text = text
		return
	}
	for _, c := range n.Children {
		c.dispose()
	}
	t := NewTextNode(text)
	t.r = n.r
	n.SetChildren(t)
}

// htmlDirective renders an expression as markup, or as text when the node
// carries x-escape. The inserted content is not walked for directives.
func htmlDirective(r *Renderer, n *Node, inv *Invocation) Outcome {
	escape := n.HasAttribute("x-escape")
	r.effect(n, func() {
		v := r.eval.Eval(inv.Expression, inv.Scope)
		markup := ""
		if !IsNullish(v) {
			markup = v.String()
		}

		r.tracker.Untracked(func() {
			var kids []*Node
			if escape {
				kids = []*Node{NewTextNode(markup)}
			} else {
				parsed, err := ParseMarkup(markup)
				if err != nil {
					r.logger().Printf("pupper: x-html %q: %v", inv.Expression, err)
					return
				}
				kids = parsed
			}
			for _, c := range n.Children {
				c.dispose()
			}
			for _, k := range kids {
				k.adopt(r)
				k.SetIgnored(true)
			}
			n.SetChildren(kids...)
			n.SetDirty()
		})
	})
	return Next
}

// showDirective hides the element with display: none while the expression
// is falsy.
func showDirective(r *Renderer, n *Node, inv *Invocation) Outcome {
	base := strings.TrimSpace(n.AttributeString("style"))
	r.effect(n, func() {
		visible := Truthy(r.eval.Eval(inv.Expression, inv.Scope))
		r.tracker.Untracked(func() {
			style := base
			if !visible {
				style = joinStyle(base, "display: none;")
			}
			if style == "" {
				n.RemoveAttribute("style")
			} else {
				n.SetAttribute("style", style)
			}
			n.SetDirty()
		})
	})
	return Next
}

// modelDirective binds a form control both ways: the expression drives
// the control's value property and input events assign back to it.
func modelDirective(r *Renderer, n *Node, inv *Invocation) Outcome {
	typ := strings.ToLower(n.AttributeString("type"))
	checkbox := n.Tag == "input" && typ == "checkbox"
	radio := n.Tag == "input" && typ == "radio"

	event := "input"
	if checkbox || radio || n.Tag == "select" || inv.HasModifier("lazy") {
		event = "change"
	}

	r.effect(n, func() {
		v := r.eval.Eval(inv.Expression, inv.Scope)
		r.tracker.Untracked(func() {
			switch {
			case checkbox:
				n.SetProperty("checked", Truthy(v))
			case radio:
				n.SetProperty("checked", !IsNullish(v) && v.String() == n.AttributeString("value"))
			default:
				value := ""
				if !IsNullish(v) {
					value = v.String()
				}
				n.SetProperty("value", value)
			}
			n.SetDirty()
		})
	})

	n.AddEventListener(event, func(e *vdom.Event) {
		var value any = e.Detail
		switch {
		case checkbox:
			if b, ok := value.(bool); ok {
				value = b
			} else {
				checked, _ := n.Properties["checked"].(bool)
				value = !checked
			}
		case radio:
			value = n.AttributeString("value")
		case inv.HasModifier("number"):
			if f, err := strconv.ParseFloat(strings.TrimSpace(vdom.PropToString(value)), 64); err == nil {
				value = f
			}
		case inv.HasModifier("trim"):
			value = strings.TrimSpace(vdom.PropToString(value))
		}
		r.eval.Assign(inv.Expression, inv.Scope, r.vm.ToValue(value))
	})
	return Next
}
