package renderer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
)

// Resolver loads the component a module imports by path
type Resolver func(path string) (*Definition, error)

var (
	reModuleImport  = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+([A-Za-z_$][\w$]*)[ \t]+from[ \t]+("[^"]*"|'[^']*')[ \t]*;?[ \t]*$`)
	reDefineImport  = regexp.MustCompile(`(?m)^[ \t]*import[ \t]*\{[ \t]*defineComponent[ \t]*\}[ \t]*from[ \t]+("[^"]*"|'[^']*')[ \t]*;?[ \t]*$`)
	reOtherImport   = regexp.MustCompile(`(?m)^[ \t]*import\b.*$`)
	reExportDefault = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+default[ \t]+`)
	reExportDecl    = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+(const|let|var|function|class)\b`)
)

// moduleSource turns a compiled component module into a function body
// returning the default export. Component imports call __pupperImport.
func moduleSource(code string) (string, error) {
	code = reDefineImport.ReplaceAllString(code, "")
	code = reModuleImport.ReplaceAllString(code, "var $1 = __pupperImport($2);")
	if m := reOtherImport.FindString(code); m != "" {
		return "", fmt.Errorf("unsupported import %q", strings.TrimSpace(m))
	}
	code = reExportDefault.ReplaceAllString(code, "${1}__pupperDefault = ")
	code = reExportDecl.ReplaceAllString(code, "$1$2")
	return "(function (defineComponent, __pupperImport) {\nvar __pupperDefault;\n" + code + "\nreturn __pupperDefault;\n})", nil
}

// moduleLoader converts the objects of one module into definitions
type moduleLoader struct {
	r       *Renderer
	resolve Resolver

	imported map[*goja.Object]*Definition
	defs     map[*goja.Object]*Definition
}

// LoadModule evaluates a compiled component module and returns its
// default export as a Definition. resolve loads imported components; it
// may be nil when the module imports none.
func (r *Renderer) LoadModule(code string, resolve Resolver) (def *Definition, err error) {
	src, err := moduleSource(code)
	if err != nil {
		return nil, err
	}
	v, err := r.vm.RunString(src)
	if err != nil {
		return nil, fmt.Errorf("failed to load module: %w", err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("failed to load module: not a function")
	}

	l := &moduleLoader{
		r:        r,
		resolve:  resolve,
		imported: make(map[*goja.Object]*Definition),
		defs:     make(map[*goja.Object]*Definition),
	}
	define := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return call.Argument(0)
	})
	exported, err := fn(goja.Undefined(), define, r.vm.ToValue(l.importComponent))
	if err != nil {
		return nil, fmt.Errorf("failed to run module: %w", err)
	}
	if goja.IsUndefined(exported) || goja.IsNull(exported) {
		return nil, fmt.Errorf("module has no default export")
	}

	defer func() {
		if rec := recover(); rec != nil {
			def, err = nil, fmt.Errorf("invalid component definition: %v", rec)
		}
	}()
	return l.definition(exported.ToObject(r.vm))
}

func (l *moduleLoader) importComponent(call goja.FunctionCall) goja.Value {
	path := call.Argument(0).String()
	if l.resolve == nil {
		panic(l.r.vm.NewGoError(fmt.Errorf("cannot import %q: no resolver", path)))
	}
	def, err := l.resolve(path)
	if err != nil {
		panic(l.r.vm.NewGoError(fmt.Errorf("cannot import %q: %w", path, err)))
	}
	marker := l.r.vm.NewObject()
	l.imported[marker] = def
	return marker
}

// definition converts a definition object. Objects referenced twice map
// to the same Definition.
func (l *moduleLoader) definition(obj *goja.Object) (*Definition, error) {
	if def, ok := l.imported[obj]; ok {
		return def, nil
	}
	if def, ok := l.defs[obj]; ok {
		return def, nil
	}
	vm := l.r.vm
	def := &Definition{}
	l.defs[obj] = def

	if v := obj.Get("name"); isSet(v) {
		def.Name = v.String()
	}
	if v := obj.Get("template"); isSet(v) {
		def.Template = v.String()
	}
	if v := obj.Get("style"); isSet(v) {
		def.Style = v.String()
	}

	if v := obj.Get("render"); isSet(v) {
		if render, ok := goja.AssertFunction(v); ok {
			def.Render = func() (string, error) {
				out, err := render(goja.Undefined(), vm.NewObject())
				if err != nil {
					return "", err
				}
				return out.String(), nil
			}
		} else {
			def.Template = v.String()
		}
	}

	if v := obj.Get("data"); isSet(v) {
		if data, ok := goja.AssertFunction(v); ok {
			def.Data = func() map[string]any {
				out, err := data(obj)
				if err != nil {
					l.r.logger().Printf("pupper: data of %s failed: %v", def.Name, err)
					return nil
				}
				m, _ := out.Export().(map[string]any)
				return m
			}
		} else {
			m, _ := v.Export().(map[string]any)
			def.Data = func() map[string]any { return copyMap(m) }
		}
	}

	def.Methods = members(vm, obj.Get("methods"))
	def.When = members(vm, obj.Get("when"))

	if v := obj.Get("events"); isSet(v) {
		events := v.ToObject(vm)
		n := int(events.Get("length").ToInteger())
		for i := 0; i < n; i++ {
			ev := events.Get(fmt.Sprint(i)).ToObject(vm)
			binding := EventBinding{Method: ev.Get("method").String()}
			if covers := ev.Get("covers"); isSet(covers) {
				c := covers.ToObject(vm)
				for j := 0; j < int(c.Get("length").ToInteger()); j++ {
					binding.Covers = append(binding.Covers, c.Get(fmt.Sprint(j)).String())
				}
			}
			def.Events = append(def.Events, binding)
		}
	}

	if v := obj.Get("components"); isSet(v) {
		comps := v.ToObject(vm)
		def.Components = make(map[string]*Definition)
		for _, key := range comps.Keys() {
			child, err := l.definition(comps.Get(key).ToObject(vm))
			if err != nil {
				return nil, err
			}
			if child.Name == "" {
				child.Name = key
			}
			def.Components[key] = child
		}
	}

	return def, nil
}

// members reads an object of functions
func members(vm *goja.Runtime, v goja.Value) map[string]any {
	if !isSet(v) {
		return nil
	}
	obj := v.ToObject(vm)
	out := make(map[string]any)
	for _, key := range obj.Keys() {
		out[key] = obj.Get(key)
	}
	return out
}

func isSet(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
