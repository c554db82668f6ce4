package renderer

import (
	"fmt"
	"log"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Scope is an ordered stack of binding layers. Lookups search from the
// innermost layer outwards; assignments to unknown names go to the state
// layer.
type Scope struct {
	layers []*goja.Object
	state  int
}

// NewScope creates a scope from layers, outermost first. The last layer
// receives assignments to names no layer defines.
func NewScope(layers ...*goja.Object) *Scope {
	return &Scope{layers: layers, state: len(layers) - 1}
}

// With returns a scope extended by an inner layer
func (s *Scope) With(layer *goja.Object) *Scope {
	if s == nil {
		return NewScope(layer)
	}
	layers := make([]*goja.Object, 0, len(s.layers)+1)
	layers = append(layers, s.layers...)
	layers = append(layers, layer)
	return &Scope{layers: layers, state: s.state}
}

// Layers returns the layers, outermost first
func (s *Scope) Layers() []*goja.Object {
	if s == nil {
		return nil
	}
	return s.layers
}

// scopeView exposes a flattened scope to the engine as one object. Names
// no layer defines still resolve to the view unless the global object
// has them, so a bare assignment lands in the state layer instead of
// creating a global.
type scopeView struct {
	scope  *Scope
	global *goja.Object
}

var _ goja.DynamicObject = (*scopeView)(nil)

func (v *scopeView) find(key string) (*goja.Object, goja.Value) {
	layers := v.scope.Layers()
	for i := len(layers) - 1; i >= 0; i-- {
		if val := layers[i].Get(key); val != nil {
			return layers[i], val
		}
	}
	return nil, nil
}

func (v *scopeView) Get(key string) goja.Value {
	_, val := v.find(key)
	return val
}

func (v *scopeView) Set(key string, val goja.Value) bool {
	layer, _ := v.find(key)
	if layer == nil {
		layers := v.scope.Layers()
		if len(layers) == 0 {
			return false
		}
		layer = layers[v.scope.state]
	}
	return layer.Set(key, val) == nil
}

func (v *scopeView) Has(key string) bool {
	if layer, _ := v.find(key); layer != nil {
		return true
	}
	if strings.HasPrefix(key, "$$") {
		return false
	}
	return v.global == nil || v.global.Get(key) == nil
}

func (v *scopeView) Delete(key string) bool {
	if layer, _ := v.find(key); layer != nil {
		return layer.Delete(key) == nil
	}
	return true
}

func (v *scopeView) Keys() []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, layer := range v.scope.Layers() {
		for _, k := range layer.Keys() {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// programs caches compiled evaluator sources process-wide; a Program can
// run on any runtime.
var programs = struct {
	sync.Mutex
	m map[string]*goja.Program
}{m: make(map[string]*goja.Program)}

var awaitPattern = regexp.MustCompile(`\bawait\b`)

var promiseType = reflect.TypeOf((*goja.Promise)(nil))

type evalMode int

const (
	modeExpression evalMode = iota
	modeStatement
	modeAssign
)

func evaluatorSource(expr string, mode evalMode) string {
	async := ""
	if awaitPattern.MatchString(expr) {
		async = "async "
	}
	switch mode {
	case modeStatement:
		return "(" + async + "function($$scope){ with($$scope){ " + expr + "\n} })"
	case modeAssign:
		return "(function($$scope, $$value){ with($$scope){ (" + expr + ") = $$value; } })"
	}
	return "(" + async + "function($$scope){ with($$scope){ return (" + expr + "\n); } })"
}

func compileProgram(src string) (*goja.Program, error) {
	programs.Lock()
	defer programs.Unlock()
	if p, ok := programs.m[src]; ok {
		return p, nil
	}
	p, err := goja.Compile("", src, false)
	if err != nil {
		return nil, err
	}
	programs.m[src] = p
	return p, nil
}

// Evaluator runs template expressions against scopes on one runtime.
// Compiled functions are memoized by expression text.
type Evaluator struct {
	vm     *goja.Runtime
	fns    map[string]goja.Callable
	logger *log.Logger
}

// NewEvaluator creates an evaluator for vm
func NewEvaluator(vm *goja.Runtime, logger *log.Logger) *Evaluator {
	if logger == nil {
		logger = log.Default()
	}
	return &Evaluator{vm: vm, fns: make(map[string]goja.Callable), logger: logger}
}

func (e *Evaluator) function(expr string, mode evalMode) (goja.Callable, error) {
	src := evaluatorSource(expr, mode)
	if fn, ok := e.fns[src]; ok {
		return fn, nil
	}
	prg, err := compileProgram(src)
	if err != nil {
		return nil, err
	}
	v, err := e.vm.RunProgram(prg)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("expression %q did not compile to a function", expr)
	}
	e.fns[src] = fn
	return fn, nil
}

func (e *Evaluator) view(scope *Scope) *goja.Object {
	return e.vm.NewDynamicObject(&scopeView{scope: scope, global: e.vm.GlobalObject()})
}

// Eval evaluates expr against scope. Failures are logged and yield
// undefined.
func (e *Evaluator) Eval(expr string, scope *Scope) goja.Value {
	v, err := e.Try(expr, scope)
	if err != nil {
		e.logger.Printf("pupper: failed to evaluate %q: %v", expr, err)
		return goja.Undefined()
	}
	return v
}

// Try evaluates expr against scope and returns any error
func (e *Evaluator) Try(expr string, scope *Scope) (goja.Value, error) {
	fn, err := e.function(expr, modeExpression)
	if err != nil {
		return nil, err
	}
	v, err := fn(goja.Undefined(), e.view(scope))
	if err != nil {
		return nil, err
	}
	return e.settle(v)
}

// Exec runs code as an expression, or as statements when it is not one.
// It is used for event handlers.
func (e *Evaluator) Exec(code string, scope *Scope) goja.Value {
	fn, err := e.function(code, modeExpression)
	if err != nil {
		fn, err = e.function(code, modeStatement)
	}
	if err != nil {
		e.logger.Printf("pupper: failed to compile %q: %v", code, err)
		return goja.Undefined()
	}
	v, err := fn(goja.Undefined(), e.view(scope))
	if err == nil {
		v, err = e.settle(v)
	}
	if err != nil {
		e.logger.Printf("pupper: failed to run %q: %v", code, err)
		return goja.Undefined()
	}
	return v
}

// Assign stores value into the assignable expression target
func (e *Evaluator) Assign(target string, scope *Scope, value goja.Value) {
	fn, err := e.function(target, modeAssign)
	if err == nil {
		_, err = fn(goja.Undefined(), e.view(scope), value)
	}
	if err != nil {
		e.logger.Printf("pupper: failed to assign to %q: %v", target, err)
	}
}

// settle unwraps a settled promise
func (e *Evaluator) settle(v goja.Value) (goja.Value, error) {
	if v == nil {
		return goja.Undefined(), nil
	}
	obj, ok := v.(*goja.Object)
	if !ok || obj.ExportType() != promiseType {
		return v, nil
	}
	p := obj.Export().(*goja.Promise)
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		return nil, fmt.Errorf("promise rejected: %v", p.Result())
	}
	e.logger.Printf("pupper: expression result is still pending; treating it as undefined")
	return goja.Undefined(), nil
}

// Truthy applies JavaScript truthiness to v
func Truthy(v goja.Value) bool {
	if v == nil {
		return false
	}
	return v.ToBoolean()
}

// IsNullish reports whether v is undefined or null
func IsNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}
