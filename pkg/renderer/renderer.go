// Package renderer binds markup to reactive state.
//
// A Renderer parses markup into a tree of Nodes, walks the tree applying
// x- directives, and keeps an in-memory document in sync with the tree by
// diffing virtual nodes whenever a directive marks a node dirty. Patches
// are batched by the scheduler: one per node per tick.
package renderer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dop251/goja"
	"github.com/pupperjs/core-sub000/pkg/reactive"
	"github.com/pupperjs/core-sub000/pkg/renderer/dom"
	"github.com/pupperjs/core-sub000/pkg/scheduler"
	"github.com/pupperjs/core-sub000/pkg/vdom"
)

// debugLog is set by the debug package
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Config configures a Renderer
type Config struct {
	// Logger receives evaluation warnings; nil means log.Default()
	Logger *log.Logger

	// Frame is the tick pacing of Run; zero means the scheduler default
	Frame time.Duration
}

// Renderer is one application instance: a JavaScript runtime, a reactive
// store, the root state and the document it renders into.
type Renderer struct {
	vm         *goja.Runtime
	tracker    *reactive.Tracker
	store      *reactive.Store
	eval       *Evaluator
	doc        *dom.Document
	sched      *scheduler.Scheduler
	directives *Registry
	components map[string]*Definition

	root    *Node
	globals *reactive.Object
	state   *reactive.Object
	walk    *walker
	log     *log.Logger
	mounted bool
}

// New creates a renderer with an empty document
func New(cfg Config) *Renderer {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	tracker := reactive.NewTracker()
	tracker.Logger = logger

	sched := scheduler.NewScheduler()
	sched.Frame = cfg.Frame
	sched.SetErrorHandler(func(t scheduler.Target, err interface{}) {
		tag := "?"
		if n, ok := t.(*Node); ok {
			tag = n.Tag
		}
		logger.Printf("pupper: patch of <%s> failed: %v", tag, err)
	})

	r := &Renderer{
		vm:         vm,
		tracker:    tracker,
		store:      reactive.NewStore(vm, tracker),
		eval:       NewEvaluator(vm, logger),
		doc:        dom.NewDocument(),
		sched:      sched,
		directives: NewRegistry(logger),
		components: make(map[string]*Definition),
		log:        logger,
	}

	r.root = NewNode("body")
	r.root.r = r
	r.root.vnode = r.doc.BodyVNode()
	r.root.owner = tracker.NewOwner()

	r.globals = r.store.NewObject(nil)
	r.globals.Set("$store", r.globals.JS())
	r.globals.Set("$global", r.globals.JS())
	r.installConsole()
	return r
}

func (r *Renderer) installConsole() {
	console := r.vm.NewObject()
	logf := func(level string) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, 0, len(call.Arguments)+1)
			args = append(args, "pupper: console."+level+":")
			for _, a := range call.Arguments {
				args = append(args, a.String())
			}
			r.log.Println(args...)
			return goja.Undefined()
		}
	}
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(level, logf(level))
	}
	_ = r.vm.Set("console", console)
}

func (r *Renderer) logger() *log.Logger {
	return r.log
}

// Runtime returns the JavaScript runtime expressions run in
func (r *Renderer) Runtime() *goja.Runtime {
	return r.vm
}

// Store returns the reactive store bound to the runtime
func (r *Renderer) Store() *reactive.Store {
	return r.store
}

// Tracker returns the dependency tracker
func (r *Renderer) Tracker() *reactive.Tracker {
	return r.tracker
}

// Document returns the document the renderer patches
func (r *Renderer) Document() *dom.Document {
	return r.doc
}

// Scheduler returns the patch scheduler
func (r *Renderer) Scheduler() *scheduler.Scheduler {
	return r.sched
}

// Directives returns the directive registry
func (r *Renderer) Directives() *Registry {
	return r.directives
}

// Root returns the root node, standing for the document body
func (r *Renderer) Root() *Node {
	return r.root
}

// Globals returns the application-wide store, visible as $store
func (r *Renderer) Globals() *reactive.Object {
	return r.globals
}

// State returns the root state of the last Mount
func (r *Renderer) State() *reactive.Object {
	return r.state
}

// Register makes a component available to x-component markers
func (r *Renderer) Register(def *Definition) {
	r.components[def.Name] = def
}

// Mount renders markup with data as its root state
func (r *Renderer) Mount(markup string, data map[string]any) error {
	nodes, err := ParseMarkup(markup)
	if err != nil {
		return err
	}

	r.tracker.Untracked(func() {
		r.state = r.store.NewObject(data)
		r.state.Set("$refs", r.store.NewObject(nil).JS())
	})
	r.root.scope = NewScope(r.globals.JS(), r.state.JS())
	for _, n := range nodes {
		r.root.AppendChild(n)
	}

	werr := r.Walk(r.root)
	if err := r.render(); err != nil {
		return err
	}
	return werr
}

// MountComponent renders a component instance as the body's content
func (r *Renderer) MountComponent(def *Definition, props map[string]any) (*Instance, error) {
	values := make(map[string]goja.Value, len(props))
	for k, v := range props {
		values[k] = r.store.FromGo(v)
	}
	inst, err := r.instantiate(def, values, nil, r.root.Owner().NewChild(), nil)
	if inst == nil {
		return nil, err
	}
	for _, n := range inst.Roots {
		r.root.AppendChild(n)
	}
	inst.hook("mounted")
	if rerr := r.render(); rerr != nil {
		return inst, rerr
	}
	return inst, err
}

// render patches the body after a mount and opens the scheduler
func (r *Renderer) render() error {
	if err := r.patch(r.root); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	r.mounted = true
	r.sched.SetReady(true)
	return nil
}

// Flush applies every pending patch
func (r *Renderer) Flush() {
	r.sched.Flush()
}

// Dispatch delivers an event to the element n was rendered into and
// flushes the resulting patches. It returns false when a handler
// prevented the default action.
func (r *Renderer) Dispatch(n *Node, event string, detail any) (bool, error) {
	id := n.ElementID()
	if id == 0 {
		return false, fmt.Errorf("<%s> is not rendered", n.Tag)
	}
	return r.DispatchID(id, event, detail)
}

// DispatchID is Dispatch for a document node ID
func (r *Renderer) DispatchID(id uint32, event string, detail any) (bool, error) {
	ok, err := r.doc.Dispatch(id, vdom.NewEvent(event, detail))
	r.Flush()
	return ok, err
}

// Post queues fn to run on the goroutine executing Run. The runtime is not
// safe for concurrent use, so other goroutines reach it through Post.
func (r *Renderer) Post(fn func()) {
	r.sched.Post(fn)
}

// Run flushes patches every frame until ctx is done
func (r *Renderer) Run(ctx context.Context) error {
	return r.sched.Run(ctx)
}

// HTML serializes the current document body
func (r *Renderer) HTML() string {
	return r.doc.HTML()
}

// Dispose stops every effect and detaches the tree
func (r *Renderer) Dispose() {
	r.sched.SetReady(false)
	r.root.dispose()
	for _, c := range append([]*Node(nil), r.root.Children...) {
		c.detach()
	}
	r.mounted = false
}
