// Package reactive implements fine-grained dependency tracking.
//
// An Effect records every tracked read it performs while running; a later
// write to any of those (target, key) pairs re-runs it. Reads and writes go
// through Cells, or through Objects and Arrays, which expose the same
// contract to the JavaScript engine that evaluates template expressions.
//
// A Tracker is not safe for concurrent use. The renderer drives it from a
// single goroutine, mirroring the cooperative scheduling of the browser.
package reactive

import (
	"log"
)

// DefaultMaxDepth bounds nested write dispatch before a cycle is reported
const DefaultMaxDepth = 100

// debugLog is set by the debug package
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

type depKey struct {
	target any
	key    string
}

// subscribers is an ordered set of effects
type subscribers struct {
	list  []*Effect
	index map[*Effect]struct{}
}

func (s *subscribers) add(e *Effect) bool {
	if _, ok := s.index[e]; ok {
		return false
	}
	s.index[e] = struct{}{}
	s.list = append(s.list, e)
	return true
}

func (s *subscribers) remove(e *Effect) {
	if _, ok := s.index[e]; !ok {
		return
	}
	delete(s.index, e)
	for i, x := range s.list {
		if x == e {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return
		}
	}
}

// Tracker owns the dependency side-table and the current-effect stack
type Tracker struct {
	subs  map[depKey]*subscribers
	stack []*Effect // nil entries mark untracked regions
	owner *Owner
	root  *Owner
	depth int
	batch *batch

	// MaxDepth bounds nested write dispatch; zero means DefaultMaxDepth
	MaxDepth int

	// Logger receives cycle reports; nil means log.Default()
	Logger *log.Logger
}

// NewTracker creates a tracker with an empty root owner
func NewTracker() *Tracker {
	t := &Tracker{
		subs: make(map[depKey]*subscribers),
	}
	t.root = &Owner{t: t}
	t.owner = t.root
	return t
}

// Root returns the owner every top-level effect belongs to
func (t *Tracker) Root() *Owner {
	return t.root
}

// Current returns the effect currently tracking reads, if any
func (t *Tracker) Current() *Effect {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}

// Track subscribes the current effect to (target, key)
func (t *Tracker) Track(target any, key string) {
	e := t.Current()
	if e == nil || e.disposed {
		return
	}
	k := depKey{target, key}
	s := t.subs[k]
	if s == nil {
		s = &subscribers{index: make(map[*Effect]struct{})}
		t.subs[k] = s
	}
	if s.add(e) {
		e.deps = append(e.deps, k)
	}
}

// Trigger re-runs every effect subscribed to (target, key), in
// subscription order, before returning.
func (t *Tracker) Trigger(target any, key string) {
	s := t.subs[depKey{target, key}]
	if s == nil || len(s.list) == 0 {
		return
	}
	effects := append([]*Effect(nil), s.list...)

	if t.batch != nil {
		for _, e := range effects {
			t.batch.add(e)
		}
		return
	}

	maxDepth := t.MaxDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	if t.depth >= maxDepth {
		t.logger().Printf("reactive: write to %q exceeded %d nested dispatches; dependency cycle suspected", key, maxDepth)
		return
	}

	t.depth++
	defer func() { t.depth-- }()

	if debugLog != nil {
		debugLog("[Reactive] Trigger", key, "->", len(effects), "effects")
	}
	for _, e := range effects {
		e.Run()
	}
}

// Effect creates an effect owned by the current owner and runs it once
func (t *Tracker) Effect(fn func()) *Effect {
	e := &Effect{t: t, fn: fn, owner: t.owner}
	if t.owner.disposed {
		e.disposed = true
		return e
	}
	t.owner.effects = append(t.owner.effects, e)
	e.Run()
	return e
}

// Untracked runs fn without a current effect
func (t *Tracker) Untracked(fn func()) {
	t.stack = append(t.stack, nil)
	defer func() { t.stack = t.stack[:len(t.stack)-1] }()
	fn()
}

// NewOwner creates a disposal scope under the current owner
func (t *Tracker) NewOwner() *Owner {
	o := &Owner{t: t, parent: t.owner}
	t.owner.children = append(t.owner.children, o)
	return o
}

// Owner returns the owner new effects are attached to
func (t *Tracker) Owner() *Owner {
	return t.owner
}

// RunWithOwner runs fn untracked with o as the current owner, so effects
// created by fn are disposed together with o.
func (t *Tracker) RunWithOwner(o *Owner, fn func()) {
	prev := t.owner
	t.owner = o
	defer func() { t.owner = prev }()
	t.Untracked(fn)
}

// Batch defers notifications raised by fn until it returns; each affected
// effect then runs once, in first-notification order.
func (t *Tracker) Batch(fn func()) {
	if t.batch != nil {
		fn()
		return
	}
	b := &batch{seen: make(map[*Effect]struct{})}
	t.batch = b
	func() {
		defer func() { t.batch = nil }()
		fn()
	}()
	for _, e := range b.queue {
		e.Run()
	}
}

func (t *Tracker) unsubscribe(e *Effect) {
	for _, k := range e.deps {
		if s := t.subs[k]; s != nil {
			s.remove(e)
			if len(s.list) == 0 {
				delete(t.subs, k)
			}
		}
	}
	e.deps = e.deps[:0]
}

func (t *Tracker) logger() *log.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return log.Default()
}

// SubscriberCount reports how many effects depend on (target, key)
func (t *Tracker) SubscriberCount(target any, key string) int {
	if s := t.subs[depKey{target, key}]; s != nil {
		return len(s.list)
	}
	return 0
}

type batch struct {
	queue []*Effect
	seen  map[*Effect]struct{}
}

func (b *batch) add(e *Effect) {
	if _, ok := b.seen[e]; ok {
		return
	}
	b.seen[e] = struct{}{}
	b.queue = append(b.queue, e)
}

// Effect is a tracked computation
type Effect struct {
	t        *Tracker
	fn       func()
	deps     []depKey
	owner    *Owner
	running  bool
	disposed bool
	runs     int
}

// Run re-executes the effect, replacing its dependencies with the reads of
// this run. A running effect is not re-entered by writes it performs.
func (e *Effect) Run() {
	if e.disposed || e.running {
		return
	}
	e.running = true
	e.t.unsubscribe(e)
	e.t.stack = append(e.t.stack, e)
	defer func() {
		e.t.stack = e.t.stack[:len(e.t.stack)-1]
		e.running = false
	}()
	e.runs++
	e.fn()
}

// Runs returns how many times the effect has executed
func (e *Effect) Runs() int {
	return e.runs
}

// Dispose unsubscribes the effect; it never runs again
func (e *Effect) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.t.unsubscribe(e)
}

// Disposed reports whether the effect was disposed
func (e *Effect) Disposed() bool {
	return e.disposed
}

// Owner is a disposal scope for effects and cleanup callbacks
type Owner struct {
	t        *Tracker
	parent   *Owner
	effects  []*Effect
	children []*Owner
	cleanups []func()
	disposed bool
}

// NewChild creates a disposal scope under o
func (o *Owner) NewChild() *Owner {
	c := &Owner{t: o.t, parent: o}
	if o.disposed {
		c.disposed = true
		return c
	}
	o.children = append(o.children, c)
	return c
}

// OnCleanup registers fn to run when the owner is disposed
func (o *Owner) OnCleanup(fn func()) {
	if o.disposed {
		fn()
		return
	}
	o.cleanups = append(o.cleanups, fn)
}

// Dispose disposes child owners, then the owner's effects, then runs its
// cleanups in reverse registration order.
func (o *Owner) Dispose() {
	if o.disposed {
		return
	}
	o.disposed = true
	for _, c := range o.children {
		c.Dispose()
	}
	for _, e := range o.effects {
		e.Dispose()
	}
	for i := len(o.cleanups) - 1; i >= 0; i-- {
		o.cleanups[i]()
	}
	o.children, o.effects, o.cleanups = nil, nil, nil
	if p := o.parent; p != nil && !p.disposed {
		for i, c := range p.children {
			if c == o {
				p.children = append(p.children[:i:i], p.children[i+1:]...)
				break
			}
		}
	}
}

// Disposed reports whether the owner was disposed
func (o *Owner) Disposed() bool {
	return o.disposed
}
