package reactive

import (
	"reflect"
	"sort"
	"strconv"

	"github.com/dop251/goja"
)

// keysKey is the dependency key for the key set of an Object
const keysKey = "$keys"

var mapType = reflect.TypeOf(map[string]any(nil))

// Store converts values into reactive Objects and Arrays bound to one
// JavaScript runtime and one Tracker.
type Store struct {
	vm       *goja.Runtime
	t        *Tracker
	wrappers map[*goja.Object]any
	objProto *goja.Object
	arrProto *goja.Object
}

// NewStore creates a store for vm
func NewStore(vm *goja.Runtime, t *Tracker) *Store {
	return &Store{
		vm:       vm,
		t:        t,
		wrappers: make(map[*goja.Object]any),
		objProto: vm.NewObject().Prototype(),
		arrProto: vm.NewArray().Prototype(),
	}
}

// Runtime returns the JavaScript runtime the store is bound to
func (s *Store) Runtime() *goja.Runtime {
	return s.vm
}

// Tracker returns the tracker the store reports reads and writes to
func (s *Store) Tracker() *Tracker {
	return s.t
}

// NewObject creates a reactive object with the given initial properties
func (s *Store) NewObject(init map[string]any) *Object {
	o := &Object{s: s, cells: make(map[string]*Cell[goja.Value])}
	for _, k := range sortedMapKeys(init) {
		o.put(k, s.FromGo(init[k]))
	}
	return o
}

// NewArray creates a reactive array holding items
func (s *Store) NewArray(items ...goja.Value) *Array {
	a := &Array{s: s, items: make([]goja.Value, len(items))}
	for i, v := range items {
		a.items[i] = s.Wrap(v)
	}
	return a
}

// FromGo converts a Go value into a JavaScript value, wrapping maps and
// slices reactively.
func (s *Store) FromGo(v any) goja.Value {
	switch t := v.(type) {
	case goja.Value:
		return s.Wrap(t)
	case *Object:
		return t.JS()
	case *Array:
		return t.JS()
	case map[string]any:
		return s.NewObject(t).JS()
	case []any:
		items := make([]goja.Value, len(t))
		for i, item := range t {
			items[i] = s.FromGo(item)
		}
		return s.NewArray(items...).JS()
	}
	return s.Wrap(s.vm.ToValue(v))
}

// Wrap returns v itself for primitives, functions, class instances and
// values that are already reactive; plain objects and arrays are copied
// into reactive containers, recursively.
func (s *Store) Wrap(v goja.Value) goja.Value {
	obj, ok := v.(*goja.Object)
	if !ok || obj == nil {
		return v
	}
	if _, reactive := s.wrappers[obj]; reactive {
		return v
	}
	proto := obj.Prototype()
	switch obj.ClassName() {
	case "Array":
		if proto != nil && !proto.SameAs(s.arrProto) {
			return v
		}
		n := int(obj.Get("length").ToInteger())
		items := make([]goja.Value, n)
		for i := 0; i < n; i++ {
			items[i] = obj.Get(strconv.Itoa(i))
		}
		return s.NewArray(items...).JS()
	case "Object":
		if proto != nil && !proto.SameAs(s.objProto) {
			return v
		}
		if obj.ExportType() != mapType {
			return v
		}
		o := &Object{s: s, cells: make(map[string]*Cell[goja.Value])}
		for _, k := range obj.Keys() {
			o.put(k, s.Wrap(obj.Get(k)))
		}
		return o.JS()
	}
	return v
}

// Lookup returns the reactive container behind a wrapped JavaScript value
func (s *Store) Lookup(v goja.Value) (any, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || obj == nil {
		return nil, false
	}
	w, ok := s.wrappers[obj]
	return w, ok
}

// Export converts a JavaScript value back into plain Go values
func (s *Store) Export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if w, ok := s.Lookup(v); ok {
		switch c := w.(type) {
		case *Object:
			return c.Export()
		case *Array:
			return c.Export()
		}
	}
	return v.Export()
}

// Object is a reactive key-value container. Every property is a Cell, so
// reads inside an effect subscribe it to exactly that property.
type Object struct {
	s     *Store
	cells map[string]*Cell[goja.Value]
	keys  []string
	js    *goja.Object
}

var _ goja.DynamicObject = (*Object)(nil)

func (o *Object) cell(key string) *Cell[goja.Value] {
	c := o.cells[key]
	if c == nil {
		c = NewCell[goja.Value](o.s.t, nil)
		o.cells[key] = c
	}
	return c
}

// put stores a value without notifying
func (o *Object) put(key string, v goja.Value) {
	c := o.cell(key)
	if c.value == nil {
		o.keys = append(o.keys, key)
	}
	c.value = v
}

// JS returns the object as seen by the JavaScript runtime
func (o *Object) JS() *goja.Object {
	if o.js == nil {
		o.js = o.s.vm.NewDynamicObject(o)
		o.s.wrappers[o.js] = o
	}
	return o.js
}

// Get implements goja.DynamicObject
func (o *Object) Get(key string) goja.Value {
	return o.cell(key).Get()
}

// Set implements goja.DynamicObject. Plain object and array values are
// wrapped before they are stored; subscribers run before Set returns.
func (o *Object) Set(key string, val goja.Value) bool {
	if val == nil {
		val = goja.Undefined()
	}
	c := o.cell(key)
	added := c.value == nil
	if added {
		o.keys = append(o.keys, key)
	}
	c.Set(o.s.Wrap(val))
	if added {
		o.s.t.Trigger(o, keysKey)
	}
	return true
}

// Has implements goja.DynamicObject. The lookup is tracked so that an
// expression resolving a missing key re-runs once the key is added.
func (o *Object) Has(key string) bool {
	c := o.cell(key)
	o.s.t.Track(c, "value")
	return c.value != nil
}

// Delete implements goja.DynamicObject
func (o *Object) Delete(key string) bool {
	c := o.cells[key]
	if c == nil || c.value == nil {
		return true
	}
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
	c.Set(nil)
	o.s.t.Trigger(o, keysKey)
	return true
}

// Keys implements goja.DynamicObject
func (o *Object) Keys() []string {
	o.s.t.Track(o, keysKey)
	return append([]string(nil), o.keys...)
}

// GetGo returns the exported value of key
func (o *Object) GetGo(key string) any {
	return o.s.Export(o.Get(key))
}

// SetGo converts value and stores it under key
func (o *Object) SetGo(key string, value any) {
	o.Set(key, o.s.FromGo(value))
}

// Export converts the object into a plain map
func (o *Object) Export() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = o.s.Export(o.cells[k].value)
	}
	return out
}

// Array is a reactive list. Reads track the index or "length"; writes past
// the end grow the array and notify "length" subscribers.
type Array struct {
	s     *Store
	items []goja.Value
	js    *goja.Object
}

var _ goja.DynamicArray = (*Array)(nil)

// JS returns the array as seen by the JavaScript runtime
func (a *Array) JS() *goja.Object {
	if a.js == nil {
		a.js = a.s.vm.NewDynamicArray(a)
		a.s.wrappers[a.js] = a
	}
	return a.js
}

// Len implements goja.DynamicArray
func (a *Array) Len() int {
	a.s.t.Track(a, "length")
	return len(a.items)
}

// Get implements goja.DynamicArray
func (a *Array) Get(idx int) goja.Value {
	a.s.t.Track(a, strconv.Itoa(idx))
	if idx < 0 || idx >= len(a.items) {
		return goja.Undefined()
	}
	return a.items[idx]
}

// Set implements goja.DynamicArray
func (a *Array) Set(idx int, val goja.Value) bool {
	if idx < 0 {
		return false
	}
	if val == nil {
		val = goja.Undefined()
	}
	val = a.s.Wrap(val)
	grew := false
	for idx >= len(a.items) {
		a.items = append(a.items, goja.Undefined())
		grew = true
	}
	a.items[idx] = val
	a.s.t.Trigger(a, strconv.Itoa(idx))
	if grew {
		a.s.t.Trigger(a, "length")
	}
	return true
}

// SetLen implements goja.DynamicArray
func (a *Array) SetLen(n int) bool {
	if n < 0 {
		return false
	}
	if n == len(a.items) {
		return true
	}
	if n < len(a.items) {
		a.items = a.items[:n]
	} else {
		for len(a.items) < n {
			a.items = append(a.items, goja.Undefined())
		}
	}
	a.s.t.Trigger(a, "length")
	return true
}

// Items returns the elements, tracking the length and every index
func (a *Array) Items() []goja.Value {
	n := a.Len()
	out := make([]goja.Value, n)
	for i := 0; i < n; i++ {
		out[i] = a.Get(i)
	}
	return out
}

// Push appends values from Go
func (a *Array) Push(values ...any) {
	for _, v := range values {
		a.Set(len(a.items), a.s.FromGo(v))
	}
}

// Export converts the array into a plain slice
func (a *Array) Export() []any {
	out := make([]any, len(a.items))
	for i, v := range a.items {
		out[i] = a.s.Export(v)
	}
	return out
}

func sortedMapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
