package vdom

// Event is a DOM event dispatched to listeners of a mounted node
type Event struct {
	// Type is the event name, e.g. "click"
	Type string

	// Target is the ID of the node the event was dispatched on
	Target uint32

	// CurrentTarget is the ID of the node whose listeners are running
	CurrentTarget uint32

	// Detail carries the event payload (input value, key, ...)
	Detail any

	defaultPrevented bool
	stopped          bool
}

// NewEvent creates an event of the given type
func NewEvent(typ string, detail any) *Event {
	return &Event{Type: typ, Detail: detail}
}

// PreventDefault marks the event's default action as cancelled
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether PreventDefault was called
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// StopPropagation stops the event from bubbling to ancestors
func (e *Event) StopPropagation() {
	e.stopped = true
}

// PropagationStopped reports whether StopPropagation was called
func (e *Event) PropagationStopped() bool {
	return e.stopped
}
