package reactive

// Cell is an observable value
type Cell[T any] struct {
	t     *Tracker
	value T
}

// NewCell creates a cell holding initial
func NewCell[T any](t *Tracker, initial T) *Cell[T] {
	return &Cell[T]{t: t, value: initial}
}

// Get returns the current value and tracks the read
func (c *Cell[T]) Get() T {
	c.t.Track(c, "value")
	return c.value
}

// Peek returns the current value without tracking
func (c *Cell[T]) Peek() T {
	return c.value
}

// Set stores value and notifies dependent effects
func (c *Cell[T]) Set(value T) {
	if debugLog != nil {
		debugLog("[Cell] Set called with value:", value)
	}
	c.value = value
	c.t.Trigger(c, "value")
}

// Update reads, modifies, and writes the value
func (c *Cell[T]) Update(fn func(T) T) {
	c.Set(fn(c.value))
}
