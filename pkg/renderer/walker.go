package renderer

import (
	"errors"
)

// MaxVisits bounds the node visits of one top-level walk
const MaxVisits = 100000

// ErrWalkLimit is recorded when a walk is truncated at MaxVisits
var ErrWalkLimit = errors.New("walk exceeded the node visit limit")

// Action is what the walker does after visiting a node
type Action uint8

const (
	// ActionNext keeps the node and walks its children
	ActionNext Action = iota
	// ActionRemove deletes the node and rescans from the same index
	ActionRemove
	// ActionReplaced rescans from the same index across the replacement
	ActionReplaced
	// ActionSkip advances the scan by Outcome.Skip without descending
	ActionSkip
)

// Outcome is the result of applying directives to a node
type Outcome struct {
	Action Action
	Skip   int
}

var (
	// Next keeps the node and walks its children
	Next = Outcome{Action: ActionNext}
	// Remove deletes the node
	Remove = Outcome{Action: ActionRemove}
	// Replaced reports that the node was substituted in its parent
	Replaced = Outcome{Action: ActionReplaced}
)

// Skip advances the scan by n nodes without descending
func Skip(n int) Outcome {
	return Outcome{Action: ActionSkip, Skip: n}
}

// walker is the state of one top-level walk
type walker struct {
	r      *Renderer
	visits int
	err    error
}

// Walk applies directives to every child of parent, depth first, and
// returns ErrWalkLimit when the walk had to be truncated. Nested walks
// started by directives share the visit budget of the outermost walk.
func (r *Renderer) Walk(parent *Node) error {
	if r.walk != nil {
		r.walk.children(parent)
		return r.walk.err
	}
	w := &walker{r: r}
	r.walk = w
	defer func() { r.walk = nil }()
	w.children(parent)
	return w.err
}

func (w *walker) children(parent *Node) {
	for i := 0; i < len(parent.Children); {
		if w.err != nil {
			return
		}
		w.visits++
		if w.visits > MaxVisits {
			w.err = ErrWalkLimit
			w.r.logger().Printf("pupper: walk stopped after %d node visits; a directive may be growing the tree without bound", MaxVisits)
			return
		}

		n := parent.Children[i]
		out := w.visit(n)
		switch out.Action {
		case ActionNext:
			w.children(n)
			i++
		case ActionRemove:
			n.Delete()
		case ActionReplaced:
			// rescan: the replacement now sits at i
		case ActionSkip:
			i += out.Skip
		}
	}
}

func (w *walker) visit(n *Node) Outcome {
	if n.Ignored() {
		return Skip(1)
	}
	n.r = w.r
	if !n.IsElement() {
		return Next
	}

	invs := w.r.directives.Invocations(n)
	for _, inv := range invs {
		d := w.r.directives.Lookup(inv.Type)
		if d == nil {
			continue
		}
		out := d(w.r, n, inv)
		if out.Action != ActionNext {
			return out
		}
	}

	if !n.Renderable() {
		// unwrap: the template's children are walked in place
		w.children(n)
		return Skip(1)
	}
	return Next
}
