package scheduler

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// DefaultFrame is the pacing of Run, one animation frame at 60Hz
const DefaultFrame = 16 * time.Millisecond

// maxRounds bounds how many times one Flush re-drains a queue that keeps
// refilling itself
const maxRounds = 100

// Target is a unit that can re-render itself and patch the live document
type Target interface {
	// PatchParent returns the enclosing target, or nil at the root
	PatchParent() Target
	// Rendered reports whether the target has produced a live element
	Rendered() bool
	// Patch rebuilds the target and applies the resulting mutations
	Patch() error
}

// ErrorHandler handles an error or panic raised while patching a target
type ErrorHandler func(t Target, err interface{})

// debugLog is set by the debug package
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Stats counts scheduler activity
type Stats struct {
	Ticks     int
	Patches   int
	Coalesced int
	Dropped   int
}

// Scheduler batches patch requests into ticks. Within one tick each target
// is patched at most once, and a target whose ancestor is queued rides
// along with the ancestor's patch.
type Scheduler struct {
	mu       sync.Mutex
	queue    []Target
	queued   map[Target]struct{}
	patching []Target
	ready    bool
	stats    Stats

	tasks chan func()
	wake  chan struct{}

	onError ErrorHandler

	// Frame is the pacing of Run; zero means DefaultFrame
	Frame time.Duration
}

// NewScheduler creates a new scheduler instance
func NewScheduler() *Scheduler {
	return &Scheduler{
		queued: make(map[Target]struct{}),
		tasks:  make(chan func(), 1024),
		wake:   make(chan struct{}, 1),
	}
}

// SetErrorHandler sets the handler for failed patches
func (s *Scheduler) SetErrorHandler(handler ErrorHandler) {
	s.onError = handler
}

// SetReady records that the first full render has completed. Before that,
// requests from targets without a live element are dropped since the
// first render covers them.
func (s *Scheduler) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// Request asks for t to be patched on the next tick
func (s *Scheduler) Request(t Target) {
	if t == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if debugLog != nil {
		debugLog("[Scheduler] Request for", fmt.Sprintf("%T", t))
	}

	if !t.Rendered() {
		if !s.ready {
			s.stats.Dropped++
			return
		}
		anc := t.PatchParent()
		for anc != nil && !anc.Rendered() {
			anc = anc.PatchParent()
		}
		if anc == nil {
			s.stats.Dropped++
			return
		}
		t = anc
	}

	if _, ok := s.queued[t]; ok {
		return
	}
	if s.coveredLocked(t) {
		s.stats.Coalesced++
		if debugLog != nil {
			debugLog("[Scheduler] Request coalesced into an ancestor")
		}
		return
	}

	s.queued[t] = struct{}{}
	s.queue = append(s.queue, t)

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// coveredLocked reports whether an ancestor of t is queued or mid-patch
func (s *Scheduler) coveredLocked(t Target) bool {
	for anc := t.PatchParent(); anc != nil; anc = anc.PatchParent() {
		if _, ok := s.queued[anc]; ok {
			return true
		}
		for _, p := range s.patching {
			if p == anc {
				return true
			}
		}
	}
	return false
}

// Pending returns the number of targets waiting for the next tick
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stats returns a snapshot of the scheduler counters
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Flush runs one tick: every queued target is patched once. Requests made
// while patching are drained in further rounds of the same tick.
func (s *Scheduler) Flush() {
	for round := 0; ; round++ {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		if round >= maxRounds {
			n := len(s.queue)
			s.queue = nil
			s.queued = make(map[Target]struct{})
			s.mu.Unlock()
			log.Printf("scheduler: %d patches still pending after %d rounds; dropping them", n, maxRounds)
			return
		}
		batch := s.queue
		s.queue = nil
		s.queued = make(map[Target]struct{})
		s.stats.Ticks++
		s.mu.Unlock()

		if debugLog != nil {
			debugLog("[Scheduler] Processing batch of", len(batch), "targets")
		}

		inBatch := make(map[Target]struct{}, len(batch))
		for _, t := range batch {
			inBatch[t] = struct{}{}
		}
		for _, t := range batch {
			if ancestorIn(t, inBatch) {
				s.mu.Lock()
				s.stats.Coalesced++
				s.mu.Unlock()
				continue
			}
			s.process(t)
		}
	}
}

func ancestorIn(t Target, set map[Target]struct{}) bool {
	for anc := t.PatchParent(); anc != nil; anc = anc.PatchParent() {
		if _, ok := set[anc]; ok {
			return true
		}
	}
	return false
}

// process patches a single target with panic recovery
func (s *Scheduler) process(t Target) {
	s.mu.Lock()
	s.patching = append(s.patching, t)
	s.stats.Patches++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.patching = s.patching[:len(s.patching)-1]
		s.mu.Unlock()
	}()

	defer func() {
		if r := recover(); r != nil {
			s.handleError(t, fmt.Sprintf("patch panic: %v\n%s", r, debug.Stack()))
		}
	}()

	if err := t.Patch(); err != nil {
		s.handleError(t, err)
	}
}

// handleError reports a failed patch
func (s *Scheduler) handleError(t Target, err interface{}) {
	if s.onError != nil {
		s.onError(t, err)
		return
	}
	log.Printf("scheduler: patch failed: %v", err)
}

// Post queues fn to run on the goroutine executing Run. Without a running
// loop, fn runs when Run is next started.
func (s *Scheduler) Post(fn func()) {
	s.tasks <- fn
}

// Run drives the scheduler until ctx is done: posted tasks run in order,
// and queued patches are flushed once per frame.
func (s *Scheduler) Run(ctx context.Context) error {
	frame := s.Frame
	if frame <= 0 {
		frame = DefaultFrame
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	if debugLog != nil {
		debugLog("[Scheduler] Loop started")
	}

	dirty := false
	for {
		select {
		case <-ctx.Done():
			s.Flush()
			if debugLog != nil {
				debugLog("[Scheduler] Loop ended")
			}
			return ctx.Err()
		case fn := <-s.tasks:
			fn()
		case <-s.wake:
			dirty = true
		case <-ticker.C:
			if dirty || s.Pending() > 0 {
				dirty = false
				s.Flush()
			}
		}
	}
}
