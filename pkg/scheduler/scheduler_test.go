package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTarget struct {
	name     string
	parent   *fakeTarget
	rendered bool
	patches  int
	onPatch  func() error
}

func (f *fakeTarget) PatchParent() Target {
	if f.parent == nil {
		return nil
	}
	return f.parent
}

func (f *fakeTarget) Rendered() bool { return f.rendered }

func (f *fakeTarget) Patch() error {
	f.patches++
	if f.onPatch != nil {
		return f.onPatch()
	}
	return nil
}

func TestScheduler_OnePatchPerTick(t *testing.T) {
	sched := NewScheduler()
	target := &fakeTarget{name: "a", rendered: true}

	for i := 0; i < 5; i++ {
		sched.Request(target)
	}
	if sched.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", sched.Pending())
	}

	sched.Flush()

	if target.patches != 1 {
		t.Errorf("patches = %d, want 1", target.patches)
	}
	if sched.Pending() != 0 {
		t.Errorf("Pending() = %d after flush", sched.Pending())
	}
}

func TestScheduler_CoalescesIntoQueuedAncestor(t *testing.T) {
	tests := []struct {
		name           string
		parentFirst    bool
		wantChild      int
		wantCoalesced  int
		wantParentRuns int
	}{
		{name: "ancestor queued first", parentFirst: true, wantChild: 0, wantCoalesced: 1, wantParentRuns: 1},
		{name: "descendant queued first", parentFirst: false, wantChild: 0, wantCoalesced: 1, wantParentRuns: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := NewScheduler()
			root := &fakeTarget{name: "root", rendered: true}
			child := &fakeTarget{name: "child", parent: root, rendered: true}

			if tt.parentFirst {
				sched.Request(root)
				sched.Request(child)
			} else {
				sched.Request(child)
				sched.Request(root)
			}
			sched.Flush()

			if child.patches != tt.wantChild {
				t.Errorf("child patches = %d, want %d", child.patches, tt.wantChild)
			}
			if root.patches != tt.wantParentRuns {
				t.Errorf("root patches = %d, want %d", root.patches, tt.wantParentRuns)
			}
			if got := sched.Stats().Coalesced; got != tt.wantCoalesced {
				t.Errorf("Coalesced = %d, want %d", got, tt.wantCoalesced)
			}
		})
	}
}

func TestScheduler_CoalescesWhileAncestorPatching(t *testing.T) {
	sched := NewScheduler()
	root := &fakeTarget{name: "root", rendered: true}
	child := &fakeTarget{name: "child", parent: root, rendered: true}
	root.onPatch = func() error {
		sched.Request(child)
		return nil
	}

	sched.Request(root)
	sched.Flush()

	if child.patches != 0 {
		t.Errorf("child patched %d times while covered by its ancestor", child.patches)
	}
}

func TestScheduler_UnrenderedWalksUp(t *testing.T) {
	sched := NewScheduler()
	root := &fakeTarget{name: "root", rendered: true}
	mid := &fakeTarget{name: "mid", parent: root}
	leaf := &fakeTarget{name: "leaf", parent: mid}

	sched.Request(leaf)
	if sched.Pending() != 0 {
		t.Fatal("request before the first render should be dropped")
	}

	sched.SetReady(true)
	sched.Request(leaf)
	sched.Flush()

	if root.patches != 1 || leaf.patches != 0 || mid.patches != 0 {
		t.Errorf("patches root=%d mid=%d leaf=%d", root.patches, mid.patches, leaf.patches)
	}
	if got := sched.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestScheduler_RequestsDuringFlushDrainSameTick(t *testing.T) {
	sched := NewScheduler()
	a := &fakeTarget{name: "a", rendered: true}
	b := &fakeTarget{name: "b", rendered: true}
	a.onPatch = func() error {
		sched.Request(b)
		return nil
	}

	sched.Request(a)
	sched.Flush()

	if a.patches != 1 || b.patches != 1 {
		t.Errorf("patches a=%d b=%d", a.patches, b.patches)
	}
}

func TestScheduler_ErrorHandling(t *testing.T) {
	sched := NewScheduler()

	var handled []interface{}
	sched.SetErrorHandler(func(t Target, err interface{}) {
		handled = append(handled, err)
	})

	failing := &fakeTarget{name: "failing", rendered: true, onPatch: func() error {
		return errors.New("boom")
	}}
	panicking := &fakeTarget{name: "panicking", rendered: true, onPatch: func() error {
		panic("render panic")
	}}
	healthy := &fakeTarget{name: "healthy", rendered: true}

	sched.Request(failing)
	sched.Request(panicking)
	sched.Request(healthy)
	sched.Flush()

	if len(handled) != 2 {
		t.Fatalf("handled %d errors, want 2", len(handled))
	}
	if healthy.patches != 1 {
		t.Error("a failing target stopped the tick")
	}
}

func TestScheduler_Run(t *testing.T) {
	sched := NewScheduler()
	sched.Frame = time.Millisecond
	target := &fakeTarget{name: "a", rendered: true}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	var posted atomic.Bool
	sched.Post(func() {
		posted.Store(true)
		sched.Request(target)
	})

	deadline := time.After(time.Second)
	for sched.Stats().Patches == 0 {
		select {
		case <-deadline:
			t.Fatal("patch never flushed")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if !posted.Load() {
		t.Error("posted task did not run")
	}
}

func TestScheduler_NilTarget(t *testing.T) {
	sched := NewScheduler()
	sched.Request(nil)
	if sched.Pending() != 0 {
		t.Error("nil target was queued")
	}
}
