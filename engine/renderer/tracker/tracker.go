// Package tracker decides the before and after state of every resource
// access and batches the barriers that move resources between them.
//
// Each recording context owns a ResourceStateTracker and uses it without any
// locking. A resource the context has not touched yet cannot be diffed
// locally, so the request is kept pending and resolved at submission time
// against the GlobalStateTable, under the submission lock.
package tracker

import (
	"github.com/google/uuid"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// PendingBarrier is a transition whose before state is only known once the
// states left by previously submitted contexts are.
type PendingBarrier struct {
	Resource    *gpu.Resource
	Subresource uint32
	After       gpu.ResourceState
}

type localEntry struct {
	resource *gpu.Resource
	states   *gpu.SubresourceStateMap
}

type ResourceStateTracker struct {
	final    map[uuid.UUID]*localEntry
	resolved []gpu.Barrier
	pending  []PendingBarrier
}

func NewResourceStateTracker() *ResourceStateTracker {
	return &ResourceStateTracker{
		final: make(map[uuid.UUID]*localEntry),
	}
}

// TransitionResource records that sub of r must be in after from now on.
func (t *ResourceStateTracker) TransitionResource(r *gpu.Resource, sub uint32, after gpu.ResourceState) {
	core.Assert(r != nil, "transition of a nil resource")
	core.Assert(after.IsValid(), "transition of %s to invalid state %s", r, after)
	core.Assert(sub == gpu.AllSubresources || sub < r.SubresourceCount(),
		"subresource %d out of range for %s (%d subresources)", sub, r, r.SubresourceCount())

	e, ok := t.final[r.ID()]
	if !ok {
		// First touch: assume this context owns the transition and let the
		// submission resolve where the resource comes from.
		t.pending = append(t.pending, PendingBarrier{Resource: r, Subresource: sub, After: after})
		states := gpu.NewSubresourceStateMap(gpu.StateUnknown)
		states.Set(sub, after)
		t.final[r.ID()] = &localEntry{resource: r, states: states}
		return
	}

	if sub == gpu.AllSubresources {
		t.transitionAll(e, after)
		return
	}
	t.transitionOne(e, sub, e.states.Get(sub), after)
	e.states.Set(sub, after)
}

func (t *ResourceStateTracker) transitionAll(e *localEntry, after gpu.ResourceState) {
	if e.states.IsUniform() {
		t.transitionOne(e, gpu.AllSubresources, e.states.Uniform(), after)
	} else {
		n := e.resource.SubresourceCount()
		for i := uint32(0); i < n; i++ {
			t.transitionOne(e, i, e.states.Get(i), after)
		}
	}
	e.states.Set(gpu.AllSubresources, after)
}

func (t *ResourceStateTracker) transitionOne(e *localEntry, sub uint32, before, after gpu.ResourceState) {
	switch {
	case before == gpu.StateUnknown:
		t.pending = append(t.pending, PendingBarrier{Resource: e.resource, Subresource: sub, After: after})
	case before != after:
		t.resolved = append(t.resolved, gpu.TransitionBarrier(e.resource, sub, before, after))
	}
}

// AliasBarrier emits a placement barrier between two resources sharing
// memory. No state diffing is involved.
func (t *ResourceStateTracker) AliasBarrier(before, after *gpu.Resource) {
	t.resolved = append(t.resolved, gpu.Barrier{
		Type:        gpu.BarrierAliasing,
		AliasBefore: before,
		AliasAfter:  after,
	})
}

// UAVBarrier orders two unordered-access passes over r.
func (t *ResourceStateTracker) UAVBarrier(r *gpu.Resource) {
	t.resolved = append(t.resolved, gpu.Barrier{
		Type:        gpu.BarrierUAV,
		Resource:    r,
		Subresource: gpu.AllSubresources,
	})
}

// FlushResourceBarriers records the resolved barriers into list and returns
// how many there were.
func (t *ResourceStateTracker) FlushResourceBarriers(list gpu.CommandList) int {
	n := len(t.resolved)
	if n == 0 {
		return 0
	}
	list.ResourceBarrier(t.resolved)
	t.resolved = t.resolved[:0]
	return n
}

// FlushPendingResourceBarriers resolves every pending request against the
// global table and records the resulting barriers into list, which must run
// right before the list this tracker recorded for. Returns the barrier count.
func (t *ResourceStateTracker) FlushPendingResourceBarriers(locked *LockedTable, list gpu.CommandList) int {
	var batch []gpu.Barrier
	for _, p := range t.pending {
		global := locked.Lookup(p.Resource)
		if global == nil {
			core.Fatal(core.ErrTrackerConsistency, "pending barrier for resource %s absent from the global state table", p.Resource)
		}
		if p.Subresource == gpu.AllSubresources && !global.IsUniform() {
			n := p.Resource.SubresourceCount()
			for i := uint32(0); i < n; i++ {
				if before := global.Get(i); before != p.After {
					batch = append(batch, gpu.TransitionBarrier(p.Resource, i, before, p.After))
				}
			}
			continue
		}
		if before := global.Get(p.Subresource); before != p.After {
			batch = append(batch, gpu.TransitionBarrier(p.Resource, p.Subresource, before, p.After))
		}
	}
	t.pending = t.pending[:0]
	if len(batch) > 0 {
		list.ResourceBarrier(batch)
	}
	return len(batch)
}

// CommitFinalResourceStates publishes the states this context leaves its
// resources in.
func (t *ResourceStateTracker) CommitFinalResourceStates(locked *LockedTable) {
	for _, e := range t.final {
		locked.commit(e.resource, e.states)
	}
}

// Reset forgets everything, ready for a new recording.
func (t *ResourceStateTracker) Reset() {
	for k := range t.final {
		delete(t.final, k)
	}
	t.resolved = t.resolved[:0]
	t.pending = t.pending[:0]
}

// LocalState returns the state this context last requested for sub of r.
func (t *ResourceStateTracker) LocalState(r *gpu.Resource, sub uint32) (gpu.ResourceState, bool) {
	e, ok := t.final[r.ID()]
	if !ok {
		return gpu.StateUnknown, false
	}
	s := e.states.Get(sub)
	return s, s != gpu.StateUnknown
}

func (t *ResourceStateTracker) ResolvedCount() int { return len(t.resolved) }

func (t *ResourceStateTracker) PendingCount() int { return len(t.pending) }

// PendingBarriers returns a copy of the pending requests.
func (t *ResourceStateTracker) PendingBarriers() []PendingBarrier {
	return append([]PendingBarrier(nil), t.pending...)
}
