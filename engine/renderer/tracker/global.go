package tracker

import (
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type globalEntry struct {
	resource *gpu.Resource
	states   *gpu.SubresourceStateMap
}

// GlobalStateTable holds the state every registered resource is in once all
// submitted work completes. It is the only state shared between recording
// contexts. Its mutex is the submission lock: reconciliation and commits run
// through a LockedTable, so they can only happen while it is held.
type GlobalStateTable struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*globalEntry
	locked  LockedTable
}

func NewGlobalStateTable() *GlobalStateTable {
	t := &GlobalStateTable{
		entries: make(map[uuid.UUID]*globalEntry),
	}
	t.locked.table = t
	return t
}

// Register adds r in state. Registering twice is a contract violation.
func (t *GlobalStateTable) Register(r *gpu.Resource, state gpu.ResourceState) {
	core.Assert(r != nil, "register of a nil resource")
	core.Assert(state.IsValid(), "resource %s registered in invalid state %s", r, state)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.entries[r.ID()]
	core.Assert(!exists, "resource %s registered twice", r)
	t.entries[r.ID()] = &globalEntry{
		resource: r,
		states:   gpu.NewSubresourceStateMap(state),
	}
}

// Unregister removes r. Unknown resources are ignored.
func (t *GlobalStateTable) Unregister(r *gpu.Resource) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, r.ID())
}

// State returns the global state of one subresource of r.
func (t *GlobalStateTable) State(r *gpu.Resource, sub uint32) (gpu.ResourceState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.lookup(r)
	if m == nil {
		return gpu.StateUnknown, false
	}
	return m.Get(sub), true
}

// lookup expects t.mu to be held.
func (t *GlobalStateTable) lookup(r *gpu.Resource) *gpu.SubresourceStateMap {
	if e, ok := t.entries[r.ID()]; ok {
		return e.states
	}
	return nil
}

// Len returns the number of registered resources.
func (t *GlobalStateTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Lock takes the submission lock. The returned view is valid until Unlock.
func (t *GlobalStateTable) Lock() *LockedTable {
	t.mu.Lock()
	t.locked.held = true
	return &t.locked
}

// LockedTable is the global table seen from inside the submission lock.
type LockedTable struct {
	table *GlobalStateTable
	held  bool
}

func (l *LockedTable) Unlock() {
	core.Assert(l.held, "unlock of a global state table that is not locked")
	l.held = false
	l.table.mu.Unlock()
}

// Lookup returns the subresource map of r, nil when r is not registered.
func (l *LockedTable) Lookup(r *gpu.Resource) *gpu.SubresourceStateMap {
	core.Assert(l.held, "global state lookup outside of the submission lock")
	return l.table.lookup(r)
}

func (l *LockedTable) State(r *gpu.Resource, sub uint32) (gpu.ResourceState, bool) {
	m := l.Lookup(r)
	if m == nil {
		return gpu.StateUnknown, false
	}
	return m.Get(sub), true
}

// commit merges final, the states a context left r in, into the table.
// Unknown states mean the context never touched that subresource.
func (l *LockedTable) commit(r *gpu.Resource, final *gpu.SubresourceStateMap) {
	core.Assert(l.held, "global state commit outside of the submission lock")
	m := l.Lookup(r)
	if m == nil {
		core.Fatal(core.ErrTrackerConsistency, "commit of resource %s absent from the global state table", r)
	}
	if final.Uniform() != gpu.StateUnknown {
		m.Set(gpu.AllSubresources, final.Uniform())
	}
	final.Each(func(sub uint32, state gpu.ResourceState) {
		if state != gpu.StateUnknown {
			m.Set(sub, state)
		}
	})
	m.Fold(r.SubresourceCount())
}
