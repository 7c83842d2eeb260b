package gpu

import "sort"

// SubresourceStateMap tracks the state of every subresource of one resource.
// It starts uniform; a subresource-specific Set makes it non-uniform and a
// Set on AllSubresources collapses it back.
type SubresourceStateMap struct {
	uniform   ResourceState
	overrides map[uint32]ResourceState
}

func NewSubresourceStateMap(state ResourceState) *SubresourceStateMap {
	return &SubresourceStateMap{uniform: state}
}

// IsUniform reports whether every subresource shares the same state.
func (m *SubresourceStateMap) IsUniform() bool {
	return len(m.overrides) == 0
}

// Uniform returns the state shared by all subresources without an override.
func (m *SubresourceStateMap) Uniform() ResourceState {
	return m.uniform
}

// Get returns the state of sub. AllSubresources returns the uniform state.
func (m *SubresourceStateMap) Get(sub uint32) ResourceState {
	if sub == AllSubresources {
		return m.uniform
	}
	if s, ok := m.overrides[sub]; ok {
		return s
	}
	return m.uniform
}

func (m *SubresourceStateMap) Set(sub uint32, state ResourceState) {
	if sub == AllSubresources {
		m.uniform = state
		m.overrides = nil
		return
	}
	if state == m.uniform {
		delete(m.overrides, sub)
		return
	}
	if m.overrides == nil {
		m.overrides = make(map[uint32]ResourceState)
	}
	m.overrides[sub] = state
}

// Fold collapses the map back to uniform when overrides cover all count
// subresources with a single state.
func (m *SubresourceStateMap) Fold(count uint32) {
	if len(m.overrides) == 0 || uint32(len(m.overrides)) != count {
		return
	}
	state := m.overrides[0]
	for sub := uint32(0); sub < count; sub++ {
		if s, ok := m.overrides[sub]; !ok || s != state {
			return
		}
	}
	m.Set(AllSubresources, state)
}

// Each calls fn for every subresource with an override, in index order.
func (m *SubresourceStateMap) Each(fn func(sub uint32, state ResourceState)) {
	keys := make([]uint32, 0, len(m.overrides))
	for k := range m.overrides {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		fn(k, m.overrides[k])
	}
}

func (m *SubresourceStateMap) Clone() *SubresourceStateMap {
	c := &SubresourceStateMap{uniform: m.uniform}
	if len(m.overrides) > 0 {
		c.overrides = make(map[uint32]ResourceState, len(m.overrides))
		for k, v := range m.overrides {
			c.overrides[k] = v
		}
	}
	return c
}
