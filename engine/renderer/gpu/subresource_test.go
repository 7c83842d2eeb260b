package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubresourceStateMapCollapse(t *testing.T) {
	m := NewSubresourceStateMap(StateCommon)
	require.True(t, m.IsUniform())

	m.Set(1, StateRenderTarget)
	m.Set(3, StateCopySource)
	require.False(t, m.IsUniform())
	assert.Equal(t, StateCommon, m.Get(0))
	assert.Equal(t, StateRenderTarget, m.Get(1))
	assert.Equal(t, StateCopySource, m.Get(3))

	m.Set(AllSubresources, StatePixelShaderResource)
	require.True(t, m.IsUniform())
	for i := uint32(0); i < 8; i++ {
		assert.Equal(t, StatePixelShaderResource, m.Get(i), "subresource %d", i)
	}
}

func TestSubresourceStateMapOverrideEqualToUniform(t *testing.T) {
	m := NewSubresourceStateMap(StateCommon)
	m.Set(2, StateCopyDest)
	m.Set(2, StateCommon)
	assert.True(t, m.IsUniform())
}

func TestSubresourceStateMapCloneIsIndependent(t *testing.T) {
	m := NewSubresourceStateMap(StateCommon)
	m.Set(0, StateRenderTarget)
	c := m.Clone()
	c.Set(0, StateCopySource)
	assert.Equal(t, StateRenderTarget, m.Get(0))
	assert.Equal(t, StateCopySource, c.Get(0))

	var visited []uint32
	m.Each(func(sub uint32, _ ResourceState) { visited = append(visited, sub) })
	assert.Equal(t, []uint32{0}, visited)
}

func TestSubresourceStateMapFold(t *testing.T) {
	m := NewSubresourceStateMap(StateCommon)
	m.Set(0, StateRenderTarget)
	m.Fold(2)
	assert.False(t, m.IsUniform())

	m.Set(1, StateCopySource)
	m.Fold(2)
	assert.False(t, m.IsUniform())

	m.Set(1, StateRenderTarget)
	m.Fold(2)
	require.True(t, m.IsUniform())
	assert.Equal(t, StateRenderTarget, m.Get(AllSubresources))

	// A single subresource, like a buffer.
	b := NewSubresourceStateMap(StateCopyDest)
	b.Set(0, StateVertexAndConstantBuffer)
	b.Fold(1)
	require.True(t, b.IsUniform())
	assert.Equal(t, StateVertexAndConstantBuffer, b.Get(AllSubresources))
}
