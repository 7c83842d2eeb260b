package graph

import "github.com/spaghettifunk/framegraph/engine/renderer/gpu"

// Recorder is the recording context a graph executes against.
// *frame.CommandBuffer implements it.
type Recorder interface {
	TransitionResource(r *gpu.Resource, sub uint32, after gpu.ResourceState)
	AliasBarrier(before, after *gpu.Resource)
	UAVBarrier(r *gpu.Resource)
	FlushResourceBarriers() int

	SetPipelineState(pso gpu.PipelineState) bool
	SetBindings(bindings []gpu.Binding) int
	SetVertexBuffer(r *gpu.Resource)
	SetIndexBuffer(r *gpu.Resource)

	Draw(args gpu.DrawArgs)
	DrawIndexed(args gpu.DrawIndexedArgs)
	Dispatch(x, y, z uint32)
	CopyResource(dst, src *gpu.Resource)
	ClearRenderTarget(target *gpu.Resource, colour [4]float32)
}

// ExecuteFunc issues the GPU work of a graphics or compute pass. The slots of
// the pass are already in their declared state.
type ExecuteFunc func(rec Recorder, pass *Pass) error

// PresentFunc hands the presented resource over to the display.
type PresentFunc func(target *gpu.Resource) error

// Supplier returns an external resource, e.g. the current back buffer. It is
// invoked once per frame no matter how many slots it feeds.
type Supplier func() *gpu.Resource
