// Package gpu holds the primitives shared by the tracker, the frame ring and
// the render graph: resources, resource states and the contract a concrete
// graphics API has to satisfy.
package gpu

import (
	"errors"
	"time"
)

var (
	ErrDeviceRemoved     = errors.New("device removed")
	ErrFenceTimeout      = errors.New("fence wait timed out")
	ErrCommandListClosed = errors.New("command list is closed")
	ErrCommandListOpen   = errors.New("command list is still recording")
)

// PipelineState is a compiled pipeline object. Two pipeline states are the
// same binding when they are the same value.
type PipelineState interface {
	Name() string
}

type PipelineStateDesc struct {
	Name           string
	VertexShader   string
	PixelShader    string
	ComputeShader  string
	RenderTargets  []Format
	DepthFormat    Format
	DepthWriteMask bool
}

// IsCompute reports whether the description is a compute pipeline.
func (d PipelineStateDesc) IsCompute() bool {
	return d.ComputeShader != ""
}

// Binding attaches a resource or inline constants to a root slot.
type Binding struct {
	Slot      uint32
	Resource  *Resource
	Constants []uint32
}

type DrawArgs struct {
	VertexCount   uint32
	InstanceCount uint32
	StartVertex   uint32
	StartInstance uint32
}

type DrawIndexedArgs struct {
	IndexCount    uint32
	InstanceCount uint32
	StartIndex    uint32
	BaseVertex    int32
	StartInstance uint32
}

// CommandList records GPU commands. A closed list must be reset before it
// records again. Command lists are not safe for concurrent use.
type CommandList interface {
	Reset() error
	Close() error
	ResourceBarrier(barriers []Barrier)
	SetPipelineState(pso PipelineState)
	SetBindings(bindings []Binding)
	SetVertexBuffer(r *Resource)
	SetIndexBuffer(r *Resource)
	Draw(args DrawArgs)
	DrawIndexed(args DrawIndexedArgs)
	Dispatch(x, y, z uint32)
	CopyResource(dst, src *Resource)
	ClearRenderTarget(target *Resource, colour [4]float32)
}

type CommandQueue interface {
	// ExecuteCommandLists submits closed lists in order.
	ExecuteCommandLists(lists []CommandList) error
	// Signal makes the GPU set fence to value once all prior work completed.
	Signal(fence Fence, value uint64) error
}

// Fence is a monotonically increasing counter written by the GPU.
type Fence interface {
	CompletedValue() uint64
	// Wait blocks until CompletedValue() >= value. A timeout <= 0 waits
	// forever. There is no cancellation.
	Wait(value uint64, timeout time.Duration) error
}

type Device interface {
	CreateResource(desc ResourceDesc) (*Resource, error)
	DestroyResource(r *Resource) error
	CreateCommandList() (CommandList, error)
	CreateFence(initial uint64) (Fence, error)
	CreatePipelineState(desc PipelineStateDesc) (PipelineState, error)
	Queue() CommandQueue
	Close() error
}
