package frame

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/tracker"
)

type CommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY CommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_CLOSED
	COMMAND_BUFFER_STATE_SUBMITTED
)

func (s CommandBufferState) String() string {
	switch s {
	case COMMAND_BUFFER_STATE_READY:
		return "ready"
	case COMMAND_BUFFER_STATE_RECORDING:
		return "recording"
	case COMMAND_BUFFER_STATE_CLOSED:
		return "closed"
	case COMMAND_BUFFER_STATE_SUBMITTED:
		return "submitted"
	}
	return fmt.Sprintf("CommandBufferState(%d)", int(s))
}

// CommandBuffer is a recording context: a command list, the tracker deciding
// its barriers and a cache of the GPU state it last bound. It belongs to a
// single goroutine between checkout and submission.
type CommandBuffer struct {
	list    gpu.CommandList
	tracker *tracker.ResourceStateTracker
	State   CommandBufferState

	pipeline gpu.PipelineState
	bindings []gpu.Binding
	vertex   *gpu.Resource
	index    *gpu.Resource

	// barriers recorded since the last Reset, side buffers included.
	barriers int
}

func NewCommandBuffer(list gpu.CommandList) *CommandBuffer {
	return &CommandBuffer{
		list:    list,
		tracker: tracker.NewResourceStateTracker(),
		State:   COMMAND_BUFFER_STATE_READY,
	}
}

func (cb *CommandBuffer) List() gpu.CommandList { return cb.list }

func (cb *CommandBuffer) Tracker() *tracker.ResourceStateTracker { return cb.tracker }

// BarrierCount returns the barriers recorded since the last Reset.
func (cb *CommandBuffer) BarrierCount() int { return cb.barriers }

// Reset reopens the list and forgets the tracker's local state and the
// bound GPU state.
func (cb *CommandBuffer) Reset() error {
	if err := cb.list.Reset(); err != nil {
		return fmt.Errorf("failed to reset command buffer: %w", err)
	}
	cb.tracker.Reset()
	cb.pipeline = nil
	cb.bindings = cb.bindings[:0]
	cb.vertex = nil
	cb.index = nil
	cb.barriers = 0
	cb.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (cb *CommandBuffer) assertRecording(op string) {
	core.Assert(cb.State == COMMAND_BUFFER_STATE_RECORDING, "%s on a command buffer in state %s", op, cb.State)
}

func (cb *CommandBuffer) TransitionResource(r *gpu.Resource, sub uint32, after gpu.ResourceState) {
	cb.assertRecording("TransitionResource")
	cb.tracker.TransitionResource(r, sub, after)
}

func (cb *CommandBuffer) AliasBarrier(before, after *gpu.Resource) {
	cb.assertRecording("AliasBarrier")
	cb.tracker.AliasBarrier(before, after)
}

func (cb *CommandBuffer) UAVBarrier(r *gpu.Resource) {
	cb.assertRecording("UAVBarrier")
	cb.tracker.UAVBarrier(r)
}

// FlushResourceBarriers records the resolved barriers and returns how many
// there were.
func (cb *CommandBuffer) FlushResourceBarriers() int {
	n := cb.tracker.FlushResourceBarriers(cb.list)
	cb.barriers += n
	return n
}

// SetPipelineState binds pso unless it is already bound. Returns true if a
// command was recorded.
func (cb *CommandBuffer) SetPipelineState(pso gpu.PipelineState) bool {
	cb.assertRecording("SetPipelineState")
	if cb.pipeline == pso {
		return false
	}
	cb.pipeline = pso
	cb.list.SetPipelineState(pso)
	return true
}

// SetBindings binds the slots of bindings that differ from what is bound.
// Returns the number of bindings recorded.
func (cb *CommandBuffer) SetBindings(bindings []gpu.Binding) int {
	cb.assertRecording("SetBindings")
	var delta []gpu.Binding
	for _, b := range bindings {
		if cur, ok := cb.bound(b.Slot); ok && sameBinding(cur, b) {
			continue
		}
		delta = append(delta, b)
		cb.bind(b)
	}
	if len(delta) > 0 {
		cb.list.SetBindings(delta)
	}
	return len(delta)
}

func (cb *CommandBuffer) bound(slot uint32) (gpu.Binding, bool) {
	for _, b := range cb.bindings {
		if b.Slot == slot {
			return b, true
		}
	}
	return gpu.Binding{}, false
}

func (cb *CommandBuffer) bind(b gpu.Binding) {
	b.Constants = append([]uint32(nil), b.Constants...)
	for i := range cb.bindings {
		if cb.bindings[i].Slot == b.Slot {
			cb.bindings[i] = b
			return
		}
	}
	cb.bindings = append(cb.bindings, b)
}

func sameBinding(a, b gpu.Binding) bool {
	if a.Resource != b.Resource || len(a.Constants) != len(b.Constants) {
		return false
	}
	for i := range a.Constants {
		if a.Constants[i] != b.Constants[i] {
			return false
		}
	}
	return true
}

func (cb *CommandBuffer) SetVertexBuffer(r *gpu.Resource) {
	cb.assertRecording("SetVertexBuffer")
	if cb.vertex == r {
		return
	}
	cb.vertex = r
	cb.list.SetVertexBuffer(r)
}

func (cb *CommandBuffer) SetIndexBuffer(r *gpu.Resource) {
	cb.assertRecording("SetIndexBuffer")
	if cb.index == r {
		return
	}
	cb.index = r
	cb.list.SetIndexBuffer(r)
}

func (cb *CommandBuffer) Draw(args gpu.DrawArgs) {
	cb.assertRecording("Draw")
	cb.FlushResourceBarriers()
	cb.list.Draw(args)
}

func (cb *CommandBuffer) DrawIndexed(args gpu.DrawIndexedArgs) {
	cb.assertRecording("DrawIndexed")
	cb.FlushResourceBarriers()
	cb.list.DrawIndexed(args)
}

func (cb *CommandBuffer) Dispatch(x, y, z uint32) {
	cb.assertRecording("Dispatch")
	cb.FlushResourceBarriers()
	cb.list.Dispatch(x, y, z)
}

func (cb *CommandBuffer) CopyResource(dst, src *gpu.Resource) {
	cb.assertRecording("CopyResource")
	cb.FlushResourceBarriers()
	cb.list.CopyResource(dst, src)
}

func (cb *CommandBuffer) ClearRenderTarget(target *gpu.Resource, colour [4]float32) {
	cb.assertRecording("ClearRenderTarget")
	cb.FlushResourceBarriers()
	cb.list.ClearRenderTarget(target, colour)
}

// Close flushes the remaining resolved barriers and closes the list.
func (cb *CommandBuffer) Close() error {
	cb.assertRecording("Close")
	cb.FlushResourceBarriers()
	if err := cb.list.Close(); err != nil {
		return fmt.Errorf("failed to close command buffer: %w", err)
	}
	cb.State = COMMAND_BUFFER_STATE_CLOSED
	return nil
}
