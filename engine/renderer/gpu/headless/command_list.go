package headless

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type Op uint8

const (
	OpBarrier Op = iota
	OpSetPipelineState
	OpSetBindings
	OpSetVertexBuffer
	OpSetIndexBuffer
	OpDraw
	OpDrawIndexed
	OpDispatch
	OpCopyResource
	OpClearRenderTarget
)

func (o Op) String() string {
	switch o {
	case OpBarrier:
		return "barrier"
	case OpSetPipelineState:
		return "set_pipeline_state"
	case OpSetBindings:
		return "set_bindings"
	case OpSetVertexBuffer:
		return "set_vertex_buffer"
	case OpSetIndexBuffer:
		return "set_index_buffer"
	case OpDraw:
		return "draw"
	case OpDrawIndexed:
		return "draw_indexed"
	case OpDispatch:
		return "dispatch"
	case OpCopyResource:
		return "copy_resource"
	case OpClearRenderTarget:
		return "clear_render_target"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op          Op
	Barriers    []gpu.Barrier
	Pipeline    gpu.PipelineState
	Bindings    []gpu.Binding
	Resource    *gpu.Resource
	Source      *gpu.Resource
	Draw        gpu.DrawArgs
	DrawIndexed gpu.DrawIndexedArgs
	Groups      [3]uint32
	Colour      [4]float32
}

// CommandList records into memory. Recording into a closed list panics, the
// same way a real driver would reject it.
type CommandList struct {
	id       int
	closed   bool
	commands []Command
}

func (cl *CommandList) ID() int { return cl.id }

func (cl *CommandList) Closed() bool { return cl.closed }

func (cl *CommandList) Reset() error {
	cl.closed = false
	cl.commands = cl.commands[:0]
	return nil
}

func (cl *CommandList) Close() error {
	if cl.closed {
		return fmt.Errorf("command list %d: %w", cl.id, gpu.ErrCommandListClosed)
	}
	cl.closed = true
	return nil
}

func (cl *CommandList) record(c Command) {
	if cl.closed {
		panic(fmt.Sprintf("command list %d: %s recorded after close", cl.id, c.Op))
	}
	cl.commands = append(cl.commands, c)
}

// Commands returns the recorded commands. The slice is owned by the list.
func (cl *CommandList) Commands() []Command {
	return cl.commands
}

// Barriers flattens every barrier recorded into the list.
func (cl *CommandList) Barriers() []gpu.Barrier {
	var out []gpu.Barrier
	for _, c := range cl.commands {
		if c.Op == OpBarrier {
			out = append(out, c.Barriers...)
		}
	}
	return out
}

// Count returns the number of recorded commands with op.
func (cl *CommandList) Count(op Op) int {
	n := 0
	for _, c := range cl.commands {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (cl *CommandList) ResourceBarrier(barriers []gpu.Barrier) {
	cl.record(Command{Op: OpBarrier, Barriers: append([]gpu.Barrier(nil), barriers...)})
}

func (cl *CommandList) SetPipelineState(pso gpu.PipelineState) {
	cl.record(Command{Op: OpSetPipelineState, Pipeline: pso})
}

func (cl *CommandList) SetBindings(bindings []gpu.Binding) {
	cl.record(Command{Op: OpSetBindings, Bindings: append([]gpu.Binding(nil), bindings...)})
}

func (cl *CommandList) SetVertexBuffer(r *gpu.Resource) {
	cl.record(Command{Op: OpSetVertexBuffer, Resource: r})
}

func (cl *CommandList) SetIndexBuffer(r *gpu.Resource) {
	cl.record(Command{Op: OpSetIndexBuffer, Resource: r})
}

func (cl *CommandList) Draw(args gpu.DrawArgs) {
	cl.record(Command{Op: OpDraw, Draw: args})
}

func (cl *CommandList) DrawIndexed(args gpu.DrawIndexedArgs) {
	cl.record(Command{Op: OpDrawIndexed, DrawIndexed: args})
}

func (cl *CommandList) Dispatch(x, y, z uint32) {
	cl.record(Command{Op: OpDispatch, Groups: [3]uint32{x, y, z}})
}

func (cl *CommandList) CopyResource(dst, src *gpu.Resource) {
	cl.record(Command{Op: OpCopyResource, Resource: dst, Source: src})
}

func (cl *CommandList) ClearRenderTarget(target *gpu.Resource, colour [4]float32) {
	cl.record(Command{Op: OpClearRenderTarget, Resource: target, Colour: colour})
}
