// Package frame owns the recording contexts of every frame in flight and the
// submission of their command lists to the GPU queue.
package frame

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/framegraph/engine/containers"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/tracker"
)

type Options struct {
	// FramesInFlight is the number of slots of the ring. Zero means
	// metadata.DefaultFramesInFlight.
	FramesInFlight uint8
	// FenceTimeout bounds the wait of NewFrame. Zero waits forever.
	FenceTimeout time.Duration
}

// slot is one frame in flight: the fence value of its last submission and
// the command buffers it owns.
type slot struct {
	fenceValue uint64
	available  []*CommandBuffer
	checkedOut []*CommandBuffer
}

type inFlight struct {
	fenceValue uint64
	slot       int
}

// FrameRing gives the CPU FramesInFlight frames of recording headroom. A
// command buffer of a slot is only handed out again once the fence value
// stamped on that slot has completed.
type FrameRing struct {
	device  gpu.Device
	queue   gpu.CommandQueue
	table   *tracker.GlobalStateTable
	fence   gpu.Fence
	timeout time.Duration
	locks   *LockPool

	slots   []*slot
	current int
	started bool

	// fenceValue is the last value signalled on the queue.
	fenceValue uint64
	inFlight   *containers.RingQueue[inFlight]
	barriers   int
}

func NewFrameRing(device gpu.Device, table *tracker.GlobalStateTable, opts Options) (*FrameRing, error) {
	core.Assert(device != nil, "frame ring needs a device")
	core.Assert(table != nil, "frame ring needs a global state table")

	n := int(opts.FramesInFlight)
	if n == 0 {
		n = int(metadata.DefaultFramesInFlight)
	}
	fence, err := device.CreateFence(0)
	if err != nil {
		return nil, fmt.Errorf("failed to create the frame fence: %w", err)
	}

	fr := &FrameRing{
		device:   device,
		queue:    device.Queue(),
		table:    table,
		fence:    fence,
		timeout:  opts.FenceTimeout,
		locks:    NewLockPool(),
		slots:    make([]*slot, n),
		current:  n - 1,
		inFlight: containers.NewRingQueue[inFlight](n),
	}
	for i := range fr.slots {
		fr.slots[i] = &slot{}
	}
	return fr, nil
}

func (fr *FrameRing) FramesInFlight() int { return len(fr.slots) }

// CurrentSlot returns the index of the slot being recorded.
func (fr *FrameRing) CurrentSlot() int { return fr.current }

func (fr *FrameRing) Fence() gpu.Fence { return fr.fence }

// FenceValue returns the last signalled fence value.
func (fr *FrameRing) FenceValue() uint64 {
	var v uint64
	fr.locks.SafeCall(SynchronizationManagement, func() error {
		v = fr.fenceValue
		return nil
	})
	return v
}

// InFlight returns how many signalled frames the GPU has not completed yet,
// as last observed by NewFrame or Signal.
func (fr *FrameRing) InFlight() int {
	var n int
	fr.locks.SafeCall(SynchronizationManagement, func() error {
		n = fr.inFlight.Len()
		return nil
	})
	return n
}

// BarrierCount returns the barriers submitted since the last NewFrame.
func (fr *FrameRing) BarrierCount() int {
	var n int
	fr.locks.SafeCall(QueueManagement, func() error {
		n = fr.barriers
		return nil
	})
	return n
}

/**
 * @brief Moves to the next slot of the ring. Blocks until the GPU has completed
 * the last submission made from that slot, then returns every command buffer
 * of the slot to its available pool.
 * @returns an error wrapping gpu.ErrFenceTimeout if the wait timed out.
 */
func (fr *FrameRing) NewFrame() error {
	next := (fr.current + 1) % len(fr.slots)
	s := fr.slots[next]

	var target uint64
	fr.locks.SafeCall(SynchronizationManagement, func() error {
		target = s.fenceValue
		return nil
	})
	if target > 0 && fr.fence.CompletedValue() < target {
		core.LogDebug("frame slot %d waits for fence value %d", next, target)
		if err := fr.fence.Wait(target, fr.timeout); err != nil {
			return fmt.Errorf("frame slot %d: %w", next, err)
		}
	}

	fr.locks.SafeCall(SynchronizationManagement, func() error {
		completed := fr.fence.CompletedValue()
		for !fr.inFlight.IsEmpty() {
			f, _ := fr.inFlight.Peek()
			if f.fenceValue > completed {
				break
			}
			fr.inFlight.Dequeue()
		}
		return nil
	})

	fr.locks.SafeCall(CommandBufferManagement, func() error {
		s.available = append(s.available, s.checkedOut...)
		s.checkedOut = s.checkedOut[:0]
		return nil
	})
	fr.locks.SafeCall(QueueManagement, func() error {
		fr.barriers = 0
		return nil
	})

	fr.current = next
	fr.started = true
	return nil
}

/**
 * @brief Checks out a command buffer of the current slot, allocating one if the
 * pool is empty. The buffer comes back reset and recording. Safe to call from
 * several recording goroutines.
 */
func (fr *FrameRing) CreateCommandBuffer() (*CommandBuffer, error) {
	core.Assert(fr.started, "CreateCommandBuffer before the first NewFrame")
	s := fr.slots[fr.current]

	var cb *CommandBuffer
	err := fr.locks.SafeCall(CommandBufferManagement, func() error {
		if n := len(s.available); n > 0 {
			cb = s.available[n-1]
			s.available = s.available[:n-1]
		} else {
			list, err := fr.device.CreateCommandList()
			if err != nil {
				return fmt.Errorf("failed to create command list: %w", err)
			}
			cb = NewCommandBuffer(list)
		}
		s.checkedOut = append(s.checkedOut, cb)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := cb.Reset(); err != nil {
		return nil, err
	}
	return cb, nil
}

/**
 * @brief Closes and submits cbs in order. Before each buffer whose tracker has
 * pending barriers, a side buffer resolving them against the global state
 * table is submitted. Reconciliation and the commit of final states happen
 * under the global table lock, so buffers submitted from several goroutines
 * never interleave their updates.
 */
func (fr *FrameRing) ExecuteCommandLists(cbs ...*CommandBuffer) error {
	locked := fr.table.Lock()
	defer locked.Unlock()

	seen := make(map[*CommandBuffer]struct{}, len(cbs))
	lists := make([]gpu.CommandList, 0, 2*len(cbs))
	submitted := make([]*CommandBuffer, 0, 2*len(cbs))
	barriers := 0

	for _, cb := range cbs {
		if _, ok := seen[cb]; ok {
			continue
		}
		seen[cb] = struct{}{}
		core.Assert(cb.State == COMMAND_BUFFER_STATE_RECORDING, "submitting a command buffer in state %s", cb.State)

		if cb.tracker.PendingCount() > 0 {
			side, err := fr.CreateCommandBuffer()
			if err != nil {
				return err
			}
			n := cb.tracker.FlushPendingResourceBarriers(locked, side.list)
			side.barriers += n
			if err := side.Close(); err != nil {
				return err
			}
			if n > 0 {
				lists = append(lists, side.list)
				submitted = append(submitted, side)
				barriers += side.barriers
			}
		}
		cb.tracker.CommitFinalResourceStates(locked)

		if err := cb.Close(); err != nil {
			return err
		}
		lists = append(lists, cb.list)
		submitted = append(submitted, cb)
		barriers += cb.barriers
	}
	if len(lists) == 0 {
		return nil
	}

	return fr.locks.SafeCall(QueueManagement, func() error {
		if err := fr.queue.ExecuteCommandLists(lists); err != nil {
			return fmt.Errorf("failed to submit %d command lists: %w", len(lists), err)
		}
		for _, cb := range submitted {
			cb.State = COMMAND_BUFFER_STATE_SUBMITTED
		}
		fr.barriers += barriers
		return nil
	})
}

/**
 * @brief Signals the next fence value once everything submitted so far has
 * completed and stamps it on the current slot, which NewFrame will wait on
 * when the ring comes back to it.
 * @returns the signalled value.
 */
func (fr *FrameRing) Signal() (uint64, error) {
	var value uint64
	err := fr.locks.SafeCall(QueueManagement, func() error {
		v := fr.FenceValue() + 1
		if err := fr.queue.Signal(fr.fence, v); err != nil {
			return fmt.Errorf("failed to signal fence value %d: %w", v, err)
		}
		value = v
		return nil
	})
	if err != nil {
		return 0, err
	}

	fr.locks.SafeCall(SynchronizationManagement, func() error {
		fr.fenceValue = value
		fr.slots[fr.current].fenceValue = value
		if fr.inFlight.IsFull() {
			fr.inFlight.Dequeue()
		}
		fr.inFlight.Enqueue(inFlight{fenceValue: value, slot: fr.current})
		return nil
	})
	return value, nil
}

// WaitIdle blocks until the GPU completed the last signalled value.
func (fr *FrameRing) WaitIdle() error {
	v := fr.FenceValue()
	if v == 0 {
		return nil
	}
	if err := fr.fence.Wait(v, fr.timeout); err != nil {
		return fmt.Errorf("wait idle: %w", err)
	}
	return nil
}
