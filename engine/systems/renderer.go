package systems

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/frame"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/tracker"
)

type RendererSystemConfig struct {
	/** @brief Number of frames the CPU may record ahead of the GPU. */
	FramesInFlight uint8
	/** @brief How long a new frame waits for its slot. 0 waits forever. */
	FenceTimeout time.Duration
}

// FrameStats describes a submitted frame.
type FrameStats struct {
	// Fence is the value signalled once the GPU is done with the frame.
	Fence    uint64
	Barriers int
	Elapsed  time.Duration
}

// RendererSystem drives the frame lifecycle: new frame, parallel recording of
// the graphs, submission, fence signal and graph reset.
type RendererSystem struct {
	Config *RendererSystemConfig
	device gpu.Device
	table  *tracker.GlobalStateTable
	ring   *frame.FrameRing
	jobs   *JobSystem
	events *core.EventSystem
}

func NewRendererSystem(config *RendererSystemConfig, device gpu.Device, table *tracker.GlobalStateTable, js *JobSystem, events *core.EventSystem) (*RendererSystem, error) {
	ring, err := frame.NewFrameRing(device, table, frame.Options{
		FramesInFlight: config.FramesInFlight,
		FenceTimeout:   config.FenceTimeout,
	})
	if err != nil {
		return nil, err
	}
	core.LogInfo("renderer initialized with %d frames in flight", ring.FramesInFlight())
	return &RendererSystem{
		Config: config,
		device: device,
		table:  table,
		ring:   ring,
		jobs:   js,
		events: events,
	}, nil
}

func (r *RendererSystem) FrameRing() *frame.FrameRing { return r.ring }

func (r *RendererSystem) Device() gpu.Device { return r.device }

/**
 * @brief Renders one frame. Each graph is recorded into its own command
 * buffer on the job system; the buffers are submitted in the order the
 * graphs are given, which is the order their resource states reconcile in.
 * Graphs are reset afterwards, even on failure.
 * @returns the first recording or device error. Device removal also fires
 * EVENT_CODE_DEVICE_LOST.
 */
func (r *RendererSystem) DrawFrame(ctx context.Context, graphs ...*graph.RenderGraph) (FrameStats, error) {
	start := time.Now()
	defer func() {
		for _, g := range graphs {
			g.Reset()
		}
	}()

	if err := r.ring.NewFrame(); err != nil {
		return FrameStats{}, r.fail(err)
	}

	cbs := make([]*frame.CommandBuffer, len(graphs))
	tasks := make([]RecordTask, len(graphs))
	for i, g := range graphs {
		tasks[i] = func(ctx context.Context) error {
			cb, err := r.ring.CreateCommandBuffer()
			if err != nil {
				return err
			}
			cbs[i] = cb
			if err := g.Execute(cb); err != nil {
				return fmt.Errorf("graph `%s`: %w", g.Name(), err)
			}
			return nil
		}
	}
	if err := r.jobs.Record(ctx, tasks...); err != nil {
		return FrameStats{}, r.fail(err)
	}

	if err := r.ring.ExecuteCommandLists(cbs...); err != nil {
		return FrameStats{}, r.fail(err)
	}
	fence, err := r.ring.Signal()
	if err != nil {
		return FrameStats{}, r.fail(err)
	}

	if r.events != nil {
		r.events.Fire(core.EventContext{Type: core.EVENT_CODE_FRAME_SUBMITTED, Data: fence})
	}
	return FrameStats{
		Fence:    fence,
		Barriers: r.ring.BarrierCount(),
		Elapsed:  time.Since(start),
	}, nil
}

func (r *RendererSystem) fail(err error) error {
	if errors.Is(err, gpu.ErrDeviceRemoved) && r.events != nil {
		r.events.Fire(core.EventContext{Type: core.EVENT_CODE_DEVICE_LOST, Data: err})
	}
	return err
}

// Shutdown waits for the GPU to drain every submitted frame.
func (r *RendererSystem) Shutdown() error {
	if err := r.ring.WaitIdle(); err != nil {
		return err
	}
	return nil
}
