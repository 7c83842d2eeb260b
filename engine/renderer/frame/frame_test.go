package frame

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

type fixture struct {
	dev   *headless.Device
	table *tracker.GlobalStateTable
	ring  *FrameRing
}

func newFixture(t *testing.T, opts headless.Options, ringOpts Options) *fixture {
	t.Helper()
	dev := headless.New(opts)
	table := tracker.NewGlobalStateTable()
	ring, err := NewFrameRing(dev, table, ringOpts)
	require.NoError(t, err)
	return &fixture{dev: dev, table: table, ring: ring}
}

func (f *fixture) texture(t *testing.T, name string, state gpu.ResourceState) *gpu.Resource {
	t.Helper()
	r, err := f.dev.CreateResource(gpu.ResourceDesc{
		Name:         name,
		Kind:         gpu.ResourceKindTexture,
		Width:        64,
		Height:       64,
		InitialState: state,
	})
	require.NoError(t, err)
	f.table.Register(r, state)
	return r
}

func listID(cb *CommandBuffer) int {
	return cb.List().(*headless.CommandList).ID()
}

func TestNewFrameBlocksOnOldestSlot(t *testing.T) {
	f := newFixture(t, headless.Options{}, Options{FramesInFlight: 3})
	require.Equal(t, 3, f.ring.FramesInFlight())

	for i := 0; i < 3; i++ {
		require.NoError(t, f.ring.NewFrame())
		v, err := f.ring.Signal()
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), v)
	}
	assert.Equal(t, 3, f.ring.InFlight())

	done := make(chan error, 1)
	go func() { done <- f.ring.NewFrame() }()

	select {
	case <-done:
		t.Fatal("NewFrame returned before slot 0 completed")
	case <-time.After(50 * time.Millisecond):
	}

	f.ring.Fence().(*headless.Fence).Complete(1)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("NewFrame still blocked after the fence completed")
	}
	assert.Equal(t, 0, f.ring.CurrentSlot())
	assert.Equal(t, 2, f.ring.InFlight())
}

func TestNewFrameTimeout(t *testing.T) {
	f := newFixture(t, headless.Options{}, Options{FramesInFlight: 2, FenceTimeout: 10 * time.Millisecond})
	for i := 0; i < 2; i++ {
		require.NoError(t, f.ring.NewFrame())
		_, err := f.ring.Signal()
		require.NoError(t, err)
	}
	err := f.ring.NewFrame()
	require.Error(t, err)
	assert.ErrorIs(t, err, gpu.ErrFenceTimeout)
}

func TestCommandBuffersAreRecycledPerSlot(t *testing.T) {
	f := newFixture(t, headless.Options{AutoComplete: true}, Options{FramesInFlight: 2})

	require.NoError(t, f.ring.NewFrame())
	first, err := f.ring.CreateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, f.ring.ExecuteCommandLists(first))
	_, err = f.ring.Signal()
	require.NoError(t, err)
	assert.Equal(t, COMMAND_BUFFER_STATE_SUBMITTED, first.State)

	require.NoError(t, f.ring.NewFrame())
	other, err := f.ring.CreateCommandBuffer()
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	_, err = f.ring.Signal()
	require.NoError(t, err)

	require.NoError(t, f.ring.NewFrame())
	again, err := f.ring.CreateCommandBuffer()
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, COMMAND_BUFFER_STATE_RECORDING, again.State)
	assert.Equal(t, 2, f.dev.CommandListCount())
}

func TestSubmissionReconcilesSiblingContexts(t *testing.T) {
	f := newFixture(t, headless.Options{AutoComplete: true}, Options{})
	r := f.texture(t, "shadow", gpu.StateCommon)

	require.NoError(t, f.ring.NewFrame())
	a, err := f.ring.CreateCommandBuffer()
	require.NoError(t, err)
	b, err := f.ring.CreateCommandBuffer()
	require.NoError(t, err)

	a.TransitionResource(r, gpu.AllSubresources, gpu.StateRenderTarget)
	a.ClearRenderTarget(r, [4]float32{0, 0, 0, 1})
	a.TransitionResource(r, gpu.AllSubresources, gpu.StatePixelShaderResource)

	b.TransitionResource(r, gpu.AllSubresources, gpu.StateCopySource)

	require.NoError(t, f.ring.ExecuteCommandLists(a, b, a))

	subs := f.dev.HeadlessQueue().Submissions()
	require.Len(t, subs, 1)
	require.Len(t, subs[0].ListIDs, 4)
	assert.Equal(t, listID(a), subs[0].ListIDs[1])
	assert.Equal(t, listID(b), subs[0].ListIDs[3])

	got := subs[0].Barriers()
	require.Len(t, got, 3)
	assert.Equal(t, gpu.StateCommon, got[0].Before)
	assert.Equal(t, gpu.StateRenderTarget, got[0].After)
	assert.Equal(t, gpu.StateRenderTarget, got[1].Before)
	assert.Equal(t, gpu.StatePixelShaderResource, got[1].After)
	assert.Equal(t, gpu.StatePixelShaderResource, got[2].Before)
	assert.Equal(t, gpu.StateCopySource, got[2].After)
	assert.Equal(t, 3, f.ring.BarrierCount())

	s, _ := f.table.State(r, gpu.AllSubresources)
	assert.Equal(t, gpu.StateCopySource, s)
}

func TestSideBufferSkippedWhenNothingToReconcile(t *testing.T) {
	f := newFixture(t, headless.Options{AutoComplete: true}, Options{})
	r := f.texture(t, "ui", gpu.StateRenderTarget)

	require.NoError(t, f.ring.NewFrame())
	cb, err := f.ring.CreateCommandBuffer()
	require.NoError(t, err)
	cb.TransitionResource(r, gpu.AllSubresources, gpu.StateRenderTarget)
	require.NoError(t, f.ring.ExecuteCommandLists(cb))

	subs := f.dev.HeadlessQueue().Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, []int{listID(cb)}, subs[0].ListIDs)
	assert.Empty(t, subs[0].Barriers())
}

func TestGPUStateCache(t *testing.T) {
	f := newFixture(t, headless.Options{}, Options{})
	pso, err := f.dev.CreatePipelineState(gpu.PipelineStateDesc{Name: "opaque"})
	require.NoError(t, err)
	tex := f.texture(t, "albedo", gpu.StatePixelShaderResource)

	require.NoError(t, f.ring.NewFrame())
	cb, err := f.ring.CreateCommandBuffer()
	require.NoError(t, err)

	assert.True(t, cb.SetPipelineState(pso))
	assert.False(t, cb.SetPipelineState(pso))

	bindings := []gpu.Binding{{Slot: 0, Resource: tex}, {Slot: 1, Constants: []uint32{1, 2}}}
	assert.Equal(t, 2, cb.SetBindings(bindings))
	assert.Equal(t, 0, cb.SetBindings(bindings))
	assert.Equal(t, 1, cb.SetBindings([]gpu.Binding{{Slot: 1, Constants: []uint32{1, 3}}}))

	list := cb.List().(*headless.CommandList)
	assert.Equal(t, 1, list.Count(headless.OpSetPipelineState))
	assert.Equal(t, 2, list.Count(headless.OpSetBindings))

	require.NoError(t, cb.Reset())
	assert.True(t, cb.SetPipelineState(pso))
}

func TestDrawFlushesResolvedBarriers(t *testing.T) {
	f := newFixture(t, headless.Options{}, Options{})
	r := f.texture(t, "target", gpu.StateCommon)

	require.NoError(t, f.ring.NewFrame())
	cb, err := f.ring.CreateCommandBuffer()
	require.NoError(t, err)

	cb.TransitionResource(r, gpu.AllSubresources, gpu.StateRenderTarget)
	cb.TransitionResource(r, gpu.AllSubresources, gpu.StateUnorderedAccess)
	cb.Dispatch(8, 8, 1)

	cmds := cb.List().(*headless.CommandList).Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, headless.OpBarrier, cmds[0].Op)
	assert.Equal(t, headless.OpDispatch, cmds[1].Op)
	assert.Equal(t, 1, cb.BarrierCount())
}

func TestRecordingAfterCloseIsFatal(t *testing.T) {
	f := newFixture(t, headless.Options{}, Options{})
	r := f.texture(t, "late", gpu.StateCommon)

	require.NoError(t, f.ring.NewFrame())
	cb, err := f.ring.CreateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, cb.Close())

	err = func() (err error) {
		defer core.RecoverFatal(&err)
		cb.TransitionResource(r, gpu.AllSubresources, gpu.StateCopyDest)
		return nil
	}()
	assert.ErrorIs(t, err, core.ErrContractViolation)
}

func TestDeviceRemovalIsReturned(t *testing.T) {
	f := newFixture(t, headless.Options{}, Options{})

	require.NoError(t, f.ring.NewFrame())
	cb, err := f.ring.CreateCommandBuffer()
	require.NoError(t, err)

	f.dev.Remove("TDR")
	err = f.ring.ExecuteCommandLists(cb)
	assert.ErrorIs(t, err, gpu.ErrDeviceRemoved)

	_, err = f.ring.Signal()
	assert.ErrorIs(t, err, gpu.ErrDeviceRemoved)
	assert.Equal(t, uint64(0), f.ring.FenceValue())
}

func TestWaitIdle(t *testing.T) {
	f := newFixture(t, headless.Options{}, Options{})
	require.NoError(t, f.ring.WaitIdle())

	require.NoError(t, f.ring.NewFrame())
	_, err := f.ring.Signal()
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		f.ring.Fence().(*headless.Fence).CompleteAll()
	}()
	require.NoError(t, f.ring.WaitIdle())
}
