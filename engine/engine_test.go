package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

const clearPresent = `
name = "%s"

[[pass]]
name = "clear"
kind = "clear"

  [[pass.resource]]
  name = "target"
  kind = "texture"
  state = "render_target"
  from = "@backbuffer"

[[pass]]
name = "present"
kind = "present"

  [[pass.resource]]
  name = "source"
  kind = "texture"
  state = "present"
  from = "clear.target"
`

type testGame struct {
	*Game
	backbuffer *gpu.Resource
	updates    int
}

func newTestGame(cfg *metadata.EngineConfig) *testGame {
	tg := &testGame{Game: &Game{ApplicationConfig: &ApplicationConfig{Config: cfg}}}
	tg.FnInitialize = func() error {
		bb, err := tg.SystemManager.TextureCache.Acquire(gpu.ResourceDesc{
			Name:         "backbuffer",
			Width:        64,
			Height:       64,
			Format:       gpu.FormatBGRA8Unorm,
			InitialState: gpu.StatePresent,
		})
		tg.backbuffer = bb
		return err
	}
	tg.FnCallbacks = func() graph.Callbacks {
		return graph.Callbacks{
			Suppliers: map[string]graph.Supplier{
				"backbuffer": func() *gpu.Resource { return tg.backbuffer },
			},
		}
	}
	tg.FnBuildGraph = func() (*graph.RenderGraph, error) {
		g := graph.New("in-code")
		g.AddPass(graph.NewClearPass("clear", [4]float32{})).
			AddResource("target", gpu.ResourceKindTexture, gpu.StateRenderTarget)
		g.AddPass(graph.NewPresentPass("present", nil)).
			AddResource("source", gpu.ResourceKindTexture, gpu.StatePresent)
		g.ConnectSupplier("backbuffer", func() *gpu.Resource { return tg.backbuffer }, g.Ref("clear", "target"))
		g.Connect(g.Ref("clear", "target"), g.Ref("present", "source"))
		g.Finalize()
		return g, nil
	}
	tg.FnUpdate = func(*graph.RenderGraph, float64) error {
		tg.updates++
		return nil
	}
	return tg
}

func writeGraph(t *testing.T, path, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(clearPresent, name)), 0o644))
}

func TestRunStopsAfterMaxFrames(t *testing.T) {
	tg := newTestGame(&metadata.EngineConfig{
		LogLevel: "error",
		Renderer: metadata.RendererConfig{MaxFrames: 5},
	})
	dev := headless.New(headless.Options{AutoComplete: true})

	e, err := New(tg.Game, dev)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	assert.Equal(t, "in-code", e.Graph().Name())

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint64(5), e.Frames())
	assert.Equal(t, 5, tg.updates)
	assert.Equal(t, uint64(5), e.Metrics().TotalFrames())
	// Present -> RenderTarget and back, every frame.
	assert.Equal(t, 2.0, e.Metrics().BarriersPerFrame())

	require.NoError(t, e.Shutdown())
	assert.Equal(t, 0, dev.ResourceCount())
}

func TestRunRequiresInitialize(t *testing.T) {
	e, err := New(newTestGame(nil).Game, headless.New(headless.Options{AutoComplete: true}))
	require.NoError(t, err)
	assert.Error(t, e.Run(context.Background()))
}

func TestStopEndsTheLoop(t *testing.T) {
	tg := newTestGame(nil)
	e, err := New(tg.Game, headless.New(headless.Options{AutoComplete: true}))
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	tg.FnUpdate = func(*graph.RenderGraph, float64) error {
		tg.updates++
		if tg.updates == 2 {
			e.Stop()
		}
		return nil
	}
	require.NoError(t, e.Run(context.Background()))
	// The frame during which Stop was called still completes.
	assert.Equal(t, uint64(2), e.Frames())
	require.NoError(t, e.Shutdown())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	tg := newTestGame(nil)
	e, err := New(tg.Game, headless.New(headless.Options{AutoComplete: true}))
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))
	assert.Equal(t, uint64(0), e.Frames())
}

func TestRunReturnsDeviceLoss(t *testing.T) {
	tg := newTestGame(nil)
	dev := headless.New(headless.Options{AutoComplete: true})
	e, err := New(tg.Game, dev)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	lost := false
	e.Events().Register(core.EVENT_CODE_DEVICE_LOST, t, func(core.EventContext) bool {
		lost = true
		return false
	})

	dev.Remove("TDR")
	err = e.Run(context.Background())
	assert.ErrorIs(t, err, gpu.ErrDeviceRemoved)
	assert.True(t, lost)
}

func TestGraphFromDescriptionAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forward.toml")
	writeGraph(t, path, "forward")

	tg := newTestGame(&metadata.EngineConfig{
		Renderer: metadata.RendererConfig{GraphPath: path, MaxFrames: 1},
	})
	tg.FnBuildGraph = nil
	e, err := New(tg.Game, headless.New(headless.Options{AutoComplete: true}))
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	assert.Equal(t, "forward", e.Graph().Name())

	// A broken description keeps the running graph.
	require.NoError(t, os.WriteFile(path, []byte(`name = "broken"`), 0o644))
	e.Events().Fire(core.EventContext{Type: core.EVENT_CODE_GRAPH_RELOAD_REQUIRED, Data: path})
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, "forward", e.Graph().Name())

	writeGraph(t, path, "forward-v2")
	e.Events().Fire(core.EventContext{Type: core.EVENT_CODE_GRAPH_RELOAD_REQUIRED, Data: path})
	e.config.Renderer.MaxFrames = 2
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, "forward-v2", e.Graph().Name())
	assert.Equal(t, uint64(2), e.Frames())

	require.NoError(t, e.Shutdown())
}

func TestInitializeWithoutGraphFails(t *testing.T) {
	tg := newTestGame(nil)
	tg.FnBuildGraph = nil
	e, err := New(tg.Game, headless.New(headless.Options{AutoComplete: true}))
	require.NoError(t, err)
	assert.Error(t, e.Initialize())
}
