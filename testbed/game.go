package testbed

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/framegraph/engine"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
)

const (
	channelOpaque uint32 = 1 << iota
	channelShadowCaster
)

type TestGame struct {
	*engine.Game
}

type mesh struct {
	name     string
	vertices *gpu.Resource
	origin   math.Vec3
	halfSize float32
	speed    float32
	position math.Vec3
	// shared by every mesh, passes record in parallel.
	draws *atomic.Uint64
}

func (m *mesh) bounds() math.Extents3D {
	h := math.NewVec3(m.halfSize, m.halfSize, m.halfSize)
	return math.NewExtents3DFromPoints(m.position.Sub(h), m.position.Add(h))
}

func (m *mesh) Draw(rec graph.Recorder, technique *graph.Technique) error {
	rec.SetVertexBuffer(m.vertices)
	rec.Draw(gpu.DrawArgs{VertexCount: 36, InstanceCount: 1})
	m.draws.Add(1)
	return nil
}

type gameState struct {
	backbuffer *gpu.Resource
	shadowMap  *gpu.Resource
	meshes     []*mesh
	// Only meshes intersecting the view volume are submitted.
	view math.Extents3D

	elapsed   float64
	presented uint64
	culled    uint64
	draws     atomic.Uint64
}

func NewTestGame(configPath string) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{ConfigPath: configPath},
			State: &gameState{
				view: math.NewExtents3DFromPoints(math.NewVec3(-20, -20, -20), math.NewVec3(20, 20, 20)),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnCallbacks = tg.Callbacks
	tg.FnBuildGraph = tg.BuildGraph
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers")
	}
	state := g.state()
	sm := g.SystemManager

	for _, desc := range []gpu.PipelineStateDesc{
		{
			Name:           "shadow",
			VertexShader:   "shadow.vert",
			DepthFormat:    gpu.FormatD32Float,
			DepthWriteMask: true,
		},
		{
			Name:          "lit",
			VertexShader:  "lit.vert",
			PixelShader:   "lit.frag",
			RenderTargets: []gpu.Format{gpu.FormatBGRA8Unorm},
		},
	} {
		if err := sm.PipelineCache.Register(desc); err != nil {
			return err
		}
	}

	bb, err := sm.TextureCache.Acquire(gpu.ResourceDesc{
		Name:         "backbuffer",
		Width:        g.Config.Renderer.Width,
		Height:       g.Config.Renderer.Height,
		Format:       gpu.FormatBGRA8Unorm,
		InitialState: gpu.StatePresent,
	})
	if err != nil {
		return err
	}
	state.backbuffer = bb

	shadow, err := sm.TextureCache.Acquire(gpu.ResourceDesc{
		Name:   "shadowmap",
		Width:  2048,
		Height: 2048,
		Format: gpu.FormatD32Float,
	})
	if err != nil {
		return err
	}
	state.shadowMap = shadow

	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("cube_%d", i)
		// 36 vertices, position + normal + uv.
		vb, err := sm.ResourceSystem.CreateBuffer(name, 36*32, gpu.StateVertexAndConstantBuffer)
		if err != nil {
			return err
		}
		origin := math.NewVec3(float32(i*5)-17.5, 0, 0)
		state.meshes = append(state.meshes, &mesh{
			name:     name,
			vertices: vb,
			origin:   origin,
			position: origin,
			halfSize: 1,
			speed:    float32(i%3) + 1,
			draws:    &state.draws,
		})
	}
	return nil
}

// Callbacks resolves the names used by assets/forward.toml.
func (g *TestGame) Callbacks() graph.Callbacks {
	state := g.state()
	return graph.Callbacks{
		Execute: map[string]graph.ExecuteFunc{
			"bind_shadow": g.bindShadow,
		},
		Present: map[string]graph.PresentFunc{
			"swap": g.present,
		},
		Suppliers: map[string]graph.Supplier{
			"backbuffer": func() *gpu.Resource { return state.backbuffer },
			"shadowmap":  func() *gpu.Resource { return state.shadowMap },
		},
		Pipeline: g.SystemManager.PipelineCache.Get,
	}
}

// BuildGraph wires the same graph as assets/forward.toml in code.
func (g *TestGame) BuildGraph() (*graph.RenderGraph, error) {
	state := g.state()
	cb := g.Callbacks()

	rg := graph.New("forward")

	rg.AddPass(graph.NewClearPass("clear", [4]float32{0.1, 0.1, 0.12, 1})).
		AddResource("target", gpu.ResourceKindTexture, gpu.StateRenderTarget)

	shadowPass := rg.AddPass(graph.NewGraphicsPass("shadow", nil))
	shadowPass.AddResource("depth", gpu.ResourceKindTexture, gpu.StateDepthWrite)
	shadowPSO, err := cb.Pipeline("shadow")
	if err != nil {
		return nil, err
	}
	shadowPass.RegisterTechnique("shadow_caster", channelShadowCaster, shadowPSO, nil)

	opaque := rg.AddPass(graph.NewGraphicsPass("opaque", g.bindShadow))
	opaque.AddResource("target", gpu.ResourceKindTexture, gpu.StateRenderTarget)
	opaque.AddResource("shadow", gpu.ResourceKindTexture, gpu.StatePixelShaderResource)
	litPSO, err := cb.Pipeline("lit")
	if err != nil {
		return nil, err
	}
	opaque.RegisterTechnique("lit", channelOpaque, litPSO, nil)

	rg.AddPass(graph.NewPresentPass("present", g.present)).
		AddResource("source", gpu.ResourceKindTexture, gpu.StatePresent)

	rg.ConnectSupplier("backbuffer", func() *gpu.Resource { return state.backbuffer }, rg.Ref("clear", "target"))
	rg.ConnectSupplier("shadowmap", func() *gpu.Resource { return state.shadowMap }, rg.Ref("shadow", "depth"))
	rg.Connect(rg.Ref("clear", "target"), rg.Ref("opaque", "target"))
	rg.Connect(rg.Ref("shadow", "depth"), rg.Ref("opaque", "shadow"))
	rg.Connect(rg.Ref("opaque", "target"), rg.Ref("present", "source"))
	rg.Finalize()
	return rg, nil
}

func (g *TestGame) bindShadow(rec graph.Recorder, pass *graph.Pass) error {
	shadow := pass.Slot(pass.SlotIndex("shadow"))
	rec.SetBindings([]gpu.Binding{{Slot: 0, Resource: shadow.Resource()}})
	return nil
}

func (g *TestGame) present(target *gpu.Resource) error {
	g.state().presented++
	return nil
}

// Update moves the meshes back and forth and submits the visible ones.
func (g *TestGame) Update(rg *graph.RenderGraph, deltaTime float64) error {
	state := g.state()
	state.elapsed += deltaTime

	for _, m := range state.meshes {
		// Sawtooth sweep along z, every mesh at its own speed. Meshes start at
		// their origin, inside the view.
		cycles := state.elapsed*float64(m.speed)/4 + 0.5
		phase := float32(cycles - float64(int64(cycles)))
		offset := math.Clamp(2*phase-1, -1, 1)
		m.position = m.origin.Add(math.NewVec3(0, 0, offset*30))

		b := m.bounds()
		if !state.view.Intersects(b) {
			state.culled++
			continue
		}
		rg.Submit(m, b, channelOpaque|channelShadowCaster)
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.state()
	core.LogInfo("testbed presented %d frames, drew %d meshes, culled %d", state.presented, state.draws.Load(), state.culled)
	for _, m := range state.meshes {
		if err := g.SystemManager.ResourceSystem.Destroy(m.vertices); err != nil {
			return err
		}
	}
	state.meshes = nil
	return nil
}
