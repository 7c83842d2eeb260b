package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/framegraph/engine/assets"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *metadata.EngineConfig
	device        gpu.Device
	events        *core.EventSystem
	systemManager *systems.SystemManager
	watcher       *assets.GraphWatcher
	graph         *graph.RenderGraph
	clock         *core.Clock
	metrics       *core.Metrics
	lastTime      float64
	frames        uint64

	isRunning     atomic.Bool
	reloadPending atomic.Bool
}

// New loads the configuration and builds the systems over device. The engine
// owns device from here on and closes it on Shutdown.
func New(g *Game, device gpu.Device) (*Engine, error) {
	if g == nil {
		return nil, errors.New("nil game instance")
	}
	if device == nil {
		return nil, errors.New("nil device")
	}

	cfg, err := g.ApplicationConfig.load()
	if err != nil {
		return nil, err
	}
	core.SetLogLevel(cfg.LogLevel)

	events := core.NewEventSystem()
	sm, err := systems.NewSystemManager(device, &cfg.Renderer, events)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	g.Config = cfg
	g.SystemManager = sm

	return &Engine{
		currentStage:  EngineStageUninitialized,
		gameInstance:  g,
		config:        cfg,
		device:        device,
		events:        events,
		systemManager: sm,
		clock:         core.NewClock(),
		metrics:       core.NewMetrics(),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_GRAPH_RELOAD_REQUIRED, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_DEVICE_LOST, e, e.onEvent)

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}

	g, err := e.buildGraph()
	if err != nil {
		return err
	}
	e.graph = g

	if e.config.Renderer.HotReload && e.config.Renderer.GraphPath != "" {
		w, err := assets.NewGraphWatcher(e.events)
		if err != nil {
			return err
		}
		if err := w.Watch(e.config.Renderer.GraphPath); err != nil {
			w.Shutdown()
			return err
		}
		e.watcher = w
	}

	core.LogInfo("%s initialized with graph `%s` (%d passes)", e.config.ApplicationName, g.Name(), len(g.Passes()))
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) buildGraph() (*graph.RenderGraph, error) {
	if path := e.config.Renderer.GraphPath; path != "" {
		desc, err := core.LoadRenderGraphConfig(path)
		if err != nil {
			return nil, err
		}
		var cb graph.Callbacks
		if e.gameInstance.FnCallbacks != nil {
			cb = e.gameInstance.FnCallbacks()
		}
		return graph.FromConfig(desc, cb)
	}
	if e.gameInstance.FnBuildGraph == nil {
		return nil, errors.New("no render graph: set a graph path or a graph builder")
	}
	g, err := e.gameInstance.FnBuildGraph()
	if err != nil {
		return nil, err
	}
	if !g.Finalized() {
		return nil, fmt.Errorf("render graph `%s` is not finalized", g.Name())
	}
	return g, nil
}

// reloadGraph swaps in a graph rebuilt from its description. A description
// that fails to build keeps the current graph.
func (e *Engine) reloadGraph() {
	g, err := e.buildGraph()
	if err != nil {
		core.LogError("render graph reload failed, keeping `%s`: %s", e.graph.Name(), err)
		return
	}
	core.LogInfo("render graph `%s` reloaded (%d passes)", g.Name(), len(g.Passes()))
	e.graph = g
}

/**
 * @brief Runs the frame loop until the application quits, ctx is done or
 * the configured frame count is reached.
 * @returns the first runtime error. Contract violations raised while
 * recording are returned as errors too.
 */
func (e *Engine) Run(ctx context.Context) (err error) {
	defer core.RecoverFatal(&err)

	if e.currentStage < EngineStageInitialized || e.currentStage == EngineStageShuttingDown {
		return errors.New("engine is not initialized")
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed().Seconds()

	maxFrames := e.config.Renderer.MaxFrames
	for e.isRunning.Load() {
		if ctx.Err() != nil {
			break
		}
		if maxFrames > 0 && e.frames >= maxFrames {
			break
		}

		// Between frames: no graph is recording.
		if e.reloadPending.Swap(false) {
			e.reloadGraph()
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed().Seconds()
		delta := currentTime - e.lastTime

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(e.graph, delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				return err
			}
		}

		stats, err := e.systemManager.RendererSystem.DrawFrame(ctx, e.graph)
		if err != nil {
			core.LogError("frame %d failed, shutting down: %s", e.frames, err)
			return err
		}
		e.metrics.Update(stats.Elapsed, stats.Barriers)
		e.frames++
		e.lastTime = currentTime
	}

	fps, frameMS := e.metrics.Frame()
	core.LogInfo("stopped after %d frames (%.1f fps, %.3f ms avg, %.2f barriers per frame)",
		e.frames, fps, frameMS, e.metrics.BarriersPerFrame())
	return nil
}

// Stop asks the frame loop to return after the current frame.
func (e *Engine) Stop() {
	// NOTE: Technically firing an event to itself, but there may be other listeners.
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	if e.watcher != nil {
		if err := e.watcher.Shutdown(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			return err
		}
	}
	if err := e.systemManager.Shutdown(); err != nil {
		return err
	}
	if err := e.events.Shutdown(); err != nil {
		return err
	}
	if err := e.device.Close(); err != nil {
		return err
	}
	return nil
}

func (e *Engine) Events() *core.EventSystem { return e.events }

func (e *Engine) Metrics() *core.Metrics { return e.metrics }

// Graph returns the graph recorded by the next frame.
func (e *Engine) Graph() *graph.RenderGraph { return e.graph }

func (e *Engine) Frames() uint64 { return e.frames }

func (e *Engine) Stage() Stage { return e.currentStage }

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	case core.EVENT_CODE_GRAPH_RELOAD_REQUIRED:
		e.reloadPending.Store(true)
		return false
	case core.EVENT_CODE_DEVICE_LOST:
		if err, ok := context.Data.(error); ok {
			core.LogError("device lost: %s", err)
		}
		e.isRunning.Store(false)
		return false
	}
	return false
}
