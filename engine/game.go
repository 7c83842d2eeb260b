package engine

import (
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/systems"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	// Set by the engine before FnInitialize is called.
	Config        *metadata.EngineConfig
	SystemManager *systems.SystemManager
	State         interface{}
	FnInitialize  Initialize
	FnCallbacks   GraphCallbacks
	FnBuildGraph  BuildGraph
	FnUpdate      Update
	FnShutdown    Shutdown
}

// Initialize creates the resources and pipelines the graph refers to.
type Initialize func() error

// GraphCallbacks resolves the names used by a graph description file.
type GraphCallbacks func() graph.Callbacks

// BuildGraph wires the graph in code. Used when no description file is configured.
type BuildGraph func() (*graph.RenderGraph, error)

// Update runs once per frame before the graph is recorded, typically to
// submit drawables.
type Update func(g *graph.RenderGraph, deltaTime float64) error

type Shutdown func() error
