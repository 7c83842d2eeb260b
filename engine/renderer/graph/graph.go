// Package graph implements the render graph: passes executed in insertion
// order, connected by typed resource slots whose declared states drive the
// transitions recorded before each pass.
package graph

import (
	"github.com/google/uuid"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type GraphState int

const (
	GRAPH_STATE_BUILDING GraphState = iota
	GRAPH_STATE_FINALIZED
)

type RenderGraph struct {
	id     uuid.UUID
	name   string
	state  GraphState
	passes []*Pass
	byName map[string]int

	suppliers map[string]Supplier
	// resolved supplier results of the frame being executed.
	supplied map[string]*gpu.Resource

	// OnPassExecuted, if set, is called after each pass with its name.
	OnPassExecuted func(name string)
}

func New(name string) *RenderGraph {
	return &RenderGraph{
		id:        uuid.New(),
		name:      name,
		state:     GRAPH_STATE_BUILDING,
		byName:    make(map[string]int),
		suppliers: make(map[string]Supplier),
		supplied:  make(map[string]*gpu.Resource),
	}
}

func (g *RenderGraph) ID() uuid.UUID { return g.id }

func (g *RenderGraph) Name() string { return g.name }

func (g *RenderGraph) State() GraphState { return g.state }

func (g *RenderGraph) Finalized() bool { return g.state == GRAPH_STATE_FINALIZED }

func (g *RenderGraph) assertBuilding(op string) {
	core.Assert(g.state == GRAPH_STATE_BUILDING, "graph `%s` is finalized, cannot %s", g.name, op)
}

/**
 * @brief Appends p to the graph. The order passes are added in is the order
 * they execute in.
 * @returns p, for chaining.
 */
func (g *RenderGraph) AddPass(p *Pass) *Pass {
	g.assertBuilding("add pass")
	core.Assert(p != nil, "graph `%s`: nil pass", g.name)
	core.Assert(p.index < 0, "pass `%s` already belongs to a graph", p.name)
	_, exists := g.byName[p.name]
	core.Assert(!exists, "graph `%s` already has a pass `%s`", g.name, p.name)

	p.index = len(g.passes)
	for _, r := range p.resources {
		r.pass = p.index
	}
	for _, sp := range p.SubPasses() {
		sp.pass = p.index
	}
	g.passes = append(g.passes, p)
	g.byName[p.name] = p.index
	return p
}

// Passes returns the passes in execution order.
func (g *RenderGraph) Passes() []*Pass { return g.passes }

// Pass returns the pass called name, nil if there is none.
func (g *RenderGraph) Pass(name string) *Pass {
	if i, ok := g.byName[name]; ok {
		return g.passes[i]
	}
	return nil
}

// Ref resolves a pass and slot name. Unknown names are fatal.
func (g *RenderGraph) Ref(pass, slot string) SlotRef {
	i, ok := g.byName[pass]
	core.Assert(ok, "graph `%s` has no pass `%s`", g.name, pass)
	s := g.passes[i].SlotIndex(slot)
	core.Assert(s >= 0, "pass `%s` has no slot `%s`", pass, slot)
	return SlotRef{Pass: i, Slot: s}
}

func (g *RenderGraph) slot(ref SlotRef) *PassResource {
	core.Assert(ref.Pass >= 0 && ref.Pass < len(g.passes), "graph `%s` has no pass %d", g.name, ref.Pass)
	return g.passes[ref.Pass].Slot(ref.Slot)
}

// describe names ref as "pass.slot".
func (g *RenderGraph) describe(ref SlotRef) string {
	return g.passes[ref.Pass].name + "." + g.slot(ref).name
}

/**
 * @brief Wires the consumer slot to to the producer slot from. The producer
 * must belong to a pass executing before the consumer's and carry the same
 * kind of resource. A slot is wired exactly once.
 */
func (g *RenderGraph) Connect(from, to SlotRef) {
	g.assertBuilding("connect slots")
	src, dst := g.slot(from), g.slot(to)
	core.Assert(from.Pass < to.Pass, "graph `%s`: producer `%s` must precede consumer `%s`",
		g.name, g.describe(from), g.describe(to))
	core.Assert(src.kind == dst.kind, "graph `%s`: cannot wire %s slot `%s` to %s slot `%s`",
		g.name, src.kind, g.describe(from), dst.kind, g.describe(to))
	g.wire(dst, to, source{kind: sourceSlot, slot: from, label: g.describe(from)})
}

/**
 * @brief Wires the consumer slot to to an external supplier. The supplier is
 * registered under name on first use; later connections to the same name may
 * pass a nil supplier.
 */
func (g *RenderGraph) ConnectSupplier(name string, supplier Supplier, to SlotRef) {
	g.assertBuilding("connect suppliers")
	core.Assert(name != "", "graph `%s`: a supplier needs a name", g.name)
	_, exists := g.suppliers[name]
	if supplier != nil {
		core.Assert(!exists, "graph `%s` already has a supplier `%s`", g.name, name)
		g.suppliers[name] = supplier
	} else {
		core.Assert(exists, "graph `%s` has no supplier `%s`", g.name, name)
	}
	g.wire(g.slot(to), to, source{kind: sourceSupplier, supplier: name, label: "@" + name})
}

func (g *RenderGraph) wire(dst *PassResource, to SlotRef, src source) {
	core.Assert(!dst.Wired(), "graph `%s`: slot `%s` is already wired to `%s`",
		g.name, g.describe(to), dst.Source())
	dst.source = src
}

/**
 * @brief Locks the structure of the graph. Every slot must be wired and the
 * graph may be finalized only once.
 */
func (g *RenderGraph) Finalize() {
	core.Assert(g.state == GRAPH_STATE_BUILDING, "graph `%s` is already finalized", g.name)
	core.Assert(len(g.passes) > 0, "graph `%s` has no passes", g.name)
	for _, p := range g.passes {
		for _, r := range p.resources {
			core.Assert(r.Wired(), "graph `%s`: slot `%s.%s` is not wired", g.name, p.name, r.name)
		}
	}
	for _, p := range g.passes {
		p.finalized = true
	}
	g.state = GRAPH_STATE_FINALIZED
	core.LogDebug("render graph `%s` finalized with %d passes", g.name, len(g.passes))
}

func (g *RenderGraph) resolve() {
	for _, p := range g.passes {
		for _, r := range p.resources {
			switch r.source.kind {
			case sourceSlot:
				r.resource = g.slot(r.source.slot).resource
			case sourceSupplier:
				res, ok := g.supplied[r.source.supplier]
				if !ok {
					res = g.suppliers[r.source.supplier]()
					g.supplied[r.source.supplier] = res
				}
				r.resource = res
			}
			core.Assert(r.resource != nil, "graph `%s`: slot `%s.%s` resolved to no resource", g.name, p.name, r.name)
			core.Assert(r.resource.Kind() == r.kind, "graph `%s`: slot `%s.%s` expects a %s, got %s",
				g.name, p.name, r.name, r.kind, r.resource)
		}
	}
}

/**
 * @brief Records every pass, in order, into rec. Suppliers are invoked once
 * and each slot is transitioned to its declared state before its pass runs;
 * the recorder elides transitions to the state a resource is already in.
 * @returns the first error returned by a pass callback.
 */
func (g *RenderGraph) Execute(rec Recorder) error {
	core.Assert(g.state == GRAPH_STATE_FINALIZED, "graph `%s` must be finalized before it executes", g.name)
	g.resolve()
	for _, p := range g.passes {
		if err := p.execute(rec); err != nil {
			return err
		}
		if g.OnPassExecuted != nil {
			g.OnPassExecuted(p.name)
		}
	}
	return nil
}

// Reset clears the queued jobs and the resources resolved for the frame.
// The topology is kept.
func (g *RenderGraph) Reset() {
	for _, p := range g.passes {
		p.reset()
	}
	for k := range g.supplied {
		delete(g.supplied, k)
	}
}

/**
 * @brief Queues a job for drawable on every technique whose channels match
 * filter, across the graphics passes of the graph. Culling against bounds is
 * the caller's job; bounds are kept on the job.
 * @returns the number of jobs queued.
 */
func (g *RenderGraph) Submit(drawable Drawable, bounds math.Extents3D, filter uint32) int {
	core.Assert(g.state == GRAPH_STATE_FINALIZED, "graph `%s` must be finalized before submissions", g.name)
	core.Assert(drawable != nil, "graph `%s`: nil drawable", g.name)
	n := 0
	for _, p := range g.passes {
		if p.kind != PassKindGraphics {
			continue
		}
		for _, t := range p.graphics.techniques {
			if t.Channels&filter == 0 {
				continue
			}
			p.GetOrCreateSubPass(t.Pipeline).Accept(Job{Technique: t, Drawable: drawable, Bounds: bounds})
			n++
		}
	}
	return n
}
