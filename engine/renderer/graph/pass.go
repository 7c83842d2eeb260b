package graph

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type PassKind uint8

const (
	PassKindGraphics PassKind = iota
	PassKindCompute
	PassKindClear
	PassKindPresent
)

func (k PassKind) String() string {
	switch k {
	case PassKindGraphics:
		return "graphics"
	case PassKindCompute:
		return "compute"
	case PassKindClear:
		return "clear"
	case PassKindPresent:
		return "present"
	}
	return fmt.Sprintf("PassKind(%d)", uint8(k))
}

func ParsePassKind(s string) (PassKind, error) {
	switch strings.ToLower(s) {
	case "graphics":
		return PassKindGraphics, nil
	case "compute":
		return PassKindCompute, nil
	case "clear":
		return PassKindClear, nil
	case "present":
		return PassKindPresent, nil
	}
	return 0, fmt.Errorf("unknown pass kind `%s`", s)
}

// GraphicsPass draws through its SubPasses and an optional callback run
// before them.
type GraphicsPass struct {
	Execute ExecuteFunc
	// Bindings are bound once per SubPass, after its pipeline state.
	Bindings []gpu.Binding

	techniques []*Technique
	subpasses  []*SubPass
}

type ComputePass struct {
	Execute ExecuteFunc
}

// ClearPass clears every slot declared in the render target state.
type ClearPass struct {
	Colour [4]float32
}

// PresentPass hands its first slot over to the display once it is in its
// declared state.
type PresentPass struct {
	Present PresentFunc
}

// Pass is a node of the render graph. Exactly one of the kind specific
// fields is set, matching Kind.
type Pass struct {
	name      string
	kind      PassKind
	index     int
	finalized bool
	resources []*PassResource

	graphics *GraphicsPass
	compute  *ComputePass
	clear    *ClearPass
	present  *PresentPass
}

func newPass(name string, kind PassKind) *Pass {
	core.Assert(name != "", "a pass needs a name")
	return &Pass{name: name, kind: kind, index: -1}
}

func NewGraphicsPass(name string, execute ExecuteFunc) *Pass {
	p := newPass(name, PassKindGraphics)
	p.graphics = &GraphicsPass{Execute: execute}
	return p
}

func NewComputePass(name string, execute ExecuteFunc) *Pass {
	core.Assert(execute != nil, "compute pass `%s` needs an execute callback", name)
	p := newPass(name, PassKindCompute)
	p.compute = &ComputePass{Execute: execute}
	return p
}

func NewClearPass(name string, colour [4]float32) *Pass {
	p := newPass(name, PassKindClear)
	p.clear = &ClearPass{Colour: colour}
	return p
}

// NewPresentPass creates a present pass. present may be nil when nothing
// consumes the presented resource, e.g. offscreen.
func NewPresentPass(name string, present PresentFunc) *Pass {
	p := newPass(name, PassKindPresent)
	p.present = &PresentPass{Present: present}
	return p
}

func (p *Pass) Name() string { return p.name }
func (p *Pass) Kind() PassKind { return p.kind }

// Index returns the position of the pass in its graph, -1 if not added.
func (p *Pass) Index() int { return p.index }

func (p *Pass) Graphics() *GraphicsPass { return p.graphics }
func (p *Pass) Compute() *ComputePass { return p.compute }
func (p *Pass) Clear() *ClearPass { return p.clear }
func (p *Pass) Present() *PresentPass { return p.present }

/**
 * @brief Declares a slot covering every subresource.
 * @param name The name of the slot, unique within the pass.
 * @param kind The kind of resource the slot accepts.
 * @param state The state the resource must be in before the pass executes.
 * @returns the index of the slot.
 */
func (p *Pass) AddResource(name string, kind gpu.ResourceKind, state gpu.ResourceState) int {
	return p.AddSubresource(name, kind, state, gpu.AllSubresources)
}

// AddSubresource declares a slot restricted to a single subresource.
func (p *Pass) AddSubresource(name string, kind gpu.ResourceKind, state gpu.ResourceState, sub uint32) int {
	core.Assert(!p.finalized, "pass `%s` is finalized, cannot add slot `%s`", p.name, name)
	core.Assert(name != "", "pass `%s`: a slot needs a name", p.name)
	core.Assert(state.IsValid(), "pass `%s` slot `%s`: invalid state %s", p.name, name, state)
	core.Assert(p.SlotIndex(name) < 0, "pass `%s` already has a slot `%s`", p.name, name)
	p.resources = append(p.resources, &PassResource{
		name:        name,
		kind:        kind,
		state:       state,
		subresource: sub,
		pass:        p.index,
	})
	return len(p.resources) - 1
}

// Resources returns the slots in declaration order.
func (p *Pass) Resources() []*PassResource { return p.resources }

func (p *Pass) Slot(i int) *PassResource {
	core.Assert(i >= 0 && i < len(p.resources), "pass `%s` has no slot %d", p.name, i)
	return p.resources[i]
}

// SlotIndex returns the index of the slot called name, -1 if there is none.
func (p *Pass) SlotIndex(name string) int {
	for i, r := range p.resources {
		if r.name == name {
			return i
		}
	}
	return -1
}

/**
 * @brief Registers a technique the pass accepts jobs for.
 * @param name The name of the technique, unique within the pass.
 * @param channels The channel mask submissions are matched against.
 * @param pso The pipeline state draws of this technique run with.
 * @param bindables Bindings every draw of this technique needs.
 */
func (p *Pass) RegisterTechnique(name string, channels uint32, pso gpu.PipelineState, bindables []gpu.Binding) *Technique {
	core.Assert(p.kind == PassKindGraphics, "pass `%s` is a %s pass, only graphics passes take techniques", p.name, p.kind)
	core.Assert(!p.finalized, "pass `%s` is finalized, cannot register technique `%s`", p.name, name)
	core.Assert(pso != nil, "technique `%s` of pass `%s` needs a pipeline state", name, p.name)
	for _, t := range p.graphics.techniques {
		core.Assert(t.Name != name, "technique `%s` already registered on pass `%s`", name, p.name)
	}
	t := &Technique{
		Name:      name,
		Channels:  channels,
		Pipeline:  pso,
		Bindables: append([]gpu.Binding(nil), bindables...),
	}
	p.graphics.techniques = append(p.graphics.techniques, t)
	return t
}

func (p *Pass) Techniques() []*Technique {
	if p.graphics == nil {
		return nil
	}
	return p.graphics.techniques
}

// GetOrCreateSubPass returns the SubPass of the pass using pso, creating it
// on first use. SubPasses execute in creation order.
func (p *Pass) GetOrCreateSubPass(pso gpu.PipelineState) *SubPass {
	core.Assert(p.kind == PassKindGraphics, "pass `%s` is a %s pass, only graphics passes have subpasses", p.name, p.kind)
	for _, sp := range p.graphics.subpasses {
		if sp.pipeline == pso {
			return sp
		}
	}
	sp := &SubPass{pass: p.index, pipeline: pso}
	p.graphics.subpasses = append(p.graphics.subpasses, sp)
	return sp
}

func (p *Pass) SubPasses() []*SubPass {
	if p.graphics == nil {
		return nil
	}
	return p.graphics.subpasses
}

// execute runs the pass against rec. Every slot is transitioned to its
// declared state first.
func (p *Pass) execute(rec Recorder) error {
	for _, r := range p.resources {
		rec.TransitionResource(r.resource, r.subresource, r.state)
	}

	switch p.kind {
	case PassKindGraphics:
		if p.graphics.Execute != nil {
			if err := p.graphics.Execute(rec, p); err != nil {
				return fmt.Errorf("pass `%s`: %w", p.name, err)
			}
		}
		for _, sp := range p.graphics.subpasses {
			if err := sp.Execute(rec, p.graphics.Bindings); err != nil {
				return fmt.Errorf("pass `%s`: %w", p.name, err)
			}
		}
	case PassKindCompute:
		if err := p.compute.Execute(rec, p); err != nil {
			return fmt.Errorf("pass `%s`: %w", p.name, err)
		}
	case PassKindClear:
		for _, r := range p.resources {
			if r.state == gpu.StateRenderTarget {
				rec.ClearRenderTarget(r.resource, p.clear.Colour)
			}
		}
	case PassKindPresent:
		rec.FlushResourceBarriers()
		if p.present.Present != nil && len(p.resources) > 0 {
			if err := p.present.Present(p.resources[0].resource); err != nil {
				return fmt.Errorf("pass `%s`: %w", p.name, err)
			}
		}
	}

	rec.FlushResourceBarriers()
	return nil
}

func (p *Pass) reset() {
	for _, r := range p.resources {
		r.resource = nil
	}
	for _, sp := range p.SubPasses() {
		sp.jobs = sp.jobs[:0]
	}
}
