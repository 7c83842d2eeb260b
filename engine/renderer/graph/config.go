package graph

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// Callbacks resolves the names a graph description refers to.
type Callbacks struct {
	Execute   map[string]ExecuteFunc
	Present   map[string]PresentFunc
	Suppliers map[string]Supplier
	// Pipeline returns the pipeline state registered under name.
	Pipeline func(name string) (gpu.PipelineState, error)
}

/**
 * @brief Builds and finalizes a graph from its description. Unlike graphs
 * wired in code, a description comes from a file that may be edited while
 * the engine runs, so wiring errors are returned instead of being fatal.
 */
func FromConfig(cfg *metadata.RenderGraphConfig, cb Callbacks) (g *RenderGraph, err error) {
	defer func() {
		if err != nil {
			g = nil
		}
	}()
	defer core.RecoverFatal(&err)

	if cfg == nil {
		return nil, fmt.Errorf("nil render graph description")
	}
	g = New(cfg.Name)

	for _, pc := range cfg.Passes {
		p, err := passFromConfig(pc, cb)
		if err != nil {
			return nil, fmt.Errorf("graph `%s`: %w", cfg.Name, err)
		}
		g.AddPass(p)
	}

	for _, pc := range cfg.Passes {
		for _, rc := range pc.Resources {
			to := g.Ref(pc.Name, rc.Name)
			if err := connectFromConfig(g, rc.From, to, cb); err != nil {
				return nil, fmt.Errorf("graph `%s` slot `%s.%s`: %w", cfg.Name, pc.Name, rc.Name, err)
			}
		}
	}

	g.Finalize()
	return g, nil
}

func passFromConfig(pc metadata.RenderPassConfig, cb Callbacks) (*Pass, error) {
	kind, err := ParsePassKind(pc.Kind)
	if err != nil {
		return nil, fmt.Errorf("pass `%s`: %w", pc.Name, err)
	}

	var p *Pass
	switch kind {
	case PassKindGraphics, PassKindCompute:
		var fn ExecuteFunc
		if pc.Callback != "" {
			var ok bool
			if fn, ok = cb.Execute[pc.Callback]; !ok {
				return nil, fmt.Errorf("pass `%s`: no execute callback `%s`", pc.Name, pc.Callback)
			}
		} else if kind == PassKindCompute {
			return nil, fmt.Errorf("compute pass `%s` needs a callback", pc.Name)
		}
		if kind == PassKindGraphics {
			p = NewGraphicsPass(pc.Name, fn)
		} else {
			p = NewComputePass(pc.Name, fn)
		}
	case PassKindClear:
		p = NewClearPass(pc.Name, pc.ClearColour)
	case PassKindPresent:
		var fn PresentFunc
		if pc.Callback != "" {
			var ok bool
			if fn, ok = cb.Present[pc.Callback]; !ok {
				return nil, fmt.Errorf("pass `%s`: no present callback `%s`", pc.Name, pc.Callback)
			}
		}
		p = NewPresentPass(pc.Name, fn)
	}

	for _, rc := range pc.Resources {
		rk, err := gpu.ParseResourceKind(rc.Kind)
		if err != nil {
			return nil, fmt.Errorf("pass `%s` slot `%s`: %w", pc.Name, rc.Name, err)
		}
		state, err := gpu.ParseResourceState(rc.State)
		if err != nil {
			return nil, fmt.Errorf("pass `%s` slot `%s`: %w", pc.Name, rc.Name, err)
		}
		if !state.IsValid() {
			return nil, fmt.Errorf("pass `%s` slot `%s`: invalid state %s", pc.Name, rc.Name, state)
		}
		sub := gpu.AllSubresources
		if rc.Subresource != nil {
			sub = *rc.Subresource
		}
		p.AddSubresource(rc.Name, rk, state, sub)
	}

	if len(pc.Techniques) > 0 && kind != PassKindGraphics {
		return nil, fmt.Errorf("pass `%s`: only graphics passes take techniques", pc.Name)
	}
	for _, tc := range pc.Techniques {
		if cb.Pipeline == nil {
			return nil, fmt.Errorf("pass `%s` technique `%s`: no pipeline resolver", pc.Name, tc.Name)
		}
		pso, err := cb.Pipeline(tc.Pipeline)
		if err != nil {
			return nil, fmt.Errorf("pass `%s` technique `%s`: %w", pc.Name, tc.Name, err)
		}
		p.RegisterTechnique(tc.Name, tc.Channels, pso, nil)
	}
	return p, nil
}

func connectFromConfig(g *RenderGraph, from string, to SlotRef, cb Callbacks) error {
	if name, ok := strings.CutPrefix(from, "@"); ok {
		if _, registered := g.suppliers[name]; registered {
			g.ConnectSupplier(name, nil, to)
			return nil
		}
		s, ok := cb.Suppliers[name]
		if !ok {
			return fmt.Errorf("no supplier `%s`", name)
		}
		g.ConnectSupplier(name, s, to)
		return nil
	}
	pass, slot, ok := strings.Cut(from, ".")
	if !ok {
		return fmt.Errorf("source `%s` is neither `pass.slot` nor `@supplier`", from)
	}
	g.Connect(g.Ref(pass, slot), to)
	return nil
}
