package graph

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// SlotRef addresses a PassResource by the index of its pass in the graph and
// its index within the pass.
type SlotRef struct {
	Pass int
	Slot int
}

func (s SlotRef) String() string {
	return fmt.Sprintf("%d.%d", s.Pass, s.Slot)
}

type sourceKind uint8

const (
	sourceNone sourceKind = iota
	sourceSlot
	sourceSupplier
)

type source struct {
	kind     sourceKind
	slot     SlotRef
	supplier string
	// "pass.slot" or "@supplier", by name.
	label string
}

// PassResource is a typed slot of a pass. Its resource is resolved every
// frame from the slot or supplier it is wired to.
type PassResource struct {
	name        string
	kind        gpu.ResourceKind
	state       gpu.ResourceState
	subresource uint32
	// index of the owning pass in the graph, -1 until the pass is added.
	pass   int
	source source

	resource *gpu.Resource
}

func (pr *PassResource) Name() string { return pr.name }
func (pr *PassResource) Kind() gpu.ResourceKind { return pr.kind }
func (pr *PassResource) State() gpu.ResourceState { return pr.state }
func (pr *PassResource) Subresource() uint32 { return pr.subresource }
func (pr *PassResource) Pass() int { return pr.pass }
func (pr *PassResource) Wired() bool { return pr.source.kind != sourceNone }

// Resource returns the resource resolved for the frame being executed, nil
// outside of Execute.
func (pr *PassResource) Resource() *gpu.Resource { return pr.resource }

// Source describes what the slot is wired to: "pass.slot", "@supplier" or
// the empty string.
func (pr *PassResource) Source() string { return pr.source.label }

// SourceRef returns the producer slot the resource is wired to, false if it
// is not wired to a slot.
func (pr *PassResource) SourceRef() (SlotRef, bool) {
	return pr.source.slot, pr.source.kind == sourceSlot
}
