package gpu

import "fmt"

type BarrierType uint8

const (
	BarrierTransition BarrierType = iota
	BarrierAliasing
	BarrierUAV
)

// Barrier is one entry of a ResourceBarrier call.
type Barrier struct {
	Type BarrierType
	// Transition and UAV barriers.
	Resource    *Resource
	Subresource uint32
	Before      ResourceState
	After       ResourceState
	// Aliasing barriers. Either may be nil.
	AliasBefore *Resource
	AliasAfter  *Resource
}

func TransitionBarrier(r *Resource, sub uint32, before, after ResourceState) Barrier {
	return Barrier{
		Type:        BarrierTransition,
		Resource:    r,
		Subresource: sub,
		Before:      before,
		After:       after,
	}
}

func (b Barrier) String() string {
	switch b.Type {
	case BarrierTransition:
		sub := "all"
		if b.Subresource != AllSubresources {
			sub = fmt.Sprintf("%d", b.Subresource)
		}
		return fmt.Sprintf("transition %s[%s] %s -> %s", b.Resource, sub, b.Before, b.After)
	case BarrierAliasing:
		return fmt.Sprintf("aliasing %s -> %s", b.AliasBefore, b.AliasAfter)
	case BarrierUAV:
		return fmt.Sprintf("uav %s", b.Resource)
	default:
		return fmt.Sprintf("BarrierType(%d)", b.Type)
	}
}
