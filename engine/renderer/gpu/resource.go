package gpu

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/constraints"
)

// AllSubresources targets every subresource of a resource at once.
const AllSubresources uint32 = ^uint32(0)

type ResourceKind uint8

const (
	ResourceKindBuffer ResourceKind = iota
	ResourceKindTexture
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceKindBuffer:
		return "buffer"
	case ResourceKindTexture:
		return "texture"
	default:
		return fmt.Sprintf("ResourceKind(%d)", uint8(k))
	}
}

// ParseResourceKind is the inverse of ResourceKind.String.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch s {
	case "buffer":
		return ResourceKindBuffer, nil
	case "texture":
		return ResourceKindTexture, nil
	default:
		return 0, fmt.Errorf("unknown resource kind `%s`", s)
	}
}

type Format uint8

const (
	FormatUnknown Format = iota
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	FormatRGBA16Float
	FormatR32Float
	FormatD32Float
	FormatD24UnormS8Uint
)

/** @brief Describes a resource to be created by a Device. */
type ResourceDesc struct {
	/** @brief Debug name. */
	Name string
	Kind ResourceKind
	/** @brief Size in bytes. Buffers only. */
	Size uint64
	/** @brief Dimensions. Textures only. */
	Width  uint32
	Height uint32
	/** @brief Array layers. 0 means 1. */
	ArraySize uint16
	/** @brief Mip levels. 0 means 1. */
	MipLevels uint16
	Format    Format
	/** @brief The state the resource is created in. */
	InitialState ResourceState
}

// Resource is an opaque handle to a GPU-allocated buffer or image.
// Its identity is the id: trackers key their tables by it.
type Resource struct {
	id   uuid.UUID
	desc ResourceDesc
	// Native is the device specific object backing this resource.
	Native interface{}
}

// NewResource wraps a device allocation. Devices call it from CreateResource.
func NewResource(desc ResourceDesc, native interface{}) *Resource {
	if desc.ArraySize == 0 {
		desc.ArraySize = 1
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	return &Resource{
		id:     uuid.New(),
		desc:   desc,
		Native: native,
	}
}

func (r *Resource) ID() uuid.UUID { return r.id }
func (r *Resource) Name() string { return r.desc.Name }
func (r *Resource) Kind() ResourceKind { return r.desc.Kind }
func (r *Resource) Desc() ResourceDesc { return r.desc }

// SubresourceCount is mips * array layers for textures and 1 for buffers.
func (r *Resource) SubresourceCount() uint32 {
	if r.desc.Kind == ResourceKindBuffer {
		return 1
	}
	return uint32(r.desc.MipLevels) * uint32(r.desc.ArraySize)
}

// SubresourceIndex returns the flat index of a mip level in an array layer.
func (r *Resource) SubresourceIndex(mip, layer uint32) uint32 {
	return mip + layer*uint32(r.desc.MipLevels)
}

func (r *Resource) String() string {
	if r == nil {
		return "<nil resource>"
	}
	if r.desc.Name != "" {
		return fmt.Sprintf("%s(%s)", r.desc.Name, r.id.String()[:8])
	}
	return r.id.String()
}

// Align rounds operand up to a multiple of granularity, which must be a power of two.
func Align[T constraints.Unsigned](operand, granularity T) T {
	return (operand + (granularity - 1)) &^ (granularity - 1)
}
