package gpu

import (
	"fmt"
	"math/bits"
	"strings"
)

// ResourceState describes how a resource may currently be accessed by the GPU.
// Read states may be combined; write states are exclusive.
type ResourceState uint32

const (
	StateCommon                  ResourceState = 0
	StateVertexAndConstantBuffer ResourceState = 1 << iota
	StateIndexBuffer
	StateRenderTarget
	StateUnorderedAccess
	StateDepthWrite
	StateDepthRead
	StateNonPixelShaderResource
	StatePixelShaderResource
	StateIndirectArgument
	StateCopyDest
	StateCopySource
	StatePresent

	// StateUnknown is never issued to a device. The tracker uses it for
	// subresources it has not seen yet.
	StateUnknown ResourceState = 1 << 31

	StateShaderResource = StateNonPixelShaderResource | StatePixelShaderResource
	StateGenericRead    = StateVertexAndConstantBuffer | StateIndexBuffer | StateShaderResource |
		StateIndirectArgument | StateCopySource

	writeStates = StateRenderTarget | StateUnorderedAccess | StateDepthWrite | StateCopyDest
	readStates  = StateGenericRead | StateDepthRead | StatePresent
)

var stateNames = []struct {
	state ResourceState
	name  string
}{
	{StateVertexAndConstantBuffer, "vertex_and_constant_buffer"},
	{StateIndexBuffer, "index_buffer"},
	{StateRenderTarget, "render_target"},
	{StateUnorderedAccess, "unordered_access"},
	{StateDepthWrite, "depth_write"},
	{StateDepthRead, "depth_read"},
	{StateNonPixelShaderResource, "non_pixel_shader_resource"},
	{StatePixelShaderResource, "pixel_shader_resource"},
	{StateIndirectArgument, "indirect_argument"},
	{StateCopyDest, "copy_dest"},
	{StateCopySource, "copy_source"},
	{StatePresent, "present"},
}

// IsWrite reports whether s contains a write state.
func (s ResourceState) IsWrite() bool {
	return s != StateUnknown && s&writeStates != 0
}

// IsValid reports whether s can be issued to a device: a write state must
// stand alone, and StateUnknown is never valid.
func (s ResourceState) IsValid() bool {
	if s&StateUnknown != 0 {
		return false
	}
	if s&^(writeStates|readStates) != 0 {
		return false
	}
	if w := s & writeStates; w != 0 {
		return bits.OnesCount32(uint32(s)) == 1
	}
	return true
}

func (s ResourceState) String() string {
	switch s {
	case StateCommon:
		return "common"
	case StateUnknown:
		return "unknown"
	}
	var parts []string
	for _, n := range stateNames {
		if s&n.state != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := s &^ (writeStates | readStates); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseResourceState parses the String form of a state, e.g.
// "pixel_shader_resource|copy_source".
func ParseResourceState(s string) (ResourceState, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "common" {
		return StateCommon, nil
	}
	var state ResourceState
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		found := false
		for _, n := range stateNames {
			if n.name == part {
				state |= n.state
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown resource state `%s`", part)
		}
	}
	if !state.IsValid() {
		return 0, fmt.Errorf("resource state `%s` combines a write state with other states", s)
	}
	return state, nil
}
