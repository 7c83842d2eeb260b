package systems

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// TextureCache shares textures by name between every pass and material
// asking for them. Concurrent misses for one name create a single texture.
type TextureCache struct {
	resources *ResourceSystem
	cache     *Cache[gpu.ResourceDesc, *gpu.Resource]
}

func NewTextureCache(rs *ResourceSystem) *TextureCache {
	tc := &TextureCache{resources: rs}
	tc.cache = NewCache("texture",
		func(desc gpu.ResourceDesc) string {
			return fmt.Sprintf("%s:%dx%dx%d:%d:%d", desc.Name, desc.Width, desc.Height, desc.ArraySize, desc.MipLevels, desc.Format)
		},
		tc.createTexture)
	return tc
}

func (tc *TextureCache) createTexture(desc gpu.ResourceDesc) (*gpu.Resource, error) {
	return tc.resources.Create(desc)
}

/**
 * @brief Returns the texture matching desc, creating it on a miss.
 * @param desc The description of the texture. Kind is forced to texture and
 * a zero initial state means pixel shader resource.
 */
func (tc *TextureCache) Acquire(desc gpu.ResourceDesc) (*gpu.Resource, error) {
	desc.Kind = gpu.ResourceKindTexture
	if desc.InitialState == gpu.StateCommon {
		desc.InitialState = gpu.StatePixelShaderResource
	}
	if desc.ArraySize == 0 {
		desc.ArraySize = 1
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	return tc.cache.Get(desc)
}

func (tc *TextureCache) Len() int { return tc.cache.Len() }

func (tc *TextureCache) Created() uint64 { return tc.cache.Created() }

// Shutdown destroys every cached texture.
func (tc *TextureCache) Shutdown() error {
	for _, t := range tc.cache.Drain() {
		if err := tc.resources.Destroy(t); err != nil {
			return err
		}
	}
	return nil
}
