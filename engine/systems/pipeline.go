package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// PipelineCache creates pipeline states on first use. Descriptions are
// registered up front by name; the pipeline state itself only exists once a
// pass asks for it.
type PipelineCache struct {
	device gpu.Device
	cache  *Cache[string, gpu.PipelineState]

	mu    sync.RWMutex
	descs map[string]gpu.PipelineStateDesc
}

func NewPipelineCache(device gpu.Device) *PipelineCache {
	pc := &PipelineCache{
		device: device,
		descs:  make(map[string]gpu.PipelineStateDesc),
	}
	pc.cache = NewCache("pipeline", func(name string) string { return name }, pc.createPipeline)
	return pc
}

func (pc *PipelineCache) createPipeline(name string) (gpu.PipelineState, error) {
	pc.mu.RLock()
	desc, ok := pc.descs[name]
	pc.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no pipeline state description `%s`", name)
	}
	return pc.device.CreatePipelineState(desc)
}

// Register makes desc available under desc.Name. Registering the same name
// twice is an error.
func (pc *PipelineCache) Register(desc gpu.PipelineStateDesc) error {
	if desc.Name == "" {
		return fmt.Errorf("pipeline state description without a name")
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if _, ok := pc.descs[desc.Name]; ok {
		return fmt.Errorf("pipeline state `%s` already registered", desc.Name)
	}
	pc.descs[desc.Name] = desc
	return nil
}

// Get returns the pipeline state registered under name, creating it if needed.
func (pc *PipelineCache) Get(name string) (gpu.PipelineState, error) {
	return pc.cache.Get(name)
}

func (pc *PipelineCache) Len() int { return pc.cache.Len() }

func (pc *PipelineCache) Created() uint64 { return pc.cache.Created() }

func (pc *PipelineCache) Shutdown() error {
	pc.cache.Drain()
	return nil
}
