package systems

import (
	"time"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/tracker"
)

// SystemManager wires the systems of one renderer instance together. Nothing
// here is global: two managers over two devices are fully independent.
type SystemManager struct {
	JobSystem      *JobSystem
	ResourceSystem *ResourceSystem
	PipelineCache  *PipelineCache
	TextureCache   *TextureCache
	RendererSystem *RendererSystem

	device gpu.Device
	table  *tracker.GlobalStateTable
}

func NewSystemManager(device gpu.Device, config *metadata.RendererConfig, events *core.EventSystem) (*SystemManager, error) {
	table := tracker.NewGlobalStateTable()

	js, err := NewJobSystem(config.Workers)
	if err != nil {
		return nil, err
	}
	rs, err := NewResourceSystem(&ResourceSystemConfig{}, device, table)
	if err != nil {
		return nil, err
	}
	rend, err := NewRendererSystem(&RendererSystemConfig{
		FramesInFlight: config.FramesInFlight,
		FenceTimeout:   time.Duration(config.FenceTimeoutMS) * time.Millisecond,
	}, device, table, js, events)
	if err != nil {
		return nil, err
	}

	return &SystemManager{
		JobSystem:      js,
		ResourceSystem: rs,
		PipelineCache:  NewPipelineCache(device),
		TextureCache:   NewTextureCache(rs),
		RendererSystem: rend,
		device:         device,
		table:          table,
	}, nil
}

// GlobalStateTable returns the table shared by every recording context of
// this manager.
func (sm *SystemManager) GlobalStateTable() *tracker.GlobalStateTable { return sm.table }

func (sm *SystemManager) Shutdown() error {
	if err := sm.RendererSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.TextureCache.Shutdown(); err != nil {
		return err
	}
	if err := sm.PipelineCache.Shutdown(); err != nil {
		return err
	}
	if err := sm.ResourceSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
