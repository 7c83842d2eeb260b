package systems

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/tracker"
)

/** @brief Buffer sizes are rounded up to a multiple of this value. */
const BufferAlignment uint64 = 256

/** @brief The configuration for the resource system */
type ResourceSystemConfig struct {
	/** @brief The maximum number of resources alive at once. 0 means unbounded. */
	MaxResourceCount uint32
}

// ResourceSystem creates GPU resources and keeps the global state table in
// sync with their lifetime.
type ResourceSystem struct {
	Config *ResourceSystemConfig
	device gpu.Device
	table  *tracker.GlobalStateTable

	mu        sync.Mutex
	resources map[uuid.UUID]*gpu.Resource
}

func NewResourceSystem(config *ResourceSystemConfig, device gpu.Device, table *tracker.GlobalStateTable) (*ResourceSystem, error) {
	if device == nil || table == nil {
		err := fmt.Errorf("func NewResourceSystem - a device and a global state table are required")
		core.LogError("%s", err)
		return nil, err
	}
	return &ResourceSystem{
		Config:    config,
		device:    device,
		table:     table,
		resources: make(map[uuid.UUID]*gpu.Resource),
	}, nil
}

/**
 * @brief Creates a resource and registers it in the global state table in
 * its initial state.
 * @param desc The description of the resource. Buffer sizes are aligned.
 * @returns the new resource or the device error.
 */
func (rs *ResourceSystem) Create(desc gpu.ResourceDesc) (*gpu.Resource, error) {
	if desc.Kind == gpu.ResourceKindBuffer {
		desc.Size = gpu.Align(desc.Size, BufferAlignment)
	}
	if !desc.InitialState.IsValid() {
		return nil, fmt.Errorf("resource `%s`: invalid initial state %s", desc.Name, desc.InitialState)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if limit := rs.Config.MaxResourceCount; limit > 0 && uint32(len(rs.resources)) >= limit {
		return nil, fmt.Errorf("resource `%s`: limit of %d resources reached", desc.Name, limit)
	}
	r, err := rs.device.CreateResource(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource `%s`: %w", desc.Name, err)
	}
	rs.table.Register(r, desc.InitialState)
	rs.resources[r.ID()] = r
	core.LogDebug("created %s (%d subresources) in state %s", r, r.SubresourceCount(), desc.InitialState)
	return r, nil
}

func (rs *ResourceSystem) CreateBuffer(name string, size uint64, state gpu.ResourceState) (*gpu.Resource, error) {
	return rs.Create(gpu.ResourceDesc{
		Name:         name,
		Kind:         gpu.ResourceKindBuffer,
		Size:         size,
		InitialState: state,
	})
}

// Destroy unregisters r from the global state table and releases it.
func (rs *ResourceSystem) Destroy(r *gpu.Resource) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, ok := rs.resources[r.ID()]; !ok {
		return fmt.Errorf("resource %s is not owned by the resource system", r)
	}
	delete(rs.resources, r.ID())
	rs.table.Unregister(r)
	if err := rs.device.DestroyResource(r); err != nil {
		return fmt.Errorf("failed to destroy resource %s: %w", r, err)
	}
	return nil
}

func (rs *ResourceSystem) Count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.resources)
}

// Shutdown destroys every resource still alive.
func (rs *ResourceSystem) Shutdown() error {
	rs.mu.Lock()
	alive := make([]*gpu.Resource, 0, len(rs.resources))
	for _, r := range rs.resources {
		alive = append(alive, r)
	}
	rs.mu.Unlock()

	for _, r := range alive {
		if err := rs.Destroy(r); err != nil {
			return err
		}
	}
	return nil
}
