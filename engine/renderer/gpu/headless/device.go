// Package headless implements gpu.Device without a GPU. Every command is
// recorded for inspection and fences complete either as soon as they are
// signalled or when the owner says so, which makes it the device used by the
// testbed and by the tests of the renderer packages.
package headless

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type Options struct {
	// AutoComplete completes every fence value as soon as it is signalled,
	// as if the GPU were infinitely fast.
	AutoComplete bool
}

type Device struct {
	opts      Options
	queue     *Queue
	removed   atomic.Value // error
	mu        sync.Mutex
	resources map[uuid.UUID]*gpu.Resource
	lists     int
}

func New(opts Options) *Device {
	d := &Device{
		opts:      opts,
		resources: make(map[uuid.UUID]*gpu.Resource),
	}
	d.queue = &Queue{device: d}
	return d
}

// Remove simulates a device removal: every later queue operation fails with
// an error wrapping gpu.ErrDeviceRemoved and reason.
func (d *Device) Remove(reason string) {
	d.removed.Store(fmt.Errorf("%w: %s", gpu.ErrDeviceRemoved, reason))
}

func (d *Device) err() error {
	if v := d.removed.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (d *Device) CreateResource(desc gpu.ResourceDesc) (*gpu.Resource, error) {
	if err := d.err(); err != nil {
		return nil, err
	}
	if desc.Kind == gpu.ResourceKindBuffer && desc.Size == 0 {
		return nil, fmt.Errorf("buffer `%s` has zero size", desc.Name)
	}
	if desc.Kind == gpu.ResourceKindTexture && (desc.Width == 0 || desc.Height == 0) {
		return nil, fmt.Errorf("texture `%s` has zero extent", desc.Name)
	}
	r := gpu.NewResource(desc, nil)
	d.mu.Lock()
	d.resources[r.ID()] = r
	d.mu.Unlock()
	return r, nil
}

func (d *Device) DestroyResource(r *gpu.Resource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.resources[r.ID()]; !ok {
		return fmt.Errorf("resource %s was not created by this device", r)
	}
	delete(d.resources, r.ID())
	return nil
}

// ResourceCount returns the number of live resources.
func (d *Device) ResourceCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.resources)
}

func (d *Device) CreateCommandList() (gpu.CommandList, error) {
	if err := d.err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.lists++
	id := d.lists
	d.mu.Unlock()
	return &CommandList{id: id}, nil
}

// CommandListCount returns how many command lists were ever created.
func (d *Device) CommandListCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lists
}

func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	if err := d.err(); err != nil {
		return nil, err
	}
	return NewFence(initial), nil
}

func (d *Device) CreatePipelineState(desc gpu.PipelineStateDesc) (gpu.PipelineState, error) {
	if err := d.err(); err != nil {
		return nil, err
	}
	if desc.Name == "" {
		return nil, fmt.Errorf("pipeline state requires a name")
	}
	return &PipelineState{desc: desc}, nil
}

func (d *Device) Queue() gpu.CommandQueue {
	return d.queue
}

// HeadlessQueue returns the queue with its inspection helpers.
func (d *Device) HeadlessQueue() *Queue {
	return d.queue
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resources = make(map[uuid.UUID]*gpu.Resource)
	return nil
}

type PipelineState struct {
	desc gpu.PipelineStateDesc
}

func (p *PipelineState) Name() string { return p.desc.Name }

func (p *PipelineState) Desc() gpu.PipelineStateDesc { return p.desc }
