package systems

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestCacheConcurrentMissesCreateOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCache("test", func(k string) string { return k }, func(k string) (int, error) {
		calls.Add(1)
		<-release
		return len(k), nil
	})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get("albedo")
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 6, v)
	}
	assert.Equal(t, uint64(1), c.Created())
	assert.Equal(t, 1, c.Len())
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	fail := true
	c := NewCache("test", func(k string) string { return k }, func(k string) (string, error) {
		if fail {
			return "", errors.New("out of memory")
		}
		return k, nil
	})

	_, err := c.Get("lut")
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	fail = false
	v, err := c.Get("lut")
	require.NoError(t, err)
	assert.Equal(t, "lut", v)

	evicted, ok := c.Evict("lut")
	assert.True(t, ok)
	assert.Equal(t, "lut", evicted)
	_, ok = c.Peek("lut")
	assert.False(t, ok)
}

func newResourceSystem(t *testing.T) (*ResourceSystem, *headless.Device, *tracker.GlobalStateTable) {
	t.Helper()
	dev := headless.New(headless.Options{AutoComplete: true})
	table := tracker.NewGlobalStateTable()
	rs, err := NewResourceSystem(&ResourceSystemConfig{MaxResourceCount: 4}, dev, table)
	require.NoError(t, err)
	return rs, dev, table
}

func TestResourceSystemLifetime(t *testing.T) {
	rs, dev, table := newResourceSystem(t)

	buf, err := rs.CreateBuffer("constants", 100, gpu.StateVertexAndConstantBuffer)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), buf.Desc().Size)

	s, ok := table.State(buf, gpu.AllSubresources)
	require.True(t, ok)
	assert.Equal(t, gpu.StateVertexAndConstantBuffer, s)

	require.NoError(t, rs.Destroy(buf))
	_, ok = table.State(buf, gpu.AllSubresources)
	assert.False(t, ok)
	assert.Equal(t, 0, dev.ResourceCount())
	assert.Error(t, rs.Destroy(buf))

	_, err = rs.CreateBuffer("bad", 16, gpu.StateRenderTarget|gpu.StateCopyDest)
	assert.Error(t, err)

	for i := 0; i < 4; i++ {
		_, err := rs.CreateBuffer("b", 16, gpu.StateCommon)
		require.NoError(t, err)
	}
	_, err = rs.CreateBuffer("overflow", 16, gpu.StateCommon)
	assert.Error(t, err)

	require.NoError(t, rs.Shutdown())
	assert.Equal(t, 0, rs.Count())
	assert.Equal(t, 0, table.Len())
}

func TestPipelineCacheCreatesLazily(t *testing.T) {
	dev := headless.New(headless.Options{})
	pc := NewPipelineCache(dev)

	require.NoError(t, pc.Register(gpu.PipelineStateDesc{Name: "lit", VertexShader: "lit.vs", PixelShader: "lit.ps"}))
	assert.Error(t, pc.Register(gpu.PipelineStateDesc{Name: "lit"}))
	assert.Equal(t, 0, pc.Len())

	a, err := pc.Get("lit")
	require.NoError(t, err)
	b, err := pc.Get("lit")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "lit", a.Name())
	assert.Equal(t, uint64(1), pc.Created())

	_, err = pc.Get("unknown")
	assert.Error(t, err)
}

func TestTextureCacheSharesConcurrentAcquires(t *testing.T) {
	rs, dev, table := newResourceSystem(t)
	tc := NewTextureCache(rs)
	desc := gpu.ResourceDesc{Name: "brick", Width: 512, Height: 512, MipLevels: 4, Format: gpu.FormatRGBA8Unorm}

	var wg sync.WaitGroup
	got := make([]*gpu.Resource, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := tc.Acquire(desc)
			assert.NoError(t, err)
			got[i] = r
		}()
	}
	wg.Wait()

	for _, r := range got {
		assert.Same(t, got[0], r)
	}
	assert.Equal(t, 1, dev.ResourceCount())
	assert.Equal(t, uint64(1), tc.Created())
	s, _ := table.State(got[0], 3)
	assert.Equal(t, gpu.StatePixelShaderResource, s)

	require.NoError(t, tc.Shutdown())
	assert.Equal(t, 0, dev.ResourceCount())
}

func TestJobSystemLimitsWorkers(t *testing.T) {
	_, err := NewJobSystem(0)
	assert.ErrorIs(t, err, ErrNoWorkers)

	js, err := NewJobSystem(2)
	require.NoError(t, err)

	var running, peak atomic.Int32
	tasks := make([]RecordTask, 8)
	for i := range tasks {
		tasks[i] = func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}
	}
	require.NoError(t, js.Record(context.Background(), tasks...))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestJobSystemReturnsFatalAsError(t *testing.T) {
	js, err := NewJobSystem(4)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = js.Record(context.Background(),
		func(context.Context) error { return nil },
		func(context.Context) error { core.Assert(false, "wired wrong"); return nil },
	)
	assert.ErrorIs(t, err, core.ErrContractViolation)

	err = js.Record(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestSystemManagerShutdown(t *testing.T) {
	dev := headless.New(headless.Options{AutoComplete: true})
	cfg := &metadata.EngineConfig{}
	cfg.Defaults()

	sm, err := NewSystemManager(dev, &cfg.Renderer, core.NewEventSystem())
	require.NoError(t, err)
	assert.Equal(t, 3, sm.RendererSystem.FrameRing().FramesInFlight())

	_, err = sm.TextureCache.Acquire(gpu.ResourceDesc{Name: "t", Width: 4, Height: 4})
	require.NoError(t, err)
	_, err = sm.ResourceSystem.CreateBuffer("b", 64, gpu.StateCommon)
	require.NoError(t, err)
	require.Equal(t, 2, sm.GlobalStateTable().Len())

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, 0, dev.ResourceCount())
	assert.Equal(t, 0, sm.GlobalStateTable().Len())
}
