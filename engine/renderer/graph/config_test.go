package graph

import (
	"fmt"
	"testing"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forwardGraph = `
name = "forward"

[[pass]]
name = "clear"
kind = "clear"
clear_colour = [0.0, 0.0, 0.0, 1.0]

  [[pass.resource]]
  name = "target"
  kind = "texture"
  state = "render_target"
  from = "@backbuffer"

[[pass]]
name = "opaque"
kind = "graphics"
callback = "opaque"

  [[pass.resource]]
  name = "target"
  kind = "texture"
  state = "render_target"
  from = "clear.target"

  [[pass.technique]]
  name = "lit"
  channels = 1
  pipeline = "lit"

[[pass]]
name = "present"
kind = "present"

  [[pass.resource]]
  name = "source"
  kind = "texture"
  state = "present"
  from = "opaque.target"
`

func TestFromConfig(t *testing.T) {
	h := newHarness(t)
	bb := h.texture(t, "backbuffer", gpu.StatePresent)
	lit := h.pipeline(t, "lit")

	cfg, err := core.ParseRenderGraphConfig([]byte(forwardGraph))
	require.NoError(t, err)

	opaqueRuns := 0
	g, err := FromConfig(cfg, Callbacks{
		Execute: map[string]ExecuteFunc{
			"opaque": func(Recorder, *Pass) error { opaqueRuns++; return nil },
		},
		Suppliers: map[string]Supplier{
			"backbuffer": func() *gpu.Resource { return bb },
		},
		Pipeline: func(name string) (gpu.PipelineState, error) {
			if name == "lit" {
				return lit, nil
			}
			return nil, fmt.Errorf("no pipeline `%s`", name)
		},
	})
	require.NoError(t, err)
	require.True(t, g.Finalized())
	assert.Equal(t, "forward", g.Name())
	require.Len(t, g.Passes(), 3)
	assert.Equal(t, PassKindClear, g.Passes()[0].Kind())
	assert.Equal(t, "clear.target", g.Pass("opaque").Slot(0).Source())
	assert.Equal(t, "@backbuffer", g.Pass("clear").Slot(0).Source())
	require.Len(t, g.Pass("opaque").Techniques(), 1)

	barriers, _ := h.frame(t, g)
	assert.Len(t, barriers, 2)
	assert.Equal(t, 1, opaqueRuns)
}

func TestFromConfigErrors(t *testing.T) {
	cases := map[string]struct {
		toml string
		want error
	}{
		"unknown kind": {toml: `
[[pass]]
name = "p"
kind = "raytrace"
`},
		"unknown supplier": {toml: `
[[pass]]
name = "clear"
kind = "clear"
  [[pass.resource]]
  name = "target"
  kind = "texture"
  state = "render_target"
  from = "@missing"
`},
		"bad state": {toml: `
[[pass]]
name = "clear"
kind = "clear"
  [[pass.resource]]
  name = "target"
  kind = "texture"
  state = "render_target|copy_dest"
  from = "@backbuffer"
`},
		"consumer before producer": {toml: `
[[pass]]
name = "a"
kind = "clear"
  [[pass.resource]]
  name = "target"
  kind = "texture"
  state = "render_target"
  from = "b.target"
[[pass]]
name = "b"
kind = "clear"
  [[pass.resource]]
  name = "target"
  kind = "texture"
  state = "render_target"
  from = "@backbuffer"
`, want: core.ErrContractViolation},
		"unknown pipeline": {toml: `
[[pass]]
name = "opaque"
kind = "graphics"
  [[pass.technique]]
  name = "lit"
  channels = 1
  pipeline = "nope"
`},
	}

	cb := Callbacks{
		Suppliers: map[string]Supplier{"backbuffer": func() *gpu.Resource { return nil }},
		Pipeline: func(name string) (gpu.PipelineState, error) {
			return nil, fmt.Errorf("no pipeline `%s`", name)
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := core.ParseRenderGraphConfig([]byte(tc.toml))
			require.NoError(t, err)
			g, err := FromConfig(cfg, cb)
			require.Error(t, err)
			assert.Nil(t, g)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}
