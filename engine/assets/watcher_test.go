package assets

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestGraphWatcherFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "forward.toml")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(graph, []byte(`name = "forward"`), 0o644))

	events := core.NewEventSystem()
	changed := make(chan string, 8)
	events.Register(core.EVENT_CODE_GRAPH_RELOAD_REQUIRED, t, func(ctx core.EventContext) bool {
		select {
		case changed <- ctx.Data.(string):
		default:
		}
		return true
	})

	gw, err := NewGraphWatcher(events)
	require.NoError(t, err)
	defer gw.Shutdown()
	require.NoError(t, gw.Watch(graph))

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(graph, []byte(`name = "deferred"`), 0o644))

	select {
	case path := <-changed:
		want, _ := filepath.Abs(graph)
		assert.Equal(t, want, path)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload event for the graph description")
	}
}

func TestGraphWatcherShutdown(t *testing.T) {
	gw, err := NewGraphWatcher(core.NewEventSystem())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "g.toml")
	require.NoError(t, gw.Watch(path))
	require.NoError(t, gw.Unwatch(path))
	require.NoError(t, gw.Shutdown())
	require.NoError(t, gw.Shutdown())
	assert.Error(t, gw.Watch(path))
}
