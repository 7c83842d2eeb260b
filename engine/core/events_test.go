package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type listener struct {
	name string
}

func TestFireStopsAtFirstHandler(t *testing.T) {
	es := NewEventSystem()
	first, second := &listener{"first"}, &listener{"second"}

	var calls []string
	handled := true
	es.Register(EVENT_CODE_APPLICATION_QUIT, first, func(EventContext) bool {
		calls = append(calls, first.name)
		return handled
	})
	es.Register(EVENT_CODE_APPLICATION_QUIT, second, func(EventContext) bool {
		calls = append(calls, second.name)
		return false
	})

	assert.True(t, es.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}))
	assert.Equal(t, []string{"first"}, calls)

	calls = nil
	handled = false
	assert.False(t, es.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestRegisterAndUnregister(t *testing.T) {
	es := NewEventSystem()
	l := &listener{"reload"}

	var got []interface{}
	onEvent := func(ctx EventContext) bool {
		got = append(got, ctx.Data)
		return false
	}
	assert.True(t, es.Register(EVENT_CODE_GRAPH_RELOAD_REQUIRED, l, onEvent))
	assert.False(t, es.Register(EVENT_CODE_GRAPH_RELOAD_REQUIRED, l, onEvent))

	es.Fire(EventContext{Type: EVENT_CODE_GRAPH_RELOAD_REQUIRED, Data: "forward.toml"})
	// Other codes do not reach the listener.
	es.Fire(EventContext{Type: EVENT_CODE_DEVICE_LOST})
	assert.Equal(t, []interface{}{"forward.toml"}, got)

	assert.True(t, es.Unregister(EVENT_CODE_GRAPH_RELOAD_REQUIRED, l))
	assert.False(t, es.Unregister(EVENT_CODE_GRAPH_RELOAD_REQUIRED, l))
	es.Fire(EventContext{Type: EVENT_CODE_GRAPH_RELOAD_REQUIRED, Data: "again.toml"})
	assert.Len(t, got, 1)
}

func TestShutdownDropsRegistrations(t *testing.T) {
	es := NewEventSystem()
	fired := false
	es.Register(EVENT_CODE_FRAME_SUBMITTED, nil, func(EventContext) bool {
		fired = true
		return true
	})
	assert.NoError(t, es.Shutdown())
	assert.False(t, es.Fire(EventContext{Type: EVENT_CODE_FRAME_SUBMITTED, Data: uint64(1)}))
	assert.False(t, fired)
}
