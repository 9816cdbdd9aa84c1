package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFire(t *testing.T) {
	require.True(t, EventInitialize())
	defer EventShutdown()

	first, second := "first", "second"
	var got []string
	handler := func(handled bool) FnOnEvent {
		return func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
			got = append(got, listener.(string))
			assert.Equal(t, uint32(800), data.Data.U32[0])
			return handled
		}
	}

	require.True(t, EventRegister(EVENT_CODE_RESIZED, first, handler(false)))
	require.True(t, EventRegister(EVENT_CODE_RESIZED, second, handler(true)))
	assert.False(t, EventRegister(EVENT_CODE_RESIZED, first, handler(false)), "duplicate listener")

	ctx := EventContext{}
	ctx.Data.U32[0] = 800
	assert.True(t, EventFire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []string{"first", "second"}, got)

	assert.True(t, EventUnregister(EVENT_CODE_RESIZED, second))
	got = nil
	assert.False(t, EventFire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []string{"first"}, got)
	assert.False(t, EventFire(EVENT_CODE_APPLICATION_QUIT, nil, ctx))
}
