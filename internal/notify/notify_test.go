package notify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veiled-verse/internal/notify"
	"veiled-verse/internal/websocket"
)

func TestRecorder_KeepsNewest(t *testing.T) {
	r := notify.NewRecorder(2)

	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify("u1", notify.Success("one"))
	r.Notify("u1", notify.Error("two"))
	r.Notify("u1", notify.Info("three"))

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "two", all[0].Message)
	assert.Equal(t, notify.LevelError, all[0].Level)

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "three", last.Message)
}

func TestMulti_FansOut(t *testing.T) {
	a, b := notify.NewRecorder(0), notify.NewRecorder(0)
	m := notify.Multi{a, nil, b, notify.NewLog(nil), notify.NewHub(nil)}

	m.Notify("u1", notify.Success("saved"))

	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)
}

func TestEventType(t *testing.T) {
	drained := notify.QueueDrained(2)
	assert.Equal(t, notify.KindQueueDrained, drained.Kind)
	assert.Equal(t, "Synced 2 offline change(s)", drained.Message)
	assert.Equal(t, websocket.EventQueueDrained, drained.EventType())

	assert.Equal(t, websocket.EventNotification, notify.Success("saved").EventType())
}
