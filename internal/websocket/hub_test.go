package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_SendToUserReachesOnlyThatUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	alice := NewClient("alice", hub, nil)
	bob := NewClient("bob", hub, nil)
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	require.True(t, hub.SendToUser("alice", Event{Type: EventNotification, Payload: "hi"}))

	select {
	case raw := <-alice.send:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, EventNotification, ev.Type)
		assert.Equal(t, "hi", ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("alice got nothing")
	}

	select {
	case <-bob.send:
		t.Fatal("bob should not receive alice's event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := NewClient("alice", hub, nil)
	hub.RegisterClient(c)
	assert.Eventually(t, func() bool { return hub.Connected("alice") }, time.Second, 5*time.Millisecond)

	hub.UnregisterClient(c)

	select {
	case _, ok := <-c.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
	assert.False(t, hub.Connected("alice"))
}
