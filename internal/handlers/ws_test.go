package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"veiled-verse/internal/handlers"
	"veiled-verse/internal/netmon"
	"veiled-verse/internal/websocket"
)

func TestNetworkWatch_PushesProbeTransitionToSockets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	monitor := netmon.New(netmon.Config{
		ProbeURL:      backend.URL,
		ProbeInterval: 20 * time.Millisecond,
		ProbeTimeout:  time.Second,
	}, log)
	require.False(t, monitor.IsOnline())

	hub := websocket.NewHub()
	go hub.Run()

	network := handlers.NewNetworkHandler(monitor, hub, log)
	t.Cleanup(network.Watch())

	router := gin.New()
	handlers.Routes{
		Network:   network,
		WebSocket: handlers.NewWebSocketHandler(hub, log),
	}.Register(router, testSecret)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + adminToken(t)
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Connected("admin-1") }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev websocket.Event
	require.NoError(t, conn.ReadJSON(&ev))

	assert.Equal(t, websocket.EventNetworkStatus, ev.Type)
	payload, ok := ev.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, payload["online"])
}
