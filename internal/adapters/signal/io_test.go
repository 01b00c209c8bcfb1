package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialTestServer(t *testing.T, ctl *SignalWSController, sid string) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", sid)
		ctl.HandleSignal(context.Background(), c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestKickRunsDisconnectCleanup(t *testing.T) {
	ctl := newTestController(t)
	conn := dialTestServer(t, ctl, "s1")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join_room", "room_id": "ws-1"}))
	require.Eventually(t, func() bool {
		room, ok := ctl.Hub.Rooms.Get("ws-1")
		return ok && room.MemberCount() == 1
	}, time.Second, 10*time.Millisecond, "join never landed")

	ctl.Hub.Kick("s1")

	require.Eventually(t, func() bool {
		if _, ok := ctl.Hub.Registry.GetSession("s1"); ok {
			return false
		}
		room, ok := ctl.Hub.Rooms.Get("ws-1")
		return !ok || room.MemberCount() == 0
	}, time.Second, 10*time.Millisecond, "kicked session never cleaned up")

	// the client observes the close as a read error
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestClientDisconnectRunsCleanup(t *testing.T) {
	ctl := newTestController(t)
	conn := dialTestServer(t, ctl, "s1")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join_room", "room_id": "ws-1"}))
	require.Eventually(t, func() bool {
		room, ok := ctl.Hub.Rooms.Get("ws-1")
		return ok && room.MemberCount() == 1
	}, time.Second, 10*time.Millisecond, "join never landed")

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		_, ok := ctl.Hub.Registry.GetSession("s1")
		return !ok
	}, time.Second, 10*time.Millisecond, "disconnect cleanup never ran")
}
