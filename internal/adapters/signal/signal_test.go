package signal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-hq/realtime/internal/app"
	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
	"github.com/synapse-hq/realtime/internal/storage"
)

func newTestController(t *testing.T) *SignalWSController {
	t.Helper()
	store := storage.NewMemory()
	rooms := app.NewRoomManager(time.Minute, store)
	hub := app.NewHub(app.NewRegistry(), rooms, store, app.HubOptions{})
	return NewSignalWSController(hub, nil)
}

// attach binds a bare WsSignalConn into the hub, bypassing the HTTP
// upgrade. The send channel stands in for the write pump.
func attach(t *testing.T, ctl *SignalWSController, sid, userID, name string) *WsSignalConn {
	t.Helper()
	conn := &WsSignalConn{send: make(chan core.Frame, 32)}
	user := &domain.User{ID: domain.UserID(userID), Name: name}
	ctl.Hub.Registry.SetIdentity(core.SessionID(sid), user)
	sess := core.NewMemberSession(domain.NewMember(user), conn)
	ctl.Hub.Registry.BindSignal(core.SessionID(sid), sess, nil)
	return conn
}

func drain(t *testing.T, c *WsSignalConn) []map[string]any {
	t.Helper()
	out := make([]map[string]any, 0)
	for {
		select {
		case f := <-c.send:
			var m map[string]any
			require.NoError(t, json.Unmarshal(f, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func ofType(evts []map[string]any, typ string) []map[string]any {
	out := make([]map[string]any, 0)
	for _, e := range evts {
		if e["type"] == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestUnknownSignalIgnored(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")

	ctl.handleSignal("s1", conn, []byte(`{"type":"no_such_event"}`))
	ctl.handleSignal("s1", conn, []byte(`not json at all`))

	assert.Empty(t, drain(t, conn))
}

func TestHandlerPanicDoesNotEscape(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")
	ctl.handlers["boom"] = func(core.SessionID, *WsSignalConn, []byte) {
		panic("handler bug")
	}

	assert.NotPanics(t, func() {
		ctl.handleSignal("s1", conn, []byte(`{"type":"boom"}`))
	})
}

func TestJoinRoomRepliesWithRoomState(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")

	ctl.handleSignal("s1", conn, []byte(`{"type":"join_room","room_id":"ws-1"}`))

	states := ofType(drain(t, conn), "room_state")
	require.Len(t, states, 1)
	assert.Equal(t, "ws-1", states[0]["room_id"])
	assert.EqualValues(t, 1, states[0]["count"])

	ws, _, ok := ctl.Hub.Registry.RoomOf("s1")
	require.True(t, ok)
	assert.Equal(t, domain.WorkspaceID("ws-1"), ws)
}

func TestJoinRoomWorkspaceIDFallback(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")

	ctl.handleSignal("s1", conn, []byte(`{"type":"join_room","workspace_id":"ws-2"}`))

	require.Len(t, ofType(drain(t, conn), "room_state"), 1)
	ws, _, ok := ctl.Hub.Registry.RoomOf("s1")
	require.True(t, ok)
	assert.Equal(t, domain.WorkspaceID("ws-2"), ws)
}

func TestJoinRoomWithoutIDRejected(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")

	ctl.handleSignal("s1", conn, []byte(`{"type":"join_room"}`))

	errs := ofType(drain(t, conn), "error")
	require.Len(t, errs, 1)
	assert.Equal(t, "join_failed", errs[0]["error"])
}

func TestLeaveRoomAcknowledged(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")
	ctl.handleSignal("s1", conn, []byte(`{"type":"join_room","room_id":"ws-1"}`))
	drain(t, conn)

	ctl.handleSignal("s1", conn, []byte(`{"type":"leave_room"}`))

	require.Len(t, ofType(drain(t, conn), "left"), 1)
	_, _, ok := ctl.Hub.Registry.RoomOf("s1")
	assert.False(t, ok)
}

func TestForeignWorkspaceClaimDropped(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")
	peer := attach(t, ctl, "s2", "u2", "bob")
	ctl.handleSignal("s1", conn, []byte(`{"type":"join_room","room_id":"ws-1"}`))
	ctl.handleSignal("s2", peer, []byte(`{"type":"join_room","room_id":"ws-1"}`))
	drain(t, conn)
	drain(t, peer)

	ctl.handleSignal("s1", conn, []byte(`{"type":"typing_start","document_id":"d1","workspace_id":"ws-other"}`))

	assert.Empty(t, ofType(drain(t, peer), "typing_indicator"))

	ctl.handleSignal("s1", conn, []byte(`{"type":"typing_start","document_id":"d1","workspace_id":"ws-1"}`))
	assert.Len(t, ofType(drain(t, peer), "typing_indicator"), 1)
}

func TestDocumentUpdateUsesSessionIdentity(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")
	peer := attach(t, ctl, "s2", "u2", "bob")
	ctl.handleSignal("s1", conn, []byte(`{"type":"join_room","room_id":"ws-1"}`))
	ctl.handleSignal("s2", peer, []byte(`{"type":"join_room","room_id":"ws-1"}`))
	drain(t, conn)
	drain(t, peer)

	// Payload claims to be someone else. The session identity wins.
	ctl.handleSignal("s1", conn, []byte(`{"type":"document_update","document_id":"d1","content":"x","user_id":"impostor"}`))

	updates := ofType(drain(t, peer), "document_update")
	require.Len(t, updates, 1)
	assert.Equal(t, "u1", updates[0]["user_id"])
	assert.Empty(t, ofType(drain(t, conn), "document_update"), "no echo to the editor")
}

func TestDocumentUpdateWithoutIDDropped(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")
	peer := attach(t, ctl, "s2", "u2", "bob")
	ctl.handleSignal("s1", conn, []byte(`{"type":"join_room","room_id":"ws-1"}`))
	ctl.handleSignal("s2", peer, []byte(`{"type":"join_room","room_id":"ws-1"}`))
	drain(t, peer)

	ctl.handleSignal("s1", conn, []byte(`{"type":"document_update","content":"x"}`))

	assert.Empty(t, ofType(drain(t, peer), "document_update"))
}

func TestPingPong(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")

	ctl.handleSignal("s1", conn, []byte(`{"type":"ping"}`))

	require.Len(t, ofType(drain(t, conn), "pong"), 1)
}

func TestPassthroughRelayedVerbatim(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")
	peer := attach(t, ctl, "s2", "u2", "bob")
	ctl.handleSignal("s1", conn, []byte(`{"type":"join_room","room_id":"ws-1"}`))
	ctl.handleSignal("s2", peer, []byte(`{"type":"join_room","room_id":"ws-1"}`))
	drain(t, conn)
	drain(t, peer)

	ctl.handleSignal("s1", conn, []byte(`{"type":"message","text":"hi","extra":{"nested":true}}`))

	msgs := ofType(drain(t, peer), "message")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0]["text"])
	assert.Equal(t, map[string]any{"nested": true}, msgs[0]["extra"])
	assert.Empty(t, ofType(drain(t, conn), "message"), "sender does not hear its own relay")
}

func TestPassthroughOutsideRoomDropped(t *testing.T) {
	ctl := newTestController(t)
	conn := attach(t, ctl, "s1", "u1", "alice")

	assert.NotPanics(t, func() {
		ctl.handleSignal("s1", conn, []byte(`{"type":"message","text":"hi"}`))
	})
	assert.Empty(t, drain(t, conn))
}

func TestTrySendBackpressure(t *testing.T) {
	conn := &WsSignalConn{send: make(chan core.Frame, 1)}
	require.NoError(t, conn.TrySend(core.Frame(`{}`)))
	assert.ErrorIs(t, conn.TrySend(core.Frame(`{}`)), ErrBackpressure)
}
