package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-hq/realtime/internal/domain"
)

type mockConn struct {
	mu       sync.Mutex
	received []Frame
	sendErr  error
	closed   bool
}

func (m *mockConn) TrySend(f Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, f)
	return nil
}

func (m *mockConn) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockConn) frames() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func member(id, name string) (MemberSession, *mockConn) {
	conn := &mockConn{}
	u := &domain.User{ID: domain.UserID(id), Name: name}
	return NewMemberSession(domain.NewMember(u), conn), conn
}

func TestRoomBroadcast(t *testing.T) {
	tests := []struct {
		name         string
		sendErr      map[string]error
		wantSentTo   int
		wantDropped  int
		wantReceived map[string]int
	}{
		{
			name:         "sender excluded",
			wantSentTo:   2,
			wantReceived: map[string]int{"u1": 0, "u2": 1, "u3": 1},
		},
		{
			name:         "backpressured member reported dropped",
			sendErr:      map[string]error{"u2": errors.New("backpressure")},
			wantSentTo:   1,
			wantDropped:  1,
			wantReceived: map[string]int{"u1": 0, "u2": 0, "u3": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := NewRoomService("ws-1")
			conns := make(map[string]*mockConn)
			for _, id := range []string{"u1", "u2", "u3"} {
				ms, conn := member(id, "user "+id)
				if err, ok := tt.sendErr[id]; ok {
					conn.sendErr = err
				}
				conns[id] = conn
				room.AddMember(SessionID("sid-"+id), ms)
			}

			res := room.Broadcast(SessionID("sid-u1"), Frame(`{"type":"x"}`))

			assert.Equal(t, tt.wantSentTo, res.SentTo)
			assert.Len(t, res.Dropped, tt.wantDropped)
			for id, want := range tt.wantReceived {
				assert.Len(t, conns[id].frames(), want, "frames for %s", id)
			}
		})
	}
}

func TestRoomMembership(t *testing.T) {
	room := NewRoomService("ws-1")
	ms, _ := member("u1", "alice")
	room.AddMember("sid-1", ms)

	require.Equal(t, 1, room.MemberCount())

	got, ok := room.SessionOf("u1")
	require.True(t, ok)
	assert.Equal(t, ms, got)

	_, empty := room.EmptySince()
	assert.False(t, empty)

	room.RemoveMember("sid-1")
	assert.Equal(t, 0, room.MemberCount())

	_, ok = room.SessionOf("u1")
	assert.False(t, ok)

	_, empty = room.EmptySince()
	assert.True(t, empty)

	// removing twice is harmless
	room.RemoveMember("sid-1")
}

func TestRoomWhiteboardLastWriteWins(t *testing.T) {
	room := NewRoomService("ws-1")

	a := domain.StickyNote{ID: "a", Content: "A"}
	b := domain.StickyNote{ID: "b", Content: "B"}

	room.ReplaceWhiteboard(domain.WhiteboardSnapshot{StickyNotes: []domain.StickyNote{a, b}})
	room.ReplaceWhiteboard(domain.WhiteboardSnapshot{StickyNotes: []domain.StickyNote{a}})

	snap := room.Whiteboard()
	require.Len(t, snap.StickyNotes, 1)
	assert.Equal(t, "a", snap.StickyNotes[0].ID)

	// nil sub-collections leave existing state untouched
	room.ReplaceWhiteboard(domain.WhiteboardSnapshot{Shapes: []domain.Shape{{ID: "s1"}}})
	snap = room.Whiteboard()
	assert.Len(t, snap.StickyNotes, 1)
	assert.Len(t, snap.Shapes, 1)
	assert.Empty(t, snap.Paths)
}

func TestRoomCallRoster(t *testing.T) {
	room := NewRoomService("ws-1")

	p1 := domain.CallParticipant{UserID: "u1", UserName: "alice"}
	require.True(t, room.AddCaller(p1))
	assert.False(t, room.AddCaller(p1), "duplicate join must not add a second entry")
	assert.Len(t, room.CallRoster(), 1)

	got, ok := room.RemoveCaller("u1")
	require.True(t, ok)
	assert.Equal(t, p1, got)

	_, ok = room.RemoveCaller("u1")
	assert.False(t, ok, "second leave is a no-op")
	assert.Empty(t, room.CallRoster())
}

func TestRetiredRoomRefusesMembers(t *testing.T) {
	room := NewRoomService("ws-1")

	require.True(t, room.Retire(0), "empty room past the deadline retires")

	ms, _ := member("u1", "alice")
	assert.False(t, room.AddMember("sid-1", ms), "retired room must refuse members")
	assert.Equal(t, 0, room.MemberCount())
}

func TestRetireLosesToInstalledMember(t *testing.T) {
	room := NewRoomService("ws-1")
	ms, _ := member("u1", "alice")
	require.True(t, room.AddMember("sid-1", ms))

	assert.False(t, room.Retire(0), "occupied room never retires")

	room.RemoveMember("sid-1")
	assert.False(t, room.Retire(time.Hour), "just-emptied room is inside its window")
	assert.True(t, room.Retire(0))
}
