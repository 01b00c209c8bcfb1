package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-hq/realtime/internal/domain"
)

func stickies(ids ...string) []domain.StickyNote {
	out := make([]domain.StickyNote, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.StickyNote{ID: id, Content: "note " + id})
	}
	return out
}

func TestWhiteboardInitEmpty(t *testing.T) {
	h, _ := newTestHub(t, HubOptions{})
	conn := connect(t, h, "s1", "u1", "alice", "ws-1")

	h.Whiteboard.Init("s1", "ws-1")

	got := conn.ofType(t, "whiteboard:init")
	require.Len(t, got, 1)
	assert.Equal(t, []any{}, got[0]["stickyNotes"])
	assert.Equal(t, []any{}, got[0]["shapes"])
	assert.Equal(t, []any{}, got[0]["paths"])
}

func TestWhiteboardLastAcceptedWins(t *testing.T) {
	h, _ := newTestHub(t, HubOptions{})
	connect(t, h, "s1", "u1", "alice", "ws-1")
	other := connect(t, h, "s2", "u2", "bob", "ws-1")

	h.Whiteboard.Apply("s1", "ws-1", "u1", BoardKindSticky, domain.WhiteboardSnapshot{StickyNotes: stickies("a", "b")})
	h.Whiteboard.Apply("s1", "ws-1", "u1", BoardKindSticky, domain.WhiteboardSnapshot{StickyNotes: stickies("a")})

	room, ok := h.Rooms.Get("ws-1")
	require.True(t, ok)
	snap := room.Whiteboard()
	require.Len(t, snap.StickyNotes, 1)
	assert.Equal(t, "a", snap.StickyNotes[0].ID)

	updates := other.ofType(t, "whiteboard:update")
	require.Len(t, updates, 2)
	final := updates[1]
	assert.Equal(t, "sticky", final["kind"])
	assert.Len(t, final["stickyNotes"], 1)
	assert.Nil(t, final["shapes"], "untouched sub-collections are not rebroadcast")
}

func TestWhiteboardClear(t *testing.T) {
	h, _ := newTestHub(t, HubOptions{})
	connect(t, h, "s1", "u1", "alice", "ws-1")
	connect(t, h, "s2", "u2", "bob", "ws-1")

	h.Whiteboard.Apply("s1", "ws-1", "u1", BoardKindSticky, domain.WhiteboardSnapshot{StickyNotes: stickies("a")})
	h.Whiteboard.Apply("s1", "ws-1", "u1", BoardKindShape, domain.WhiteboardSnapshot{Shapes: []domain.Shape{{ID: "sh1", Type: "rectangle"}}})
	h.Whiteboard.Apply("s2", "ws-1", "u2", BoardKindClear, domain.WhiteboardSnapshot{})

	room, _ := h.Rooms.Get("ws-1")
	snap := room.Whiteboard()
	assert.Empty(t, snap.StickyNotes)
	assert.Empty(t, snap.Shapes)
	assert.Empty(t, snap.Paths)
}

func TestWhiteboardDeleteReplacesNotesAndShapes(t *testing.T) {
	h, _ := newTestHub(t, HubOptions{})
	connect(t, h, "s1", "u1", "alice", "ws-1")

	h.Whiteboard.Apply("s1", "ws-1", "u1", BoardKindSticky, domain.WhiteboardSnapshot{StickyNotes: stickies("a", "b")})
	h.Whiteboard.Apply("s1", "ws-1", "u1", BoardKindShape, domain.WhiteboardSnapshot{Shapes: []domain.Shape{{ID: "sh1"}, {ID: "sh2"}}})
	h.Whiteboard.Apply("s1", "ws-1", "u1", BoardKindDelete, domain.WhiteboardSnapshot{
		StickyNotes: stickies("a"),
		Shapes:      []domain.Shape{{ID: "sh2"}},
	})

	room, _ := h.Rooms.Get("ws-1")
	snap := room.Whiteboard()
	require.Len(t, snap.StickyNotes, 1)
	require.Len(t, snap.Shapes, 1)
	assert.Equal(t, "sh2", snap.Shapes[0].ID)
}

func TestWhiteboardRejectsMalformedUpdates(t *testing.T) {
	h, _ := newTestHub(t, HubOptions{})
	connect(t, h, "s1", "u1", "alice", "ws-1")
	other := connect(t, h, "s2", "u2", "bob", "ws-1")

	h.Whiteboard.Apply("s1", "ws-1", "u1", BoardKindSticky, domain.WhiteboardSnapshot{StickyNotes: stickies("a")})
	before := len(other.ofType(t, "whiteboard:update"))

	// missing list for the kind
	h.Whiteboard.Apply("s1", "ws-1", "u1", BoardKindSticky, domain.WhiteboardSnapshot{})
	// unknown kind
	h.Whiteboard.Apply("s1", "ws-1", "u1", "scribble", domain.WhiteboardSnapshot{StickyNotes: stickies("x")})
	// delete without both lists
	h.Whiteboard.Apply("s1", "ws-1", "u1", BoardKindDelete, domain.WhiteboardSnapshot{StickyNotes: stickies("x")})

	room, _ := h.Rooms.Get("ws-1")
	snap := room.Whiteboard()
	require.Len(t, snap.StickyNotes, 1)
	assert.Equal(t, "a", snap.StickyNotes[0].ID, "rejected updates must not touch state")
	assert.Len(t, other.ofType(t, "whiteboard:update"), before, "rejected updates must not broadcast")
}
