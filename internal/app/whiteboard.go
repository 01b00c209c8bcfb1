package app

import (
	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
)

// Whiteboard update kinds. Each replaces the named sub-collection(s)
// wholesale with what the client sent.
const (
	BoardKindSticky = "sticky"
	BoardKindShape  = "shape"
	BoardKindPath   = "path"
	BoardKindDelete = "delete"
	BoardKindClear  = "clear"
)

// Whiteboard replicates the room's board state: it holds the canonical
// last-accepted snapshot and rebroadcasts accepted updates to everyone but
// the submitter.
type Whiteboard struct {
	hub *Hub
}

func NewWhiteboard(hub *Hub) *Whiteboard {
	return &Whiteboard{hub: hub}
}

type whiteboardInit struct {
	Type        string              `json:"type"`
	WorkspaceID domain.WorkspaceID  `json:"workspace_id"`
	StickyNotes []domain.StickyNote `json:"stickyNotes"`
	Shapes      []domain.Shape      `json:"shapes"`
	Paths       []domain.Path       `json:"paths"`
}

type whiteboardUpdate struct {
	Type        string              `json:"type"`
	Kind        string              `json:"kind"`
	WorkspaceID domain.WorkspaceID  `json:"workspace_id"`
	UserID      domain.UserID       `json:"user_id"`
	StickyNotes []domain.StickyNote `json:"stickyNotes,omitempty"`
	Shapes      []domain.Shape      `json:"shapes,omitempty"`
	Paths       []domain.Path       `json:"paths,omitempty"`
}

// Init sends the requesting connection the current snapshot. Not a
// broadcast; clients ask for it when they open the board.
func (w *Whiteboard) Init(sid core.SessionID, ws domain.WorkspaceID) {
	snap := domain.EmptyWhiteboard()
	if room, ok := w.hub.Rooms.Get(ws); ok {
		snap = room.Whiteboard()
	}
	w.hub.Send(sid, whiteboardInit{
		Type:        "whiteboard:init",
		WorkspaceID: ws,
		StickyNotes: snap.StickyNotes,
		Shapes:      snap.Shapes,
		Paths:       snap.Paths,
	})
}

// Apply replaces the sub-collections the kind names and rebroadcasts them
// to the rest of the room. The submitter already has its own state and is
// not echoed. Malformed updates are dropped with a log line.
func (w *Whiteboard) Apply(sid core.SessionID, ws domain.WorkspaceID, user domain.UserID, kind string, parts domain.WhiteboardSnapshot) {
	room, ok := w.hub.Rooms.Get(ws)
	if !ok {
		log.Warn().Str("module", "app.whiteboard").Str("workspace", string(ws)).Msg("update for absent room dropped")
		return
	}

	var replace domain.WhiteboardSnapshot
	switch kind {
	case BoardKindSticky:
		if parts.StickyNotes == nil {
			w.reject(kind, "stickyNotes missing")
			return
		}
		replace.StickyNotes = parts.StickyNotes
	case BoardKindShape:
		if parts.Shapes == nil {
			w.reject(kind, "shapes missing")
			return
		}
		replace.Shapes = parts.Shapes
	case BoardKindPath:
		if parts.Paths == nil {
			w.reject(kind, "paths missing")
			return
		}
		replace.Paths = parts.Paths
	case BoardKindDelete:
		if parts.StickyNotes == nil || parts.Shapes == nil {
			w.reject(kind, "stickyNotes or shapes missing")
			return
		}
		replace.StickyNotes = parts.StickyNotes
		replace.Shapes = parts.Shapes
	case BoardKindClear:
		replace = domain.EmptyWhiteboard()
	default:
		w.reject(kind, "unknown kind")
		return
	}

	room.ReplaceWhiteboard(replace)

	w.hub.BroadcastRoom(ws, sid, whiteboardUpdate{
		Type:        "whiteboard:update",
		Kind:        kind,
		WorkspaceID: ws,
		UserID:      user,
		StickyNotes: replace.StickyNotes,
		Shapes:      replace.Shapes,
		Paths:       replace.Paths,
	})
}

func (w *Whiteboard) reject(kind, reason string) {
	log.Warn().Str("module", "app.whiteboard").Str("kind", kind).Str("reason", reason).Msg("malformed update dropped")
}
