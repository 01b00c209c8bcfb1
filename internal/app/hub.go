package app

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
	"github.com/synapse-hq/realtime/internal/storage"
)

// Hub is the top-level dispatcher: it owns the registry and room set,
// routes lifecycle events to the collaboration components and carries
// every outbound broadcast. One Hub per process.
type Hub struct {
	Registry *Registry
	Rooms    core.RoomFactory
	Policy   Policy
	Store    storage.Store

	Presence   *Presence
	DocSync    *DocSync
	Whiteboard *Whiteboard
	Voice      *Voice
}

type HubOptions struct {
	TypingTTL    time.Duration
	SaveDebounce time.Duration
}

func NewHub(reg *Registry, rooms core.RoomFactory, store storage.Store, opts HubOptions) *Hub {
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = 3 * time.Second
	}
	if opts.SaveDebounce <= 0 {
		opts.SaveDebounce = time.Second
	}
	h := &Hub{
		Registry: reg,
		Rooms:    rooms,
		Policy:   SimplePolicy{},
		Store:    store,
	}
	h.Presence = NewPresence(h, opts.TypingTTL)
	h.DocSync = NewDocSync(h, store, opts.SaveDebounce)
	h.Whiteboard = NewWhiteboard(h)
	h.Voice = NewVoice(h)
	return h
}

// Join attaches the connection to a workspace room, implicitly leaving the
// previous room (with the same cleanup as an explicit leave) first.
func (h *Hub) Join(sid core.SessionID, ws domain.WorkspaceID) bool {
	if ws == "" {
		log.Warn().Str("module", "app.hub").Str("sid", string(sid)).Msg("join with empty workspace ignored")
		return false
	}
	sess, ok := h.Registry.GetSession(sid)
	if !ok {
		log.Warn().Str("module", "app.hub").Str("sid", string(sid)).Msg("join from unknown session ignored")
		return false
	}
	h.Leave(sid)

	room := h.Rooms.GetOrCreate(ws)
	for !room.AddMember(sid, sess) {
		// Lost a race with the sweeper retiring this room.
		room = h.Rooms.GetOrCreate(ws)
	}
	h.Registry.UpdateRoom(sid, ws)
	log.Info().Str("module", "app.hub").Str("sid", string(sid)).Str("workspace", string(ws)).Msg("joined room")
	return true
}

// Leave detaches the connection from its current room, clearing typing
// state and the voice roster. The connection itself stays alive.
func (h *Hub) Leave(sid core.SessionID) {
	ws, _, ok := h.Registry.RoomOf(sid)
	if !ok {
		return
	}
	user, _ := h.Registry.User(sid)
	h.teardown(sid, ws, user)
	h.Registry.RemoveRoom(sid)
}

// OnDisconnect runs the full cleanup for a dropped transport. Idempotent:
// repeat reports of the same close are no-ops.
func (h *Hub) OnDisconnect(sid core.SessionID) {
	ws, user, ok := h.Registry.Detach(sid)
	if !ok {
		return
	}
	log.Info().Str("module", "app.hub").Str("sid", string(sid)).Msg("disconnect")
	if ws != "" {
		h.teardown(sid, ws, user)
	}
}

func (h *Hub) teardown(sid core.SessionID, ws domain.WorkspaceID, user *domain.User) {
	room, ok := h.Rooms.Get(ws)
	if !ok {
		return
	}
	if user != nil {
		h.Presence.DropUser(sid, ws, user)
		h.Voice.Drop(sid, ws, user.ID)
	}
	room.RemoveMember(sid)
}

// Kick force-closes a connection; the transport teardown then drives
// OnDisconnect through the read pump.
func (h *Hub) Kick(sid core.SessionID) {
	log.Warn().Str("module", "app.hub").Str("sid", string(sid)).Msg("kicking slow consumer")
	h.Registry.Cancel(sid)
}

func (h *Hub) marshal(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Msg("marshal outbound")
		return nil, false
	}
	return b, true
}

// BroadcastFrom fans v out to every member of sid's room except sid.
func (h *Hub) BroadcastFrom(sid core.SessionID, v any) {
	ws, _, ok := h.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room, ok := h.Rooms.Get(ws)
	if !ok {
		return
	}
	frame, ok := h.marshal(v)
	if !ok {
		return
	}
	h.publish(room, sid, frame)
}

// BroadcastRoom fans v out to every member of the workspace room, with an
// optional excluded session.
func (h *Hub) BroadcastRoom(ws domain.WorkspaceID, except core.SessionID, v any) {
	room, ok := h.Rooms.Get(ws)
	if !ok {
		log.Debug().Str("module", "app.hub").Str("workspace", string(ws)).Msg("broadcast to absent room dropped")
		return
	}
	frame, ok := h.marshal(v)
	if !ok {
		return
	}
	h.publish(room, except, frame)
}

func (h *Hub) publish(room core.RoomService, except core.SessionID, frame core.Frame) {
	res := room.Broadcast(except, frame)
	if h.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch h.Policy.OnBackPressure(room, slow) {
		case KickMember:
			h.Kick(slow)
		case MarkSlow, DropFrame, NoAction:
		}
	}
}

// SendToUser delivers v to one user's connection inside the workspace
// room. Returns false when the user is not currently a member.
func (h *Hub) SendToUser(ws domain.WorkspaceID, user domain.UserID, v any) bool {
	room, ok := h.Rooms.Get(ws)
	if !ok {
		return false
	}
	sess, ok := room.SessionOf(user)
	if !ok {
		return false
	}
	frame, ok := h.marshal(v)
	if !ok {
		return false
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("user", string(user)).Msg("directed send failed")
		return false
	}
	return true
}

// Send delivers v to one session, wherever it is.
func (h *Hub) Send(sid core.SessionID, v any) {
	sess, ok := h.Registry.GetSession(sid)
	if !ok {
		return
	}
	frame, ok := h.marshal(v)
	if !ok {
		return
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("sid", string(sid)).Msg("send failed")
	}
}

// Shutdown flushes pending debounced saves. Called once on process exit.
func (h *Hub) Shutdown() {
	h.DocSync.Flush()
	h.Presence.Shutdown()
}
