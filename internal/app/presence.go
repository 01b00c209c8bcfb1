package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
)

type typingKey struct {
	ws   domain.WorkspaceID
	doc  string
	user domain.UserID
}

type typingEntry struct {
	sid   core.SessionID
	name  string
	timer *time.Timer
	gen   uint64
}

// Presence tracks who is typing in which document. A user holds at most
// one typing slot per document; a stop event or the TTL clears it,
// whichever comes first.
type Presence struct {
	hub *Hub
	ttl time.Duration

	mu      sync.Mutex
	entries map[typingKey]*typingEntry
}

func NewPresence(hub *Hub, ttl time.Duration) *Presence {
	return &Presence{
		hub:     hub,
		ttl:     ttl,
		entries: make(map[typingKey]*typingEntry),
	}
}

type typingIndicator struct {
	Type        string             `json:"type"`
	DocumentID  string             `json:"document_id"`
	WorkspaceID domain.WorkspaceID `json:"workspace_id"`
	UserID      domain.UserID      `json:"user_id"`
	UserName    string             `json:"user_name"`
	IsTyping    bool               `json:"isTyping"`
}

// Start (re)arms the expiry timer for the user's typing slot and tells the
// rest of the room. Repeated starts rearm without creating a second slot;
// the rebroadcast is idempotent for clients, which key on user_id.
func (p *Presence) Start(sid core.SessionID, ws domain.WorkspaceID, doc string, user *domain.User) {
	key := typingKey{ws: ws, doc: doc, user: user.ID}
	p.mu.Lock()
	if e, ok := p.entries[key]; ok {
		// A fresh timer (not Reset) carries the new generation, so an
		// already-fired callback stuck behind the mutex cannot clear
		// the re-armed slot.
		e.timer.Stop()
		e.gen++
		gen := e.gen
		e.timer = time.AfterFunc(p.ttl, func() { p.expire(key, gen) })
	} else {
		e := &typingEntry{sid: sid, name: user.Name, gen: 1}
		e.timer = time.AfterFunc(p.ttl, func() { p.expire(key, 1) })
		p.entries[key] = e
	}
	p.mu.Unlock()

	p.hub.BroadcastRoom(ws, sid, typingIndicator{
		Type:        "typing_indicator",
		DocumentID:  doc,
		WorkspaceID: ws,
		UserID:      user.ID,
		UserName:    user.Name,
		IsTyping:    true,
	})
}

// Stop clears the slot and broadcasts the stop. A stop with no active slot
// is a no-op, so the stop broadcast fires at most once per start.
func (p *Presence) Stop(sid core.SessionID, ws domain.WorkspaceID, doc string, user *domain.User) {
	key := typingKey{ws: ws, doc: doc, user: user.ID}
	if !p.clear(key) {
		return
	}
	p.hub.BroadcastRoom(ws, sid, typingIndicator{
		Type:        "typing_indicator",
		DocumentID:  doc,
		WorkspaceID: ws,
		UserID:      user.ID,
		UserName:    user.Name,
		IsTyping:    false,
	})
}

// clear removes the slot and cancels the timer; reports whether it existed.
func (p *Presence) clear(key typingKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(p.entries, key)
	return true
}

func (p *Presence) expire(key typingKey, gen uint64) {
	p.mu.Lock()
	e, ok := p.entries[key]
	if ok && e.gen != gen {
		// Stale callback from a timer that was superseded by a rearm.
		p.mu.Unlock()
		return
	}
	if ok {
		delete(p.entries, key)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	log.Debug().Str("module", "app.presence").Str("doc", key.doc).Str("user", string(key.user)).Msg("typing expired")
	p.hub.BroadcastRoom(key.ws, e.sid, typingIndicator{
		Type:        "typing_indicator",
		DocumentID:  key.doc,
		WorkspaceID: key.ws,
		UserID:      key.user,
		UserName:    e.name,
		IsTyping:    false,
	})
}

// DropUser clears every typing slot the user holds in the workspace,
// broadcasting a stop per document. Used by leave/disconnect cleanup.
func (p *Presence) DropUser(sid core.SessionID, ws domain.WorkspaceID, user *domain.User) {
	p.mu.Lock()
	docs := make([]string, 0)
	for key, e := range p.entries {
		if key.ws == ws && key.user == user.ID {
			e.timer.Stop()
			delete(p.entries, key)
			docs = append(docs, key.doc)
		}
	}
	p.mu.Unlock()

	for _, doc := range docs {
		p.hub.BroadcastRoom(ws, sid, typingIndicator{
			Type:        "typing_indicator",
			DocumentID:  doc,
			WorkspaceID: ws,
			UserID:      user.ID,
			UserName:    user.Name,
			IsTyping:    false,
		})
	}
}

// Shutdown cancels all timers. Process exit only.
func (p *Presence) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, e := range p.entries {
		e.timer.Stop()
		delete(p.entries, key)
	}
}
