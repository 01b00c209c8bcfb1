package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
)

type sessionEntry struct {
	Workspace domain.WorkspaceID
	Session   core.MemberSession
	Cancel    context.CancelFunc
}

// Registry tracks live connections: their identity, their transport session
// and the room they currently belong to. A connection belongs to at most
// one room at a time.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	users    map[core.SessionID]*domain.User
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		users:    make(map[core.SessionID]*domain.User),
	}
}

func (r *Registry) GetOrCreateUser(sid core.SessionID) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[sid]; ok {
		return u
	}
	u := domain.NewGuest()
	r.users[sid] = u
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("created new user")
	return u
}

// SetIdentity installs the trusted identity produced by the auth layer for
// this connection. It replaces any guest identity minted earlier.
func (r *Registry) SetIdentity(sid core.SessionID, u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[sid] = u
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(u.ID)).Str("name", u.Name).Msg("identity set")
}

func (r *Registry) UpdateUsername(sid core.SessionID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[sid]
	if !ok {
		return nil
	}
	if err := u.SetName(name); err != nil {
		return err
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", name).Msg("updated username")
	return nil
}

func (r *Registry) BindSignal(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// User returns the connection's identity without minting one.
func (r *Registry) User(sid core.SessionID) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[sid]
	return u, ok
}

// Detach atomically removes the session and returns what disconnect
// cleanup needs. The ok result is false on repeat calls, so cleanup runs
// exactly once however many times the transport reports the close.
func (r *Registry) Detach(sid core.SessionID) (domain.WorkspaceID, *domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return "", nil, false
	}
	user := r.users[sid]
	delete(r.sessions, sid)
	delete(r.users, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session detached")
	return entry.Workspace, user, true
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.WorkspaceID, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.Workspace == "" {
		return "", nil, false
	}
	return entry.Workspace, entry.Session, true
}

func (r *Registry) UpdateRoom(sid core.SessionID, ws domain.WorkspaceID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.Workspace = ws
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("workspace", string(ws)).Msg("updated room")
	return true
}

func (r *Registry) RemoveRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok {
		entry.Workspace = ""
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed room association")
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
