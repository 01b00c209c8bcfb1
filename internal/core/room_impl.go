package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	workspace domain.WorkspaceID

	mu         sync.RWMutex
	bySID      map[SessionID]MemberSession
	byUser     map[domain.UserID]SessionID
	board      domain.WhiteboardSnapshot
	callers    map[domain.UserID]domain.CallParticipant
	emptySince time.Time
	retired    bool
}

func NewRoomService(ws domain.WorkspaceID) RoomService {
	return &roomImpl{
		workspace:  ws,
		bySID:      make(map[SessionID]MemberSession),
		byUser:     make(map[domain.UserID]SessionID),
		board:      domain.EmptyWhiteboard(),
		callers:    make(map[domain.UserID]domain.CallParticipant),
		emptySince: time.Now(),
	}
}

func (r *roomImpl) Workspace() domain.WorkspaceID { return r.workspace }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

// EmptySince reports when the room last became empty. The second return is
// false while the room has members.
func (r *roomImpl) EmptySince() (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.bySID) > 0 {
		return time.Time{}, false
	}
	return r.emptySince, true
}

// AddMember returns false once the room has been retired by the sweeper;
// the caller must fetch a fresh room from the factory and try again.
func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) bool {
	u := ms.Meta().User.ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return false
	}
	r.bySID[sid] = ms
	r.byUser[u] = sid
	log.Info().Str("module", "core.room").Str("workspace", string(r.workspace)).Str("sid", string(sid)).Str("user", string(u)).Msg("member added")
	return true
}

// Retire marks the room closed if it has been empty for at least
// olderThan. The check and the mark happen under one lock, so a join
// that already installed a member wins over the sweeper.
func (r *roomImpl) Retire(olderThan time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bySID) > 0 || time.Since(r.emptySince) < olderThan {
		return false
	}
	r.retired = true
	return true
}

func (r *roomImpl) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ms, ok := r.bySID[sid]; ok {
		u := ms.Meta().User.ID
		delete(r.byUser, u)
	}
	delete(r.bySID, sid)
	if len(r.bySID) == 0 {
		r.emptySince = time.Now()
	}
	log.Info().Str("module", "core.room").Str("workspace", string(r.workspace)).Str("sid", string(sid)).Msg("member removed")
}

func (r *roomImpl) SessionOf(user domain.UserID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byUser[user]
	if !ok {
		return nil, false
	}
	ms, ok := r.bySID[sid]
	return ms, ok
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(r.bySID))
	for _, ms := range r.bySID {
		out = append(out, *ms.Meta().User)
	}
	return out
}

func (r *roomImpl) Whiteboard() domain.WhiteboardSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.board
}

// ReplaceWhiteboard overwrites the sub-collections present (non-nil) in
// parts and leaves the rest untouched. Last accepted write wins; there is
// no merge across concurrent submissions.
func (r *roomImpl) ReplaceWhiteboard(parts domain.WhiteboardSnapshot) domain.WhiteboardSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if parts.StickyNotes != nil {
		r.board.StickyNotes = parts.StickyNotes
	}
	if parts.Shapes != nil {
		r.board.Shapes = parts.Shapes
	}
	if parts.Paths != nil {
		r.board.Paths = parts.Paths
	}
	return r.board
}

func (r *roomImpl) AddCaller(p domain.CallParticipant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callers[p.UserID]; ok {
		return false
	}
	r.callers[p.UserID] = p
	log.Info().Str("module", "core.room").Str("workspace", string(r.workspace)).Str("user", string(p.UserID)).Msg("caller added")
	return true
}

func (r *roomImpl) RemoveCaller(id domain.UserID) (domain.CallParticipant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.callers[id]
	if !ok {
		return domain.CallParticipant{}, false
	}
	delete(r.callers, id)
	log.Info().Str("module", "core.room").Str("workspace", string(r.workspace)).Str("user", string(id)).Msg("caller removed")
	return p, true
}

func (r *roomImpl) CallRoster() []domain.CallParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.CallParticipant, 0, len(r.callers))
	for _, p := range r.callers {
		out = append(out, p)
	}
	return out
}
