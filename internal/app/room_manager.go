package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
	"github.com/synapse-hq/realtime/internal/storage"
)

// RoomManagerImpl creates rooms lazily and sweeps empty ones after a TTL,
// so a room's whiteboard survives a quick reconnect but abandoned rooms do
// not accumulate.
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.WorkspaceID]core.RoomService

	ttl   time.Duration
	store storage.Store
}

func NewRoomManager(ttl time.Duration, store storage.Store) *RoomManagerImpl {
	return &RoomManagerImpl{
		rooms: make(map[domain.WorkspaceID]core.RoomService),
		ttl:   ttl,
		store: store,
	}
}

func (f *RoomManagerImpl) GetOrCreate(ws domain.WorkspaceID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[ws]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[ws]; ok {
		return room
	}
	room = core.NewRoomService(ws)
	f.rooms[ws] = room
	log.Info().Str("module", "app.rooms").Str("workspace", string(ws)).Msg("room created")
	return room
}

func (f *RoomManagerImpl) Get(ws domain.WorkspaceID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[ws]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for ws, r := range f.rooms {
		out = append(out, core.RoomInfo{Workspace: ws, MemberCount: r.MemberCount()})
	}
	return out
}

func (f *RoomManagerImpl) StopRoom(ws domain.WorkspaceID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, ws)
	log.Info().Str("module", "app.rooms").Str("workspace", string(ws)).Msg("room stopped")
}

// Run sweeps rooms that have been empty longer than the TTL. The whiteboard
// is flushed to the store before the room is dropped; the flush is
// best-effort and the room goes away either way.
func (f *RoomManagerImpl) Run(ctx context.Context) {
	t := time.NewTicker(f.ttl / 2)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			f.sweep(ctx)
		}
	}
}

func (f *RoomManagerImpl) sweep(ctx context.Context) {
	f.mu.RLock()
	expired := make([]core.RoomService, 0)
	for _, room := range f.rooms {
		if since, empty := room.EmptySince(); empty && time.Since(since) >= f.ttl {
			expired = append(expired, room)
		}
	}
	f.mu.RUnlock()

	for _, room := range expired {
		ws := room.Workspace()
		if f.store != nil {
			if err := f.store.SaveWhiteboardSnapshot(ctx, ws, room.Whiteboard()); err != nil {
				log.Warn().Err(err).Str("module", "app.rooms").Str("workspace", string(ws)).Msg("whiteboard flush failed")
			}
		}
		f.mu.Lock()
		// Retire re-checks emptiness under the room's own lock, so a
		// join that grabbed this room from the map but has not yet
		// added its member either beats the mark or gets refused by
		// AddMember and retries against a fresh room.
		if room.Retire(f.ttl) {
			delete(f.rooms, ws)
			log.Info().Str("module", "app.rooms").Str("workspace", string(ws)).Msg("empty room swept")
		}
		f.mu.Unlock()
	}
}
