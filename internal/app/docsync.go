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

// DocumentEditEvent is one live edit as the client submits it. It is
// relayed, never stored as an entity; durability happens through the
// debounced save below.
type DocumentEditEvent struct {
	DocumentID  string             `json:"document_id"`
	WorkspaceID domain.WorkspaceID `json:"workspace_id"`
	Content     string             `json:"content"`
	UserID      domain.UserID      `json:"user_id"`
	UserName    string             `json:"user_name"`
}

type pendingSave struct {
	timer   *time.Timer
	sid     core.SessionID
	content string
	gen     uint64
	retried bool
}

// DocSync relays document edits to the room and persists them on a
// debounce: at most one pending write per document, carrying only the
// newest content. Whichever debounced write lands last wins; there is no
// merge of concurrent edits.
type DocSync struct {
	hub      *Hub
	store    storage.Store
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*pendingSave
}

func NewDocSync(hub *Hub, store storage.Store, debounce time.Duration) *DocSync {
	return &DocSync{
		hub:      hub,
		store:    store,
		debounce: debounce,
		pending:  make(map[string]*pendingSave),
	}
}

type documentUpdate struct {
	Type        string             `json:"type"`
	DocumentID  string             `json:"document_id"`
	WorkspaceID domain.WorkspaceID `json:"workspace_id"`
	Content     string             `json:"content"`
	UserID      domain.UserID      `json:"user_id"`
	UserName    string             `json:"user_name"`
}

func (d *DocSync) OnEdit(sid core.SessionID, evt DocumentEditEvent) {
	d.hub.BroadcastRoom(evt.WorkspaceID, sid, documentUpdate{
		Type:        "document_update",
		DocumentID:  evt.DocumentID,
		WorkspaceID: evt.WorkspaceID,
		Content:     evt.Content,
		UserID:      evt.UserID,
		UserName:    evt.UserName,
	})

	d.mu.Lock()
	if p, ok := d.pending[evt.DocumentID]; ok {
		p.content = evt.Content
		p.sid = sid
		p.gen++
		p.retried = false
		p.timer.Reset(d.debounce)
	} else {
		p := &pendingSave{sid: sid, content: evt.Content}
		id := evt.DocumentID
		p.timer = time.AfterFunc(d.debounce, func() { d.flushDoc(id) })
		d.pending[id] = p
	}
	d.mu.Unlock()
}

func (d *DocSync) flushDoc(id string) {
	d.mu.Lock()
	p, ok := d.pending[id]
	if !ok {
		d.mu.Unlock()
		return
	}
	content, sid, gen, retried := p.content, p.sid, p.gen, p.retried
	d.mu.Unlock()

	err := d.store.SaveDocumentContent(context.Background(), id, content)

	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok = d.pending[id]
	if !ok {
		return
	}
	if p.gen != gen {
		// A newer edit rearmed the timer while we were saving; let its
		// flush settle the entry.
		return
	}
	if err != nil {
		if !retried {
			log.Warn().Err(err).Str("module", "app.docsync").Str("doc", id).Msg("save failed, retrying")
			p.retried = true
			p.timer.Reset(d.debounce)
			return
		}
		log.Error().Err(err).Str("module", "app.docsync").Str("doc", id).Msg("save failed after retry")
		delete(d.pending, id)
		// Best-effort notice to the last editor only; the rest of the room
		// never hears about persistence trouble.
		go d.hub.Send(sid, map[string]any{
			"type":        "document_save_failed",
			"document_id": id,
		})
		return
	}
	delete(d.pending, id)
	log.Debug().Str("module", "app.docsync").Str("doc", id).Msg("document saved")
}

// Flush writes every pending document immediately. Process exit only.
func (d *DocSync) Flush() {
	d.mu.Lock()
	snapshot := make(map[string]string, len(d.pending))
	for id, p := range d.pending {
		p.timer.Stop()
		snapshot[id] = p.content
		delete(d.pending, id)
	}
	d.mu.Unlock()

	for id, content := range snapshot {
		if err := d.store.SaveDocumentContent(context.Background(), id, content); err != nil {
			log.Error().Err(err).Str("module", "app.docsync").Str("doc", id).Msg("final flush failed")
		}
	}
}
