// Package storage is the persistence collaborator of the realtime hub.
// Durability itself is owned by the CRUD backend; the hub only pushes
// debounced document content and whiteboard flushes through this interface.
package storage

import (
	"context"
	"sync"

	"github.com/synapse-hq/realtime/internal/domain"
)

type Store interface {
	SaveDocumentContent(ctx context.Context, documentID string, content string) error
	SaveWhiteboardSnapshot(ctx context.Context, ws domain.WorkspaceID, snap domain.WhiteboardSnapshot) error
}

// Memory keeps everything in process. It backs the dev server and the
// tests; production deployments wire the CRUD service's client here.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]string
	boards map[domain.WorkspaceID]domain.WhiteboardSnapshot
}

func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[string]string),
		boards: make(map[domain.WorkspaceID]domain.WhiteboardSnapshot),
	}
}

func (m *Memory) SaveDocumentContent(_ context.Context, documentID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[documentID] = content
	return nil
}

func (m *Memory) SaveWhiteboardSnapshot(_ context.Context, ws domain.WorkspaceID, snap domain.WhiteboardSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boards[ws] = snap
	return nil
}

func (m *Memory) Document(documentID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.docs[documentID]
	return c, ok
}

func (m *Memory) Whiteboard(ws domain.WorkspaceID) (domain.WhiteboardSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.boards[ws]
	return s, ok
}
