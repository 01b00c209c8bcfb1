package core

import (
	"time"

	"github.com/synapse-hq/realtime/internal/domain"
)

// Frame is a raw outbound payload, already marshalled.
type Frame []byte

type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the hub.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}

// RoomService is the core-facing API of a room. It owns the membership set
// and the room's ephemeral shared state (whiteboard, call roster) but never
// touches transport resources.
type RoomService interface {
	Workspace() domain.WorkspaceID
	MemberCount() int
	MembersSnapshot() []domain.User
	EmptySince() (time.Time, bool)

	AddMember(sid SessionID, ms MemberSession) bool
	RemoveMember(sid SessionID)
	Retire(olderThan time.Duration) bool
	SessionOf(user domain.UserID) (MemberSession, bool)
	Broadcast(from SessionID, data Frame) PublishResult

	Whiteboard() domain.WhiteboardSnapshot
	ReplaceWhiteboard(parts domain.WhiteboardSnapshot) domain.WhiteboardSnapshot

	AddCaller(p domain.CallParticipant) bool
	RemoveCaller(id domain.UserID) (domain.CallParticipant, bool)
	CallRoster() []domain.CallParticipant
}

type RoomInfo struct {
	Workspace   domain.WorkspaceID `json:"workspace_id"`
	MemberCount int                `json:"client_count"`
}

type RoomFactory interface {
	GetOrCreate(ws domain.WorkspaceID) RoomService
	Get(ws domain.WorkspaceID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(ws domain.WorkspaceID)
}
