package domain

// WorkspaceID keys a broadcast room. Rooms are created lazily on the first
// join for a workspace and swept once empty.
type WorkspaceID string

type Workspace struct {
	ID WorkspaceID
}

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User *User
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User) *Member {
	return &Member{User: user}
}

// CallParticipant is one entry in a room's voice roster. JSON field names
// follow the signaling contract, which is camelCase unlike the rest of the
// wire format.
type CallParticipant struct {
	UserID   UserID `json:"userId"`
	UserName string `json:"userName"`
}
