package app

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
)

// Signaling relay kinds. Media never touches the server; each pair of
// participants negotiates its own peer connection and the hub only ferries
// the negotiation messages plus roster bookkeeping.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "ice-candidate"
)

type Voice struct {
	hub *Hub
}

func NewVoice(hub *Hub) *Voice {
	return &Voice{hub: hub}
}

type voicePresence struct {
	Type     string        `json:"type"`
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
}

type voiceParticipants struct {
	Type         string                   `json:"type"`
	Participants []domain.CallParticipant `json:"participants"`
}

// Join puts the user on the room's call roster, announces the join to the
// rest of the room and hands the joiner the roster it must dial.
func (v *Voice) Join(sid core.SessionID, ws domain.WorkspaceID, user *domain.User) {
	room, ok := v.hub.Rooms.Get(ws)
	if !ok {
		log.Warn().Str("module", "app.voice").Str("workspace", string(ws)).Msg("voice join for absent room dropped")
		return
	}

	existing := make([]domain.CallParticipant, 0)
	for _, p := range room.CallRoster() {
		if p.UserID != user.ID {
			existing = append(existing, p)
		}
	}
	if room.AddCaller(domain.CallParticipant{UserID: user.ID, UserName: user.Name}) {
		v.hub.BroadcastRoom(ws, sid, voicePresence{
			Type:     "voice:user-joined",
			UserID:   user.ID,
			UserName: user.Name,
		})
	}

	// The joiner initiates offers to everyone already present; its own
	// entry is never in the list.
	v.hub.Send(sid, voiceParticipants{
		Type:         "voice:participants",
		Participants: existing,
	})
}

// Leave removes the user from the roster and tells the room. Idempotent:
// leaving twice, or leaving without having joined, does nothing.
func (v *Voice) Leave(sid core.SessionID, ws domain.WorkspaceID, userID domain.UserID) {
	room, ok := v.hub.Rooms.Get(ws)
	if !ok {
		return
	}
	p, ok := room.RemoveCaller(userID)
	if !ok {
		return
	}
	v.hub.BroadcastRoom(ws, sid, voicePresence{
		Type:     "voice:user-left",
		UserID:   p.UserID,
		UserName: p.UserName,
	})
}

// Drop is disconnect-path Leave.
func (v *Voice) Drop(sid core.SessionID, ws domain.WorkspaceID, userID domain.UserID) {
	v.Leave(sid, ws, userID)
}

type voiceOffer struct {
	Type  string                    `json:"type"`
	From  domain.UserID             `json:"from"`
	Offer webrtc.SessionDescription `json:"offer"`
}

type voiceAnswer struct {
	Type   string                    `json:"type"`
	From   domain.UserID             `json:"from"`
	Answer webrtc.SessionDescription `json:"answer"`
}

type voiceCandidate struct {
	Type      string                  `json:"type"`
	From      domain.UserID           `json:"from"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// Relay forwards one session-negotiation message to exactly one peer in
// the same room. An absent peer is an expected race (it may have just
// left): the message is dropped and logged, never surfaced to the sender.
func (v *Voice) Relay(ws domain.WorkspaceID, kind string, from, to domain.UserID, payload json.RawMessage) {
	var out any
	switch kind {
	case SignalOffer:
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(payload, &sd); err != nil {
			log.Warn().Err(err).Str("module", "app.voice").Msg("malformed offer dropped")
			return
		}
		out = voiceOffer{Type: "voice:offer", From: from, Offer: sd}
	case SignalAnswer:
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(payload, &sd); err != nil {
			log.Warn().Err(err).Str("module", "app.voice").Msg("malformed answer dropped")
			return
		}
		out = voiceAnswer{Type: "voice:answer", From: from, Answer: sd}
	case SignalCandidate:
		var ci webrtc.ICECandidateInit
		if err := json.Unmarshal(payload, &ci); err != nil {
			log.Warn().Err(err).Str("module", "app.voice").Msg("malformed candidate dropped")
			return
		}
		out = voiceCandidate{Type: "voice:ice-candidate", From: from, Candidate: ci}
	default:
		log.Warn().Str("module", "app.voice").Str("kind", kind).Msg("unknown signal kind dropped")
		return
	}

	if !v.hub.SendToUser(ws, to, out) {
		log.Debug().Str("module", "app.voice").Str("kind", kind).Str("to", string(to)).Msg("peer not in room, signal dropped")
	}
}

type voiceMute struct {
	Type    string        `json:"type"`
	UserID  domain.UserID `json:"userId"`
	IsMuted bool          `json:"isMuted"`
}

// Mute is a stateless broadcast; the roster does not track mute state.
func (v *Voice) Mute(sid core.SessionID, ws domain.WorkspaceID, userID domain.UserID, muted bool) {
	v.hub.BroadcastRoom(ws, sid, voiceMute{
		Type:    "voice:mute-status",
		UserID:  userID,
		IsMuted: muted,
	})
}
