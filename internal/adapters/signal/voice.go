package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/app"
	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
)

// Voice payloads use the signaling contract's camelCase keys.

func (ctl *SignalWSController) handleVoiceJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type        string `json:"type"`
		WorkspaceID string `json:"workspaceId"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad voice join")
		return
	}
	ws, ok := ctl.roomOf(sid, p.WorkspaceID)
	if !ok {
		return
	}
	user, ok := ctl.Hub.Registry.User(sid)
	if !ok {
		return
	}
	ctl.Hub.Voice.Join(sid, ws, user)
}

func (ctl *SignalWSController) handleVoiceLeave(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type leavePayload struct {
		Type        string `json:"type"`
		WorkspaceID string `json:"workspaceId"`
	}
	var p leavePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad voice leave")
		return
	}
	ws, ok := ctl.roomOf(sid, p.WorkspaceID)
	if !ok {
		return
	}
	user, ok := ctl.Hub.Registry.User(sid)
	if !ok {
		return
	}
	ctl.Hub.Voice.Leave(sid, ws, user.ID)
}

type relayPayload struct {
	Type        string          `json:"type"`
	To          string          `json:"to"`
	WorkspaceID string          `json:"workspaceId"`
	Offer       json.RawMessage `json:"offer"`
	Answer      json.RawMessage `json:"answer"`
	Candidate   json.RawMessage `json:"candidate"`
}

func (ctl *SignalWSController) relaySignal(sid core.SessionID, kind string, data []byte) {
	var p relayPayload
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		log.Warn().Str("module", "signal").Str("kind", kind).Msg("bad signal payload")
		return
	}
	ws, ok := ctl.roomOf(sid, p.WorkspaceID)
	if !ok {
		return
	}
	user, ok := ctl.Hub.Registry.User(sid)
	if !ok {
		return
	}

	var payload json.RawMessage
	switch kind {
	case app.SignalOffer:
		payload = p.Offer
	case app.SignalAnswer:
		payload = p.Answer
	case app.SignalCandidate:
		payload = p.Candidate
	}
	if payload == nil {
		log.Warn().Str("module", "signal").Str("kind", kind).Msg("signal without payload dropped")
		return
	}
	ctl.Hub.Voice.Relay(ws, kind, user.ID, domain.UserID(p.To), payload)
}

func (ctl *SignalWSController) handleVoiceOffer(sid core.SessionID, _ *WsSignalConn, data []byte) {
	ctl.relaySignal(sid, app.SignalOffer, data)
}

func (ctl *SignalWSController) handleVoiceAnswer(sid core.SessionID, _ *WsSignalConn, data []byte) {
	ctl.relaySignal(sid, app.SignalAnswer, data)
}

func (ctl *SignalWSController) handleVoiceCandidate(sid core.SessionID, _ *WsSignalConn, data []byte) {
	ctl.relaySignal(sid, app.SignalCandidate, data)
}

func (ctl *SignalWSController) handleVoiceMute(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type mutePayload struct {
		Type        string `json:"type"`
		WorkspaceID string `json:"workspaceId"`
		IsMuted     bool   `json:"isMuted"`
	}
	var p mutePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad mute payload")
		return
	}
	ws, ok := ctl.roomOf(sid, p.WorkspaceID)
	if !ok {
		return
	}
	user, ok := ctl.Hub.Registry.User(sid)
	if !ok {
		return
	}
	ctl.Hub.Voice.Mute(sid, ws, user.ID, p.IsMuted)
}
