package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
)

func (ctl *SignalWSController) handleJoinRoom(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type        string `json:"type"`
		RoomID      string `json:"room_id"`
		WorkspaceID string `json:"workspace_id"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	ws := domain.WorkspaceID(p.RoomID)
	if ws == "" {
		ws = domain.WorkspaceID(p.WorkspaceID)
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("workspace", string(ws)).Msg("join")
	if !ctl.Hub.Join(sid, ws) {
		ctl.sendError(conn, "join_failed")
		return
	}

	room, ok := ctl.Hub.Rooms.Get(ws)
	if !ok {
		return
	}
	resp := struct {
		Type    string             `json:"type"`
		Room    domain.WorkspaceID `json:"room_id"`
		Members []domain.User      `json:"members"`
		Count   int                `json:"count"`
	}{
		Type:    "room_state",
		Room:    ws,
		Members: room.MembersSnapshot(),
		Count:   room.MemberCount(),
	}
	ctl.sendJSON(conn, resp)
}

// handleLeaveRoom detaches from the current room without dropping the
// connection.
func (ctl *SignalWSController) handleLeaveRoom(
	sid core.SessionID,
	conn *WsSignalConn,
	_ []byte,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Hub.Leave(sid)
	ctl.sendJSON(conn, map[string]any{
		"type": "left",
	})
}

// roomOf resolves the workspace a connection may act in. Events that claim
// a workspace the connection never joined are stale-client noise.
func (ctl *SignalWSController) roomOf(sid core.SessionID, claimed string) (domain.WorkspaceID, bool) {
	ws, _, ok := ctl.Hub.Registry.RoomOf(sid)
	if !ok {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("event from connection outside any room")
		return "", false
	}
	if claimed != "" && domain.WorkspaceID(claimed) != ws {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("claimed", claimed).Str("actual", string(ws)).Msg("event for foreign workspace dropped")
		return "", false
	}
	return ws, true
}
