package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
)

func (ctl *SignalWSController) handleRename(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type renamePayload struct {
		Type string `json:"type"`
		Name string `json:"user_name"`
	}
	var p renamePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad rename payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename")
	if err := ctl.Hub.Registry.UpdateUsername(sid, p.Name); err != nil {
		ctl.sendError(conn, "invalid_name")
		return
	}
	ctl.handleWhoAmI(sid, conn, nil)

	user, ok := ctl.Hub.Registry.User(sid)
	if !ok {
		return
	}
	ctl.Hub.BroadcastFrom(sid, struct {
		Type string      `json:"type"`
		User domain.User `json:"user"`
	}{
		Type: "member_updated",
		User: *user,
	})
}

func (ctl *SignalWSController) handleWhoAmI(
	sid core.SessionID,
	conn *WsSignalConn,
	_ []byte,
) {
	user := ctl.Hub.Registry.GetOrCreateUser(sid)

	resp := struct {
		Type      string             `json:"type"`
		UserID    domain.UserID      `json:"user_id"`
		UserName  string             `json:"user_name"`
		Workspace domain.WorkspaceID `json:"workspace_id,omitempty"`
	}{
		Type:     "whoami",
		UserID:   user.ID,
		UserName: user.Name,
	}
	if ws, _, ok := ctl.Hub.Registry.RoomOf(sid); ok {
		resp.Workspace = ws
	}
	ctl.sendJSON(conn, resp)
}
