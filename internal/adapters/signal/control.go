package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/core"
)

func (ctl *SignalWSController) handlePing(
	sid core.SessionID,
	conn *WsSignalConn,
	_ []byte,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

// handlePassthrough relays chat/task/file events verbatim to the rest of
// the room. The CRUD service owns their durability; the hub only fans
// them out.
func (ctl *SignalWSController) handlePassthrough(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	if _, _, ok := ctl.Hub.Registry.RoomOf(sid); !ok {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("passthrough from connection outside any room dropped")
		return
	}
	ctl.Hub.BroadcastFrom(sid, json.RawMessage(data))
}
