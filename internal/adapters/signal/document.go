package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/app"
	"github.com/synapse-hq/realtime/internal/core"
)

func (ctl *SignalWSController) handleDocumentUpdate(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var evt app.DocumentEditEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad document payload")
		return
	}
	if evt.DocumentID == "" {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("document update without document_id dropped")
		return
	}
	ws, ok := ctl.roomOf(sid, string(evt.WorkspaceID))
	if !ok {
		return
	}
	evt.WorkspaceID = ws

	// The session identity wins over whatever the payload claims.
	if user, ok := ctl.Hub.Registry.User(sid); ok {
		evt.UserID = user.ID
		evt.UserName = user.Name
	}

	ctl.Hub.DocSync.OnEdit(sid, evt)
}

type typingPayload struct {
	Type        string `json:"type"`
	DocumentID  string `json:"document_id"`
	WorkspaceID string `json:"workspace_id"`
}

func (ctl *SignalWSController) handleTypingStart(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.DocumentID == "" {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("bad typing payload")
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
	ctl.Hub.Presence.Start(sid, ws, p.DocumentID, user)
}

func (ctl *SignalWSController) handleTypingStop(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.DocumentID == "" {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("bad typing payload")
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
	ctl.Hub.Presence.Stop(sid, ws, p.DocumentID, user)
}
