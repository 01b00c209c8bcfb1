package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
)

func (ctl *SignalWSController) handleWhiteboardRequest(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type reqPayload struct {
		Type        string `json:"type"`
		WorkspaceID string `json:"workspace_id"`
	}
	var p reqPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad whiteboard request")
		return
	}
	ws, ok := ctl.roomOf(sid, p.WorkspaceID)
	if !ok {
		return
	}
	ctl.Hub.Whiteboard.Init(sid, ws)
}

func (ctl *SignalWSController) handleWhiteboardUpdate(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type updatePayload struct {
		Type        string              `json:"type"`
		Kind        string              `json:"kind"`
		WorkspaceID string              `json:"workspace_id"`
		StickyNotes []domain.StickyNote `json:"stickyNotes"`
		Shapes      []domain.Shape      `json:"shapes"`
		Paths       []domain.Path       `json:"paths"`
	}
	var p updatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad whiteboard update")
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
	ctl.Hub.Whiteboard.Apply(sid, ws, user.ID, p.Kind, domain.WhiteboardSnapshot{
		StickyNotes: p.StickyNotes,
		Shapes:      p.Shapes,
		Paths:       p.Paths,
	})
}
