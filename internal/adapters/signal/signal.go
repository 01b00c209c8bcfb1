package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/synapse-hq/realtime/internal/app"
	"github.com/synapse-hq/realtime/internal/config"
	"github.com/synapse-hq/realtime/internal/core"
	"github.com/synapse-hq/realtime/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type handlerFunc func(sid core.SessionID, conn *WsSignalConn, data []byte)

// SignalWSController owns the websocket endpoint: upgrade, pumps, and the
// dispatch table routing inbound events to the hub's components.
type SignalWSController struct {
	Hub      *app.Hub
	Cfg      *config.Config
	handlers map[string]handlerFunc
}

func NewSignalWSController(hub *app.Hub, cfg *config.Config) *SignalWSController {
	ctl := &SignalWSController{Hub: hub, Cfg: cfg}
	ctl.handlers = map[string]handlerFunc{
		"join_room":           ctl.handleJoinRoom,
		"leave_room":          ctl.handleLeaveRoom,
		"document_update":     ctl.handleDocumentUpdate,
		"typing_start":        ctl.handleTypingStart,
		"typing_stop":         ctl.handleTypingStop,
		"whiteboard:request":  ctl.handleWhiteboardRequest,
		"whiteboard:update":   ctl.handleWhiteboardUpdate,
		"voice_join":          ctl.handleVoiceJoin,
		"voice_leave":         ctl.handleVoiceLeave,
		"voice_offer":         ctl.handleVoiceOffer,
		"voice_answer":        ctl.handleVoiceAnswer,
		"voice_ice_candidate": ctl.handleVoiceCandidate,
		"voice_mute_status":   ctl.handleVoiceMute,
		"update_username":     ctl.handleRename,
		"whoami":              ctl.handleWhoAmI,
		"ping":                ctl.handlePing,
		// CRUD-owned events relayed through the same socket. The hub does
		// not interpret them.
		"message":      ctl.handlePassthrough,
		"task":         ctl.handlePassthrough,
		"task_update":  ctl.handlePassthrough,
		"task_deleted": ctl.handlePassthrough,
		"file":         ctl.handlePassthrough,
	}
	return ctl
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and binds the connection into the hub.
// Identity comes from the auth middleware; whatever user ids later events
// claim, the session's identity is what the hub trusts.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.Cfg != nil && ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	buf := 32
	if ctl.Cfg != nil && ctl.Cfg.SendBuffer > 0 {
		buf = ctl.Cfg.SendBuffer
	}
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buf),
	}

	user := &domain.User{
		ID:   domain.UserID(c.GetString("user_id")),
		Name: c.GetString("user_name"),
	}
	if user.ID == "" {
		// Anonymous connection gets a minted guest identity.
		user = ctl.Hub.Registry.GetOrCreateUser(sid)
	} else {
		ctl.Hub.Registry.SetIdentity(sid, user)
	}

	meta := domain.NewMember(user)
	sess := core.NewMemberSession(meta, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Hub.Registry.BindSignal(sid, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
