package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcwissink/piano-player/internal/app"
	"github.com/mcwissink/piano-player/internal/config"
	"github.com/mcwissink/piano-player/internal/core"
	"github.com/mcwissink/piano-player/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// WSController is the connection-level event router: it owns the websocket
// endpoints and forwards decoded intents to the RoomManager.
type WSController struct {
	Manager *app.RoomManager
	Limiter *RateLimiter
	cfg     *config.Config
}

func NewWSController(manager *app.RoomManager, cfg *config.Config) *WSController {
	return &WSController{
		Manager: manager,
		Limiter: NewRateLimiter(cfg.ChatLimit, cfg.ChatInterval),
		cfg:     cfg,
	}
}

type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
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

func (c *WsConn) Close() {
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

// HandleSignal upgrades the connection and registers a fresh session. The
// session id is minted here, once per connection; a reconnect gets a new
// identity. The browser's client token is only attached to logs.
func (ctl *WSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := domain.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("ct", c.GetString("client_token")).Msg("new WS connection")

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, 64),
	}
	ctl.Manager.Connect(sid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
