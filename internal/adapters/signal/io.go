package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcwissink/piano-player/internal/domain"
	"github.com/mcwissink/piano-player/internal/protocol"
)

var validate = validator.New()

// bind decodes an inbound payload and checks its schema. Events that fail
// either step are dropped at this boundary.
func bind(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	return validate.Struct(v)
}

func (ctl *WSController) writePump(ctx context.Context, c *WsConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *WSController) readPump(ctx context.Context, cancel context.CancelFunc, sid domain.SessionID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Manager.Disconnect(sid)
		ctl.Limiter.Forget(sid)
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	pongWait := ctl.cfg.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(sid, c, data)
		}
	}
}

func (ctl *WSController) dispatch(sid domain.SessionID, c *WsConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad envelope")
		return
	}

	switch env.Type {
	case protocol.TypeInit:
		ctl.handleInit(sid, c)
	case protocol.TypeSettings:
		ctl.handleSettings(sid, c, data)
	case protocol.TypeCreateRoom:
		ctl.handleCreateRoom(sid, c, env, data)
	case protocol.TypeJoinRoom:
		ctl.handleJoinRoom(sid, c, env, data)
	case protocol.TypeUpdateRoom:
		ctl.handleUpdateRoom(sid, data)
	case protocol.TypeUpdatePermissions:
		ctl.handleUpdatePermissions(sid, data)
	case protocol.TypeLikeRoom:
		ctl.Manager.LikeRoom(sid)
	case protocol.TypeRoomList:
		ctl.Manager.BroadcastRoomList()
	case protocol.TypeNoteOn:
		ctl.handleNoteOn(sid, data)
	case protocol.TypeNoteOff:
		ctl.handleNoteOff(sid, data)
	case protocol.TypeControlChange:
		ctl.handleControlChange(sid, data)
	case protocol.TypeChat:
		ctl.handleChat(sid, data)
	case protocol.TypePing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *WSController) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// ack answers a seq-bearing request exactly once; nil data is the
// rejection/not-found sentinel. Requests without a seq get no ack.
func (ctl *WSController) ack(c *WsConn, env protocol.Envelope, data any) {
	if env.Seq == nil {
		return
	}
	ctl.sendJSON(c, protocol.Ack{Type: protocol.TypeAck, Seq: *env.Seq, Data: data})
}
