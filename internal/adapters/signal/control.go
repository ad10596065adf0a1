package signal

import (
	"github.com/mcwissink/piano-player/internal/protocol"
)

func (ctl *WSController) handlePing(conn *WsConn) {
	ctl.sendJSON(conn, protocol.Pong{Type: protocol.TypePong})
}
