package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/mcwissink/piano-player/internal/domain"
	"github.com/mcwissink/piano-player/internal/protocol"
)

func (ctl *WSController) handleInit(sid domain.SessionID, conn *WsConn) {
	user, ok := ctl.Manager.Identity(sid)
	if !ok {
		return
	}
	ctl.sendJSON(conn, protocol.Init{Type: protocol.TypeInit, Name: user.Name, Color: user.Color})
	ctl.Manager.BroadcastRoomList()
}

// handleSettings echoes the resulting identity back as an init frame; room
// members see the change with the next snapshot push.
func (ctl *WSController) handleSettings(sid domain.SessionID, conn *WsConn, data []byte) {
	var p protocol.Settings
	if err := bind(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad settings payload")
		return
	}
	user, ok := ctl.Manager.UpdateSettings(sid, p.Name, p.Color)
	if !ok {
		return
	}
	ctl.sendJSON(conn, protocol.Init{Type: protocol.TypeInit, Name: user.Name, Color: user.Color})
}
