package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/mcwissink/piano-player/internal/domain"
	"github.com/mcwissink/piano-player/internal/protocol"
)

func (ctl *WSController) handleCreateRoom(sid domain.SessionID, conn *WsConn, env protocol.Envelope, data []byte) {
	var p protocol.CreateRoom
	if err := bind(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad createRoom payload")
		ctl.ack(conn, env, nil)
		return
	}
	id, ok := ctl.Manager.CreateRoom(sid, p.RoomID(), p.Theme, p.Scope)
	if !ok {
		// taken id and bad request collapse into the same sentinel
		ctl.ack(conn, env, nil)
		return
	}
	ctl.ack(conn, env, id)
}

func (ctl *WSController) handleJoinRoom(sid domain.SessionID, conn *WsConn, env protocol.Envelope, data []byte) {
	var p protocol.JoinRoom
	if err := bind(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad joinRoom payload")
		ctl.ack(conn, env, nil)
		return
	}
	// identity piggybacked on join, same as a settings update
	if p.User.Name != "" || p.User.Color != "" {
		ctl.Manager.UpdateSettings(sid, p.User.Name, p.User.Color)
	}
	snap, ok := ctl.Manager.JoinRoom(domain.RoomID(p.ID), sid)
	if !ok {
		ctl.ack(conn, env, nil)
		return
	}
	ctl.ack(conn, env, snap)
}

func (ctl *WSController) handleUpdateRoom(sid domain.SessionID, data []byte) {
	var p protocol.UpdateRoom
	if err := bind(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad updateRoom payload")
		return
	}
	ctl.Manager.UpdateRoom(sid, p.Theme, p.Scope)
}

func (ctl *WSController) handleUpdatePermissions(sid domain.SessionID, data []byte) {
	var p protocol.UpdatePermissions
	if err := bind(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad updatePermissions payload")
		return
	}
	ctl.Manager.UpdatePermissions(sid, domain.SessionID(p.ID), p.Permissions)
}
