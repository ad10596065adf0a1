package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/mcwissink/piano-player/internal/domain"
	"github.com/mcwissink/piano-player/internal/protocol"
)

func (ctl *WSController) handleChat(sid domain.SessionID, data []byte) {
	var p protocol.Chat
	if err := bind(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad chat payload")
		return
	}
	if !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("chat rate limited")
		return
	}
	ctl.Manager.BroadcastChat(sid, p.Message)
}
