package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/mcwissink/piano-player/internal/domain"
	"github.com/mcwissink/piano-player/internal/protocol"
)

// Note events are fire-and-forget: permission failures and malformed
// payloads drop silently, the sender gets no reply either way.

func (ctl *WSController) handleNoteOn(sid domain.SessionID, data []byte) {
	var p protocol.NoteOn
	if err := bind(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad noteon payload")
		return
	}
	ctl.Manager.BroadcastNoteOn(sid, p)
}

func (ctl *WSController) handleNoteOff(sid domain.SessionID, data []byte) {
	var p protocol.NoteOff
	if err := bind(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad noteoff payload")
		return
	}
	ctl.Manager.BroadcastNoteOff(sid, p)
}

func (ctl *WSController) handleControlChange(sid domain.SessionID, data []byte) {
	var p protocol.ControlChange
	if err := bind(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad controlchange payload")
		return
	}
	ctl.Manager.BroadcastControlChange(sid, p)
}
