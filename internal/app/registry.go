package app

import (
	"github.com/rs/zerolog/log"

	"github.com/mcwissink/piano-player/internal/core"
	"github.com/mcwissink/piano-player/internal/domain"
)

type sessionEntry struct {
	user *domain.User
	conn core.SignalConnection
	room domain.RoomID
}

// Registry maps transport-level identity to display identity and the
// session's current room. It is a plain map owned by the RoomManager;
// all access is serialized by the manager's lock.
type Registry struct {
	sessions map[domain.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.SessionID]*sessionEntry)}
}

// Register creates a session with the default name and a random color.
// Called once per new connection.
func (r *Registry) Register(sid domain.SessionID, conn core.SignalConnection) *domain.User {
	u := domain.NewUser(sid)
	r.sessions[sid] = &sessionEntry{user: u, conn: conn}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("registered session")
	return u
}

// Unregister removes the session; the caller must have already triggered
// room-leave cleanup.
func (r *Registry) Unregister(sid domain.SessionID) {
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered session")
}

// UpdateSettings overwrites name (ignored when empty) and color (as-is).
func (r *Registry) UpdateSettings(sid domain.SessionID, name, color string) (*domain.User, bool) {
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	e.user.SetName(name)
	e.user.SetColor(color)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("name", e.user.Name).Msg("updated settings")
	return e.user, true
}

func (r *Registry) User(sid domain.SessionID) (*domain.User, bool) {
	if e, ok := r.sessions[sid]; ok {
		return e.user, true
	}
	return nil, false
}

func (r *Registry) Conn(sid domain.SessionID) (core.SignalConnection, bool) {
	if e, ok := r.sessions[sid]; ok {
		return e.conn, true
	}
	return nil, false
}

// RoomOf reports the session's current room; false means "no room".
func (r *Registry) RoomOf(sid domain.SessionID) (domain.RoomID, bool) {
	e, ok := r.sessions[sid]
	if !ok || e.room == "" {
		return "", false
	}
	return e.room, true
}

func (r *Registry) SetRoom(sid domain.SessionID, id domain.RoomID) {
	if e, ok := r.sessions[sid]; ok {
		e.room = id
	}
}

func (r *Registry) ClearRoom(sid domain.SessionID) {
	if e, ok := r.sessions[sid]; ok {
		e.room = ""
	}
}

// Snap is a read-only registry row used for fan-out.
type Snap struct {
	SID  domain.SessionID
	Conn core.SignalConnection
}

// All returns every live session, for global broadcasts.
func (r *Registry) All() []Snap {
	out := make([]Snap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		out = append(out, Snap{SID: sid, Conn: e.conn})
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.sessions)
}
