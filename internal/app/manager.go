package app

import (
	"cmp"
	"encoding/json"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcwissink/piano-player/internal/core"
	"github.com/mcwissink/piano-player/internal/domain"
	"github.com/mcwissink/piano-player/internal/protocol"
)

// RoomManager orchestrates every room-affecting client intent and is the
// sole writer of Registry and RoomStore state. The original relay ran on a
// single-threaded event loop whose run-to-completion handlers made each
// mutation atomic; here one process-wide mutex restores that property.
// Fan-out never blocks under the lock: TrySend queues into a buffered
// per-connection channel and reports backpressure instead of waiting.
type RoomManager struct {
	mu       sync.Mutex
	Registry *Registry
	Rooms    *RoomStore
	Perms    *PermissionEngine
	Policy   Policy
}

func NewRoomManager(policy Policy) *RoomManager {
	registry := NewRegistry()
	store := NewRoomStore()
	return &RoomManager{
		Registry: registry,
		Rooms:    store,
		Perms:    NewPermissionEngine(registry, store),
		Policy:   policy,
	}
}

// Connect registers a fresh session for a new connection.
func (m *RoomManager) Connect(sid domain.SessionID, conn core.SignalConnection) domain.SharedData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Registry.Register(sid, conn).SharedData()
}

// Disconnect runs the leave-room cleanup and drops the session. Unlike a
// plain leave it also prunes the session's permission entry: the id never
// comes back, a reconnect mints a new one.
func (m *RoomManager) Disconnect(sid domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveRoomLocked(sid, true)
	m.Registry.Unregister(sid)
}

// UpdateSettings mutates the sender's display identity. No broadcast is
// triggered; other members pick the change up with the next snapshot push.
func (m *RoomManager) UpdateSettings(sid domain.SessionID, name, color string) (domain.SharedData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Registry.UpdateSettings(sid, name, color)
	if !ok {
		return domain.SharedData{}, false
	}
	return u.SharedData(), true
}

func (m *RoomManager) Identity(sid domain.SessionID) (domain.SharedData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Registry.User(sid)
	if !ok {
		return domain.SharedData{}, false
	}
	return u.SharedData(), true
}

// CreateRoom always leaves the sender's current room first, even when
// creation then fails. Public rooms use the requested id literally and are
// rejected on collision; private rooms get a fresh unguessable id. The
// creator is not joined to the new room.
func (m *RoomManager) CreateRoom(sid domain.SessionID, id string, theme domain.Theme, scope domain.Scope) (domain.RoomID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveRoomLocked(sid, false)

	if scope == "" {
		scope = domain.ScopePublic
	}
	roomID := domain.RoomID(id)
	if scope == domain.ScopePrivate {
		roomID = domain.RoomID(uuid.NewString())
	}
	if roomID == "" {
		return "", false
	}
	room, ok := m.Rooms.Create(roomID, theme, scope, sid)
	if !ok {
		log.Info().Str("module", "app.manager").Str("room", string(roomID)).Msg("create rejected, id taken")
		return "", false
	}
	m.broadcastRoomListLocked()
	return room.ID, true
}

// JoinRoom leaves the current room first (even when the target does not
// exist), then adds the session to the target's member set. A nil snapshot
// means "no such room".
func (m *RoomManager) JoinRoom(id domain.RoomID, sid domain.SessionID) (*protocol.RoomSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveRoomLocked(sid, false)

	room, ok := m.Rooms.Get(id)
	if !ok {
		return nil, false
	}
	if _, ok := room.Permissions[sid]; !ok {
		room.Permissions[sid] = domain.Permissions{}
	}
	room.Members[sid] = struct{}{}
	m.Registry.SetRoom(sid, room.ID)
	log.Info().Str("module", "app.manager").Str("sid", string(sid)).Str("room", string(room.ID)).Msg("joined room")
	m.broadcastRoomListLocked()
	snap := m.snapshotLocked(room, sid)
	return &snap, true
}

// LeaveRoom is idempotent: a session with no current room is a no-op.
func (m *RoomManager) LeaveRoom(sid domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveRoomLocked(sid, false)
}

func (m *RoomManager) leaveRoomLocked(sid domain.SessionID, prune bool) {
	roomID, ok := m.Registry.RoomOf(sid)
	if !ok {
		return
	}
	m.Registry.ClearRoom(sid)
	room, ok := m.Rooms.Get(roomID)
	if !ok {
		return
	}
	delete(room.Members, sid)
	if prune {
		delete(room.Permissions, sid)
	}
	log.Info().Str("module", "app.manager").Str("sid", string(sid)).Str("room", string(roomID)).Msg("left room")
	if len(room.Members) == 0 {
		m.Rooms.Delete(room.ID)
		m.broadcastRoomListLocked()
	}
}

// UpdateRoom replaces theme and scope of the sender's room and pushes a
// fresh snapshot to every member. Admin-gated; silently no-ops otherwise.
func (m *RoomManager) UpdateRoom(sid domain.SessionID, theme domain.Theme, scope domain.Scope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Perms.Has(sid, CapabilityAdmin) {
		return
	}
	roomID, _ := m.Registry.RoomOf(sid)
	room, ok := m.Rooms.Get(roomID)
	if !ok {
		return
	}
	room.Theme = theme
	scopeChanged := false
	if scope != "" && scope != room.Scope {
		room.Scope = scope
		scopeChanged = true
	}
	m.pushRoomSnapshotsLocked(room)
	if scopeChanged {
		m.broadcastRoomListLocked()
	}
}

// UpdatePermissions grants in the acting session's room context and pushes
// updated snapshots to all of that room's members.
func (m *RoomManager) UpdatePermissions(sid, target domain.SessionID, perms domain.Permissions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roomID, ok := m.Perms.Grant(sid, target, perms)
	if !ok {
		return
	}
	room, ok := m.Rooms.Get(roomID)
	if !ok {
		return
	}
	log.Info().Str("module", "app.manager").Str("sid", string(sid)).Str("target", string(target)).Str("room", string(roomID)).Msg("permissions updated")
	m.pushRoomSnapshotsLocked(room)
}

// LikeRoom bumps the like counter of the sender's current room.
func (m *RoomManager) LikeRoom(sid domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roomID, ok := m.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room, ok := m.Rooms.Get(roomID)
	if !ok {
		return
	}
	room.Likes++
	m.broadcastRoomListLocked()
}

// BroadcastRoomList pushes the lobby view to every connected session.
func (m *RoomManager) BroadcastRoomList() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastRoomListLocked()
}

// BroadcastNoteOn relays a noteon to the other members of the sender's
// room, stamped with the sender's session id and server-side color. Play
// capability is required; unauthorized events are dropped without reply.
func (m *RoomManager) BroadcastNoteOn(sid domain.SessionID, p protocol.NoteOn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Perms.Has(sid, CapabilityPlay) {
		log.Debug().Str("module", "app.manager").Str("sid", string(sid)).Msg("noteon dropped, no play permission")
		return
	}
	user, ok := m.Registry.User(sid)
	if !ok {
		return
	}
	frame, ok := encode(protocol.NoteOnBroadcast{
		Type:      protocol.TypeNoteOn,
		Note:      p.Note,
		TimeStamp: p.TimeStamp,
		ID:        sid,
		Color:     user.Color,
	})
	if !ok {
		return
	}
	m.broadcastRoomLocked(sid, frame, true)
}

func (m *RoomManager) BroadcastNoteOff(sid domain.SessionID, p protocol.NoteOff) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Perms.Has(sid, CapabilityPlay) {
		return
	}
	frame, ok := encode(protocol.NoteOffBroadcast{
		Type:      protocol.TypeNoteOff,
		Note:      p.Note,
		TimeStamp: p.TimeStamp,
		ID:        sid,
	})
	if !ok {
		return
	}
	m.broadcastRoomLocked(sid, frame, true)
}

func (m *RoomManager) BroadcastControlChange(sid domain.SessionID, p protocol.ControlChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Perms.Has(sid, CapabilityPlay) {
		return
	}
	frame, ok := encode(protocol.ControlChangeBroadcast{
		Type:    protocol.TypeControlChange,
		Control: p.Control,
		ID:      sid,
	})
	if !ok {
		return
	}
	m.broadcastRoomLocked(sid, frame, true)
}

// BroadcastChat has no permission gate; any room member may speak. The
// sender is included so its own message arrives on the same channel and in
// the same order as everyone else's.
func (m *RoomManager) BroadcastChat(sid domain.SessionID, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.Registry.User(sid)
	if !ok {
		return
	}
	frame, ok := encode(protocol.ChatBroadcast{
		Type:    protocol.TypeChat,
		Message: message,
		User:    user.SharedData(),
	})
	if !ok {
		return
	}
	m.broadcastRoomLocked(sid, frame, false)
}

func (m *RoomManager) broadcastRoomLocked(from domain.SessionID, frame core.Frame, excludeSender bool) {
	roomID, ok := m.Registry.RoomOf(from)
	if !ok {
		return
	}
	room, ok := m.Rooms.Get(roomID)
	if !ok {
		return
	}
	for member := range room.Members {
		if excludeSender && member == from {
			continue
		}
		m.sendLocked(member, frame, FrameTransient)
	}
}

func (m *RoomManager) broadcastRoomListLocked() {
	frame, ok := encode(protocol.RoomList{
		Type:  protocol.TypeRoomList,
		Rooms: m.roomListLocked(),
	})
	if !ok {
		return
	}
	for _, snap := range m.Registry.All() {
		m.sendLocked(snap.SID, frame, FrameTransient)
	}
}

func (m *RoomManager) roomListLocked() []protocol.RoomSummary {
	rooms := make([]protocol.RoomSummary, 0, m.Rooms.Len())
	for room := range m.Rooms.ListPublic() {
		rooms = append(rooms, protocol.RoomSummary{
			ID:          room.ID,
			Likes:       room.Likes,
			ViewerCount: len(room.Members),
			Admins: m.holdersLocked(room, func(p domain.Permissions) bool {
				return p.Admin
			}),
		})
	}
	slices.SortFunc(rooms, func(a, b protocol.RoomSummary) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return rooms
}

func (m *RoomManager) pushRoomSnapshotsLocked(room *domain.Room) {
	for member := range room.Members {
		frame, ok := encode(protocol.RoomUpdate{
			Type: protocol.TypeRoomUpdate,
			Room: m.snapshotLocked(room, member),
		})
		if !ok {
			return
		}
		m.sendLocked(member, frame, FrameSnapshot)
	}
}

// snapshotLocked recomputes the per-recipient room view. The permission
// entry falls back to the zero value (all denied) for unknown recipients.
func (m *RoomManager) snapshotLocked(room *domain.Room, sid domain.SessionID) protocol.RoomSnapshot {
	return protocol.RoomSnapshot{
		ID:          room.ID,
		Permissions: room.Permissions[sid],
		Theme:       room.Theme,
		Players: m.holdersLocked(room, func(p domain.Permissions) bool {
			return p.Play
		}),
		Scope: room.Scope,
	}
}

// holdersLocked maps the sessions whose permission entry satisfies pred to
// their shared identity, skipping ids that are no longer connected.
func (m *RoomManager) holdersLocked(room *domain.Room, pred func(domain.Permissions) bool) []domain.SharedData {
	out := make([]domain.SharedData, 0, len(room.Permissions))
	for sid, perms := range room.Permissions {
		if !pred(perms) {
			continue
		}
		if user, ok := m.Registry.User(sid); ok {
			out = append(out, user.SharedData())
		}
	}
	slices.SortFunc(out, func(a, b domain.SharedData) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (m *RoomManager) sendLocked(sid domain.SessionID, frame core.Frame, kind FrameKind) {
	conn, ok := m.Registry.Conn(sid)
	if !ok {
		return
	}
	if err := conn.TrySend(frame); err == nil {
		return
	}
	action := DropFrame
	if m.Policy != nil {
		action = m.Policy.OnBackpressure(kind, sid)
	}
	switch action {
	case KickMember:
		log.Warn().Str("module", "app.manager").Str("sid", string(sid)).Msg("kicking slow member")
		conn.Close()
	default:
		log.Debug().Str("module", "app.manager").Str("sid", string(sid)).Msg("frame dropped")
	}
}

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.manager").Msg("encode frame")
		return nil, false
	}
	return core.Frame(b), true
}
