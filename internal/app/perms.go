package app

import (
	"github.com/mcwissink/piano-player/internal/domain"
)

// Capability is one of the two boolean permission flags scoped to a
// (room, session) pair.
type Capability string

const (
	CapabilityAdmin Capability = "admin"
	CapabilityPlay  Capability = "play"
)

// PermissionEngine authorizes room-scoped actions. Fail-closed: a session
// in no room, or without an entry in its room's permission map, can do
// nothing.
type PermissionEngine struct {
	registry *Registry
	store    *RoomStore
}

func NewPermissionEngine(registry *Registry, store *RoomStore) *PermissionEngine {
	return &PermissionEngine{registry: registry, store: store}
}

func (e *PermissionEngine) Has(sid domain.SessionID, capability Capability) bool {
	roomID, ok := e.registry.RoomOf(sid)
	if !ok {
		return false
	}
	room, ok := e.store.Get(roomID)
	if !ok {
		return false
	}
	perms, ok := room.Permissions[sid]
	if !ok {
		return false
	}
	switch capability {
	case CapabilityAdmin:
		return perms.Admin
	case CapabilityPlay:
		return perms.Play
	}
	return false
}

// Grant overwrites the target's entry in the actor's room, provided the
// actor holds admin there. The target is not required to be a member of
// that room; a grant to an absent session stays inert until it joins.
func (e *PermissionEngine) Grant(actor, target domain.SessionID, perms domain.Permissions) (domain.RoomID, bool) {
	if !e.Has(actor, CapabilityAdmin) {
		return "", false
	}
	roomID, _ := e.registry.RoomOf(actor)
	room, ok := e.store.Get(roomID)
	if !ok {
		return "", false
	}
	room.Permissions[target] = perms
	return roomID, true
}
