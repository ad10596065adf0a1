package domain

type RoomID string

// Scope controls whether a room shows up in the global room list.
type Scope string

const (
	ScopePublic  Scope = "public"
	ScopePrivate Scope = "private"
)

// Theme is client-facing presentation meta owned by the room.
type Theme struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Image     string `json:"image"`
}

// Permissions are the two capabilities scoped to one (room, session) pair.
type Permissions struct {
	Admin bool `json:"admin"`
	Play  bool `json:"play"`
}

// Room owns its member set and the per-session permission map. Members and
// Permissions are distinct on purpose: a granted session may leave and come
// back while the room is alive, and a grant may target a session that never
// joins.
type Room struct {
	ID          RoomID
	Theme       Theme
	Scope       Scope
	Likes       int
	Members     map[SessionID]struct{}
	Permissions map[SessionID]Permissions
}

// NewRoom seeds the permission map with the creator as admin+player.
func NewRoom(id RoomID, theme Theme, scope Scope, creator SessionID) *Room {
	return &Room{
		ID:      id,
		Theme:   theme,
		Scope:   scope,
		Members: make(map[SessionID]struct{}),
		Permissions: map[SessionID]Permissions{
			creator: {Admin: true, Play: true},
		},
	}
}
