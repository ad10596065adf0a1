// Package protocol defines the wire schema of the relay: one variant per
// event name, dispatched on the "type" tag of the envelope. Inbound
// variants carry validator tags and are checked at the router boundary;
// anything that fails validation is dropped.
package protocol

import (
	"github.com/mcwissink/piano-player/internal/domain"
)

// Client -> server event tags.
const (
	TypeInit              = "init"
	TypeSettings          = "settings"
	TypeCreateRoom        = "createRoom"
	TypeJoinRoom          = "joinRoom"
	TypeUpdateRoom        = "updateRoom"
	TypeUpdatePermissions = "updatePermissions"
	TypeLikeRoom          = "likeRoom"
	TypeRoomList          = "roomList"
	TypeNoteOn            = "noteon"
	TypeNoteOff           = "noteoff"
	TypeControlChange     = "controlchange"
	TypeChat              = "chat"
	TypePing              = "ping"
)

// Server -> client only.
const (
	TypeAck        = "ack"
	TypeRoomUpdate = "roomUpdate"
	TypePong       = "pong"
)

// Envelope is the common framing of every inbound message. Payload fields
// sit flat next to the tag. Seq is present when the client expects an ack.
type Envelope struct {
	Type string  `json:"type"`
	Seq  *uint64 `json:"seq,omitempty"`
}

// Ack answers a seq-bearing request. It fires exactly once per request;
// Data nil is the rejection/not-found sentinel.
type Ack struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	Data any    `json:"data"`
}

// Settings updates the sender's display identity. Empty name is ignored
// downstream; color is taken as-is.
type Settings struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Init is both the reply to an "init" request and the echo after a
// settings update.
type Init struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CreateRoom requests a new room. For public rooms ID (or Name, older
// clients send either) is the literal room id; for private rooms it is
// ignored and the server generates an unguessable one.
type CreateRoom struct {
	ID    string       `json:"id" validate:"max=36"`
	Name  string       `json:"name" validate:"max=36"`
	Theme domain.Theme `json:"theme"`
	Scope domain.Scope `json:"scope" validate:"omitempty,oneof=public private"`
}

// RoomID resolves the id/name alias.
func (p CreateRoom) RoomID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Name
}

type JoinRoom struct {
	ID   string   `json:"id" validate:"required"`
	User Settings `json:"user"`
}

type UpdateRoom struct {
	Theme domain.Theme `json:"theme"`
	Scope domain.Scope `json:"scope" validate:"omitempty,oneof=public private"`
}

type UpdatePermissions struct {
	ID          string             `json:"id" validate:"required"`
	Permissions domain.Permissions `json:"permissions"`
}

type Note struct {
	Number   int     `json:"number" validate:"min=0,max=127"`
	Velocity float64 `json:"velocity,omitempty"`
}

type NoteOn struct {
	Note      Note    `json:"note"`
	TimeStamp float64 `json:"timeStamp"`
}

type NoteOff struct {
	Note      Note    `json:"note"`
	TimeStamp float64 `json:"timeStamp"`
}

type Control struct {
	Number int     `json:"number" validate:"min=0,max=127"`
	Value  float64 `json:"value"`
}

type ControlChange struct {
	Control Control `json:"control"`
}

type Chat struct {
	Message string `json:"message" validate:"required"`
}

// NoteOnBroadcast is the relayed noteon with the sender's session id and
// server-side color stamped on (the client-supplied color is discarded).
type NoteOnBroadcast struct {
	Type      string           `json:"type"`
	Note      Note             `json:"note"`
	TimeStamp float64          `json:"timeStamp"`
	ID        domain.SessionID `json:"id"`
	Color     string           `json:"color"`
}

type NoteOffBroadcast struct {
	Type      string           `json:"type"`
	Note      Note             `json:"note"`
	TimeStamp float64          `json:"timeStamp"`
	ID        domain.SessionID `json:"id"`
}

type ControlChangeBroadcast struct {
	Type    string           `json:"type"`
	Control Control          `json:"control"`
	ID      domain.SessionID `json:"id"`
}

type ChatBroadcast struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	User    domain.SharedData `json:"user"`
}

// RoomSummary is one lobby entry of the public room list.
type RoomSummary struct {
	ID          domain.RoomID       `json:"id"`
	Likes       int                 `json:"likes"`
	ViewerCount int                 `json:"viewerCount"`
	Admins      []domain.SharedData `json:"admins"`
}

type RoomList struct {
	Type  string        `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}

// RoomSnapshot is the fully recomputed, per-recipient room view: the
// Permissions field is the recipient's own entry.
type RoomSnapshot struct {
	ID          domain.RoomID       `json:"id"`
	Permissions domain.Permissions  `json:"permissions"`
	Theme       domain.Theme        `json:"theme"`
	Players     []domain.SharedData `json:"players"`
	Scope       domain.Scope        `json:"scope"`
}

type RoomUpdate struct {
	Type string       `json:"type"`
	Room RoomSnapshot `json:"room"`
}

type Pong struct {
	Type string `json:"type"`
}
