// Package domain contains entity without logic, just meta-data
package domain

import (
	"math/rand/v2"
)

const DefaultName = "Anonymous"

// SessionID is the ephemeral identity of one live connection. It is
// generated by the transport layer and never survives a reconnect.
type SessionID string

// User is the mutable display identity bound to one session.
type User struct {
	ID    SessionID
	Name  string
	Color string
}

func NewUser(id SessionID) *User {
	return &User{ID: id, Name: DefaultName, Color: RandomColor()}
}

// SetName ignores the empty string so the display name stays non-empty.
func (u *User) SetName(name string) {
	if name == "" {
		return
	}
	u.Name = name
}

// SetColor accepts any non-empty value as-is, format unchecked. Note
// broadcasts stamp the server-side color over whatever the client sent, so
// spoofing only affects the spoofer's own identity.
func (u *User) SetColor(color string) {
	if color == "" {
		return
	}
	u.Color = color
}

// SharedData is the part of an identity other members may see.
type SharedData struct {
	ID    SessionID `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color"`
}

func (u *User) SharedData() SharedData {
	return SharedData{ID: u.ID, Name: u.Name, Color: u.Color}
}

// RandomColor returns a random "#rrggbb" string used as the default
// identity color of a fresh session.
func RandomColor() string {
	const hex = "0123456789abcdef"
	b := make([]byte, 7)
	b[0] = '#'
	for i := 1; i < len(b); i++ {
		b[i] = hex[rand.IntN(len(hex))]
	}
	return string(b)
}
