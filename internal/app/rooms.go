package app

import (
	"iter"

	"github.com/rs/zerolog/log"

	"github.com/mcwissink/piano-player/internal/domain"
)

// RoomStore is the in-memory room table keyed by id. Like the Registry it
// is owned by the RoomManager and relies on the manager's lock.
type RoomStore struct {
	rooms map[domain.RoomID]*domain.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[domain.RoomID]*domain.Room)}
}

// Create rejects a colliding id; the caller signals the rejection to the
// client by withholding the ack value.
func (s *RoomStore) Create(id domain.RoomID, theme domain.Theme, scope domain.Scope, creator domain.SessionID) (*domain.Room, bool) {
	if _, ok := s.rooms[id]; ok {
		return nil, false
	}
	room := domain.NewRoom(id, theme, scope, creator)
	s.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("scope", string(scope)).Msg("room created")
	return room, true
}

func (s *RoomStore) Get(id domain.RoomID) (*domain.Room, bool) {
	room, ok := s.rooms[id]
	return room, ok
}

// Delete removes the entry; notifying the lobby is the caller's job.
func (s *RoomStore) Delete(id domain.RoomID) {
	delete(s.rooms, id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted")
}

// ListPublic yields the rooms that belong in the lobby view. The sequence
// is restartable; it must only be consumed under the manager's lock.
func (s *RoomStore) ListPublic() iter.Seq[*domain.Room] {
	return func(yield func(*domain.Room) bool) {
		for _, room := range s.rooms {
			if room.Scope != domain.ScopePublic {
				continue
			}
			if !yield(room) {
				return
			}
		}
	}
}

func (s *RoomStore) Len() int {
	return len(s.rooms)
}
