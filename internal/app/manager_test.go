package app_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcwissink/piano-player/internal/app"
	"github.com/mcwissink/piano-player/internal/core"
	"github.com/mcwissink/piano-player/internal/domain"
	"github.com/mcwissink/piano-player/internal/protocol"
)

// fakeConn records frames. The manager serializes all sends, so no locking
// is needed here.
type fakeConn struct {
	frames []core.Frame
	closed bool
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	if c.full {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() { c.closed = true }

func (c *fakeConn) byType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) last(t *testing.T, typ string) map[string]any {
	t.Helper()
	msgs := c.byType(t, typ)
	require.NotEmpty(t, msgs, "expected at least one %q frame", typ)
	return msgs[len(msgs)-1]
}

func connect(m *app.RoomManager, sid string) *fakeConn {
	c := &fakeConn{}
	m.Connect(domain.SessionID(sid), c)
	return c
}

func newManager() *app.RoomManager {
	return app.NewRoomManager(app.SimplePolicy{})
}

func roomEntry(t *testing.T, list map[string]any, id string) map[string]any {
	t.Helper()
	rooms, ok := list["rooms"].([]any)
	require.True(t, ok)
	for _, r := range rooms {
		entry := r.(map[string]any)
		if entry["id"] == id {
			return entry
		}
	}
	t.Fatalf("room %q not in list %v", id, rooms)
	return nil
}

func TestCreateRoomDoesNotJoinCreator(t *testing.T) {
	m := newManager()
	a := connect(m, "a")

	id, ok := m.CreateRoom("a", "jam", domain.Theme{Primary: "#ffffff"}, domain.ScopePublic)
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("jam"), id)

	// creator is an admin of the room but not a viewer yet
	entry := roomEntry(t, a.last(t, "roomList"), "jam")
	assert.Equal(t, float64(0), entry["viewerCount"])
	admins := entry["admins"].([]any)
	require.Len(t, admins, 1)
	assert.Equal(t, "a", admins[0].(map[string]any)["id"])

	snap, ok := m.JoinRoom("jam", "a")
	require.True(t, ok)
	assert.Equal(t, domain.Permissions{Admin: true, Play: true}, snap.Permissions)

	entry = roomEntry(t, a.last(t, "roomList"), "jam")
	assert.Equal(t, float64(1), entry["viewerCount"])
}

func TestCreateRoomConflictLeavesAnyway(t *testing.T) {
	m := newManager()
	connect(m, "a")
	connect(m, "b")
	_, ok := m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	require.True(t, ok)

	ownID, ok := m.CreateRoom("b", "own", domain.Theme{}, domain.ScopePublic)
	require.True(t, ok)
	_, ok = m.JoinRoom(ownID, "b")
	require.True(t, ok)

	// the colliding create still forces b out of "own", which empties and
	// deletes it, and returns no id
	id, ok := m.CreateRoom("b", "jam", domain.Theme{}, domain.ScopePublic)
	assert.False(t, ok)
	assert.Empty(t, id)
	_, ok = m.Rooms.Get("own")
	assert.False(t, ok)
	_, ok = m.Registry.RoomOf("b")
	assert.False(t, ok)
}

func TestJoinRoomNotFound(t *testing.T) {
	m := newManager()
	connect(m, "a")
	snap, ok := m.JoinRoom("nowhere", "a")
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestSingleRoomMembership(t *testing.T) {
	m := newManager()
	connect(m, "a")
	connect(m, "b")
	connect(m, "c")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, ok := m.JoinRoom("jam", "a")
	require.True(t, ok)
	_, ok = m.JoinRoom("jam", "b")
	require.True(t, ok)
	_, _ = m.CreateRoom("c", "beta", domain.Theme{}, domain.ScopePublic)
	_, ok = m.JoinRoom("beta", "c")
	require.True(t, ok)

	// joining a new room implicitly leaves the previous one
	_, ok = m.JoinRoom("beta", "b")
	require.True(t, ok)

	jam, ok := m.Rooms.Get("jam")
	require.True(t, ok)
	_, in := jam.Members["b"]
	assert.False(t, in)

	beta, ok := m.Rooms.Get("beta")
	require.True(t, ok)
	_, in = beta.Members["b"]
	assert.True(t, in)

	roomID, ok := m.Registry.RoomOf("b")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("beta"), roomID)
}

func TestEmptyRoomDeleted(t *testing.T) {
	m := newManager()
	a := connect(m, "a")
	connect(m, "b")
	connect(m, "c")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")
	_, _ = m.JoinRoom("jam", "b")

	m.LeaveRoom("a")
	_, ok := m.Rooms.Get("jam")
	assert.True(t, ok, "room survives while b remains")

	m.LeaveRoom("b")
	_, ok = m.Rooms.Get("jam")
	assert.False(t, ok, "last leave deletes the room")

	list := a.last(t, "roomList")
	assert.Empty(t, list["rooms"])

	snap, ok := m.JoinRoom("jam", "c")
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestLeaveRoomIdempotent(t *testing.T) {
	m := newManager()
	connect(m, "a")
	m.LeaveRoom("a")
	m.LeaveRoom("a")
	_, ok := m.Registry.RoomOf("a")
	assert.False(t, ok)
}

func TestFailClosedPermissions(t *testing.T) {
	m := newManager()
	connect(m, "a")
	connect(m, "b")

	// never-seen session
	assert.False(t, m.Perms.Has("ghost", app.CapabilityPlay))
	assert.False(t, m.Perms.Has("ghost", app.CapabilityAdmin))

	// connected but in no room
	assert.False(t, m.Perms.Has("b", app.CapabilityPlay))

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")
	_, _ = m.JoinRoom("jam", "b")

	// plain member: entry exists but denies both
	assert.False(t, m.Perms.Has("b", app.CapabilityPlay))
	assert.False(t, m.Perms.Has("b", app.CapabilityAdmin))
	assert.True(t, m.Perms.Has("a", app.CapabilityPlay))
	assert.True(t, m.Perms.Has("a", app.CapabilityAdmin))
}

func TestNoteOnGateAndExclusion(t *testing.T) {
	m := newManager()
	a := connect(m, "a")
	b := connect(m, "b")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")
	_, _ = m.JoinRoom("jam", "b")

	// b has no play permission: silently dropped
	m.BroadcastNoteOn("b", protocol.NoteOn{Note: protocol.Note{Number: 60, Velocity: 0.8}})
	assert.Empty(t, a.byType(t, "noteon"))

	// a plays: delivered to b, never echoed to a, stamped server-side
	m.BroadcastNoteOn("a", protocol.NoteOn{Note: protocol.Note{Number: 60, Velocity: 0.8}, TimeStamp: 12.5})
	assert.Empty(t, a.byType(t, "noteon"))

	msg := b.last(t, "noteon")
	assert.Equal(t, "a", msg["id"])
	identity, _ := m.Identity("a")
	assert.Equal(t, identity.Color, msg["color"])
	note := msg["note"].(map[string]any)
	assert.Equal(t, float64(60), note["number"])
	assert.Equal(t, 0.8, note["velocity"])
	assert.Equal(t, 12.5, msg["timeStamp"])
}

func TestNoteOffAndControlChangeGated(t *testing.T) {
	m := newManager()
	a := connect(m, "a")
	b := connect(m, "b")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")
	_, _ = m.JoinRoom("jam", "b")

	m.BroadcastNoteOff("b", protocol.NoteOff{Note: protocol.Note{Number: 60}})
	m.BroadcastControlChange("b", protocol.ControlChange{Control: protocol.Control{Number: 64, Value: 1}})
	assert.Empty(t, a.byType(t, "noteoff"))
	assert.Empty(t, a.byType(t, "controlchange"))

	m.BroadcastNoteOff("a", protocol.NoteOff{Note: protocol.Note{Number: 60}})
	m.BroadcastControlChange("a", protocol.ControlChange{Control: protocol.Control{Number: 64, Value: 1}})
	assert.Equal(t, "a", b.last(t, "noteoff")["id"])
	assert.Equal(t, "a", b.last(t, "controlchange")["id"])
	assert.Empty(t, a.byType(t, "noteoff"))
	assert.Empty(t, a.byType(t, "controlchange"))
}

func TestGrantEnablesPlay(t *testing.T) {
	m := newManager()
	a := connect(m, "a")
	b := connect(m, "b")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")
	_, _ = m.JoinRoom("jam", "b")

	m.UpdatePermissions("a", "b", domain.Permissions{Play: true})

	// both members get a fresh per-recipient snapshot
	bSnap := b.last(t, "roomUpdate")["room"].(map[string]any)
	perms := bSnap["permissions"].(map[string]any)
	assert.Equal(t, true, perms["play"])
	assert.Equal(t, false, perms["admin"])

	aSnap := a.last(t, "roomUpdate")["room"].(map[string]any)
	assert.Equal(t, true, aSnap["permissions"].(map[string]any)["admin"])

	players := bSnap["players"].([]any)
	require.Len(t, players, 2)

	m.BroadcastNoteOn("b", protocol.NoteOn{Note: protocol.Note{Number: 72, Velocity: 0.5}})
	msg := a.last(t, "noteon")
	assert.Equal(t, "b", msg["id"])
}

func TestGrantRequiresAdmin(t *testing.T) {
	m := newManager()
	connect(m, "a")
	b := connect(m, "b")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")
	_, _ = m.JoinRoom("jam", "b")

	m.UpdatePermissions("b", "b", domain.Permissions{Admin: true, Play: true})
	assert.Empty(t, b.byType(t, "roomUpdate"))
	assert.False(t, m.Perms.Has("b", app.CapabilityPlay))
}

func TestUpdateRoomIdempotent(t *testing.T) {
	m := newManager()
	a := connect(m, "a")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")

	theme := domain.Theme{Primary: "#101010", Secondary: "#202020", Image: "bg.png"}
	m.UpdateRoom("a", theme, domain.ScopePublic)
	m.UpdateRoom("a", theme, domain.ScopePublic)

	updates := a.byType(t, "roomUpdate")
	require.Len(t, updates, 2)
	assert.Equal(t, updates[0], updates[1])

	room, ok := m.Rooms.Get("jam")
	require.True(t, ok)
	assert.Equal(t, theme, room.Theme)
}

func TestUpdateRoomRequiresAdmin(t *testing.T) {
	m := newManager()
	connect(m, "a")
	b := connect(m, "b")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{Primary: "#ffffff"}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")
	_, _ = m.JoinRoom("jam", "b")

	m.UpdateRoom("b", domain.Theme{Primary: "#000000"}, domain.ScopePublic)
	assert.Empty(t, b.byType(t, "roomUpdate"))

	room, _ := m.Rooms.Get("jam")
	assert.Equal(t, "#ffffff", room.Theme.Primary)
}

func TestChatIncludesSenderExactlyOnce(t *testing.T) {
	m := newManager()
	a := connect(m, "a")
	b := connect(m, "b")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")
	_, _ = m.JoinRoom("jam", "b")

	// no play permission required for chat
	m.BroadcastChat("b", "hello")

	bMsgs := b.byType(t, "chat")
	require.Len(t, bMsgs, 1)
	assert.Equal(t, "hello", bMsgs[0]["message"])
	assert.Equal(t, "b", bMsgs[0]["user"].(map[string]any)["id"])
	require.Len(t, a.byType(t, "chat"), 1)
}

func TestChatOutsideRoomDropped(t *testing.T) {
	m := newManager()
	a := connect(m, "a")
	m.BroadcastChat("a", "void")
	assert.Empty(t, a.byType(t, "chat"))
}

func TestPrivateRoomHiddenAndUnguessable(t *testing.T) {
	m := newManager()
	a := connect(m, "a")

	id, ok := m.CreateRoom("a", "secret", domain.Theme{}, domain.ScopePrivate)
	require.True(t, ok)
	assert.NotEqual(t, domain.RoomID("secret"), id, "private rooms ignore the requested id")

	list := a.last(t, "roomList")
	assert.Empty(t, list["rooms"])

	snap, ok := m.JoinRoom(id, "a")
	require.True(t, ok)
	assert.Equal(t, domain.ScopePrivate, snap.Scope)
}

func TestScopeChangePublishesRoom(t *testing.T) {
	m := newManager()
	a := connect(m, "a")

	id, _ := m.CreateRoom("a", "", domain.Theme{}, domain.ScopePrivate)
	_, _ = m.JoinRoom(id, "a")

	m.UpdateRoom("a", domain.Theme{}, domain.ScopePublic)
	entry := roomEntry(t, a.last(t, "roomList"), string(id))
	assert.Equal(t, float64(1), entry["viewerCount"])
}

func TestLikeRoom(t *testing.T) {
	m := newManager()
	a := connect(m, "a")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")

	m.LikeRoom("a")
	entry := roomEntry(t, a.last(t, "roomList"), "jam")
	assert.Equal(t, float64(1), entry["likes"])
}

func TestDisconnectPrunesPermissions(t *testing.T) {
	m := newManager()
	connect(m, "a")
	connect(m, "b")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")
	_, _ = m.JoinRoom("jam", "b")
	m.UpdatePermissions("a", "b", domain.Permissions{Play: true})

	m.Disconnect("b")

	room, ok := m.Rooms.Get("jam")
	require.True(t, ok, "room survives, a is still a member")
	_, in := room.Permissions["b"]
	assert.False(t, in, "disconnect prunes the permission entry")
	_, ok = m.Registry.User("b")
	assert.False(t, ok)
}

func TestLeaveKeepsGrantForRejoin(t *testing.T) {
	m := newManager()
	connect(m, "a")
	connect(m, "b")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")
	_, _ = m.JoinRoom("jam", "b")
	m.UpdatePermissions("a", "b", domain.Permissions{Play: true})

	m.LeaveRoom("b")
	snap, ok := m.JoinRoom("jam", "b")
	require.True(t, ok)
	assert.True(t, snap.Permissions.Play, "a plain leave keeps the grant while the room lives")
}

func TestBackpressurePolicy(t *testing.T) {
	m := newManager()
	a := connect(m, "a")

	_, _ = m.CreateRoom("a", "jam", domain.Theme{}, domain.ScopePublic)
	_, _ = m.JoinRoom("jam", "a")

	a.full = true

	// transient frames are dropped for slow members
	m.LikeRoom("a")
	assert.False(t, a.closed)

	// missed snapshots kick
	m.UpdateRoom("a", domain.Theme{Primary: "#123456"}, domain.ScopePublic)
	assert.True(t, a.closed)
}
