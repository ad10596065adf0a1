package app_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcwissink/piano-player/internal/app"
	"github.com/mcwissink/piano-player/internal/domain"
)

var colorRe = regexp.MustCompile(`^#[0-9a-f]{6}$`)

func TestRegisterDefaults(t *testing.T) {
	r := app.NewRegistry()
	u := r.Register("s1", &fakeConn{})

	assert.Equal(t, domain.SessionID("s1"), u.ID)
	assert.Equal(t, domain.DefaultName, u.Name)
	assert.Regexp(t, colorRe, u.Color)
}

func TestUpdateSettings(t *testing.T) {
	r := app.NewRegistry()
	r.Register("s1", &fakeConn{})

	u, ok := r.UpdateSettings("s1", "carol", "#ff00aa")
	require.True(t, ok)
	assert.Equal(t, "carol", u.Name)
	assert.Equal(t, "#ff00aa", u.Color)

	// empty name is ignored so the display name stays non-empty
	u, _ = r.UpdateSettings("s1", "", "blurple")
	assert.Equal(t, "carol", u.Name)
	assert.Equal(t, "blurple", u.Color, "color is not validated")

	_, ok = r.UpdateSettings("nope", "x", "y")
	assert.False(t, ok)
}

func TestUnregister(t *testing.T) {
	r := app.NewRegistry()
	r.Register("s1", &fakeConn{})
	require.Equal(t, 1, r.Len())

	r.Unregister("s1")
	assert.Equal(t, 0, r.Len())
	_, ok := r.User("s1")
	assert.False(t, ok)
	_, ok = r.Conn("s1")
	assert.False(t, ok)
}

func TestRoomPointer(t *testing.T) {
	r := app.NewRegistry()
	r.Register("s1", &fakeConn{})

	_, ok := r.RoomOf("s1")
	assert.False(t, ok, "fresh session is in no room")

	r.SetRoom("s1", "jam")
	id, ok := r.RoomOf("s1")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("jam"), id)

	r.ClearRoom("s1")
	_, ok = r.RoomOf("s1")
	assert.False(t, ok)
}
