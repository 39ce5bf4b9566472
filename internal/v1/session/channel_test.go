package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSpecialChannel(t *testing.T) {
	tests := []struct {
		id      ChannelID
		special bool
	}{
		{"lobby", true},
		{"test/awkward", true},
		{"test/", true},
		{"room1", false},
		{"lobby2", false},
		{"testing", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.special, isSpecialChannel(tt.id), "id %q", tt.id)
	}
}

func TestNewDefaultChannel_Special(t *testing.T) {
	ch := newDefaultChannel("lobby", 1000)

	assert.Equal(t, "#73b3cc", ch.settings.Color)
	assert.Equal(t, "#273546", ch.settings.Color2)
	assert.True(t, ch.settings.Lobby)
	assert.True(t, ch.settings.Visible)
	require.NotNil(t, ch.settings.Chat)
	assert.True(t, *ch.settings.Chat)
	assert.Nil(t, ch.crown)
}

func TestNewDefaultChannel_Regular(t *testing.T) {
	ch := newDefaultChannel("room1", 1000)

	assert.Equal(t, "#ecfaed", ch.settings.Color)
	assert.Empty(t, ch.settings.Color2)
	assert.False(t, ch.settings.Lobby)
	assert.True(t, ch.settings.Visible)
	assert.Nil(t, ch.settings.Chat)

	require.NotNil(t, ch.crown)
	assert.Nil(t, ch.crown.ParticipantID)
	assert.Nil(t, ch.crown.UserID)
	assert.Equal(t, int64(1000), ch.crown.Time)
}

func TestListEntry_LobbyReportsNoCrown(t *testing.T) {
	lobby := newDefaultChannel("lobby", 0)
	room := newDefaultChannel("room1", 0)

	assert.Nil(t, lobby.listEntryLocked().Crown)
	assert.NotNil(t, room.listEntryLocked().Crown)
}

func TestCrownHeldBy(t *testing.T) {
	var c *Crown
	assert.False(t, c.heldBy("c1"))

	c = &Crown{}
	assert.False(t, c.heldBy("c1"))

	c.ParticipantID = ptr(ClientID("c1"))
	assert.True(t, c.heldBy("c1"))
	assert.False(t, c.heldBy("c2"))
}

func TestCrownClone_Independent(t *testing.T) {
	orig := &Crown{
		ParticipantID: ptr(ClientID("c1")),
		UserID:        ptr(UserID("c1")),
		Time:          42,
	}

	cp := orig.clone()
	*cp.ParticipantID = "c2"

	assert.Equal(t, ClientID("c1"), *orig.ParticipantID)
}

func TestDefaultParticipant_ColorFromUserID(t *testing.T) {
	p := defaultParticipant("abc123def456", "abc123def456")

	assert.Equal(t, "Anonymous", p.Name)
	assert.Equal(t, "#abc123", p.Color)
	assert.Equal(t, ClientID("abc123def456"), p.ID)
	assert.Equal(t, UserID("abc123def456"), p.UserID)
	assert.Zero(t, p.X)
	assert.Zero(t, p.Y)
}

func TestDefaultParticipant_ShortUserID(t *testing.T) {
	p := defaultParticipant("abc", "abc")
	assert.Equal(t, "#abc", p.Color)
}
