// Package session implements the in-memory state machine of the relay:
// clients, channels, the crown lifecycle, the message protocol, and the
// broadcast fan-out.
package session

import "strings"

// ClientID identifies one connection. It doubles as the participant id
// inside a channel, and in production it equals the user id derived from
// the client's IP.
type ClientID string

// UserID is the stable pseudonymous identity used for bans and the crown.
type UserID string

// ChannelID names a channel (room).
type ChannelID string

// isSpecialChannel reports whether a channel id belongs to the reserved
// set: the lobby and the test rooms. Special channels have no crown,
// immutable settings, and are never deleted.
func isSpecialChannel(id ChannelID) bool {
	return id == "lobby" || strings.HasPrefix(string(id), "test/")
}

// Position is a cursor location on the piano canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Participant is a client's projection inside one channel.
type Participant struct {
	ID     ClientID `json:"id"`
	UserID UserID   `json:"_id"`
	Name   string   `json:"name"`
	Color  string   `json:"color"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
}

// Crown is the transferable ownership token of a non-special channel.
// A nil ParticipantID means the crown is unclaimed and can be picked up by
// the next joiner. UserID records who last held it even after release.
type Crown struct {
	ParticipantID *ClientID `json:"participantId"`
	UserID        *UserID   `json:"userId"`
	Time          int64     `json:"time"`
	StartPos      Position  `json:"startPos"`
	EndPos        Position  `json:"endPos"`
}

// heldBy reports whether the crown is currently held by the given
// connection.
func (c *Crown) heldBy(id ClientID) bool {
	return c != nil && c.ParticipantID != nil && *c.ParticipantID == id
}

// ChannelSettings describes a channel's appearance and policy. Optional
// fields are omitted on the wire when unset.
type ChannelSettings struct {
	Color     string `json:"color"`
	Color2    string `json:"color2,omitempty"`
	Lobby     bool   `json:"lobby"`
	Visible   bool   `json:"visible"`
	Chat      *bool  `json:"chat,omitempty"`
	Crownsolo *bool  `json:"crownsolo,omitempty"`
}

// ChatMessage is one entry of a channel's chat history, stored in the
// exact shape it is broadcast in and replayed to joiners.
type ChatMessage struct {
	M string      `json:"m"`
	A string      `json:"a"`
	P Participant `json:"p"`
	T int64       `json:"t"`
}

// BanInfo records one active ban. The registry keys bans by user id, so a
// user carries at most one ban at a time.
type BanInfo struct {
	ChannelID ChannelID
	Expiry    int64
}

// ChannelInfo is the channel header carried by "ch" events.
type ChannelInfo struct {
	ID       ChannelID       `json:"_id"`
	Settings ChannelSettings `json:"settings"`
	Crown    *Crown          `json:"crown"`
}

// ChannelListEntry is one row of the directory ("ls") broadcast.
type ChannelListEntry struct {
	ID       ChannelID       `json:"_id"`
	Count    int             `json:"count"`
	Crown    *Crown          `json:"crown"`
	Settings ChannelSettings `json:"settings"`
}
