package session

import "encoding/json"

// Server-to-client event shapes. Every outbound frame is a JSON array of
// these; the "m" tag tells the client what it is looking at.

type hiEvent struct {
	M    string      `json:"m"`
	U    Participant `json:"u"`
	T    int64       `json:"t"`
	V    string      `json:"v"`
	Motd string      `json:"motd"`
}

type lsEvent struct {
	M string             `json:"m"`
	C bool               `json:"c"`
	U []ChannelListEntry `json:"u"`
}

type timeEvent struct {
	M string          `json:"m"`
	T int64           `json:"t"`
	E json.RawMessage `json:"e"`
}

type noteEvent struct {
	M string            `json:"m"`
	T json.RawMessage   `json:"t"`
	N []json.RawMessage `json:"n"`
	P ClientID          `json:"p"`
}

type moveEvent struct {
	M  string   `json:"m"`
	ID ClientID `json:"id"`
	X  float64  `json:"x"`
	Y  float64  `json:"y"`
}

// participantEvent announces a participant's current profile to a channel.
type participantEvent struct {
	M      string   `json:"m"`
	ID     ClientID `json:"id"`
	UserID UserID   `json:"_id"`
	Name   string   `json:"name"`
	Color  string   `json:"color"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
}

func newParticipantEvent(p Participant) participantEvent {
	return participantEvent{
		M:      "p",
		ID:     p.ID,
		UserID: p.UserID,
		Name:   p.Name,
		Color:  p.Color,
		X:      p.X,
		Y:      p.Y,
	}
}

// channelEvent carries the full channel header plus the participant list.
// P is only set on the join response to tell the client which participant
// is theirs.
type channelEvent struct {
	M   string        `json:"m"`
	Ch  ChannelInfo   `json:"ch"`
	Ppl []Participant `json:"ppl"`
	P   ClientID      `json:"p,omitempty"`
}

type chatHistoryEvent struct {
	M string        `json:"m"`
	C []ChatMessage `json:"c"`
}

type byeEvent struct {
	M string   `json:"m"`
	P ClientID `json:"p"`
}

type notificationEvent struct {
	M        string  `json:"m"`
	ID       string  `json:"id,omitempty"`
	Title    *string `json:"title,omitempty"`
	Text     string  `json:"text"`
	Class    string  `json:"class"`
	Duration int64   `json:"duration"`
}

type devicesEvent struct {
	M      string          `json:"m"`
	Status string          `json:"status"`
	List   json.RawMessage `json:"list"`
}
