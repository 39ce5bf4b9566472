package session

import (
	"sync"

	"github.com/nyxikitty/mpp-server-go/internal/v1/identity"
)

// Channel is one room: settings, crown, the participant map, and the chat
// history. Each Channel carries its own lock; helpers suffixed *Locked
// assume the caller holds it. Handlers snapshot what they need under the
// lock and release it before touching any outbound sink.
type Channel struct {
	mu           sync.RWMutex
	id           ChannelID
	settings     ChannelSettings
	crown        *Crown
	participants map[ClientID]Participant
	chatHistory  []ChatMessage
}

// newDefaultChannel builds a channel with the defaults for its id class.
// Special channels get the lobby palette, chat on, and no crown; every
// other channel gets an unclaimed crown stamped with the creation time.
func newDefaultChannel(id ChannelID, now int64) *Channel {
	ch := &Channel{
		id:           id,
		participants: make(map[ClientID]Participant),
	}
	if isSpecialChannel(id) {
		chat := true
		ch.settings = ChannelSettings{
			Color:   "#73b3cc",
			Color2:  "#273546",
			Lobby:   true,
			Visible: true,
			Chat:    &chat,
		}
	} else {
		ch.settings = ChannelSettings{
			Color:   "#ecfaed",
			Visible: true,
		}
		ch.crown = &Crown{Time: now}
	}
	return ch
}

// infoLocked snapshots the channel header for a "ch" event. The crown is
// deep-copied so the caller can serialize it after releasing the lock.
func (ch *Channel) infoLocked() ChannelInfo {
	return ChannelInfo{
		ID:       ch.id,
		Settings: ch.settings,
		Crown:    ch.crown.clone(),
	}
}

// listEntryLocked snapshots one directory row. Lobby-class channels always
// report a null crown.
func (ch *Channel) listEntryLocked() ChannelListEntry {
	entry := ChannelListEntry{
		ID:       ch.id,
		Count:    len(ch.participants),
		Settings: ch.settings,
	}
	if !ch.settings.Lobby {
		entry.Crown = ch.crown.clone()
	}
	return entry
}

// participantsLocked snapshots the participant list. The result is never
// nil so it serializes as an empty array.
func (ch *Channel) participantsLocked() []Participant {
	ppl := make([]Participant, 0, len(ch.participants))
	for _, p := range ch.participants {
		ppl = append(ppl, p)
	}
	return ppl
}

// chatHistoryLocked snapshots the chat history for replay on join.
func (ch *Channel) chatHistoryLocked() []ChatMessage {
	history := make([]ChatMessage, len(ch.chatHistory))
	copy(history, ch.chatHistory)
	return history
}

// memberIDsLocked snapshots the connection ids of all participants.
func (ch *Channel) memberIDsLocked() []ClientID {
	ids := make([]ClientID, 0, len(ch.participants))
	for id := range ch.participants {
		ids = append(ids, id)
	}
	return ids
}

// clearCrownHolderLocked detaches the crown from its holder, keeping the
// crown object itself so the channel stays ownable.
func (ch *Channel) clearCrownHolderLocked(id ClientID) {
	if ch.crown.heldBy(id) {
		ch.crown.ParticipantID = nil
		ch.crown.UserID = nil
	}
}

// clone returns an independent copy of the crown, or nil.
func (c *Crown) clone() *Crown {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ParticipantID != nil {
		pid := *c.ParticipantID
		cp.ParticipantID = &pid
	}
	if c.UserID != nil {
		uid := *c.UserID
		cp.UserID = &uid
	}
	return &cp
}

// assignCrownLocked hands the (unclaimed) crown to the given connection,
// keeping the previous animation positions.
func (ch *Channel) assignCrownLocked(id ClientID, userID UserID) {
	pid := id
	uid := userID
	ch.crown.ParticipantID = &pid
	ch.crown.UserID = &uid
	ch.crown.Time = identity.NowMillis()
}
