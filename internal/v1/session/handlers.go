package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nyxikitty/mpp-server-go/internal/v1/identity"
	"github.com/nyxikitty/mpp-server-go/internal/v1/metrics"
)

const (
	maxChatLength      = 256
	maxNameLength      = 40
	maxChannelIDLength = 512
	maxBanDuration     = 24 * 60 * 60 * 1000
	moveMinInterval    = 50
	serverVersion      = "1.0.0"
	motd               = "Welcome to Multiplayer Piano!"
)

func ptr[T any](v T) *T { return &v }

// coord accepts a JSON number or a numeric string; anything else fails the
// decode and drops the event.
type coord float64

func (c *coord) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*c = coord(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*c = coord(f)
	return nil
}

// handleHi initializes the originating client's participant projection and
// replies with the greeting and the quota parameters.
func (h *Hub) handleHi(cid ClientID) {
	cl := h.getClient(cid)
	if cl == nil {
		return
	}

	cl.mu.Lock()
	p := defaultParticipant(cid, cl.userID)
	cl.participant = &p
	params := cl.noteQuota.Params()
	cl.mu.Unlock()

	h.replyTo(cid, hiEvent{
		M:    "hi",
		U:    p,
		T:    identity.NowMillis(),
		V:    serverVersion,
		Motd: motd,
	}, params)
}

// handleBye runs the full disconnect cleanup. The transport itself is torn
// down by the connection loop when the peer actually goes away.
func (h *Hub) handleBye(cid ClientID) {
	h.handleDisconnect(cid)
}

// handlePlusLs subscribes the originator to directory updates and replies
// with the bulk listing of all visible channels.
func (h *Hub) handlePlusLs(cid ClientID) {
	h.mu.Lock()
	h.subscribedToLs[cid] = struct{}{}
	channels := make([]*Channel, 0, len(h.channels))
	for _, ch := range h.channels {
		channels = append(channels, ch)
	}
	h.mu.Unlock()
	metrics.DirectorySubscribers.Set(float64(h.subscriberCount()))

	entries := make([]ChannelListEntry, 0, len(channels))
	for _, ch := range channels {
		ch.mu.RLock()
		if ch.settings.Visible {
			entries = append(entries, ch.listEntryLocked())
		}
		ch.mu.RUnlock()
	}

	h.replyTo(cid, lsEvent{M: "ls", C: true, U: entries})
}

// handleMinusLs unsubscribes the originator from directory updates.
// Repeated calls are no-ops.
func (h *Hub) handleMinusLs(cid ClientID) {
	h.mu.Lock()
	delete(h.subscribedToLs, cid)
	h.mu.Unlock()
	metrics.DirectorySubscribers.Set(float64(h.subscriberCount()))
}

// handleTime echoes the client's clock-sync payload with the server time.
func (h *Hub) handleTime(cid ClientID, raw json.RawMessage) {
	var msg struct {
		E json.RawMessage `json:"e"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.E == nil {
		return
	}
	h.replyTo(cid, timeEvent{M: "t", T: identity.NowMillis(), E: msg.E})
}

// handleChat appends a chat message to the channel history and broadcasts
// it to the whole channel, sender included. Requires channel membership, a
// non-empty message within the length cap, and chat enabled on the
// channel.
func (h *Hub) handleChat(cid ClientID, raw json.RawMessage) {
	var msg struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Message == nil {
		return
	}
	text := *msg.Message
	if len(text) == 0 || len(text) > maxChatLength {
		return
	}

	cl := h.getClient(cid)
	if cl == nil {
		return
	}
	cl.mu.RLock()
	chid := cl.channelID
	var participant Participant
	hasParticipant := cl.participant != nil
	if hasParticipant {
		participant = *cl.participant
	}
	cl.mu.RUnlock()
	if chid == "" || !hasParticipant {
		return
	}

	ch := h.getChannel(chid)
	if ch == nil {
		return
	}

	chat := ChatMessage{M: "a", A: text, P: participant, T: identity.NowMillis()}

	ch.mu.Lock()
	if ch.settings.Chat == nil || !*ch.settings.Chat {
		ch.mu.Unlock()
		return
	}
	ch.chatHistory = append(ch.chatHistory, chat)
	ch.mu.Unlock()

	h.broadcastToChannel(chid, []any{chat}, "")
}

// handleNote spends quota for a batch of notes and relays them to the
// channel, excluding the sender. A rejected spend notifies the sender; the
// crownsolo setting silently drops notes from anyone but the crown holder.
func (h *Hub) handleNote(cid ClientID, raw json.RawMessage) {
	var msg struct {
		T json.RawMessage   `json:"t"`
		N []json.RawMessage `json:"n"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.N == nil {
		return
	}

	cl := h.getClient(cid)
	if cl == nil {
		return
	}

	cl.mu.Lock()
	ok := cl.noteQuota.Spend(int32(len(msg.N)))
	chid := cl.channelID
	cl.mu.Unlock()

	if !ok {
		slog.Warn("Client exceeded note quota", "clientId", cid)
		metrics.NotesDropped.WithLabelValues("quota").Inc()
		h.replyTo(cid, notificationEvent{
			M:        "notification",
			Text:     "You're playing too fast! Slow down.",
			Class:    "short",
			Duration: 2000,
		})
		return
	}

	if chid == "" {
		return
	}
	ch := h.getChannel(chid)
	if ch == nil {
		return
	}

	ch.mu.RLock()
	crownsolo := ch.settings.Crownsolo != nil && *ch.settings.Crownsolo
	blocked := crownsolo && ch.crown != nil && !ch.crown.heldBy(cid)
	ch.mu.RUnlock()
	if blocked {
		metrics.NotesDropped.WithLabelValues("crownsolo").Inc()
		return
	}

	metrics.NotesRelayed.Add(float64(len(msg.N)))
	h.broadcastToChannel(chid, []any{noteEvent{M: "n", T: msg.T, N: msg.N, P: cid}}, cid)
}

// handleMovement updates the sender's cursor position and relays it,
// throttled to one update per 50 ms per connection.
func (h *Hub) handleMovement(cid ClientID, raw json.RawMessage) {
	var msg struct {
		X *coord `json:"x"`
		Y *coord `json:"y"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.X == nil || msg.Y == nil {
		return
	}
	x, y := float64(*msg.X), float64(*msg.Y)

	cl := h.getClient(cid)
	if cl == nil {
		return
	}

	now := identity.NowMillis()
	cl.mu.Lock()
	if cl.lastMoveTime != 0 && now-cl.lastMoveTime < moveMinInterval {
		cl.mu.Unlock()
		return
	}
	cl.lastMoveTime = now
	if cl.participant != nil {
		cl.participant.X = x
		cl.participant.Y = y
	}
	chid := cl.channelID
	cl.mu.Unlock()

	if chid == "" {
		return
	}
	h.broadcastToChannel(chid, []any{moveEvent{M: "m", ID: cid, X: x, Y: y}}, cid)
}

// handleUserset renames and recolors the sender's participant and
// announces the new profile to the whole channel.
func (h *Hub) handleUserset(cid ClientID, raw json.RawMessage) {
	var msg struct {
		Set *struct {
			Name  *string `json:"name"`
			Color *string `json:"color"`
		} `json:"set"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Set == nil || msg.Set.Name == nil {
		return
	}

	name := strings.TrimSpace(*msg.Set.Name)
	if len(name) == 0 || len(name) > maxNameLength {
		return
	}

	cl := h.getClient(cid)
	if cl == nil {
		return
	}

	cl.mu.Lock()
	if cl.participant != nil {
		cl.participant.Name = name
		if msg.Set.Color != nil {
			cl.participant.Color = *msg.Set.Color
		}
	}
	chid := cl.channelID
	var participant Participant
	hasParticipant := cl.participant != nil
	if hasParticipant {
		participant = *cl.participant
	}
	cl.mu.Unlock()

	if chid == "" || !hasParticipant {
		return
	}
	h.broadcastToChannel(chid, []any{newParticipantEvent(participant)}, "")
}

// handleChannelJoin decodes the "ch" event and performs the join.
func (h *Hub) handleChannelJoin(cid ClientID, raw json.RawMessage) {
	var msg struct {
		ID *string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.ID == nil {
		return
	}
	target := ChannelID(*msg.ID)
	if len(*msg.ID) > maxChannelIDLength {
		target = "lobby"
	}
	h.joinChannel(cid, target)
}

// joinChannel moves a connection into a channel: ban check, lazy channel
// creation, departure from the previous channel, crown pickup, the join
// reply (channel header plus chat history replay), and the announcements
// to the new channel and the directory. Also the kickban redirect path.
func (h *Hub) joinChannel(cid ClientID, target ChannelID) {
	cl := h.getClient(cid)
	if cl == nil {
		return
	}
	cl.mu.RLock()
	userID := cl.userID
	cl.mu.RUnlock()

	now := identity.NowMillis()
	h.mu.RLock()
	ban, banned := h.bannedUsers[userID]
	h.mu.RUnlock()
	if banned && ban.ChannelID == target && ban.Expiry > now {
		until := time.UnixMilli(ban.Expiry).UTC().Format(time.RFC3339)
		h.replyTo(cid, notificationEvent{
			M:        "notification",
			ID:       fmt.Sprintf("Notification-ban-%d", now),
			Title:    ptr(""),
			Text:     fmt.Sprintf("You are banned from %s until %s.", target, until),
			Class:    "short",
			Duration: 5000,
		})
		return
	}

	ch, created := h.getOrCreateChannel(target)
	if created {
		h.broadcastLsUpdate(target, false)
	}

	cl.mu.Lock()
	old := cl.channelID
	cl.channelID = target
	if cl.participant == nil {
		p := defaultParticipant(cid, userID)
		cl.participant = &p
	}
	participant := *cl.participant
	cl.mu.Unlock()

	if old != "" && old != target {
		h.leaveChannel(cid, old, false)
	}

	ch.mu.Lock()
	ch.participants[cid] = participant
	if ch.crown != nil && ch.crown.ParticipantID == nil {
		ch.assignCrownLocked(cid, userID)
	}
	info := ch.infoLocked()
	ppl := ch.participantsLocked()
	history := ch.chatHistoryLocked()
	ch.mu.Unlock()

	metrics.ChannelParticipants.WithLabelValues(string(target)).Set(float64(len(ppl)))

	h.replyTo(cid,
		channelEvent{M: "ch", Ch: info, Ppl: ppl, P: cid},
		chatHistoryEvent{M: "c", C: history},
	)
	h.broadcastToChannel(target, []any{newParticipantEvent(participant)}, cid)
	h.broadcastLsUpdate(target, false)
}

// handleChannelSettings mutates a channel's settings. Only the crown
// holder may do this, and only on regular channels.
func (h *Hub) handleChannelSettings(cid ClientID, raw json.RawMessage) {
	var msg struct {
		Set *struct {
			Color     *string `json:"color"`
			Visible   *bool   `json:"visible"`
			Chat      *bool   `json:"chat"`
			Crownsolo *bool   `json:"crownsolo"`
		} `json:"set"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Set == nil {
		return
	}

	cl := h.getClient(cid)
	if cl == nil {
		return
	}
	cl.mu.RLock()
	chid := cl.channelID
	cl.mu.RUnlock()
	if chid == "" {
		return
	}

	ch := h.getChannel(chid)
	if ch == nil {
		return
	}

	ch.mu.Lock()
	if ch.crown != nil && !ch.crown.heldBy(cid) {
		ch.mu.Unlock()
		return
	}
	if isSpecialChannel(chid) {
		ch.mu.Unlock()
		return
	}

	if msg.Set.Color != nil {
		ch.settings.Color = *msg.Set.Color
	}
	if msg.Set.Visible != nil {
		ch.settings.Visible = *msg.Set.Visible
	}
	if msg.Set.Chat != nil {
		ch.settings.Chat = ptr(*msg.Set.Chat)
	}
	if msg.Set.Crownsolo != nil {
		ch.settings.Crownsolo = ptr(*msg.Set.Crownsolo)
	}

	info := ch.infoLocked()
	ppl := ch.participantsLocked()
	ch.mu.Unlock()

	h.broadcastToChannel(chid, []any{channelEvent{M: "ch", Ch: info, Ppl: ppl}}, "")
	h.broadcastLsUpdate(chid, false)
}

// handleCrownTransfer hands the crown to another joined participant, or
// releases it when no target is named. Release keeps the releaser's user
// id on the crown as a record of the last holder.
func (h *Hub) handleCrownTransfer(cid ClientID, raw json.RawMessage) {
	var msg struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	cl := h.getClient(cid)
	if cl == nil {
		return
	}
	cl.mu.RLock()
	chid := cl.channelID
	var owner Participant
	hasOwner := cl.participant != nil
	if hasOwner {
		owner = *cl.participant
	}
	cl.mu.RUnlock()
	if chid == "" || !hasOwner {
		return
	}

	// Snapshot the target before taking the channel lock; entity locks are
	// never nested.
	var targetID ClientID
	var targetUserID UserID
	var targetPos Position
	haveTarget := false
	if msg.ID != nil {
		tcl := h.getClient(ClientID(*msg.ID))
		if tcl != nil {
			tcl.mu.RLock()
			if tcl.participant != nil && tcl.channelID == chid {
				targetID = ClientID(*msg.ID)
				targetUserID = tcl.userID
				targetPos = Position{X: tcl.participant.X, Y: tcl.participant.Y}
				haveTarget = true
			}
			tcl.mu.RUnlock()
		}
	}

	ch := h.getChannel(chid)
	if ch == nil {
		return
	}

	ch.mu.Lock()
	if ch.settings.Lobby || ch.crown == nil || !ch.crown.heldBy(cid) {
		ch.mu.Unlock()
		return
	}

	// A named target that could not be matched leaves the crown as it is;
	// the channel update below still goes out.
	ownerPos := Position{X: owner.X, Y: owner.Y}
	switch {
	case haveTarget:
		ch.crown = &Crown{
			ParticipantID: &targetID,
			UserID:        &targetUserID,
			Time:          identity.NowMillis(),
			StartPos:      ownerPos,
			EndPos:        targetPos,
		}
	case msg.ID == nil:
		uid := owner.UserID
		ch.crown = &Crown{
			UserID:   &uid,
			Time:     identity.NowMillis(),
			StartPos: ownerPos,
			EndPos:   ownerPos,
		}
	}

	info := ch.infoLocked()
	ppl := ch.participantsLocked()
	ch.mu.Unlock()

	h.broadcastToChannel(chid, []any{channelEvent{M: "ch", Ch: info, Ppl: ppl}}, "")
}

// handleKickban bans a user from the current channel for up to 24 hours
// and redirects them to the holding room. Crown holders only.
func (h *Hub) handleKickban(cid ClientID, raw json.RawMessage) {
	var msg struct {
		ID *string `json:"_id"`
		Ms *int64  `json:"ms"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.ID == nil || msg.Ms == nil || *msg.Ms < 0 {
		return
	}
	targetUserID := UserID(*msg.ID)
	duration := *msg.Ms
	if duration > maxBanDuration {
		duration = maxBanDuration
	}

	cl := h.getClient(cid)
	if cl == nil {
		return
	}
	cl.mu.RLock()
	chid := cl.channelID
	bannerUserID := cl.userID
	var bannerName string
	hasParticipant := cl.participant != nil
	if hasParticipant {
		bannerName = cl.participant.Name
	}
	cl.mu.RUnlock()
	if chid == "" || !hasParticipant {
		return
	}

	ch := h.getChannel(chid)
	if ch == nil {
		return
	}
	ch.mu.RLock()
	allowed := !ch.settings.Lobby && ch.crown.heldBy(cid)
	ch.mu.RUnlock()
	if !allowed {
		return
	}

	// Locate the target among clients currently in the same channel.
	h.mu.RLock()
	candidates := make(map[ClientID]*ClientData, len(h.clients))
	for id, c := range h.clients {
		candidates[id] = c
	}
	h.mu.RUnlock()

	var targetID ClientID
	var targetName string
	found := false
	for id, c := range candidates {
		c.mu.RLock()
		if c.userID == targetUserID && c.channelID == chid {
			targetID = id
			if c.participant != nil {
				targetName = c.participant.Name
			}
			found = true
		}
		c.mu.RUnlock()
		if found {
			break
		}
	}
	if !found {
		return
	}

	now := identity.NowMillis()
	h.mu.Lock()
	h.bannedUsers[targetUserID] = BanInfo{ChannelID: chid, Expiry: now + duration}
	h.mu.Unlock()
	metrics.BansActive.Set(float64(h.banCount()))

	// The redirect reuses the join path, ban check included; the fresh ban
	// names the origin channel, so the holding room always admits.
	h.joinChannel(targetID, "test/awkward")

	h.replyTo(targetID, notificationEvent{
		M:        "notification",
		ID:       fmt.Sprintf("ban-%d", identity.NowMillis()),
		Title:    ptr(""),
		Text:     fmt.Sprintf("You have been banned from %s for %d seconds.", chid, duration/1000),
		Class:    "short",
		Duration: 5000,
	})

	text := fmt.Sprintf("%s banned %s for %d seconds.", bannerName, targetName, duration/1000)
	if targetUserID == bannerUserID {
		text = fmt.Sprintf("Let it be known that %s kickbanned him/her self.", bannerName)
	}
	h.broadcastToChannel(chid, []any{notificationEvent{
		M:        "notification",
		ID:       fmt.Sprintf("ban-%d", identity.NowMillis()),
		Title:    ptr(""),
		Text:     text,
		Class:    "short",
		Duration: 5000,
	}}, "")
}

// handleUnban lifts a user's ban. Crown holders only.
func (h *Hub) handleUnban(cid ClientID, raw json.RawMessage) {
	var msg struct {
		ID *string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.ID == nil {
		return
	}
	targetUserID := UserID(*msg.ID)

	cl := h.getClient(cid)
	if cl == nil {
		return
	}
	cl.mu.RLock()
	chid := cl.channelID
	cl.mu.RUnlock()
	if chid == "" {
		return
	}

	ch := h.getChannel(chid)
	if ch == nil {
		return
	}
	ch.mu.RLock()
	allowed := !ch.settings.Lobby && ch.crown.heldBy(cid)
	ch.mu.RUnlock()
	if !allowed {
		return
	}

	h.mu.Lock()
	delete(h.bannedUsers, targetUserID)
	h.mu.Unlock()
	metrics.BansActive.Set(float64(h.banCount()))

	h.broadcastToChannel(chid, []any{notificationEvent{
		M:        "notification",
		ID:       fmt.Sprintf("unban-%d", identity.NowMillis()),
		Title:    ptr(""),
		Text:     fmt.Sprintf("Unbanned user %s", targetUserID),
		Class:    "short",
		Duration: 5000,
	}}, "")
}

// handleDevices acknowledges a MIDI device listing. Pure echo, no state.
func (h *Hub) handleDevices(cid ClientID, raw json.RawMessage) {
	var msg struct {
		List json.RawMessage `json:"list"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.List == nil {
		return
	}
	slog.Debug("Devices reported", "clientId", cid)
	h.replyTo(cid, devicesEvent{M: "devices", Status: "received", List: msg.List})
}

func (h *Hub) banCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bannedUsers)
}
