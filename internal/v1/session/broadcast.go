package session

import (
	"encoding/json"
	"log/slog"
)

// Fan-out. Every outbound frame is serialized exactly once and the same
// immutable string is handed to each recipient's sink, so all recipients
// of one broadcast see byte-identical frames.

// marshalFrame serializes a batch of events into one wire frame.
func marshalFrame(events []any) (string, bool) {
	data, err := json.Marshal(events)
	if err != nil {
		slog.Error("Failed to serialize frame", "error", err)
		return "", false
	}
	return string(data), true
}

// sendToClient enqueues a serialized frame for one connection. Unknown
// connection ids are a silent no-op: the peer may have disconnected
// between snapshot and send.
func (h *Hub) sendToClient(cid ClientID, frame string) {
	h.mu.RLock()
	out := h.senders[cid]
	h.mu.RUnlock()
	if out != nil {
		out.Push(frame)
	}
}

// replyTo serializes events and sends them to the originating connection
// only.
func (h *Hub) replyTo(cid ClientID, events ...any) {
	frame, ok := marshalFrame(events)
	if !ok {
		return
	}
	h.sendToClient(cid, frame)
}

// broadcastToChannel fans a frame out to every member of a channel,
// optionally excluding the sender. The member list is snapshotted under
// the channel lock and the sends happen after it is released.
func (h *Hub) broadcastToChannel(chid ChannelID, events []any, exclude ClientID) {
	ch := h.getChannel(chid)
	if ch == nil {
		slog.Debug("Broadcast to missing channel", "channelId", chid)
		return
	}

	frame, ok := marshalFrame(events)
	if !ok {
		return
	}

	ch.mu.RLock()
	members := ch.memberIDsLocked()
	ch.mu.RUnlock()

	for _, id := range members {
		if id != exclude {
			h.sendToClient(id, frame)
		}
	}
}

// broadcastLsUpdate pushes a channel's current directory row to every
// subscriber. Channels that are not visible produce no directory traffic.
func (h *Hub) broadcastLsUpdate(chid ChannelID, bulk bool) {
	ch := h.getChannel(chid)
	if ch == nil {
		return
	}

	ch.mu.RLock()
	visible := ch.settings.Visible
	entry := ch.listEntryLocked()
	ch.mu.RUnlock()

	if !visible {
		return
	}
	h.broadcastLsEntry(entry, bulk)
}

// broadcastLsEntry fans a pre-snapshotted directory row out to all
// subscribers. The deletion path uses this directly, since the channel is
// already gone from the registry by the time subscribers are notified.
func (h *Hub) broadcastLsEntry(entry ChannelListEntry, bulk bool) {
	frame, ok := marshalFrame([]any{lsEvent{M: "ls", C: bulk, U: []ChannelListEntry{entry}}})
	if !ok {
		return
	}

	h.mu.RLock()
	subscribers := make([]ClientID, 0, len(h.subscribedToLs))
	for id := range h.subscribedToLs {
		subscribers = append(subscribers, id)
	}
	h.mu.RUnlock()

	for _, id := range subscribers {
		h.sendToClient(id, frame)
	}
}
