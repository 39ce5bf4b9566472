package session

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nyxikitty/mpp-server-go/internal/v1/identity"
)

// Test scaffolding shared by the session tests. Clients are registered
// directly against the hub, below the transport layer, so handler behavior
// can be observed through the outbound sinks without running pumps.

func newTestHub() *Hub {
	return NewHub(identity.NewService(false, "", ""), nil, []string{"*"})
}

// addClient registers a client record and captures its outbound sink
// without starting transport pumps.
func addClient(h *Hub, cid ClientID) *outbox {
	out := newOutbox()
	h.mu.Lock()
	if _, ok := h.clients[cid]; !ok {
		h.clients[cid] = newClientData(UserID(cid))
	}
	h.senders[cid] = out
	h.mu.Unlock()
	return out
}

// send feeds one raw frame through the router as if it arrived on the
// wire.
func send(h *Hub, cid ClientID, frame string) {
	h.handleFrame(cid, []byte(frame))
}

// rawFrames drains every frame currently queued on an outbox.
func rawFrames(out *outbox) []string {
	var result []string
	for {
		out.mu.Lock()
		n := out.queue.Len()
		out.mu.Unlock()
		if n == 0 {
			return result
		}
		msg, ok := out.Pop()
		if !ok {
			return result
		}
		result = append(result, msg)
	}
}

// drainEvents drains an outbox and decodes every event of every queued
// frame, in order.
func drainEvents(t *testing.T, out *outbox) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, frame := range rawFrames(out) {
		var batch []map[string]any
		require.NoError(t, json.Unmarshal([]byte(frame), &batch), "frame must be a JSON array of events")
		events = append(events, batch...)
	}
	return events
}

// eventsByTag filters drained events by their "m" tag.
func eventsByTag(events []map[string]any, tag string) []map[string]any {
	var matched []map[string]any
	for _, ev := range events {
		if ev["m"] == tag {
			matched = append(matched, ev)
		}
	}
	return matched
}

// joinAs registers a client, greets, and joins a channel, discarding the
// setup traffic.
func joinAs(t *testing.T, h *Hub, cid ClientID, channel string) *outbox {
	t.Helper()
	out := addClient(h, cid)
	send(h, cid, `[{"m":"hi"}]`)
	send(h, cid, fmt.Sprintf(`[{"m":"ch","_id":%q}]`, channel))
	rawFrames(out)
	return out
}

// channelOf reports the channel a client is currently in.
func channelOf(h *Hub, cid ClientID) ChannelID {
	cl := h.getClient(cid)
	if cl == nil {
		return ""
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.channelID
}

// crownHolder reports the crown holder of a channel, or "" when unheld or
// absent.
func crownHolder(h *Hub, chid ChannelID) ClientID {
	ch := h.getChannel(chid)
	if ch == nil {
		return ""
	}
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	if ch.crown == nil || ch.crown.ParticipantID == nil {
		return ""
	}
	return *ch.crown.ParticipantID
}
