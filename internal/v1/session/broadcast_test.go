package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcast_FramesAreByteIdenticalForAllRecipients(t *testing.T) {
	h := newTestHub()
	c1 := joinAs(t, h, "c1", "lobby")
	c2 := joinAs(t, h, "c2", "lobby")
	c3 := joinAs(t, h, "c3", "lobby")
	// Discard the join announcements queued on earlier joiners.
	rawFrames(c1)
	rawFrames(c2)

	send(h, "c1", `[{"m":"a","message":"same bytes for everyone"}]`)

	frames1 := rawFrames(c1)
	frames2 := rawFrames(c2)
	frames3 := rawFrames(c3)
	require.Len(t, frames1, 1)
	assert.Equal(t, frames1, frames2)
	assert.Equal(t, frames2, frames3)
}

func TestBroadcast_ToMissingChannelIsNoop(t *testing.T) {
	h := newTestHub()
	out := addClient(h, "c1")

	h.broadcastToChannel("ghost", []any{byeEvent{M: "bye", P: "c1"}}, "")

	assert.Empty(t, rawFrames(out))
}

func TestSendToClient_UnknownIDIsNoop(t *testing.T) {
	h := newTestHub()
	// Must not panic or create state.
	h.sendToClient("nobody", "[]")

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Empty(t, h.senders)
}

func TestBroadcastLsUpdate_SkipsInvisibleChannels(t *testing.T) {
	h := newTestHub()
	watcher := addClient(h, "watcher")
	send(h, "watcher", `[{"m":"+ls"}]`)
	joinAs(t, h, "c1", "room1")

	ch := h.getChannel("room1")
	ch.mu.Lock()
	ch.settings.Visible = false
	ch.mu.Unlock()
	rawFrames(watcher)

	h.broadcastLsUpdate("room1", false)

	assert.Empty(t, rawFrames(watcher))
}

func TestQuotaTicker_RefillsAllClients(t *testing.T) {
	h := newTestHub()
	joinAs(t, h, "c1", "lobby")
	joinAs(t, h, "c2", "lobby")

	for _, cid := range []ClientID{"c1", "c2"} {
		cl := h.getClient(cid)
		cl.mu.Lock()
		cl.noteQuota.Points = 0
		cl.mu.Unlock()
	}

	h.tickQuotas()

	for _, cid := range []ClientID{"c1", "c2"} {
		cl := h.getClient(cid)
		cl.mu.RLock()
		assert.Equal(t, int32(8000), cl.noteQuota.Points)
		cl.mu.RUnlock()
	}
}

func TestRunQuotaTicker_StopsOnCancel(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		h.RunQuotaTicker(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop on context cancellation")
	}
}
