package session

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nyxikitty/mpp-server-go/internal/v1/metrics"
	"github.com/nyxikitty/mpp-server-go/internal/v1/quota"
)

// writeWait bounds how long a single frame write may take before the
// connection is considered dead.
const writeWait = 10 * time.Second

// wsConnection is the slice of *websocket.Conn the session layer needs.
// Tests substitute mock implementations to simulate disconnects and slow
// or failing writes.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// ClientData is the per-connection record: identity, channel membership,
// the participant projection, and the note quota. Guarded by its own lock;
// handlers snapshot under the lock and broadcast after releasing it.
type ClientData struct {
	mu           sync.RWMutex
	userID       UserID
	participant  *Participant
	channelID    ChannelID // empty while not in a channel
	lastMoveTime int64     // zero until the first movement
	noteQuota    *quota.NoteQuota
}

func newClientData(userID UserID) *ClientData {
	return &ClientData{
		userID:    userID,
		noteQuota: quota.New(),
	}
}

// defaultParticipant is the projection a client gets before its first
// userset: anonymous, colored by the head of its user id.
func defaultParticipant(id ClientID, userID UserID) Participant {
	color := string(userID)
	if len(color) > 6 {
		color = color[:6]
	}
	return Participant{
		ID:     id,
		UserID: userID,
		Name:   "Anonymous",
		Color:  "#" + color,
	}
}

// outbox is the unbounded per-connection FIFO drained by the write pump.
// Handlers enqueue without ever blocking on a slow peer; order is
// preserved exactly as enqueued. Memory growth on a stalled peer is
// accepted over dropping frames mid-stream.
type outbox struct {
	mu     sync.Mutex
	ready  *sync.Cond
	queue  *list.List
	closed bool
}

func newOutbox() *outbox {
	o := &outbox{queue: list.New()}
	o.ready = sync.NewCond(&o.mu)
	return o
}

// Push enqueues one serialized frame. No-op after Close.
func (o *outbox) Push(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.queue.PushBack(msg)
	o.ready.Signal()
}

// Pop blocks until a frame is available or the outbox is closed and
// drained. The second return is false once there is nothing left to send.
func (o *outbox) Pop() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.queue.Len() == 0 && !o.closed {
		o.ready.Wait()
	}
	if o.queue.Len() == 0 {
		return "", false
	}
	return o.queue.Remove(o.queue.Front()).(string), true
}

// Close wakes the write pump and rejects further pushes. Frames already
// queued are still drained.
func (o *outbox) Close() {
	o.mu.Lock()
	o.closed = true
	o.ready.Broadcast()
	o.mu.Unlock()
}

// connection owns one transport: the reader feeding the router and the
// writer draining the outbox.
type connection struct {
	hub  *Hub
	conn wsConnection
	id   ClientID
	out  *outbox
}

// writePump sends each queued frame as one text frame. It exits on the
// first write error or once the outbox is closed and drained; closing the
// transport unblocks the read pump, which performs the cleanup.
func (c *connection) writePump() {
	defer c.conn.Close()

	for {
		msg, ok := c.out.Pop()
		if !ok {
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			slog.Error("Failed to write frame", "clientId", c.id, "error", err)
			return
		}
	}
}

// readPump processes inbound frames until the transport closes, then runs
// the disconnect cleanup. Malformed frames are logged and skipped; the
// connection stays open.
func (c *connection) readPump() {
	defer func() {
		c.hub.handleDisconnect(c.id)
		c.hub.removeSender(c.id, c.out)
		c.out.Close()
		c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.hub.handleFrame(c.id, data)
	}
}
