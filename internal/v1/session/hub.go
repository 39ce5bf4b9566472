package session

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nyxikitty/mpp-server-go/internal/v1/identity"
	"github.com/nyxikitty/mpp-server-go/internal/v1/metrics"
	"github.com/nyxikitty/mpp-server-go/internal/v1/ratelimit"
)

// Hub owns the process-wide registries: channels, clients, directory
// subscribers, the ban table, and the per-connection outbound sinks. One
// Hub is created at startup and shared by every connection goroutine and
// the quota ticker.
//
// The registry maps are guarded by a single RWMutex; each Channel and each
// ClientData carries its own lock. Lock ordering is registry before
// entity, and never two entity locks at once.
type Hub struct {
	mu             sync.RWMutex
	channels       map[ChannelID]*Channel
	clients        map[ClientID]*ClientData
	subscribedToLs map[ClientID]struct{}
	bannedUsers    map[UserID]BanInfo
	senders        map[ClientID]*outbox

	ids            *identity.Service
	limiter        *ratelimit.Limiter
	allowedOrigins []string
}

// NewHub creates a Hub with its dependencies. limiter may be nil to
// disable connection-rate checks (the session tests do this).
func NewHub(ids *identity.Service, limiter *ratelimit.Limiter, allowedOrigins []string) *Hub {
	return &Hub{
		channels:       make(map[ChannelID]*Channel),
		clients:        make(map[ClientID]*ClientData),
		subscribedToLs: make(map[ClientID]struct{}),
		bannedUsers:    make(map[UserID]BanInfo),
		senders:        make(map[ClientID]*outbox),
		ids:            ids,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
	}
}

// ServeWs upgrades an HTTP request to a WebSocket connection, derives the
// client id from the remote IP, registers the connection, and starts its
// read and write pumps.
func (h *Hub) ServeWs(c *gin.Context) {
	if h.limiter != nil && !h.limiter.CheckWebSocket(c) {
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser clients
			}
			originURL, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, allowed := range h.allowedOrigins {
				if allowed == "*" {
					return true
				}
				allowedURL, err := url.Parse(allowed)
				if err != nil {
					continue
				}
				if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
					return true
				}
			}
			return false
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	cid := ClientID(h.ids.ClientID(c.ClientIP()))
	h.connect(cid, conn)
}

// connect registers a client record and outbound sink for the connection
// and starts its pumps. Split from ServeWs so tests can attach mock
// transports below the HTTP layer.
func (h *Hub) connect(cid ClientID, conn wsConnection) {
	out := newOutbox()

	h.mu.Lock()
	if _, ok := h.clients[cid]; !ok {
		h.clients[cid] = newClientData(UserID(cid))
	}
	h.senders[cid] = out
	h.mu.Unlock()

	slog.Info("New connection", "clientId", cid)
	metrics.IncConnection()

	loop := &connection{hub: h, conn: conn, id: cid, out: out}
	go loop.writePump()
	go loop.readPump()
}

// removeSender drops the sink for a connection, but only if it is still
// the one this connection registered. A duplicate connection for the same
// client id replaces the sink, and the stale loop must not tear down its
// successor's.
func (h *Hub) removeSender(cid ClientID, out *outbox) {
	h.mu.Lock()
	if h.senders[cid] == out {
		delete(h.senders, cid)
	}
	h.mu.Unlock()
}

// getClient returns the client record for a connection id, or nil.
func (h *Hub) getClient(cid ClientID) *ClientData {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[cid]
}

// getChannel returns the channel for an id, or nil.
func (h *Hub) getChannel(chid ChannelID) *Channel {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channels[chid]
}

// getOrCreateChannel returns the channel for an id, lazily creating it
// with default settings. The second return reports creation, so the
// caller can directory-broadcast the new channel after releasing locks.
func (h *Hub) getOrCreateChannel(chid ChannelID) (*Channel, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.channels[chid]; ok {
		return ch, false
	}
	slog.Info("Creating channel", "channelId", chid)
	ch := newDefaultChannel(chid, identity.NowMillis())
	h.channels[chid] = ch
	metrics.ActiveChannels.Inc()
	return ch, true
}

// Counts reports the number of live channels and clients, for the health
// endpoint.
func (h *Hub) Counts() (channels, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels), len(h.clients)
}

// handleDisconnect removes every trace of a connection: channel
// membership, crown tenure, directory subscription, client record. The
// outbound sink is removed separately by the connection loop on exit.
func (h *Hub) handleDisconnect(cid ClientID) {
	slog.Info("Handling disconnect", "clientId", cid)

	cl := h.getClient(cid)
	if cl != nil {
		cl.mu.RLock()
		chid := cl.channelID
		cl.mu.RUnlock()
		if chid != "" {
			h.leaveChannel(cid, chid, true)
		}
	}

	h.mu.Lock()
	delete(h.subscribedToLs, cid)
	delete(h.clients, cid)
	h.mu.Unlock()
	metrics.DirectorySubscribers.Set(float64(h.subscriberCount()))
}

// leaveChannel removes a connection from a channel, settles the crown,
// broadcasts the departure, and deletes the channel when it becomes empty
// (non-special only). reassignCrown selects the disconnect behavior of
// handing an orphaned crown to a remaining participant; a channel switch
// leaves it unclaimed instead.
func (h *Hub) leaveChannel(cid ClientID, chid ChannelID, reassignCrown bool) {
	ch := h.getChannel(chid)
	if ch == nil {
		return
	}

	ch.mu.Lock()
	delete(ch.participants, cid)
	ch.clearCrownHolderLocked(cid)
	if reassignCrown && ch.crown != nil && ch.crown.ParticipantID == nil {
		for id, p := range ch.participants {
			ch.assignCrownLocked(id, p.UserID)
			break
		}
	}
	remaining := len(ch.participants)
	ch.mu.Unlock()

	h.broadcastToChannel(chid, []any{byeEvent{M: "bye", P: cid}}, cid)

	if remaining == 0 && !isSpecialChannel(chid) {
		h.removeChannelIfEmpty(chid)
	} else {
		metrics.ChannelParticipants.WithLabelValues(string(chid)).Set(float64(remaining))
	}
}

// removeChannelIfEmpty deletes a channel after re-checking emptiness under
// the registry lock, then pushes the final directory row (count zero) to
// subscribers so they observe the deletion.
func (h *Hub) removeChannelIfEmpty(chid ChannelID) {
	var entry ChannelListEntry
	var visible, deleted bool

	h.mu.Lock()
	if ch, ok := h.channels[chid]; ok {
		ch.mu.RLock()
		if len(ch.participants) == 0 {
			entry = ch.listEntryLocked()
			visible = ch.settings.Visible
			deleted = true
		}
		ch.mu.RUnlock()
		if deleted {
			delete(h.channels, chid)
		}
	}
	h.mu.Unlock()

	if deleted {
		slog.Info("Removed empty channel", "channelId", chid)
		metrics.ActiveChannels.Dec()
		metrics.ChannelParticipants.DeleteLabelValues(string(chid))
		if visible {
			h.broadcastLsEntry(entry, false)
		}
	}
}

func (h *Hub) subscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribedToLs)
}
