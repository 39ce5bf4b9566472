package session

import (
	"context"
	"time"
)

// RunQuotaTicker advances every client's note quota once per second until
// the context is cancelled. One ticker runs for the process lifetime,
// independent of connection activity.
func (h *Hub) RunQuotaTicker(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tickQuotas()
		}
	}
}

func (h *Hub) tickQuotas() {
	h.mu.RLock()
	clients := make([]*ClientData, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		cl.mu.Lock()
		cl.noteQuota.Tick()
		cl.mu.Unlock()
	}
}
