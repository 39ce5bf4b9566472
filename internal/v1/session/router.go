package session

import (
	"encoding/json"
	"log/slog"

	"github.com/nyxikitty/mpp-server-go/internal/v1/metrics"
)

// envelope is the minimal decode of one event: just its tag.
type envelope struct {
	M string `json:"m"`
}

// handleFrame parses one inbound text frame as a JSON array of events and
// routes each event in order. A frame that is not a JSON array is logged
// and discarded; the connection keeps going.
func (h *Hub) handleFrame(cid ClientID, data []byte) {
	var events []json.RawMessage
	if err := json.Unmarshal(data, &events); err != nil {
		slog.Error("Failed to parse frame", "clientId", cid, "error", err)
		return
	}
	for _, raw := range events {
		h.route(cid, raw)
	}
}

// route dispatches one decoded event by its tag. Events without a usable
// tag and unknown tags are logged and dropped.
func (h *Hub) route(cid ClientID, raw json.RawMessage) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.M == "" {
		slog.Error("Failed to parse event", "clientId", cid)
		return
	}

	slog.Debug("Routing event", "clientId", cid, "m", env.M)

	switch env.M {
	case "hi":
		h.handleHi(cid)
	case "bye":
		h.handleBye(cid)
	case "+ls":
		h.handlePlusLs(cid)
	case "-ls":
		h.handleMinusLs(cid)
	case "t":
		h.handleTime(cid, raw)
	case "a":
		h.handleChat(cid, raw)
	case "n":
		h.handleNote(cid, raw)
	case "m":
		h.handleMovement(cid, raw)
	case "userset":
		h.handleUserset(cid, raw)
	case "ch":
		h.handleChannelJoin(cid, raw)
	case "chset":
		h.handleChannelSettings(cid, raw)
	case "chown":
		h.handleCrownTransfer(cid, raw)
	case "kickban":
		h.handleKickban(cid, raw)
	case "unban":
		h.handleUnban(cid, raw)
	case "devices":
		h.handleDevices(cid, raw)
	default:
		slog.Warn("Unknown event type", "clientId", cid, "m", env.M)
		metrics.WebsocketEvents.WithLabelValues(env.M, "unknown").Inc()
		return
	}

	metrics.WebsocketEvents.WithLabelValues(env.M, "ok").Inc()
}
