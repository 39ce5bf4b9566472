package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the piano relay server.
//
// Naming convention: namespace_subsystem_name
// - namespace: multiplayer_piano (application-level grouping)
// - subsystem: websocket, channel, notes, directory, rate_limit
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, channels, participants, bans)
// - Counter: Cumulative events (events processed, notes relayed/dropped)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections (Gauge - current state)
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "multiplayer_piano",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveChannels tracks the current number of live channels (Gauge - current state)
	ActiveChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "multiplayer_piano",
		Subsystem: "channel",
		Name:      "channels_active",
		Help:      "Current number of live channels",
	})

	// ChannelParticipants tracks the number of participants in each channel (GaugeVec with channel_id label)
	ChannelParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "multiplayer_piano",
		Subsystem: "channel",
		Name:      "participants_count",
		Help:      "Number of participants in each channel",
	}, []string{"channel_id"})

	// WebsocketEvents tracks the total number of protocol events processed (CounterVec - cumulative)
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "multiplayer_piano",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total protocol events processed",
	}, []string{"event_type", "status"})

	// NotesRelayed counts individual notes fanned out to channels (Counter - cumulative)
	NotesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "multiplayer_piano",
		Subsystem: "notes",
		Name:      "relayed_total",
		Help:      "Total notes relayed to channel members",
	})

	// NotesDropped counts note batches rejected before fan-out (CounterVec by reason)
	NotesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "multiplayer_piano",
		Subsystem: "notes",
		Name:      "dropped_total",
		Help:      "Total note batches dropped before fan-out",
	}, []string{"reason"})

	// DirectorySubscribers tracks the number of connections subscribed to channel-list updates (Gauge)
	DirectorySubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "multiplayer_piano",
		Subsystem: "directory",
		Name:      "subscribers",
		Help:      "Connections subscribed to channel directory updates",
	})

	// BansActive tracks the size of the ban table (Gauge)
	BansActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "multiplayer_piano",
		Subsystem: "channel",
		Name:      "bans_active",
		Help:      "Entries currently in the ban table",
	})

	// RateLimitExceeded tracks the total number of requests that exceeded the rate limit
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "multiplayer_piano",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "multiplayer_piano",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
