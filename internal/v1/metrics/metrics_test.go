package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConnectionGauge(t *testing.T) {
	before := testutil.ToFloat64(ActiveWebSocketConnections)

	IncConnection()
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveWebSocketConnections))

	DecConnection()
	assert.Equal(t, before, testutil.ToFloat64(ActiveWebSocketConnections))
}

func TestChannelParticipantsLabels(t *testing.T) {
	ChannelParticipants.WithLabelValues("room1").Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(ChannelParticipants.WithLabelValues("room1")))

	ChannelParticipants.DeleteLabelValues("room1")
	assert.Equal(t, float64(0), testutil.ToFloat64(ChannelParticipants.WithLabelValues("room1")))
}

func TestNoteCounters(t *testing.T) {
	beforeRelayed := testutil.ToFloat64(NotesRelayed)
	NotesRelayed.Add(5)
	assert.Equal(t, beforeRelayed+5, testutil.ToFloat64(NotesRelayed))

	beforeDropped := testutil.ToFloat64(NotesDropped.WithLabelValues("quota"))
	NotesDropped.WithLabelValues("quota").Inc()
	assert.Equal(t, beforeDropped+1, testutil.ToFloat64(NotesDropped.WithLabelValues("quota")))
}
