package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox_PreservesFIFO(t *testing.T) {
	out := newOutbox()

	out.Push("one")
	out.Push("two")
	out.Push("three")

	for _, want := range []string{"one", "two", "three"} {
		got, ok := out.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestOutbox_PopBlocksUntilPush(t *testing.T) {
	out := newOutbox()
	got := make(chan string, 1)

	go func() {
		msg, ok := out.Pop()
		require.True(t, ok)
		got <- msg
	}()

	time.Sleep(10 * time.Millisecond)
	out.Push("late")

	select {
	case msg := <-got:
		assert.Equal(t, "late", msg)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on Push")
	}
}

func TestOutbox_CloseDrainsThenStops(t *testing.T) {
	out := newOutbox()
	out.Push("queued")
	out.Close()

	msg, ok := out.Pop()
	require.True(t, ok)
	assert.Equal(t, "queued", msg)

	_, ok = out.Pop()
	assert.False(t, ok)
}

func TestOutbox_PushAfterCloseIsDropped(t *testing.T) {
	out := newOutbox()
	out.Close()

	out.Push("lost")

	_, ok := out.Pop()
	assert.False(t, ok)
}

func TestOutbox_CloseWakesBlockedPop(t *testing.T) {
	out := newOutbox()
	done := make(chan bool, 1)

	go func() {
		_, ok := out.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	out.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on Close")
	}
}
