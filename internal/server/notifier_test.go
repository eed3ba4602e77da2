package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdc/internal/state"
)

func TestNotifier_Subscribe_Unsubscribe(t *testing.T) {
	n := NewNotifier()

	ch := n.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, n.Len())

	n.Unsubscribe(ch)
	assert.Equal(t, 0, n.Len())

	_, open := <-ch
	assert.False(t, open, "unsubscribe closes the channel")
}

func TestNotifier_Broadcast(t *testing.T) {
	n := NewNotifier()
	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	defer n.Unsubscribe(ch1)
	defer n.Unsubscribe(ch2)

	run := &state.Run{ID: "r1"}
	n.Broadcast(run)

	for _, ch := range []chan *state.Run{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Same(t, run, got)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("listener did not receive broadcast")
		}
	}
}

func TestNotifier_Broadcast_NonBlocking(t *testing.T) {
	n := NewNotifier()
	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(ch)+5; i++ {
			n.Broadcast(&state.Run{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full listener")
	}
	assert.Len(t, ch, cap(ch))
}

func TestNotifier_Concurrent(t *testing.T) {
	n := NewNotifier()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch := n.Subscribe()
			n.Unsubscribe(ch)
		}()
		go func() {
			defer wg.Done()
			n.Broadcast(&state.Run{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, n.Len())
}
