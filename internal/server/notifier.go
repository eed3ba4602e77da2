package server

import (
	"sync"

	"github.com/leapstack-labs/leapdc/internal/state"
)

// Notifier broadcasts recorded runs to all subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan *state.Run]struct{}
}

// NewNotifier creates a new Notifier instance.
func NewNotifier() *Notifier {
	return &Notifier{
		listeners: make(map[chan *state.Run]struct{}),
	}
}

// Subscribe returns a channel that receives each recorded run.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan *state.Run {
	ch := make(chan *state.Run, 8)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan *state.Run) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends run to all listeners.
// Non-blocking: a listener whose buffer is full misses the run.
func (n *Notifier) Broadcast(run *state.Run) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- run:
		default:
		}
	}
}

// Len returns the number of subscribed listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
