// Package events provides fanout of node diagnostics to any number of
// registered subscribers, typically websocket clients watching the node.
package events

import (
	"fmt"
	"sync"
)

// subscriberBuffer bounds how far a slow subscriber may fall behind
// before messages are dropped for it.
const subscriberBuffer = 100

// Events fans node diagnostics out to registered subscribers. Sends never
// block: a subscriber that is not keeping up loses messages.
type Events struct {
	mu   sync.RWMutex
	subs map[string]chan string
}

// New constructs an Events for registering subscribers and sending to them.
func New() *Events {
	return &Events{
		subs: make(map[string]chan string),
	}
}

// Acquire registers the specified id and returns the channel the subscriber
// receives on. Acquiring an already registered id returns the same channel.
func (evt *Events) Acquire(id string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if ch, exists := evt.subs[id]; exists {
		return ch
	}

	ch := make(chan string, subscriberBuffer)
	evt.subs[id] = ch
	return ch
}

// Release closes and removes the subscriber channel registered under id.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.subs[id]
	if !exists {
		return fmt.Errorf("subscriber %q does not exist", id)
	}

	delete(evt.subs, id)
	close(ch)
	return nil
}

// Send delivers the message to every subscriber with room to take it.
// Send never blocks waiting on a receiver.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Shutdown closes and removes every subscriber channel.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.subs {
		delete(evt.subs, id)
		close(ch)
	}
}
