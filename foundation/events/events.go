// Package events fans out published values to registered subscribers.
package events

import (
	"fmt"
	"sync"
)

// subscriberBuffer is the number of values a subscriber may fall behind
// before new values are dropped for it. A websocket write can be slow.
const subscriberBuffer = 100

// Events maintains a mapping of unique id and channels so goroutines
// can subscribe and receive published values.
type Events[T any] struct {
	mu   sync.RWMutex
	subs map[string]chan T
}

// New constructs an Events value for subscribing and publishing.
func New[T any]() *Events[T] {
	return &Events[T]{
		subs: make(map[string]chan T),
	}
}

// Subscribe takes a unique id and returns a channel that receives every
// value published after the call. Subscribing twice with the same id
// returns the same channel.
func (evt *Events[T]) Subscribe(id string) <-chan T {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if ch, exists := evt.subs[id]; exists {
		return ch
	}

	ch := make(chan T, subscriberBuffer)
	evt.subs[id] = ch

	return ch
}

// Unsubscribe closes and removes the channel for the specified id.
func (evt *Events[T]) Unsubscribe(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.subs[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.subs, id)
	close(ch)

	return nil
}

// Publish sends the value to every subscriber. Publish never blocks on a
// subscriber that is not ready to receive.
func (evt *Events[T]) Publish(v T) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (evt *Events[T]) Len() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.subs)
}

// Shutdown closes and removes every subscriber channel.
func (evt *Events[T]) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.subs {
		delete(evt.subs, id)
		close(ch)
	}
}
