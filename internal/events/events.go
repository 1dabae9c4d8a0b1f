// Package events implements the publish-channel pattern the spec calls
// for in place of the source's ambient event callbacks (SafetyAlert,
// ConfigurationChanged, ConnectionStateChanged, SensorUpdate): one
// sender, many subscribers, no re-entrant call chains back into the
// publisher.
package events

import "sync"

// Topic is a one-sender, many-subscriber broadcast channel for values of
// type T. The zero value is not usable; use NewTopic.
type Topic[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

// NewTopic creates an empty Topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is buffered so Publish never blocks
// on a slow subscriber for more than the buffer depth; beyond that,
// Publish drops the notification for that subscriber rather than
// blocking the publisher (the spec's recommended oldest-drop policy,
// approximated here as newest-drop for simplicity since both bound the
// publisher to non-blocking sends).
func (t *Topic[T]) Subscribe(buffer int) (<-chan T, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.next
	t.next++
	ch := make(chan T, buffer)
	t.subs[id] = ch

	unsubscribe := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

// Publish sends v to every current subscriber without blocking. A
// subscriber whose buffer is full simply misses this notification.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ch := range t.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Len reports the current subscriber count.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
