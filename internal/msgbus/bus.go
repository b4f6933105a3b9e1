// Package msgbus moves serialized event packets between pipeline
// stages. The bus is an in-process fan-out; the frame format gives the
// same envelope a byte form so a file or socket carrier can replay it.
package msgbus

import "sync"

// DefaultSubscriberBuffer is used when Subscribe is called with a
// non-positive buffer size.
const DefaultSubscriberBuffer = 16

// Message is one addressed packet: the stream it belongs to plus the
// serialized event bytes. The payload is not copied on publish, so
// producers must hand over a buffer they will not reuse.
type Message struct {
	Node   uint16
	Stream uint16
	Data   []byte
}

// Bus fans messages out to subscribers without ever blocking the
// producer. A subscriber that falls behind loses messages; the loss is
// counted, not hidden.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Message]struct{}
	drops       uint64
}

// NewBus builds an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan Message]struct{})}
}

// Publish delivers a message to every subscriber that has room.
func (b *Bus) Publish(m Message) {
	b.mu.Lock()
	for ch := range b.subscribers {
		select {
		case ch <- m:
		default:
			b.drops++
		}
	}
	b.mu.Unlock()
}

// Subscribe registers a listener. The returned cancel removes the
// subscription and closes the channel; calling it twice panics, so
// callers defer it exactly once.
func (b *Bus) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Message, buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		delete(b.subscribers, ch)
		close(ch)
		b.mu.Unlock()
	}
	return ch, cancel
}

// Drops reports how many messages were discarded because a subscriber
// buffer was full.
func (b *Bus) Drops() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.drops
}

// Subscribers reports the current listener count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
