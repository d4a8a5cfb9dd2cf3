// Package events fans playback snapshots out to live subscribers such as SSE streams.
package events

import (
	"sync"

	"github.com/stwalsh4118/evercast/internal/playback"
)

const subBufferSize = 16

// Bus is a non-blocking publish-subscribe bus. A subscriber that falls behind
// loses intermediate snapshots rather than stalling the engine; each snapshot
// carries the full state, so the next one it receives is still authoritative.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]chan playback.Snapshot
	last   *playback.Snapshot
	closed bool
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan playback.Snapshot),
	}
}

// Subscribe registers id and returns its channel. The most recent snapshot, if
// any, is delivered first. Subscribing to a closed bus returns a closed channel.
func (b *Bus) Subscribe(id string) <-chan playback.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan playback.Snapshot, subBufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	if old, ok := b.subs[id]; ok {
		close(old)
	}
	if b.last != nil {
		ch <- *b.last
	}
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends snap to every subscriber, dropping it for any that are full
func (b *Bus) Publish(snap playback.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = &snap
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Close ends every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the current number of subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
