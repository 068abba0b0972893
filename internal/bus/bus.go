// Package bus provides a local, in-process publish/subscribe fanout for
// events the gossip engine accepts — locally created or received from a
// peer — so other components (an HTTP observer, a test harness, a
// future metrics collector) can watch the event stream without coupling
// to the engine's internals (spec §2's "local event bus").
package bus

import (
	"sync"

	"gossipkv/internal/event"
)

// Bus is a non-blocking broadcast bus. Each subscriber gets its own
// buffered channel; a slow subscriber misses events rather than
// blocking the engine that published them — delivery here is
// best-effort, same as the gossip protocol itself (spec's explicit
// non-goal of exactly-once delivery extends to local fanout too).
type Bus struct {
	mu   sync.RWMutex
	subs map[chan event.Event]struct{}
	// recvToSend lets Unsubscribe accept the receive-only channel the
	// caller holds and find the underlying bidirectional channel to
	// close, without an illegal channel-direction conversion.
	recvToSend map[<-chan event.Event]chan event.Event
}

// New creates a ready-to-use, empty bus.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan event.Event]struct{}),
		recvToSend: make(map[<-chan event.Event]chan event.Event),
	}
}

// Publish broadcasts e to every current subscriber. Safe to call on a
// nil receiver, so callers can wire an optional bus without nil checks.
func (b *Bus) Publish(e event.Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of future published events, buffered to
// bufSize. Callers must Unsubscribe when done.
func (b *Bus) Subscribe(bufSize int) <-chan event.Event {
	ch := make(chan event.Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes and closes a subscription. A no-op if ch was
// already unsubscribed.
func (b *Bus) Unsubscribe(ch <-chan event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount reports the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
