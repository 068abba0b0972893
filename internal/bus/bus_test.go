package bus

import (
	"testing"
	"time"

	"gossipkv/internal/event"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe(4)
	defer b.Unsubscribe(sub)

	e := event.New("n1", 1, nil)
	b.Publish(e)

	select {
	case got := <-sub:
		if got.ID != e.ID {
			t.Fatalf("got event %q, want %q", got.ID, e.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestPublishIsNonBlockingWhenSubscriberFull(t *testing.T) {
	b := New()
	sub := b.Subscribe(1)
	defer b.Unsubscribe(sub)

	b.Publish(event.New("n1", 1, nil))
	done := make(chan struct{})
	go func() {
		b.Publish(event.New("n1", 2, nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var b *Bus
	b.Publish(event.New("n1", 1, nil))
	if b.SubscriberCount() != 0 {
		t.Fatalf("nil bus SubscriberCount = %d, want 0", b.SubscriberCount())
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe(4)
	b.Unsubscribe(sub)

	if b.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount after unsubscribe = %d, want 0", b.SubscriberCount())
	}

	// Channel should be closed, not leaked open.
	select {
	case _, ok := <-sub:
		if ok {
			t.Fatal("unsubscribed channel delivered an unexpected value")
		}
	case <-time.After(time.Second):
		t.Fatal("unsubscribed channel was never closed")
	}
}
