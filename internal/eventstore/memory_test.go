package eventstore

import (
	"testing"

	"gossipkv/internal/event"
)

func TestSaveEventIsIdempotent(t *testing.T) {
	m := NewMemory()
	e := event.New("n1", 1, map[string]any{"x": 1})

	if err := m.SaveEvent(e); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := m.SaveEvent(e); err != nil {
		t.Fatalf("second save: %v", err)
	}

	stats, err := m.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalEvents != 1 {
		t.Fatalf("TotalEvents = %d, want 1", stats.TotalEvents)
	}
}

func TestGetEventsSinceOrdersAscendingAndExcludesSince(t *testing.T) {
	m := NewMemory()
	for _, ts := range []uint64{1, 2, 3, 5} {
		if err := m.SaveEvent(event.New("n1", ts, nil)); err != nil {
			t.Fatalf("save ts=%d: %v", ts, err)
		}
	}

	got, err := m.GetEventsSince("n1", 2)
	if err != nil {
		t.Fatalf("GetEventsSince: %v", err)
	}
	want := []uint64{3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Timestamp != w {
			t.Fatalf("got[%d].Timestamp = %d, want %d", i, got[i].Timestamp, w)
		}
	}
}

func TestOutOfOrderArrivalIsSortedOnRead(t *testing.T) {
	m := NewMemory()
	for _, ts := range []uint64{5, 1, 3, 2, 4} {
		if err := m.SaveEvent(event.New("n1", ts, nil)); err != nil {
			t.Fatalf("save ts=%d: %v", ts, err)
		}
	}

	got, err := m.GetEventsSince("n1", 0)
	if err != nil {
		t.Fatalf("GetEventsSince: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Timestamp >= got[i].Timestamp {
			t.Fatalf("not ascending at index %d: %v", i, got)
		}
	}
}

func TestGetLatestTimestampForNode(t *testing.T) {
	m := NewMemory()
	if ts, err := m.GetLatestTimestampForNode("absent"); err != nil || ts != 0 {
		t.Fatalf("absent node: ts=%d err=%v, want 0,nil", ts, err)
	}

	_ = m.SaveEvent(event.New("n1", 1, nil))
	_ = m.SaveEvent(event.New("n1", 4, nil))
	_ = m.SaveEvent(event.New("n1", 2, nil))

	ts, err := m.GetLatestTimestampForNode("n1")
	if err != nil {
		t.Fatalf("GetLatestTimestampForNode: %v", err)
	}
	if ts != 4 {
		t.Fatalf("latest = %d, want 4", ts)
	}
}

func TestHasEventAndGetEvent(t *testing.T) {
	m := NewMemory()
	e := event.New("n1", 1, nil)
	_ = m.SaveEvent(e)

	has, err := m.HasEvent(e.ID)
	if err != nil || !has {
		t.Fatalf("HasEvent = %v,%v, want true,nil", has, err)
	}

	got, ok, err := m.GetEvent(e.ID)
	if err != nil || !ok || got.ID != e.ID {
		t.Fatalf("GetEvent = %v,%v,%v", got, ok, err)
	}

	_, ok, err = m.GetEvent("missing")
	if err != nil || ok {
		t.Fatalf("GetEvent(missing) = ok=%v err=%v, want false,nil", ok, err)
	}
}

func TestOriginsReturnsEveryNode(t *testing.T) {
	m := NewMemory()
	_ = m.SaveEvent(event.New("n1", 1, nil))
	_ = m.SaveEvent(event.New("n2", 1, nil))

	origins, err := m.Origins()
	if err != nil {
		t.Fatalf("Origins: %v", err)
	}
	if len(origins) != 2 {
		t.Fatalf("Origins = %v, want 2 entries", origins)
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	m := NewMemory()
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := m.SaveEvent(event.New("n1", 1, nil)); err == nil {
		t.Fatalf("SaveEvent on closed store succeeded")
	}
	if _, err := m.HasEvent("x"); err == nil {
		t.Fatalf("HasEvent on closed store succeeded")
	}
}
