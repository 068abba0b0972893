package peer

import (
	"testing"

	"gossipkv/internal/transport"
	"gossipkv/internal/vclock"
)

func TestAddAndGet(t *testing.T) {
	r := New()
	r.Add(transport.Peer{ID: "p1", Address: "addr1"})

	info, ok := r.Get("p1")
	if !ok {
		t.Fatal("Get(p1) not found")
	}
	if info.Address != "addr1" {
		t.Fatalf("Address = %q, want addr1", info.Address)
	}
}

func TestAddTwicePreservesDigest(t *testing.T) {
	r := New()
	r.Add(transport.Peer{ID: "p1", Address: "addr1"})
	clock := vclock.Clock{"p1": 5}
	if err := r.UpdateDigest("p1", clock); err != nil {
		t.Fatalf("UpdateDigest: %v", err)
	}

	r.Add(transport.Peer{ID: "p1", Address: "addr1-new"})

	info, ok := r.Get("p1")
	if !ok {
		t.Fatal("Get(p1) not found after re-add")
	}
	if info.Address != "addr1-new" {
		t.Fatalf("Address not updated: %q", info.Address)
	}
	if info.LastDigest.Get("p1") != 5 {
		t.Fatalf("digest lost on re-add: %v", info.LastDigest)
	}
}

func TestRemove(t *testing.T) {
	r := New()
	r.Add(transport.Peer{ID: "p1", Address: "addr1"})
	r.Remove("p1")

	if _, ok := r.Get("p1"); ok {
		t.Fatal("Get(p1) found after Remove")
	}
}

func TestListIsASnapshot(t *testing.T) {
	r := New()
	r.Add(transport.Peer{ID: "p1", Address: "addr1"})

	list := r.List()
	r.Add(transport.Peer{ID: "p2", Address: "addr2"})

	if len(list) != 1 {
		t.Fatalf("List snapshot mutated after later Add: %v", list)
	}
}

func TestRecordFailureIncrementsCounter(t *testing.T) {
	r := New()
	r.Add(transport.Peer{ID: "p1", Address: "addr1"})
	r.RecordFailure("p1")
	r.RecordFailure("p1")

	info, _ := r.Get("p1")
	if info.FailureCount != 2 {
		t.Fatalf("FailureCount = %d, want 2", info.FailureCount)
	}
}

func TestUpdateDigestResetsFailureCount(t *testing.T) {
	r := New()
	r.Add(transport.Peer{ID: "p1", Address: "addr1"})
	r.RecordFailure("p1")

	if err := r.UpdateDigest("p1", vclock.New()); err != nil {
		t.Fatalf("UpdateDigest: %v", err)
	}

	info, _ := r.Get("p1")
	if info.FailureCount != 0 {
		t.Fatalf("FailureCount after UpdateDigest = %d, want 0", info.FailureCount)
	}
}

func TestUpdateDigestUnknownPeerErrors(t *testing.T) {
	r := New()
	if err := r.UpdateDigest("ghost", vclock.New()); err == nil {
		t.Fatal("UpdateDigest on unknown peer succeeded, want error")
	}
}
