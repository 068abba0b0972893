package hashring

import "testing"

func TestSampleReturnsDistinctPeers(t *testing.T) {
	r := New(50)
	r.AddPeer("a")
	r.AddPeer("b")
	r.AddPeer("c")

	got := r.Sample("key1", 2)
	if len(got) != 2 {
		t.Fatalf("Sample returned %d peers, want 2", len(got))
	}
	if got[0] == got[1] {
		t.Fatalf("Sample returned duplicate peer: %v", got)
	}
}

func TestSampleIsStableForSameKey(t *testing.T) {
	r := New(50)
	r.AddPeer("a")
	r.AddPeer("b")
	r.AddPeer("c")

	first := r.Sample("stable-key", 2)
	second := r.Sample("stable-key", 2)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sample not stable: %v vs %v", first, second)
		}
	}
}

func TestRemovePeerExcludesItFromSample(t *testing.T) {
	r := New(50)
	r.AddPeer("a")
	r.AddPeer("b")
	r.RemovePeer("b")

	for i := 0; i < 20; i++ {
		got := r.Sample("some-key", 2)
		for _, p := range got {
			if p == "b" {
				t.Fatalf("removed peer %q still returned by Sample", "b")
			}
		}
	}
}

func TestSampleOnEmptyRing(t *testing.T) {
	r := New(10)
	if got := r.Sample("key", 3); got != nil {
		t.Fatalf("Sample on empty ring = %v, want nil", got)
	}
}

func TestPeersListsDistinctPhysicalPeers(t *testing.T) {
	r := New(100)
	r.AddPeer("a")
	r.AddPeer("b")

	peers := r.Peers()
	if len(peers) != 2 {
		t.Fatalf("Peers() = %v, want 2 entries", peers)
	}
}
