// Package hashring implements a consistent-hash ring over virtual nodes.
// The gossip engine uses it as an optional PeerSampler: instead of
// selecting a uniform-random fanout every round, a ring-based sampler
// picks a stable, well-distributed subset of peers, which keeps any one
// peer from being hammered disproportionately as cluster size grows.
//
// This consolidates the teacher's two overlapping ring implementations
// (ring.go's sha256 Ring, hash.go's sha1 ConsistentHash) into one: the
// sha256 variant's structure, renamed off the key-value domain.
package hashring

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// defaultVnodes is the number of ring positions per physical peer. Too
// few and load skews toward whichever peer happens to land near a gap;
// too many and AddPeer/RemovePeer cost grows for little extra balance.
const defaultVnodes = 150

// Ring is a concurrency-safe consistent-hash ring keyed by peer id.
type Ring struct {
	mu     sync.RWMutex
	vnodes int
	ring   map[uint32]string
	sorted []uint32
}

// New creates an empty ring. vnodes <= 0 selects defaultVnodes.
func New(vnodes int) *Ring {
	if vnodes <= 0 {
		vnodes = defaultVnodes
	}
	return &Ring{
		vnodes: vnodes,
		ring:   make(map[uint32]string),
	}
}

// AddPeer places peerID's virtual nodes on the ring.
func (r *Ring) AddPeer(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.vnodes; i++ {
		pos := hashPosition(fmt.Sprintf("%s#%d", peerID, i))
		r.ring[pos] = peerID
	}
	r.rebuild()
}

// RemovePeer removes peerID's virtual nodes from the ring.
func (r *Ring) RemovePeer(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.vnodes; i++ {
		pos := hashPosition(fmt.Sprintf("%s#%d", peerID, i))
		delete(r.ring, pos)
	}
	r.rebuild()
}

// Sample returns up to n distinct peer ids clockwise from hashing key,
// walking the ring until n unique physical peers are found or the ring
// is exhausted.
func (r *Ring) Sample(key string, n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sorted) == 0 || n <= 0 {
		return nil
	}

	idx := r.search(hashPosition(key))
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)

	for i := 0; i < len(r.sorted) && len(out) < n; i++ {
		pos := r.sorted[(idx+i)%len(r.sorted)]
		peerID := r.ring[pos]
		if !seen[peerID] {
			seen[peerID] = true
			out = append(out, peerID)
		}
	}
	return out
}

// Peers returns every distinct physical peer id currently on the ring.
func (r *Ring) Peers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, id := range r.ring {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Ring) rebuild() {
	r.sorted = make([]uint32, 0, len(r.ring))
	for pos := range r.ring {
		r.sorted = append(r.sorted, pos)
	}
	slices.Sort(r.sorted)
}

// search finds the index of the first ring position >= pos, wrapping to
// 0 if pos is greater than every position on the ring.
func (r *Ring) search(pos uint32) int {
	idx := sort.Search(len(r.sorted), func(i int) bool {
		return r.sorted[i] >= pos
	})
	if idx == len(r.sorted) {
		idx = 0
	}
	return idx
}

func hashPosition(s string) uint32 {
	h := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint32(h[:4])
}
