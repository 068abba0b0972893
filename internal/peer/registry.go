// Package peer tracks the set of remote nodes this node gossips with and
// the last digest observed from each of them (spec §4.4).
package peer

import (
	"fmt"
	"sync"

	"gossipkv/internal/transport"
	"gossipkv/internal/vclock"
)

// Info is everything the engine tracks about one peer.
type Info struct {
	transport.Peer
	LastDigest     vclock.Clock
	FailureCount   int
}

// Registry is a concurrency-safe, mutable set of known peers, keyed by
// peer id. It is deliberately simpler than the teacher's Membership: it
// carries no ring coupling and no replication-factor notion, since
// gossip fanout selection is the engine's job, not the registry's.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*Info
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{peers: make(map[string]*Info)}
}

// Add registers p. If an entry with the same id exists, only its address
// is updated; its digest/failure bookkeeping is preserved.
func (r *Registry) Add(p transport.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.peers[p.ID]; ok {
		existing.Address = p.Address
		return
	}
	r.peers[p.ID] = &Info{Peer: p, LastDigest: vclock.New()}
}

// Remove drops peerID from the registry.
func (r *Registry) Remove(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, peerID)
}

// Get returns a copy of the tracked Info for peerID.
func (r *Registry) Get(peerID string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.peers[peerID]
	if !ok {
		return Info{}, false
	}
	return cloneInfo(*info), true
}

// List returns a snapshot of every tracked peer, safe to range over
// after the call returns regardless of subsequent registry mutation.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.peers))
	for _, info := range r.peers {
		out = append(out, cloneInfo(*info))
	}
	return out
}

// Count returns the number of tracked peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// UpdateDigest records the most recently observed digest for peerID.
func (r *Registry) UpdateDigest(peerID string, digest vclock.Clock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.peers[peerID]
	if !ok {
		return fmt.Errorf("peer %s is not registered", peerID)
	}
	info.LastDigest = digest.Copy()
	info.FailureCount = 0
	return nil
}

// RecordFailure increments peerID's consecutive-failure counter. The
// counter is informational: nothing deprioritizes or evicts a peer based
// on it.
func (r *Registry) RecordFailure(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.peers[peerID]; ok {
		info.FailureCount++
	}
}

func cloneInfo(info Info) Info {
	info.LastDigest = info.LastDigest.Copy()
	return info
}
