package eventstore

import (
	"sort"
	"sync"

	"gossipkv/internal/event"
)

// Memory is the reference in-memory Store. It keeps every event twice:
// once in a flat id-keyed map for O(1) idempotence checks, and once in a
// per-origin slice kept sorted by timestamp so GetEventsSince can binary
// search rather than scan.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]event.Event
	byNode map[string][]event.Event // kept sorted ascending by Timestamp
	closed bool
}

// NewMemory returns an empty, ready-to-use in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[string]event.Event),
		byNode: make(map[string][]event.Event),
	}
}

// SaveEvent is idempotent by e.ID: a second save is a no-op (spec §4.1).
func (m *Memory) SaveEvent(e event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return newErr(KindClosed, "SaveEvent", nil)
	}
	if _, exists := m.byID[e.ID]; exists {
		return nil
	}

	stored := e.Clone()
	m.byID[e.ID] = stored
	m.insertSorted(stored)
	return nil
}

// insertSorted inserts e into m.byNode[e.NodeID] keeping the slice sorted
// by Timestamp, tolerating out-of-order arrival (spec §4.5.6).
func (m *Memory) insertSorted(e event.Event) {
	slice := m.byNode[e.NodeID]
	idx := sort.Search(len(slice), func(i int) bool {
		return slice[i].Timestamp >= e.Timestamp
	})
	slice = append(slice, event.Event{})
	copy(slice[idx+1:], slice[idx:])
	slice[idx] = e
	m.byNode[e.NodeID] = slice
}

func (m *Memory) GetEvent(id string) (event.Event, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return event.Event{}, false, newErr(KindClosed, "GetEvent", nil)
	}
	e, ok := m.byID[id]
	return e, ok, nil
}

func (m *Memory) HasEvent(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, newErr(KindClosed, "HasEvent", nil)
	}
	_, ok := m.byID[id]
	return ok, nil
}

// GetEventsSince returns every event from nodeID with timestamp > since,
// ascending. Because m.byNode[nodeID] is kept sorted this is a single
// binary search plus a slice copy.
func (m *Memory) GetEventsSince(nodeID string, since uint64) ([]event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, newErr(KindClosed, "GetEventsSince", nil)
	}

	slice := m.byNode[nodeID]
	idx := sort.Search(len(slice), func(i int) bool {
		return slice[i].Timestamp > since
	})
	out := make([]event.Event, len(slice)-idx)
	copy(out, slice[idx:])
	return out, nil
}

func (m *Memory) GetLatestTimestampForNode(nodeID string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, newErr(KindClosed, "GetLatestTimestampForNode", nil)
	}
	slice := m.byNode[nodeID]
	if len(slice) == 0 {
		return 0, nil
	}
	return slice[len(slice)-1].Timestamp, nil
}

func (m *Memory) GetAllEvents() ([]event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, newErr(KindClosed, "GetAllEvents", nil)
	}
	out := make([]event.Event, 0, len(m.byID))
	for _, e := range m.byID {
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) Origins() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, newErr(KindClosed, "Origins", nil)
	}
	out := make([]string, 0, len(m.byNode))
	for node := range m.byNode {
		out = append(out, node)
	}
	return out, nil
}

func (m *Memory) GetStats() (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Stats{}, newErr(KindClosed, "GetStats", nil)
	}
	return Stats{TotalEvents: len(m.byID), UniqueNodes: len(m.byNode)}, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
