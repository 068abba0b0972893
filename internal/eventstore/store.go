// Package eventstore defines the storage contract the gossip engine
// depends on and ships an in-memory implementation plus a WAL-backed
// durable implementation on top of it.
//
// Contract (spec §4.1):
//
//   - SaveEvent is idempotent by event id — saving the same id twice is a
//     no-op, never an error.
//   - GetEventsSince returns a prefix-complete slice ordered by ascending
//     timestamp; gaps in the stored sequence are tolerated because the
//     engine always asks a responder about its own view, never the
//     requester's gaps.
//   - Every operation may fail with a *Error carrying a Kind.
package eventstore

import "gossipkv/internal/event"

// Stats summarizes the contents of a store for diagnostics.
type Stats struct {
	TotalEvents int
	UniqueNodes int
}

// ReadOnlyStore is the subset of Store exposed to callers that should
// only ever inspect the log, never mutate it — the handle spec §6's
// eventStore accessor returns. Every Store satisfies it automatically.
type ReadOnlyStore interface {
	// GetEvent returns the event for id, or ok=false if absent.
	GetEvent(id string) (e event.Event, ok bool, err error)
	// HasEvent reports whether id has been persisted.
	HasEvent(id string) (bool, error)
	// GetEventsSince returns every stored event from nodeID with
	// timestamp > since, ascending by timestamp.
	GetEventsSince(nodeID string, since uint64) ([]event.Event, error)
	// GetLatestTimestampForNode returns the highest timestamp stored for
	// nodeID, or 0 if none.
	GetLatestTimestampForNode(nodeID string) (uint64, error)
	// GetAllEvents returns every stored event, in no particular cross-node
	// order.
	GetAllEvents() ([]event.Event, error)
	// Origins returns every node id that has ever appeared as an event
	// origin in this store — used to build a full digest (spec §4.5.3).
	Origins() ([]string, error)
	// GetStats summarizes the store's contents.
	GetStats() (Stats, error)
}

// Store is the contract the gossip engine consumes. Implementations must
// be safe for concurrent use; writes may serialize internally but reads
// must not block on a pending write any longer than that serialization
// requires.
type Store interface {
	ReadOnlyStore

	// SaveEvent persists e. Saving an id that already exists is a no-op.
	SaveEvent(e event.Event) error
	// Close releases any resources held by the store.
	Close() error
}
