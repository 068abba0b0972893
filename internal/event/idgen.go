package event

import "github.com/google/uuid"

// IDFunc assigns an id to a newly created event. The engine defaults to
// FormatID (deterministic "<nodeId>-<timestamp>"); callers that need ids
// opaque to timestamp (e.g. to avoid leaking event counts to observers of
// the wire format) can swap in UUIDFormatID instead. Both satisfy the
// contract in spec §9: global uniqueness and stability under
// serialization.
type IDFunc func(nodeID string, timestamp uint64) string

// UUIDFormatID generates "<nodeId>-<uuid>" ids. The node prefix is kept so
// logs and debugging tools can still tell an id's origin at a glance; the
// uuid suffix is what actually guarantees global uniqueness.
func UUIDFormatID(nodeID string, _ uint64) string {
	return nodeID + "-" + uuid.NewString()
}
