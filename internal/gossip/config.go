package gossip

import (
	"fmt"
	"time"
)

// Config controls one engine's gossip behavior (spec §4.2/§9). Every
// field has a validated, documented default so an embedding application
// only needs to set NodeID.
type Config struct {
	// NodeID is this node's origin id in the event log and vector clock.
	NodeID string

	// GossipInterval is the period between rounds.
	GossipInterval time.Duration
	// Fanout is how many peers are contacted each round. Zero is valid:
	// rounds still tick but contact no one.
	Fanout int
	// MaxEventsPerExchange caps, per origin node, the number of events
	// returned in a single DigestResponse or event push, so one exchange
	// can't balloon unboundedly when a peer has been offline a long time.
	MaxEventsPerExchange int
	// DigestTimeout bounds a single digest request/response round trip.
	DigestTimeout time.Duration
	// DrainTimeout bounds how long Stop waits for an in-flight round and
	// its worker pool to finish before returning anyway.
	DrainTimeout time.Duration
	// InboundWorkers is the size of the bounded pool processing incoming
	// event batches and digest requests (spec §5).
	InboundWorkers int
	// IDFunc generates a new event's id given its node and timestamp. A
	// nil value defaults to event.FormatID (deterministic "node-seq").
	IDFunc func(nodeID string, timestamp uint64) string
}

// DefaultConfig returns a Config with production-sane defaults for
// nodeID; callers still must set NodeID explicitly to avoid silently
// gossiping as an empty-string origin.
func DefaultConfig(nodeID string) Config {
	return Config{
		NodeID:               nodeID,
		GossipInterval:       1 * time.Second,
		Fanout:               3,
		MaxEventsPerExchange: 100,
		DigestTimeout:        2 * time.Second,
		DrainTimeout:         5 * time.Second,
		InboundWorkers:       4,
	}
}

// Validate checks every field for a usable value, returning a
// *Error{Kind: KindInvalidConfiguration} describing the first problem
// found.
func (c Config) Validate() error {
	if c.NodeID == "" {
		return newErr(KindInvalidConfiguration, "Validate", fmt.Errorf("nodeId must not be empty"))
	}
	if c.GossipInterval <= 0 {
		return newErr(KindInvalidConfiguration, "Validate", fmt.Errorf("gossipInterval must be positive, got %s", c.GossipInterval))
	}
	if c.Fanout < 0 {
		return newErr(KindInvalidConfiguration, "Validate", fmt.Errorf("fanout must be >= 0, got %d", c.Fanout))
	}
	if c.MaxEventsPerExchange <= 0 {
		return newErr(KindInvalidConfiguration, "Validate", fmt.Errorf("maxEventsPerExchange must be positive, got %d", c.MaxEventsPerExchange))
	}
	if c.DigestTimeout <= 0 {
		return newErr(KindInvalidConfiguration, "Validate", fmt.Errorf("digestTimeout must be positive, got %s", c.DigestTimeout))
	}
	if c.DrainTimeout <= 0 {
		return newErr(KindInvalidConfiguration, "Validate", fmt.Errorf("drainTimeout must be positive, got %s", c.DrainTimeout))
	}
	if c.InboundWorkers <= 0 {
		return newErr(KindInvalidConfiguration, "Validate", fmt.Errorf("inboundWorkers must be positive, got %d", c.InboundWorkers))
	}
	return nil
}
