// Package transport defines the abstract, consumed-not-implemented
// communication contract the gossip engine is built against (spec §4.3).
// The engine never assumes a transport is reliable, in-order, or
// authenticated — every exchange is treated as best-effort and
// independently idempotent. Concrete realizations live in sibling
// packages (memtransport, httptransport).
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gossipkv/internal/event"
	"gossipkv/internal/vclock"
)

// Peer identifies a remote node reachable through a transport.
type Peer struct {
	ID      string
	Address string
}

// Digest is a vector-clock digest: node id -> highest timestamp seen. It
// represents "I have every event from this node with timestamp <= the
// mapped value." In Go code it's used directly as a map; on the wire it
// marshals as the GossipDigest envelope `{"clock": {"<nodeId>": <int>,
// ...}}` via MarshalJSON/UnmarshalJSON below.
type Digest map[string]uint64

// wireDigest is the JSON envelope GossipDigest uses on the wire.
type wireDigest struct {
	Clock map[string]uint64 `json:"clock"`
}

func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireDigest{Clock: d})
}

func (d *Digest) UnmarshalJSON(data []byte) error {
	var w wireDigest
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = w.Clock
	return nil
}

// FromClock converts a vclock.Clock into its Digest form.
func FromClock(c vclock.Clock) Digest {
	d := make(Digest, len(c))
	for node, t := range c {
		d[node] = t
	}
	return d
}

// ToClock converts a Digest back into a vclock.Clock.
func (d Digest) ToClock() vclock.Clock {
	c := make(vclock.Clock, len(d))
	for node, t := range d {
		c[node] = t
	}
	return c
}

// DigestResponse is the payload a responder returns for a digest request:
// the events the requester is missing, plus the responder's own digest so
// the requester can discover what it's missing on the next round. On the
// wire this is the GossipDigestResponse message.
type DigestResponse struct {
	Events    []event.Event `json:"events"`
	OwnDigest Digest        `json:"digest"`
}

// EventBatch is the one-way push payload (spec §4.3's sendEvents and
// GossipEventMessage wire type).
type EventBatch struct {
	Events []event.Event `json:"events"`
}

// IncomingDigest is delivered to the engine's responder-side handler. The
// transport guarantees Respond is called at most once by the engine, and
// may itself enforce a timeout on that callback (spec §4.3/§9).
type IncomingDigest struct {
	FromPeer Peer
	Digest   Digest
	Respond  func(DigestResponse) error
}

// IncomingEvents is delivered for each one-way event batch push.
type IncomingEvents struct {
	FromPeer Peer
	Batch    EventBatch
}

// Kind classifies a transport failure the way spec §7 requires.
type Kind int

const (
	KindPeerUnreachable Kind = iota
	KindTimeout
	KindClosed
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindPeerUnreachable:
		return "peerUnreachable"
	case KindTimeout:
		return "timeout"
	case KindClosed:
		return "closed"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is returned by any per-exchange transport operation. It is never
// fatal to the engine (spec §7) — the engine logs it, updates a per-peer
// failure counter, and moves on.
type Error struct {
	Kind Kind
	Peer Peer
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s (peer %s): %v", e.Kind, e.Peer.ID, e.Err)
	}
	return fmt.Sprintf("transport: %s (peer %s)", e.Kind, e.Peer.ID)
}

func (e *Error) Unwrap() error { return e.Err }

// Transport is the abstract, consumed interface the gossip engine depends
// on. Every blocking call accepts a context so the engine can bound and
// cancel it from the outside (spec §5's suspension-point requirement).
type Transport interface {
	// Initialize prepares the transport for use (opening listeners,
	// dialing connections, etc.).
	Initialize(ctx context.Context) error
	// Shutdown releases every resource Initialize acquired.
	Shutdown(ctx context.Context) error

	// SendDigest performs one request/response anti-entropy exchange with
	// peer. Fails with *Error on any transport-level problem.
	SendDigest(ctx context.Context, peer Peer, digest Digest, timeout time.Duration) (DigestResponse, error)
	// SendEvents is a one-way, fire-and-forget push of a batch to peer.
	SendEvents(ctx context.Context, peer Peer, batch EventBatch, timeout time.Duration) error

	// IncomingDigests is a lazy, cancellable stream of inbound digest
	// requests the engine must eventually Respond to exactly once each.
	IncomingDigests() <-chan IncomingDigest
	// IncomingEvents is a lazy stream of inbound one-way pushes.
	IncomingEvents() <-chan IncomingEvents

	// DiscoverPeers returns a point-in-time snapshot of peers the
	// transport layer itself can see reachable, if it supports discovery.
	DiscoverPeers(ctx context.Context) ([]Peer, error)
	// IsPeerReachable performs a lightweight reachability check.
	IsPeerReachable(ctx context.Context, peer Peer) bool
}
