// Package memtransport is an in-process Transport realization used for
// tests and single-binary demos: peers are identified by id and routed
// through a shared in-memory directory rather than a network socket.
package memtransport

import (
	"context"
	"sync"
	"time"

	"gossipkv/internal/transport"
)

// Directory is the shared routing table every memtransport.Transport in a
// simulated cluster must be registered against, the in-process analogue of
// a network. It plays the same role the teacher's node registry plays for
// its in-process cluster tests.
type Directory struct {
	mu    sync.RWMutex
	nodes map[string]*Transport
}

// NewDirectory returns an empty, ready-to-use directory.
func NewDirectory() *Directory {
	return &Directory{nodes: make(map[string]*Transport)}
}

func (d *Directory) register(id string, t *Transport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[id] = t
}

func (d *Directory) unregister(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.nodes, id)
}

func (d *Directory) lookup(id string) (*Transport, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.nodes[id]
	return t, ok
}

func (d *Directory) snapshot() []transport.Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]transport.Peer, 0, len(d.nodes))
	for id, t := range d.nodes {
		out = append(out, transport.Peer{ID: id, Address: t.self.Address})
	}
	return out
}

// Transport is a Directory-routed, channel-based Transport implementation.
type Transport struct {
	self      transport.Peer
	dir       *Directory
	digests   chan transport.IncomingDigest
	events    chan transport.IncomingEvents
	closeOnce sync.Once
	closed    chan struct{}
}

// New returns a transport for self, registered into dir once Initialize
// is called.
func New(self transport.Peer, dir *Directory) *Transport {
	return &Transport{
		self:    self,
		dir:     dir,
		digests: make(chan transport.IncomingDigest, 64),
		events:  make(chan transport.IncomingEvents, 64),
		closed:  make(chan struct{}),
	}
}

func (t *Transport) Initialize(ctx context.Context) error {
	t.dir.register(t.self.ID, t)
	return nil
}

func (t *Transport) Shutdown(ctx context.Context) error {
	t.dir.unregister(t.self.ID)
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *Transport) SendDigest(ctx context.Context, peer transport.Peer, digest transport.Digest, timeout time.Duration) (transport.DigestResponse, error) {
	target, ok := t.dir.lookup(peer.ID)
	if !ok {
		return transport.DigestResponse{}, &transport.Error{Kind: transport.KindPeerUnreachable, Peer: peer}
	}

	respCh := make(chan transport.DigestResponse, 1)
	respond := func(r transport.DigestResponse) error {
		respCh <- r
		return nil
	}

	select {
	case target.digests <- transport.IncomingDigest{FromPeer: t.self, Digest: digest, Respond: respond}:
	case <-target.closed:
		return transport.DigestResponse{}, &transport.Error{Kind: transport.KindClosed, Peer: peer}
	case <-ctx.Done():
		return transport.DigestResponse{}, &transport.Error{Kind: transport.KindTimeout, Peer: peer, Err: ctx.Err()}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-respCh:
		return r, nil
	case <-timer.C:
		return transport.DigestResponse{}, &transport.Error{Kind: transport.KindTimeout, Peer: peer}
	case <-ctx.Done():
		return transport.DigestResponse{}, &transport.Error{Kind: transport.KindTimeout, Peer: peer, Err: ctx.Err()}
	}
}

func (t *Transport) SendEvents(ctx context.Context, peer transport.Peer, batch transport.EventBatch, timeout time.Duration) error {
	target, ok := t.dir.lookup(peer.ID)
	if !ok {
		return &transport.Error{Kind: transport.KindPeerUnreachable, Peer: peer}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case target.events <- transport.IncomingEvents{FromPeer: t.self, Batch: batch}:
		return nil
	case <-target.closed:
		return &transport.Error{Kind: transport.KindClosed, Peer: peer}
	case <-timer.C:
		return &transport.Error{Kind: transport.KindTimeout, Peer: peer}
	case <-ctx.Done():
		return &transport.Error{Kind: transport.KindTimeout, Peer: peer, Err: ctx.Err()}
	}
}

func (t *Transport) IncomingDigests() <-chan transport.IncomingDigest { return t.digests }
func (t *Transport) IncomingEvents() <-chan transport.IncomingEvents  { return t.events }

func (t *Transport) DiscoverPeers(ctx context.Context) ([]transport.Peer, error) {
	out := t.dir.snapshot()
	filtered := out[:0]
	for _, p := range out {
		if p.ID != t.self.ID {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (t *Transport) IsPeerReachable(ctx context.Context, peer transport.Peer) bool {
	_, ok := t.dir.lookup(peer.ID)
	return ok
}
