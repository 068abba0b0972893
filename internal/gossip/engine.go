// Package gossip implements the anti-entropy replication engine: a
// periodic scheduler that exchanges vector-clock digests with a random
// subset of peers each round and propagates whatever events either side
// is missing (spec §2, §4.2, §4.5).
package gossip

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gossipkv/internal/bus"
	"gossipkv/internal/event"
	"gossipkv/internal/eventstore"
	"gossipkv/internal/logging"
	"gossipkv/internal/peer"
	"gossipkv/internal/transport"
	"gossipkv/internal/vclock"
)

type engineState int32

const (
	stateCreated engineState = iota
	stateRunning
	stateStopped
)

// PeerSampler picks up to n peer ids to gossip with this round, keyed by
// an arbitrary round token. hashring.Ring satisfies this; the engine
// falls back to uniform random selection when no sampler is configured
// (spec §9's "fanout selection is pluggable").
type PeerSampler interface {
	Sample(key string, n int) []string
}

// Engine is the gossip replication engine. It owns no network
// resources directly — all of those live behind the Transport it is
// given — but it owns the clock, the round scheduler, and the inbound
// processing pipeline.
type Engine struct {
	cfg         Config
	store       eventstore.Store
	transport   transport.Transport
	registry    *peer.Registry
	createdBus  *bus.Bus
	receivedBus *bus.Bus
	sampler     PeerSampler
	logger      logging.Logger
	idFunc      event.IDFunc

	mu    sync.Mutex
	clock vclock.Clock
	seq   uint64

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}

	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup
	round  atomic.Uint64
}

// New constructs an Engine. cfg is validated immediately; a malformed
// config is rejected before any goroutine is spawned.
func New(cfg Config, store eventstore.Store, tr transport.Transport, registry *peer.Registry, sampler PeerSampler, logger logging.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNoop()
	}
	idFunc := cfg.IDFunc
	if idFunc == nil {
		idFunc = event.FormatID
	}

	e := &Engine{
		cfg:         cfg,
		store:       store,
		transport:   tr,
		registry:    registry,
		createdBus:  bus.New(),
		receivedBus: bus.New(),
		sampler:     sampler,
		logger:      logger,
		idFunc:      idFunc,
		clock:       vclock.New(),
		inFlight:    make(map[string]struct{}),
	}
	e.state.Store(int32(stateCreated))

	latest, err := store.GetLatestTimestampForNode(cfg.NodeID)
	if err == nil {
		e.seq = latest
		e.clock.Set(cfg.NodeID, latest)
	}
	return e, nil
}

// Start transitions the engine to running: it initializes the
// transport, then launches the round scheduler and the bounded inbound
// worker pool. Calling Start twice returns an error rather than
// double-launching goroutines.
func (e *Engine) Start(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(stateCreated), int32(stateRunning)) {
		return newErr(KindEngineAlreadyRunning, "Start", nil)
	}

	if err := e.transport.Initialize(ctx); err != nil {
		e.state.Store(int32(stateCreated))
		return fmt.Errorf("initialize transport: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go e.roundLoop(runCtx)

	for i := 0; i < e.cfg.InboundWorkers; i++ {
		e.wg.Add(1)
		go e.inboundWorker(runCtx)
	}

	return nil
}

// Stop transitions the engine to stopped, cancels all background work,
// and waits up to cfg.DrainTimeout for it to finish before returning
// regardless (spec §4.2's graceful-stop-with-deadline requirement).
func (e *Engine) Stop(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(stateRunning), int32(stateStopped)) {
		return newErr(KindEngineStopped, "Stop", nil)
	}
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(e.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		e.logger.Warnf("stop: drain timeout (%s) exceeded, returning anyway", e.cfg.DrainTimeout)
	case <-ctx.Done():
	}

	return e.transport.Shutdown(ctx)
}

// CreateEvent appends a new locally-originated event to the log: it
// allocates the next gap-free sequence number, persists the event, and
// only then advances the local clock — so a save failure leaves the
// clock exactly as it was (spec §7's "user-visible failure of
// createEvent leaves the vector clock unchanged", §4.5.8's "never
// skips"). The whole call is serialized under mu, which also gives the
// ordering guarantee that a createEvent completing before another
// begins always assigns it a strictly smaller timestamp (spec §8).
func (e *Engine) CreateEvent(payload map[string]any) (event.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts := e.seq + 1
	ev := event.New(e.cfg.NodeID, ts, payload)
	ev.ID = e.idFunc(e.cfg.NodeID, ts)

	if err := e.store.SaveEvent(ev); err != nil {
		return event.Event{}, fmt.Errorf("save local event: %w", err)
	}

	e.seq = ts
	e.clock.Set(e.cfg.NodeID, ts)

	e.createdBus.Publish(ev)
	return ev, nil
}

// Clock returns a snapshot of the engine's current vector clock.
func (e *Engine) Clock() vclock.Clock {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Copy()
}

// AddPeer registers p as a gossip partner, eligible for selection
// starting with the engine's next round (spec §6's addPeer).
func (e *Engine) AddPeer(p transport.Peer) {
	e.registry.Add(p)
}

// RemovePeer unregisters peerID and reports whether it was previously
// known (spec §6's removePeer).
func (e *Engine) RemovePeer(peerID string) bool {
	_, ok := e.registry.Get(peerID)
	e.registry.Remove(peerID)
	return ok
}

// Peers returns a snapshot of every peer this engine currently knows
// about (spec §6's peers()).
func (e *Engine) Peers() []peer.Info {
	return e.registry.List()
}

// EventStore returns a read-only handle to the underlying event store
// (spec §6's eventStore accessor).
func (e *Engine) EventStore() eventstore.ReadOnlyStore {
	return e.store
}

// OnEventCreated subscribes to the stream of locally created events
// (spec §6's onEventCreated). The engine offers no way to cancel the
// subscription; the channel stays registered for the engine's lifetime.
func (e *Engine) OnEventCreated(bufSize int) <-chan event.Event {
	return e.createdBus.Subscribe(bufSize)
}

// OnEventReceived subscribes to the stream of events received from
// peers (spec §6's onEventReceived).
func (e *Engine) OnEventReceived(bufSize int) <-chan event.Event {
	return e.receivedBus.Subscribe(bufSize)
}

// Gossip manually triggers one round against the current peer set and
// blocks until every exchange it started has finished (spec §6's
// gossip(), "used by tests and for on-demand sync"). Like the
// background scheduler it skips any peer that already has an exchange
// in flight, whether started by the scheduler or by another Gossip
// call, honoring the same "don't re-gossip an in-flight peer" rule
// (spec §4.5.3.2).
func (e *Engine) Gossip(ctx context.Context) error {
	if engineState(e.state.Load()) == stateStopped {
		return newErr(KindEngineStopped, "Gossip", nil)
	}

	round := e.round.Add(1)
	targets := e.selectFanout(round)

	var wg sync.WaitGroup
	for _, p := range targets {
		if !e.tryMarkInFlight(p.Peer.ID) {
			continue
		}
		wg.Add(1)
		go func(p transport.Peer) {
			defer wg.Done()
			defer e.clearInFlight(p.ID)
			e.exchangeWithPeer(ctx, p)
		}(p.Peer)
	}
	wg.Wait()
	return nil
}

// ─── Round scheduler ──────────────────────────────────────────────────────

func (e *Engine) roundLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.GossipInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.startRound(ctx)
		}
	}
}

// startRound selects a fanout of peers not already mid-exchange and
// launches each exchange in its own wg-tracked goroutine without
// waiting for them: one slow or unreachable peer must never delay the
// next tick (spec §4.5.3.4/§4.5.3.5, "exchanges proceed in parallel,
// the next round starts regardless").
func (e *Engine) startRound(ctx context.Context) {
	round := e.round.Add(1)
	targets := e.selectFanout(round)

	for _, p := range targets {
		if !e.tryMarkInFlight(p.Peer.ID) {
			continue
		}
		e.wg.Add(1)
		go func(p transport.Peer) {
			defer e.wg.Done()
			defer e.clearInFlight(p.ID)
			e.exchangeWithPeer(ctx, p)
		}(p.Peer)
	}
}

// tryMarkInFlight claims peerID for an in-progress exchange, returning
// false if one is already running (spec §4.5.3.2: never gossip the same
// peer concurrently with itself).
func (e *Engine) tryMarkInFlight(peerID string) bool {
	e.inFlightMu.Lock()
	defer e.inFlightMu.Unlock()
	if _, busy := e.inFlight[peerID]; busy {
		return false
	}
	e.inFlight[peerID] = struct{}{}
	return true
}

func (e *Engine) clearInFlight(peerID string) {
	e.inFlightMu.Lock()
	delete(e.inFlight, peerID)
	e.inFlightMu.Unlock()
}

// selectFanout picks up to cfg.Fanout peers that aren't already
// mid-exchange. With a PeerSampler configured, selection is ring-based
// and stable round to round for the same token; otherwise it falls back
// to a uniform random selection without replacement. Fanout of 0
// returns no peers.
func (e *Engine) selectFanout(round uint64) []peer.Info {
	if e.cfg.Fanout == 0 {
		return nil
	}

	all := e.availablePeers()
	if len(all) == 0 {
		return nil
	}

	n := e.cfg.Fanout
	if n > len(all) {
		n = len(all)
	}

	if e.sampler != nil {
		ids := e.sampler.Sample(fmt.Sprintf("round-%d", round), n)
		out := make([]peer.Info, 0, len(ids))
		for _, id := range ids {
			for _, info := range all {
				if info.ID == id {
					out = append(out, info)
					break
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	return uniformRandomSample(all, n)
}

// availablePeers is the registry's peer list minus whichever peers
// already have an exchange in flight.
func (e *Engine) availablePeers() []peer.Info {
	all := e.registry.List()
	e.inFlightMu.Lock()
	defer e.inFlightMu.Unlock()
	if len(e.inFlight) == 0 {
		return all
	}

	out := all[:0:0]
	for _, p := range all {
		if _, busy := e.inFlight[p.ID]; !busy {
			out = append(out, p)
		}
	}
	return out
}

// uniformRandomSample performs an in-place, crypto/rand-driven
// Fisher-Yates partial shuffle to pick n elements without replacement.
func uniformRandomSample(all []peer.Info, n int) []peer.Info {
	pool := make([]peer.Info, len(all))
	copy(pool, all)

	for i := 0; i < n; i++ {
		remaining := len(pool) - i
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(remaining)))
		if err != nil {
			continue
		}
		j := i + int(idx.Int64())
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// exchangeWithPeer performs one push-pull digest exchange: send our
// digest, absorb the events the peer says we're missing, then push back
// whatever the peer's returned digest says it's missing from us.
func (e *Engine) exchangeWithPeer(ctx context.Context, p transport.Peer) {
	ownDigest := transport.FromClock(e.Clock())

	resp, err := e.transport.SendDigest(ctx, p, ownDigest, e.cfg.DigestTimeout)
	if err != nil {
		e.registry.RecordFailure(p.ID)
		e.logger.Debugf("digest exchange with %s failed: %v", p.ID, err)
		return
	}

	e.applyReceivedEvents(resp.Events)
	_ = e.registry.UpdateDigest(p.ID, resp.OwnDigest.ToClock())

	missing, err := e.missingEvents(resp.OwnDigest)
	if err != nil {
		e.logger.Warnf("computing missing events for %s: %v", p.ID, err)
		return
	}
	if len(missing) == 0 {
		return
	}

	if err := e.transport.SendEvents(ctx, p, transport.EventBatch{Events: missing}, e.cfg.DigestTimeout); err != nil {
		e.registry.RecordFailure(p.ID)
		e.logger.Debugf("event push to %s failed: %v", p.ID, err)
	}
}

// ─── Inbound pipeline ─────────────────────────────────────────────────────

func (e *Engine) inboundWorker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-e.transport.IncomingDigests():
			if !ok {
				return
			}
			e.handleIncomingDigest(d)
		case ie, ok := <-e.transport.IncomingEvents():
			if !ok {
				return
			}
			e.handleIncomingEvents(ie)
		}
	}
}

func (e *Engine) handleIncomingDigest(d transport.IncomingDigest) {
	e.registry.Add(d.FromPeer)
	if err := e.registry.UpdateDigest(d.FromPeer.ID, d.Digest.ToClock()); err != nil {
		e.logger.Debugf("update digest for %s: %v", d.FromPeer.ID, err)
	}

	missing, err := e.missingEvents(d.Digest)
	if err != nil {
		e.logger.Warnf("computing response digest for %s: %v", d.FromPeer.ID, err)
		missing = nil
	}

	ownDigest, err := e.buildDigest()
	if err != nil {
		e.logger.Warnf("building own digest: %v", err)
	}

	if err := d.Respond(transport.DigestResponse{Events: missing, OwnDigest: ownDigest}); err != nil {
		e.logger.Debugf("responding to %s: %v", d.FromPeer.ID, err)
	}
}

func (e *Engine) handleIncomingEvents(ie transport.IncomingEvents) {
	e.registry.Add(ie.FromPeer)
	e.applyReceivedEvents(ie.Batch.Events)
}

// applyReceivedEvents validates and idempotently stores each event,
// tolerating arrival out of causal or timestamp order (spec §4.5.6),
// and only publishes to onEventReceived the ones genuinely new to this
// node.
func (e *Engine) applyReceivedEvents(events []event.Event) {
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			e.logger.Warnf("dropping malformed event %q: %v", ev.ID, err)
			continue
		}

		has, err := e.store.HasEvent(ev.ID)
		if err != nil {
			e.logger.Warnf("checking event %q: %v", ev.ID, err)
			continue
		}
		if has {
			continue
		}

		if err := e.store.SaveEvent(ev); err != nil {
			e.logger.Warnf("saving event %q: %v", ev.ID, err)
			continue
		}

		e.mu.Lock()
		if ev.Timestamp > e.clock.Get(ev.NodeID) {
			e.clock.Set(ev.NodeID, ev.Timestamp)
		}
		e.mu.Unlock()

		e.receivedBus.Publish(ev)
	}
}

// buildDigest summarizes the store's current state as node -> highest
// timestamp seen, the GossipDigest form of the local vector clock.
func (e *Engine) buildDigest() (transport.Digest, error) {
	origins, err := e.store.Origins()
	if err != nil {
		return nil, err
	}

	d := make(transport.Digest, len(origins))
	for _, origin := range origins {
		ts, err := e.store.GetLatestTimestampForNode(origin)
		if err != nil {
			return nil, err
		}
		d[origin] = ts
	}
	return d, nil
}

// missingEvents returns, in deterministic (nodeId, timestamp) order,
// every locally-stored event a peer advertising theirDigest doesn't yet
// have. Each origin's contribution is capped at
// cfg.MaxEventsPerExchange independently (spec §4.5.5 step 1, §8's
// "truncated to maxEventsPerExchange per origin"), so one very stale
// origin can't crowd out another's events in the same exchange.
func (e *Engine) missingEvents(theirDigest transport.Digest) ([]event.Event, error) {
	origins, err := e.store.Origins()
	if err != nil {
		return nil, err
	}

	var out []event.Event
	for _, origin := range origins {
		since := theirDigest[origin]
		events, err := e.store.GetEventsSince(origin, since)
		if err != nil {
			return nil, err
		}
		if len(events) > e.cfg.MaxEventsPerExchange {
			e.logger.Debugf("truncating %s's contribution from %d to %d events", origin, len(events), e.cfg.MaxEventsPerExchange)
			events = events[:e.cfg.MaxEventsPerExchange]
		}
		out = append(out, events...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}
		return out[i].Timestamp < out[j].Timestamp
	})
	return out, nil
}
