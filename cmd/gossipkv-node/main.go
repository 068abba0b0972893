// cmd/gossipkv-node is the entrypoint for a single gossip engine node.
//
// Configuration is entirely via flags so one binary can serve any role
// in a cluster.
//
// Example — three-node local cluster:
//
//	./gossipkv-node --id node1 --addr :8090 --gossip-addr :9090 --data-dir /tmp/g1 \
//	                 --peers node2=http://localhost:9091,node3=http://localhost:9092
//	./gossipkv-node --id node2 --addr :8091 --gossip-addr :9091 --data-dir /tmp/g2 \
//	                 --peers node1=http://localhost:9090,node3=http://localhost:9092
//	./gossipkv-node --id node3 --addr :8092 --gossip-addr :9092 --data-dir /tmp/g3 \
//	                 --peers node1=http://localhost:9090,node2=http://localhost:9091
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"gossipkv/internal/api"
	"gossipkv/internal/event"
	"gossipkv/internal/eventstore"
	"gossipkv/internal/gossip"
	"gossipkv/internal/hashring"
	"gossipkv/internal/logging"
	"gossipkv/internal/peer"
	"gossipkv/internal/transport"
	"gossipkv/internal/transport/httptransport"
)

func main() {
	nodeID := flag.String("id", "node1", "Unique node identifier")
	addr := flag.String("addr", ":8090", "Operator API listen address (host:port)")
	gossipAddr := flag.String("gossip-addr", ":9090", "Gossip protocol listen address (host:port)")
	selfURL := flag.String("self-url", "", "Gossip protocol URL peers should use to reach this node (defaults to http://localhost<gossip-addr>)")
	dataDir := flag.String("data-dir", "/tmp/gossipkv", "Directory for the WAL and snapshots; empty uses an in-memory store")
	peersFlag := flag.String("peers", "", "Comma-separated list of seed peers: id=gossipURL")
	gossipInterval := flag.Duration("gossip-interval", 1*time.Second, "Period between gossip rounds")
	fanout := flag.Int("fanout", 3, "Number of peers contacted per round")
	useRing := flag.Bool("ring-sampler", false, "Use a consistent-hash ring for peer fanout selection instead of uniform random")
	idScheme := flag.String("id-scheme", "sequential", "Event id generation scheme: sequential (<nodeId>-<timestamp>) or uuid (<nodeId>-<uuid>)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := logging.NewDefault(*debug)

	store, closeStore := openStore(*dataDir, *nodeID, logger)
	defer closeStore()

	self := transport.Peer{ID: *nodeID, Address: resolveSelfURL(*selfURL, *gossipAddr)}
	tr := httptransport.New(self, *gossipAddr)

	registry := peer.New()
	if *peersFlag != "" {
		for _, entry := range strings.Split(*peersFlag, ",") {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				log.Fatalf("invalid peer format %q: expected id=gossipURL", entry)
			}
			registry.Add(transport.Peer{ID: parts[0], Address: parts[1]})
		}
	}

	var sampler gossip.PeerSampler
	if *useRing {
		ring := hashring.New(0)
		ring.AddPeer(*nodeID)
		for _, p := range registry.List() {
			ring.AddPeer(p.ID)
		}
		sampler = ring
	}

	cfg := gossip.DefaultConfig(*nodeID)
	cfg.GossipInterval = *gossipInterval
	cfg.Fanout = *fanout
	switch *idScheme {
	case "sequential":
		cfg.IDFunc = event.FormatID
	case "uuid":
		cfg.IDFunc = event.UUIDFormatID
	default:
		log.Fatalf("invalid --id-scheme %q: want sequential or uuid", *idScheme)
	}

	engine, err := gossip.New(cfg, store, tr, registry, sampler, logger)
	if err != nil {
		log.Fatalf("create engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		log.Fatalf("start engine: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(*nodeID), api.Recovery(*nodeID))
	api.NewHandler(engine, *nodeID).Register(router)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("node %s: operator API on %s, gossip protocol on %s", *nodeID, *addr, *gossipAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("operator API error: %v", err)
		}
	}()

	if durable, ok := store.(*eventstore.Durable); ok {
		go func() {
			ticker := time.NewTicker(60 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				if err := durable.Snapshot(); err != nil {
					logger.Warnf("snapshot error: %v", err)
				} else {
					logger.Debug("snapshot saved")
				}
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("shutting down node %s", *nodeID)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := engine.Stop(shutdownCtx); err != nil {
		logger.Warnf("engine stop error: %v", err)
	}
	if durable, ok := store.(*eventstore.Durable); ok {
		if err := durable.Snapshot(); err != nil {
			logger.Warnf("final snapshot error: %v", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("operator API shutdown error: %v", err)
	}
}

func openStore(dataDir, nodeID string, logger logging.Logger) (eventstore.Store, func()) {
	if dataDir == "" {
		store := eventstore.NewMemory()
		return store, func() { _ = store.Close() }
	}

	nodeDataDir := fmt.Sprintf("%s/%s", dataDir, nodeID)
	store, err := eventstore.NewDurable(nodeDataDir)
	if err != nil {
		log.Fatalf("open durable store: %v", err)
	}
	return store, func() { _ = store.Close() }
}

func resolveSelfURL(selfURL, gossipAddr string) string {
	if selfURL != "" {
		return selfURL
	}
	return "http://localhost" + gossipAddr
}
