// Package httptransport is a Gin-served, net/http-dialed realization of
// transport.Transport, for nodes that gossip across real network links.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gossipkv/internal/transport"
)

// Server hosts the inbound side of the transport: a Gin router exposing
// the digest-exchange and event-push endpoints peers dial into.
type Server struct {
	self    transport.Peer
	engine  *gin.Engine
	httpSrv *http.Server
	digests chan transport.IncomingDigest
	events  chan transport.IncomingEvents
}

// NewServer builds the Gin router for self, mirroring the teacher's
// Logger+Recovery middleware stack and route-group layout.
func NewServer(self transport.Peer) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		self:    self,
		engine:  engine,
		digests: make(chan transport.IncomingDigest, 64),
		events:  make(chan transport.IncomingEvents, 64),
	}

	engine.Use(requestLogger(), recovery())

	gossip := engine.Group("/gossip")
	gossip.POST("/digest", s.handleDigest)
	gossip.POST("/events", s.handleEvents)
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	return s
}

// requestLogger logs method, path, status, and latency, the same shape as
// the teacher's api.Logger middleware.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[%s] %s %s | %d | %s",
			c.Request.Method, c.Request.URL.Path, c.ClientIP(),
			c.Writer.Status(), time.Since(start))
	}
}

// recovery converts a handler panic into a 500 instead of crashing the
// node's gossip round.
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC recovered in httptransport: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

func (s *Server) handleDigest(c *gin.Context) {
	var req struct {
		NodeID  string             `json:"nodeId" binding:"required"`
		Address string             `json:"address"`
		Digest  transport.Digest   `json:"digest" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	respCh := make(chan transport.DigestResponse, 1)
	s.digests <- transport.IncomingDigest{
		FromPeer: transport.Peer{ID: req.NodeID, Address: req.Address},
		Digest:   req.Digest,
		Respond: func(r transport.DigestResponse) error {
			respCh <- r
			return nil
		},
	}

	select {
	case r := <-respCh:
		c.JSON(http.StatusOK, r)
	case <-c.Request.Context().Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "digest exchange timed out"})
	}
}

func (s *Server) handleEvents(c *gin.Context) {
	var req struct {
		NodeID  string               `json:"nodeId" binding:"required"`
		Address string               `json:"address"`
		Batch   transport.EventBatch `json:"batch" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.events <- transport.IncomingEvents{
		FromPeer: transport.Peer{ID: req.NodeID, Address: req.Address},
		Batch:    req.Batch,
	}
	c.Status(http.StatusNoContent)
}

// IncomingDigests and IncomingEvents expose the server's inbound streams
// to a Transport wrapper.
func (s *Server) IncomingDigests() <-chan transport.IncomingDigest { return s.digests }
func (s *Server) IncomingEvents() <-chan transport.IncomingEvents  { return s.events }

// ListenAndServe starts serving on addr; it blocks until Shutdown is
// called, mirroring the teacher's cmd/server main-loop shape.
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.engine}
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Transport is the client-facing half: it dials peer addresses with
// net/http, the same request/decode/checkStatus shape the teacher's
// internal/client.Client uses.
type Transport struct {
	self       transport.Peer
	server     *Server
	httpClient *http.Client
	addr       string
}

// New builds a client Transport together with its own Server; addr is
// the address this node's server listens on (used to start/stop serving).
func New(self transport.Peer, addr string) *Transport {
	return &Transport{
		self:       self,
		server:     NewServer(self),
		httpClient: &http.Client{},
		addr:       addr,
	}
}

func (t *Transport) Initialize(ctx context.Context) error {
	go func() {
		if err := t.server.ListenAndServe(t.addr); err != nil {
			log.Printf("httptransport: server exited: %v", err)
		}
	}()
	return nil
}

func (t *Transport) Shutdown(ctx context.Context) error {
	return t.server.Shutdown(ctx)
}

type digestWireRequest struct {
	NodeID  string           `json:"nodeId"`
	Address string           `json:"address"`
	Digest  transport.Digest `json:"digest"`
}

type eventsWireRequest struct {
	NodeID  string               `json:"nodeId"`
	Address string               `json:"address"`
	Batch   transport.EventBatch `json:"batch"`
}

func (t *Transport) SendDigest(ctx context.Context, peer transport.Peer, digest transport.Digest, timeout time.Duration) (transport.DigestResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, _ := json.Marshal(digestWireRequest{NodeID: t.self.ID, Address: t.self.Address, Digest: digest})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/gossip/digest", peer.Address), bytes.NewReader(body))
	if err != nil {
		return transport.DigestResponse{}, &transport.Error{Kind: transport.KindMalformed, Peer: peer, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return transport.DigestResponse{}, classifyDialErr(peer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return transport.DigestResponse{}, &transport.Error{Kind: transport.KindMalformed, Peer: peer, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out transport.DigestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return transport.DigestResponse{}, &transport.Error{Kind: transport.KindMalformed, Peer: peer, Err: err}
	}
	return out, nil
}

func (t *Transport) SendEvents(ctx context.Context, peer transport.Peer, batch transport.EventBatch, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, _ := json.Marshal(eventsWireRequest{NodeID: t.self.ID, Address: t.self.Address, Batch: batch})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/gossip/events", peer.Address), bytes.NewReader(body))
	if err != nil {
		return &transport.Error{Kind: transport.KindMalformed, Peer: peer, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return classifyDialErr(peer, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return &transport.Error{Kind: transport.KindMalformed, Peer: peer, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

func (t *Transport) IncomingDigests() <-chan transport.IncomingDigest { return t.server.IncomingDigests() }
func (t *Transport) IncomingEvents() <-chan transport.IncomingEvents  { return t.server.IncomingEvents() }

// DiscoverPeers has no network-level implementation for plain HTTP; peers
// must be supplied out of band (static config, a seed list). This
// transport only makes discovery available where an actual mechanism
// exists, so it returns an empty set rather than pretending otherwise.
func (t *Transport) DiscoverPeers(ctx context.Context) ([]transport.Peer, error) {
	return nil, nil
}

func (t *Transport) IsPeerReachable(ctx context.Context, peer transport.Peer) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peer.Address+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusNoContent
}

func classifyDialErr(peer transport.Peer, err error) error {
	if urlErr, ok := err.(interface{ Timeout() bool }); ok && urlErr.Timeout() {
		return &transport.Error{Kind: transport.KindTimeout, Peer: peer, Err: err}
	}
	return &transport.Error{Kind: transport.KindPeerUnreachable, Peer: peer, Err: err}
}
