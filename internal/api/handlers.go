// Package api wires up the Gin HTTP router exposing a node's operator
// surface: status, the event log, publishing new events, and the peer
// roster. This is distinct from the node-to-node gossip protocol
// endpoints (see internal/transport/httptransport), which are never
// meant for a human or an operator CLI to call directly.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gossipkv/internal/gossip"
	"gossipkv/internal/transport"
)

// Handler holds the dependencies every operator route needs. It reaches
// the store and peer registry only through the engine's own public API
// (EventStore, Peers, AddPeer, RemovePeer), the same way any other
// engine consumer would.
type Handler struct {
	engine *gossip.Engine
	nodeID string
}

// NewHandler creates a Handler.
func NewHandler(engine *gossip.Engine, nodeID string) *Handler {
	return &Handler{engine: engine, nodeID: nodeID}
}

// Register mounts all operator routes on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/status", h.Status)
	r.GET("/events", h.ListEvents)
	r.POST("/events", h.PublishEvent)
	r.GET("/peers", h.ListPeers)
	r.POST("/peers", h.AddPeer)
	r.DELETE("/peers/:id", h.RemovePeer)
	r.GET("/health", h.Health)
}

// Status handles GET /status.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"nodeId": h.nodeID,
		"clock":  h.engine.Clock(),
		"peers":  len(h.engine.Peers()),
	})
}

// ListEvents handles GET /events.
func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.engine.EventStore().GetAllEvents()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}

// PublishEvent handles POST /events.
// Body: {"payload": {...}}
func (h *Handler) PublishEvent(c *gin.Context) {
	var body struct {
		Payload map[string]any `json:"payload"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev, err := h.engine.CreateEvent(body.Payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ev)
}

// ListPeers handles GET /peers.
func (h *Handler) ListPeers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"peers": h.engine.Peers()})
}

// AddPeer handles POST /peers.
// Body: {"id": "<peerId>", "address": "<gossipURL>"}
func (h *Handler) AddPeer(c *gin.Context) {
	var body struct {
		ID      string `json:"id" binding:"required"`
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.engine.AddPeer(transport.Peer{ID: body.ID, Address: body.Address})
	c.JSON(http.StatusOK, gin.H{"added": body.ID})
}

// RemovePeer handles DELETE /peers/:id.
func (h *Handler) RemovePeer(c *gin.Context) {
	id := c.Param("id")
	removed := h.engine.RemovePeer(id)
	c.JSON(http.StatusOK, gin.H{"removed": id, "existed": removed})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nodeId": h.nodeID, "status": "ok"})
}
