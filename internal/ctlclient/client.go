// Package ctlclient is a small Go SDK for talking to a gossipkv node's
// operator HTTP surface — the same "wrap raw HTTP in a clean Go API"
// shape the teacher's internal/client package uses, pointed at this
// node's own status endpoints rather than its internal protocol ones.
package ctlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gossipkv/internal/event"
)

// Client talks to one gossipkv node's operator API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client against baseURL (e.g. "http://localhost:8090").
// A zero timeout defaults to 10s — never call the network without one.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

// StatusResponse reports a node's identity and clock as seen by its own
// operator API.
type StatusResponse struct {
	NodeID string            `json:"nodeId"`
	Clock  map[string]uint64 `json:"clock"`
	Peers  int               `json:"peers"`
}

// Status fetches the node's current identity, clock, and peer count.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.getJSON(ctx, "/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events fetches every event the node currently holds.
func (c *Client) Events(ctx context.Context) ([]event.Event, error) {
	var out []event.Event
	if err := c.getJSON(ctx, "/events", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PublishRequest is the body for Publish.
type PublishRequest struct {
	Payload map[string]any `json:"payload"`
}

// Publish creates a new locally-originated event on the node.
func (c *Client) Publish(ctx context.Context, payload map[string]any) (*event.Event, error) {
	body, _ := json.Marshal(PublishRequest{Payload: payload})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("publish request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out event.Event
	return &out, json.NewDecoder(resp.Body).Decode(&out)
}

// Peers fetches the node's current peer roster.
func (c *Client) Peers(ctx context.Context) (string, error) {
	return c.getRaw(ctx, "/peers")
}

// AddPeer registers a new peer with the node.
func (c *Client) AddPeer(ctx context.Context, id, address string) error {
	body, _ := json.Marshal(map[string]string{"id": id, "address": address})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/peers", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("add peer request failed: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// ─── internals ─────────────────────────────────────────────────────────

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) getRaw(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}
	body, err := io.ReadAll(resp.Body)
	return string(body), err
}

// APIError carries the HTTP status and message returned by a node.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
