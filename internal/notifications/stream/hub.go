// Package stream pushes due notifications to websocket subscribers. The Hub
// is both the HTTP handler behind GET /stream and a delivery sink.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"superiorweather/internal/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Event is the JSON frame written to subscribers.
type Event struct {
	Type         string                      `json:"type"`
	Notification types.ScheduledNotification `json:"notification"`
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex // gorilla allows one concurrent writer
	done chan struct{}
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub tracks connected subscribers.
type Hub struct {
	upgrader websocket.Upgrader
	logger   types.Logger

	mu      sync.Mutex
	clients map[string]*client
}

// NewHub creates a Hub. allowedOrigins lists the Origin values accepted
// ("*" accepts any). Empty keeps gorilla's same-origin check: requests
// without an Origin header or whose Origin host matches the Host header.
func NewHub(logger types.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		logger:  logger,
		clients: make(map[string]*client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		}
	}
	return h
}

// ServeHTTP upgrades the request and keeps the subscriber registered until
// it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	c := &client{id: uuid.New().String(), conn: conn, done: make(chan struct{})}
	h.add(c)
	h.logger.Info("stream subscriber connected", "subscriber_id", c.id, "remote_addr", r.RemoteAddr)

	go h.pingLoop(c)
	h.readLoop(c)

	h.remove(c.id)
	h.logger.Info("stream subscriber disconnected", "subscriber_id", c.id)
}

// readLoop discards inbound frames and returns once the peer goes away.
func (h *Hub) readLoop(c *client) {
	defer close(c.done)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) pingLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Name identifies the sink in metrics and logs.
func (h *Hub) Name() string { return "stream" }

// Deliver broadcasts n to every subscriber. Subscribers whose write fails are
// dropped. With no subscribers it is a no-op; it fails only when every
// subscriber failed.
func (h *Hub) Deliver(ctx context.Context, n types.ScheduledNotification) error {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	event := Event{Type: "notification", Notification: n}
	var errs []error
	for _, c := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.writeJSON(event); err != nil {
			errs = append(errs, fmt.Errorf("subscriber %s: %w", c.id, err))
			h.remove(c.id)
		}
	}

	if len(errs) == len(targets) {
		return types.NewAppError(types.ErrCodeUpstreamDelivery, "no stream subscriber accepted the notification", errors.Join(errs...))
	}
	if len(errs) > 0 {
		h.logger.Warn("dropped stream subscribers", "count", len(errs))
	}
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()
	for _, c := range clients {
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		c.conn.Close()
	}
}
