package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/events"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Hub fans change events out to the websocket sessions connected to this
// instance. Every session folds events through its own View, so an event
// that arrives twice (local publish plus a relay) is written once.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	actor model.Actor
	view  *View
	send  chan []byte
	once  sync.Once
}

func (c *client) close() { c.once.Do(func() { close(c.send) }) }

// NewHub builds a hub. A nil checkOrigin accepts every origin.
func NewHub(logger *slog.Logger, checkOrigin func(*http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		clients:  map[*client]struct{}{},
	}
}

// Clients is the number of connected sessions.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Publish(_ context.Context, e events.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("encode feed event", "event_type", e.Type, "err", err)
		return
	}

	// Exclusive so a slow client is closed by one publisher while no other
	// publisher is sending to it.
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !visible(c.actor, e) || !c.view.Apply(e) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("feed client too slow, disconnecting", "actor_id", c.actor.ID)
			delete(h.clients, c)
			c.close()
		}
	}
}

// visible lets customers see their own appointments and every capacity
// change; admins see everything.
func visible(actor model.Actor, e events.Event) bool {
	if actor.IsAdmin() || e.Slot != nil {
		return true
	}
	return actor.Owns(e.CustomerID())
}

// ServeWS upgrades the request and streams events until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("feed upgrade failed", "err", err)
		return
	}
	c := &client{actor: actor, view: NewView(), send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(conn, c)
	h.readLoop(conn)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// readLoop discards client frames and keeps the read deadline moving.
func (h *Hub) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
