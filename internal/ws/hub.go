// Package ws pushes item change events to connected clients, so a phone and
// a kitchen tablet looking at the same account stay in sync.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pantrylog/pantrylog/internal/model"
)

// Event types pushed to clients.
const (
	EventItemCreated  = "item_created"
	EventItemUpdated  = "item_updated"
	EventItemDeleted  = "item_deleted"
	EventItemExpiring = "item_expiring"
)

// Event is a single change notification. Deleted items carry only the ID.
type Event struct {
	Type string      `json:"type"`
	Item *model.Item `json:"item,omitempty"`
	ID   string      `json:"id,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Token auth happens before the upgrade; origin adds nothing here.
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans item change events out to every connection of the affected user.
// It implements the lifecycle observer interface.
type Hub struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:     log,
		clients: make(map[int64]map[*client]struct{}),
	}
}

// ItemCreated implements the lifecycle observer.
func (h *Hub) ItemCreated(item *model.Item) {
	h.broadcast(item.UserID, Event{Type: EventItemCreated, Item: item, ID: item.ID})
}

// ItemUpdated implements the lifecycle observer.
func (h *Hub) ItemUpdated(item *model.Item) {
	h.broadcast(item.UserID, Event{Type: EventItemUpdated, Item: item, ID: item.ID})
}

// ItemDeleted implements the lifecycle observer.
func (h *Hub) ItemDeleted(userID int64, id string) {
	h.broadcast(userID, Event{Type: EventItemDeleted, ID: id})
}

// ItemExpiring implements the lifecycle observer.
func (h *Hub) ItemExpiring(item *model.Item) {
	h.broadcast(item.UserID, Event{Type: EventItemExpiring, Item: item, ID: item.ID})
}

func (h *Hub) broadcast(userID int64, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshaling ws event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			// Slow consumer; it will catch up on its next list fetch.
			h.log.Warn("ws buffer full, dropping event",
				zap.Int64("user_id", userID), zap.String("type", ev.Type))
		}
	}
}

func (h *Hub) add(userID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
}

func (h *Hub) remove(userID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.clients[userID]; ok {
		if _, ok := m[c]; !ok {
			return
		}
		delete(m, c)
		if len(m) == 0 {
			delete(h.clients, userID)
		}
		close(c.send)
	}
}

// Serve upgrades the request and pumps events to the client until it
// disconnects. The caller has already authenticated userID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.add(userID, c)

	go h.writePump(c)
	h.readPump(userID, c)
}

// readPump drains the connection. Clients never send application data; the
// reads exist to notice disconnects and answer pings.
func (h *Hub) readPump(userID int64, c *client) {
	defer func() {
		h.remove(userID, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
