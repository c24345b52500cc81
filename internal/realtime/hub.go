// Package realtime provides a websocket hub pushing live events (toasts,
// celebrations, notification badges) to connected clients.
package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/classquest/classquest/internal/metrics"
	"github.com/classquest/classquest/pkg/logger"
)

// Event is a single frame pushed to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Event type constants.
const (
	EventMissionCompleted    = "mission_completed"
	EventAchievementUnlocked = "achievement_unlocked"
	EventNotification        = "notification"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

// client is one connected websocket subscriber.
type client struct {
	userID uint
	conn   *websocket.Conn
	send   chan Event
}

// Hub tracks connected subscribers per user and fans events out to them.
// Publishing never blocks: subscribers that cannot keep up are dropped.
type Hub struct {
	mu       sync.RWMutex
	clients  map[uint]map[*client]struct{}
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHub creates a new hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[uint]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Serve upgrades an HTTP request to a websocket subscription for a user.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan Event, sendBufferSize),
	}
	h.register(c)

	go c.writeLoop(h)
	go c.readLoop(h)

	return nil
}

// PublishToUser sends an event to every connection of one user.
func (h *Hub) PublishToUser(userID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- event:
		default:
			// Subscriber is not draining its buffer; close it rather than
			// block the publisher.
			go h.unregister(c)
		}
	}
}

// SubscriberCount returns the number of open connections.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, conns := range h.clients {
		count += len(conns)
	}
	return count
}

// Close terminates all connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.clients {
		for c := range conns {
			close(c.send)
			_ = c.conn.Close()
		}
	}
	h.clients = make(map[uint]map[*client]struct{})
	metrics.SetRealtimeSubscribers(0)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}

	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	metrics.SetRealtimeSubscribers(total)

	h.log.Debug().Uint("user_id", c.userID).Msg("Realtime subscriber connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}

	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
	_ = c.conn.Close()

	total := 0
	for _, remaining := range h.clients {
		total += len(remaining)
	}
	metrics.SetRealtimeSubscribers(total)

	h.log.Debug().Uint("user_id", c.userID).Msg("Realtime subscriber disconnected")
}

// writeLoop drains the send channel onto the websocket connection.
func (c *client) writeLoop(h *Hub) {
	for event := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(event); err != nil {
			h.unregister(c)
			return
		}
	}
}

// readLoop discards inbound frames and detects closed connections.
func (c *client) readLoop(h *Hub) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
