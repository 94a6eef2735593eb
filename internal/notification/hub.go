// Package notification pushes live events to dashboard sessions over websockets.
package notification

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bgref/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Event is the JSON frame delivered to clients.
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	CreatedAt time.Time   `json:"createdAt"`
}

type client struct {
	walletID int64
	conn     *websocket.Conn
	send     chan []byte
}

// Hub tracks open connections per wallet.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
	logger  logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*client]struct{}),
		logger:  log,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.walletID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.walletID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked drops c and closes its send channel exactly once.
func (h *Hub) removeLocked(c *client) {
	set, ok := h.clients[c.walletID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.walletID)
	}
}

// Count returns the number of open sessions for walletID.
func (h *Hub) Count(walletID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[walletID])
}

// Publish sends an event to every session of walletID. Clients whose buffer
// is full are disconnected.
func (h *Hub) Publish(walletID int64, eventType string, payload interface{}) {
	data, err := json.Marshal(Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("Failed to encode event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[walletID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Dropping slow websocket client", map[string]interface{}{"wallet_id": walletID})
			h.removeLocked(c)
		}
	}
}

// Serve runs conn for walletID until the peer goes away. It blocks.
func (h *Hub) Serve(conn *websocket.Conn, walletID int64) {
	c := &client{
		walletID: walletID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

// readPump only services control frames; clients do not send data.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket closed", map[string]interface{}{
					"wallet_id": c.walletID,
					"error":     err.Error(),
				})
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
