package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/notification"
)

const maxEventConnections = 32

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans run events out to websocket subscribers.
type Hub struct {
	mutex       sync.Mutex
	connections map[*websocket.Conn]bool
	logger      *logging.Logger
	// serializes writers; a websocket connection allows only one at a time
	writeMu sync.Mutex
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{connections: make(map[*websocket.Conn]bool), logger: logger}
}

// Add registers conn. It returns false when the hub is full.
func (h *Hub) Add(conn *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if len(h.connections) >= maxEventConnections {
		h.logger.Warnf("Max event connections reached, rejecting %s", conn.RemoteAddr())
		return false
	}
	h.connections[conn] = true
	h.logger.Infof("Added event connection %s (total: %d)", conn.RemoteAddr(), len(h.connections))
	return true
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.connections[conn]; ok {
		delete(h.connections, conn)
		_ = conn.Close()
		h.logger.Infof("Removed event connection %s (remaining: %d)", conn.RemoteAddr(), len(h.connections))
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}

// Publish sends e to every subscriber. Slow or broken connections are
// dropped after a short write deadline.
func (h *Hub) Publish(e notification.Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		h.logger.Errorf("Failed to encode event %s: %v", e.Type, err)
		return
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, conn := range h.snapshot() {
		_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Errorf("Failed to send event to %s: %v", conn.RemoteAddr(), err)
			h.Remove(conn)
		}
	}
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	conns := make([]*websocket.Conn, 0, len(h.connections))
	for conn := range h.connections {
		conns = append(conns, conn)
	}
	return conns
}

// serve keeps conn registered until the client goes away.
func (h *Hub) serve(conn *websocket.Conn) {
	if !h.Add(conn) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many subscribers"))
		_ = conn.Close()
		return
	}
	defer h.Remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
