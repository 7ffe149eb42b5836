// Package ws pushes newly raised alerts to connected dashboard clients.
package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"vitals-service/internal/logging"
	"vitals-service/internal/models"
)

// Hub tracks WebSocket connections per user.
type Hub struct {
	mu     sync.Mutex
	conns  map[int64]map[*websocket.Conn]bool
	logger *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		conns:  make(map[int64]map[*websocket.Conn]bool),
		logger: logger,
	}
}

// Register adds a connection for a user.
func (h *Hub) Register(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]bool)
	}
	h.conns[userID][conn] = true
	h.logger.Infof("WebSocket client connected for user %d (%d total)", userID, len(h.conns[userID]))
}

// Unregister removes a connection for a user.
func (h *Hub) Unregister(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Broadcast pushes an alert to every connection of its user. Connections
// that fail to write are dropped.
func (h *Hub) Broadcast(alert models.Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[alert.UserID] {
		if err := conn.WriteJSON(alert); err != nil {
			h.logger.Warnf("WebSocket write to user %d failed, dropping client: %v", alert.UserID, err)
			conn.Close()
			delete(h.conns[alert.UserID], conn)
		}
	}
}
