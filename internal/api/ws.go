package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"vitals-service/internal/logging"
	"vitals-service/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamAlerts handles GET /ws/alerts: upgrades the connection and registers
// it with the hub until the client disconnects.
func StreamAlerts(hub *ws.Hub, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := queryUserID(c)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Errorf("WebSocket upgrade failed: %v", err)
			return
		}

		hub.Register(userID, conn)
		defer func() {
			hub.Unregister(userID, conn)
			conn.Close()
		}()

		// Drain client frames to detect disconnect; the hub does all writes.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
