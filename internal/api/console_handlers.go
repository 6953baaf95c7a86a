package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/blockpanel/panel/internal/service"
	"github.com/blockpanel/panel/pkg/logger"
)

const logPollInterval = 2 * time.Second

// ConsoleHandler serves the live console websocket: container log lines go
// out, RCON commands come in.
type ConsoleHandler struct {
	lifecycle *service.LifecycleService
	upgrader  websocket.Upgrader
}

func NewConsoleHandler(lifecycle *service.LifecycleService, allowedOrigin string) *ConsoleHandler {
	return &ConsoleHandler{
		lifecycle: lifecycle,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// ConsoleMessage is the websocket frame format in both directions
type ConsoleMessage struct {
	Type         string `json:"type"` // "log", "command", "response"
	Content      string `json:"content"`
	RconPort     int    `json:"rconPort,omitempty"`
	RconPassword string `json:"rconPassword,omitempty"`
}

// consoleConn serializes outbound frames. gorilla/websocket supports at most
// one concurrent writer per connection, and both the reader pump (command
// responses) and the log pump write to the same connection.
type consoleConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *consoleConn) write(msg ConsoleMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// HandleConsole handles GET /api/servers/:id/console
func (h *ConsoleHandler) HandleConsole(c *gin.Context) {
	serverID := c.Param("id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Failed to upgrade console websocket", err, map[string]interface{}{
			"id": serverID,
		})
		return
	}
	defer conn.Close()

	logger.Info("Console websocket connected", map[string]interface{}{"id": serverID})

	ws := &consoleConn{conn: conn}
	done := make(chan struct{})

	// Reader pump: commands from the client
	go func() {
		defer close(done)
		for {
			var msg ConsoleMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("Console websocket read error", map[string]interface{}{
						"id":    serverID,
						"error": err.Error(),
					})
				}
				return
			}
			if msg.Type != "command" {
				continue
			}

			result := h.lifecycle.ExecuteCommand(serverID, msg.Content, msg.RconPort, msg.RconPassword)
			respType := "response"
			if !result.Success {
				respType = "error"
			}
			if err := ws.write(ConsoleMessage{Type: respType, Content: result.Output}); err != nil {
				return
			}
		}
	}()

	// Writer pump: poll the log tail and forward only what is new
	ticker := time.NewTicker(logPollInterval)
	defer ticker.Stop()

	var since time.Time
	for {
		pollStart := time.Now()
		content := h.lifecycle.LogsSince(serverID, since, 100)
		since = pollStart

		if content != "" {
			if err := ws.write(ConsoleMessage{Type: "log", Content: content}); err != nil {
				return
			}
		}

		select {
		case <-ticker.C:
		case <-done:
			logger.Info("Console websocket disconnected", map[string]interface{}{"id": serverID})
			return
		}
	}
}
