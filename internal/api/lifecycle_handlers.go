package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blockpanel/panel/internal/monitoring"
)

// AllStatuses handles GET /api/servers/status
func (h *Handler) AllStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, h.lifecycle.AllStatuses())
}

// Status handles GET /api/servers/:id/status
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": h.lifecycle.Status(c.Param("id"))})
}

// Resources handles GET /api/servers/:id/resources
func (h *Handler) Resources(c *gin.Context) {
	c.JSON(http.StatusOK, h.lifecycle.Resources(c.Param("id")))
}

// Logs handles GET /api/servers/:id/logs?tail=&since=
func (h *Handler) Logs(c *gin.Context) {
	tail, _ := strconv.Atoi(c.Query("tail"))

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}

	logs := h.lifecycle.LogsSince(c.Param("id"), since, tail)
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// StartServer handles POST /api/servers/:id/start
func (h *Handler) StartServer(c *gin.Context) {
	ok := h.lifecycle.StartServer(c.Param("id"))
	monitoring.RecordLifecycleCommand("start", ok)
	writeActionResult(c, ok)
}

// StopServer handles POST /api/servers/:id/stop
func (h *Handler) StopServer(c *gin.Context) {
	ok := h.lifecycle.StopServer(c.Param("id"))
	monitoring.RecordLifecycleCommand("stop", ok)
	writeActionResult(c, ok)
}

// RestartServer handles POST /api/servers/:id/restart
func (h *Handler) RestartServer(c *gin.Context) {
	ok := h.lifecycle.RestartServer(c.Param("id"))
	monitoring.RecordLifecycleCommand("restart", ok)
	writeActionResult(c, ok)
}

// ClearData handles POST /api/servers/:id/clear-data
func (h *Handler) ClearData(c *gin.Context) {
	writeActionResult(c, h.lifecycle.ClearData(c.Param("id")))
}

// CommandRequest is the body for a one-shot RCON command
type CommandRequest struct {
	Command      string `json:"command" binding:"required"`
	RconPort     int    `json:"rconPort"`
	RconPassword string `json:"rconPassword"`
}

// ExecuteCommand handles POST /api/servers/:id/command
func (h *Handler) ExecuteCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.lifecycle.ExecuteCommand(c.Param("id"), req.Command, req.RconPort, req.RconPassword)
	c.JSON(http.StatusOK, result)
}

// writeActionResult reports a lifecycle action outcome. Failures are expected
// operational states (daemon down, nothing deployed yet), not server errors.
func writeActionResult(c *gin.Context, ok bool) {
	c.JSON(http.StatusOK, gin.H{"success": ok})
}
