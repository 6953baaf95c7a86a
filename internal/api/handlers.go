package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blockpanel/panel/internal/models"
	"github.com/blockpanel/panel/internal/service"
	"github.com/blockpanel/panel/internal/store"
)

// Handler serves the server config and lifecycle endpoints
type Handler struct {
	store     *store.Store
	lifecycle *service.LifecycleService
}

func NewHandler(st *store.Store, lifecycle *service.LifecycleService) *Handler {
	return &Handler{store: st, lifecycle: lifecycle}
}

// CreateServerRequest is the body for creating a server config: the new id
// plus any subset of config fields. Unset fields get defaults.
type CreateServerRequest struct {
	ID string `json:"id" binding:"required"`
	models.ServerConfigUpdate
}

// ListServers handles GET /api/servers
func (h *Handler) ListServers(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.List())
}

// CreateServer handles POST /api/servers
func (h *Handler) CreateServer(c *gin.Context) {
	var req CreateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.store.Create(req.ID, &req.ServerConfigUpdate)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

// GetServer handles GET /api/servers/:id
func (h *Handler) GetServer(c *gin.Context) {
	cfg, err := h.store.Get(c.Param("id"))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateServer handles PUT /api/servers/:id
func (h *Handler) UpdateServer(c *gin.Context) {
	var update models.ServerConfigUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.store.Update(c.Param("id"), &update)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// DeleteServer handles DELETE /api/servers/:id. It removes the config record,
// the container group and the data directory.
func (h *Handler) DeleteServer(c *gin.Context) {
	deleted, err := h.lifecycle.DeleteServer(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// writeStoreError maps store and validation errors onto HTTP statuses
func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
	case errors.Is(err, store.ErrIDExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidID),
		errors.Is(err, models.ErrInvalidServerType),
		errors.Is(err, models.ErrInvalidRestartPolicy),
		errors.Is(err, models.ErrInvalidPort):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
