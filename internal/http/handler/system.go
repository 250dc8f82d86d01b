package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/edirooss/camwall/internal/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReloadFunc reloads the configuration from its source and installs it.
type ReloadFunc func(ctx context.Context) error

// SystemHandler serves ping and reload.
type SystemHandler struct {
	log    *zap.Logger
	reload ReloadFunc
}

func NewSystemHandler(log *zap.Logger, reload ReloadFunc) *SystemHandler {
	return &SystemHandler{log: log.Named("system"), reload: reload}
}

// Ping handles GET /ping.
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Reload handles POST /reload.
//
// Status Codes:
//   - 204 No Content → new configuration running
//   - 422 Unprocessable Entity → configuration invalid, old one kept
//   - 501 Not Implemented → no reloadable source (demo mode)
func (h *SystemHandler) Reload(c *gin.Context) {
	if h.reload == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"message": "reload not available"})
		return
	}
	if err := h.reload(c.Request.Context()); err != nil {
		c.Error(err)
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": cfgErr.Error(), "problems": cfgErr.Problems})
			return
		}
		c.JSON(statusOf(err), gin.H{"message": err.Error()})
		return
	}
	h.log.Info("configuration reloaded")
	c.Status(http.StatusNoContent)
}
