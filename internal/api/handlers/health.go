package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crewdeskhq/crewdesk/internal/db"
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	db *db.DB
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(database *db.DB) *HealthHandler {
	return &HealthHandler{db: database}
}

// RegisterPublicRoutes registers the health endpoint on the engine.
func (h *HealthHandler) RegisterPublicRoutes(e *gin.Engine) {
	e.GET("/health", h.Health)
}

// Health returns 200 when the database responds to a ping, 503 otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"pool":   h.db.Health(),
	})
}
