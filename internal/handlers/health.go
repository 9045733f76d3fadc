package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kosarica/store-service/internal/database"
)

// pinger is implemented by preference stores backed by a remote server.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Preferences string `json:"preferences"`
}

// HealthCheck handles the health check endpoint
// @Summary Health check
// @Description Reports database and preference store connectivity
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse "Degraded"
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status: "ok",
	}
	healthy := true

	// Check database connection
	if database.Pool() != nil {
		if err := database.Status(c.Request.Context()); err != nil {
			response.Database = "disconnected"
			healthy = false
		} else {
			response.Database = "connected"
		}
	} else {
		response.Database = "not configured"
	}

	switch store := prefsStore.(type) {
	case nil:
		response.Preferences = "not configured"
	case pinger:
		if err := store.Ping(c.Request.Context()); err != nil {
			response.Preferences = "disconnected"
			healthy = false
		} else {
			response.Preferences = "connected"
		}
	default:
		response.Preferences = "in-memory"
	}

	if !healthy {
		response.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
