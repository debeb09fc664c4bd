package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/monocle-dev/taskhub/db"
	"github.com/monocle-dev/taskhub/internal/response"
)

func (h *Handler) HealthCheck(ctx *gin.Context) {
	body := gin.H{
		"status":    "ok",
		"message":   "TaskHub is running",
		"database":  "up",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if h.DB != nil {
		if err := db.Ping(h.DB); err != nil {
			body["status"] = "degraded"
			body["database"] = "down"
			response.JSON(ctx, http.StatusServiceUnavailable, body, "Database unavailable")
			return
		}
	}

	response.OK(ctx, body, "Health check passed")
}
