package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"worker_active": h.Worker != nil && h.Worker.IsActive(),
	})
}
