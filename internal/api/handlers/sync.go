package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TriggerSyncHandler kicks off a full sweep without waiting for it. An
// already-running sweep makes the trigger a logged no-op.
func (h *Handler) TriggerSyncHandler(c *gin.Context) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic in manual sync trigger: %v", r)
			}
		}()
		h.Syncer.SynchronizeAll(context.Background())
	}()

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Sync triggered successfully",
	})
}
