package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ringsight/ringsight/middleware"
	"github.com/ringsight/ringsight/models"
	"github.com/ringsight/ringsight/services"
	"github.com/ringsight/ringsight/utils"
)

// Syncer runs one full vendor sync for a user.
type Syncer interface {
	SyncUser(ctx context.Context, user *models.User) (services.SyncResult, error)
}

// SyncController triggers on-demand data synchronization.
type SyncController struct {
	syncer Syncer
}

// NewSyncController creates a SyncController.
func NewSyncController(syncer Syncer) *SyncController {
	return &SyncController{syncer: syncer}
}

// Sync pulls the last 30 days of daily summaries for the session user.
func (c *SyncController) Sync(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}

	result, err := c.syncer.SyncUser(ctx.Request.Context(), user)
	if err != nil {
		utils.Sugar.Errorf("sync failed for user %d: %v", user.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to sync data")
		return
	}

	utils.Success(ctx, gin.H{
		"success": true,
		"synced":  result,
	})
}
