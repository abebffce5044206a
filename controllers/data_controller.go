package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ringsight/ringsight/middleware"
	"github.com/ringsight/ringsight/store"
	"github.com/ringsight/ringsight/utils"
)

// DataController serves the stored daily summaries.
type DataController struct {
	metrics store.Metrics
}

// NewDataController creates a DataController.
func NewDataController(metrics store.Metrics) *DataController {
	return &DataController{metrics: metrics}
}

// Get returns stored rows for the requested window and variant(s).
// Query params: days (default 30), type (sleep|activity|readiness|all).
func (c *DataController) Get(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}

	days := 30
	if v := strings.TrimSpace(ctx.Query("days")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	variant := strings.TrimSpace(ctx.Query("type"))
	if variant == "" {
		variant = "all"
	}
	switch variant {
	case "all", "sleep", "activity", "readiness":
	default:
		utils.Error(ctx, http.StatusBadRequest, 40010, "unknown data type")
		return
	}

	sinceDay, _ := utils.DayRange(days)
	data := gin.H{}

	if variant == "all" || variant == "sleep" {
		rows, err := c.metrics.ListSleep(ctx.Request.Context(), user.ID, sinceDay, 0)
		if err != nil {
			utils.Sugar.Errorf("sleep query failed for user %d: %v", user.ID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to fetch data")
			return
		}
		data["sleep"] = rows
	}

	if variant == "all" || variant == "activity" {
		rows, err := c.metrics.ListActivity(ctx.Request.Context(), user.ID, sinceDay, 0)
		if err != nil {
			utils.Sugar.Errorf("activity query failed for user %d: %v", user.ID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to fetch data")
			return
		}
		data["activity"] = rows
	}

	if variant == "all" || variant == "readiness" {
		rows, err := c.metrics.ListReadiness(ctx.Request.Context(), user.ID, sinceDay, 0)
		if err != nil {
			utils.Sugar.Errorf("readiness query failed for user %d: %v", user.ID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to fetch data")
			return
		}
		data["readiness"] = rows
	}

	utils.Success(ctx, data)
}
