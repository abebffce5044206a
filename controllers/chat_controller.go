package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ringsight/ringsight/llm"
	"github.com/ringsight/ringsight/middleware"
	"github.com/ringsight/ringsight/models"
	"github.com/ringsight/ringsight/services"
	"github.com/ringsight/ringsight/utils"
)

// Conversations is the chat pipeline the controller depends on.
type Conversations interface {
	Ask(ctx context.Context, userID uint, message string, includeHistory bool) (string, time.Time, error)
	History(ctx context.Context, userID uint, limit int) ([]models.ChatMessage, error)
}

// ChatController exposes the health assistant conversation.
type ChatController struct {
	chats Conversations
}

// NewChatController creates a ChatController.
func NewChatController(chats Conversations) *ChatController {
	return &ChatController{chats: chats}
}

// Post sends one user message through the assistant and returns the reply.
func (c *ChatController) Post(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}

	var req struct {
		Message        string `json:"message"`
		IncludeHistory *bool  `json:"includeHistory"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "message is required")
		return
	}

	includeHistory := true
	if req.IncludeHistory != nil {
		includeHistory = *req.IncludeHistory
	}

	reply, ts, err := c.chats.Ask(ctx.Request.Context(), user.ID, req.Message, includeHistory)
	if err != nil {
		if errors.Is(err, services.ErrEmptyMessage) {
			utils.Error(ctx, http.StatusBadRequest, 40021, "message is required")
			return
		}
		utils.Sugar.Errorf("chat failed for user %d: %v", user.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to process chat message")
		return
	}

	response := gin.H{
		"message":   reply,
		"timestamp": ts.Format(time.RFC3339),
	}
	// Surface an embedded chart block separately so clients don't have to
	// re-parse the reply text.
	if spec, _, ok := llm.ExtractChartSpec(reply); ok {
		response["chart"] = spec
	}
	utils.Success(ctx, response)
}

// Get returns up to limit recent turns in chronological order.
func (c *ChatController) Get(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}

	limit := 50
	if v := strings.TrimSpace(ctx.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := c.chats.History(ctx.Request.Context(), user.ID, limit)
	if err != nil {
		utils.Sugar.Errorf("chat history query failed for user %d: %v", user.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to fetch chat history")
		return
	}

	utils.Success(ctx, gin.H{"messages": messages})
}
