package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ringsight/ringsight/config"
	"github.com/ringsight/ringsight/controllers"
	"github.com/ringsight/ringsight/llm"
	"github.com/ringsight/ringsight/middleware"
	"github.com/ringsight/ringsight/oura"
	"github.com/ringsight/ringsight/services"
	"github.com/ringsight/ringsight/store"
	"github.com/ringsight/ringsight/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(utils.AccessLog())
	r.Use(utils.Recovery())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	users := store.NewGormUsers(db)
	metrics := store.NewGormMetrics(db)
	chats := store.NewGormChats(db)

	ouraClient := oura.NewClient(oura.Config{
		ClientID:     cfg.OuraClientID,
		ClientSecret: cfg.OuraClientSecret,
		RedirectURI:  cfg.OuraRedirectURI,
		AuthBaseURL:  cfg.OuraAuthBaseURL,
		APIBaseURL:   cfg.OuraAPIBaseURL,
	})
	completer := llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:  cfg.AnthropicAPIKey,
		Model:   cfg.AnthropicModel,
		BaseURL: cfg.AnthropicBaseURL,
	})

	syncService := services.NewSyncService(users, metrics, ouraClient, ouraClient)
	chatService := services.NewChatService(metrics, chats, completer)

	authController := controllers.NewAuthController(users, ouraClient)
	syncController := controllers.NewSyncController(syncService)
	dataController := controllers.NewDataController(metrics)
	chatController := controllers.NewChatController(chatService)

	authGroup := r.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.GET("/start", authController.StartOAuth)
	authGroup.GET("/callback", authController.Callback)
	authGroup.GET("/me", middleware.SessionRequired(users), authController.Me)
	authGroup.POST("/logout", middleware.SessionRequired(users), authController.Logout)

	api := r.Group("/api/v1")
	// Limiter first: shed floods before paying for token parsing and the
	// user-row load.
	api.Use(middleware.RateLimitMiddleware(), middleware.SessionRequired(users))
	api.POST("/sync", syncController.Sync)
	api.GET("/data", dataController.Get)
	api.POST("/chat", chatController.Post)
	api.GET("/chat", chatController.Get)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
