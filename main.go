package main

import (
	"github.com/ringsight/ringsight/config"
	"github.com/ringsight/ringsight/models"
	"github.com/ringsight/ringsight/routes"
	"github.com/ringsight/ringsight/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.DailySleep{},
		&models.DailyActivity{},
		&models.DailyReadiness{},
		&models.ChatMessage{},
	)

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
