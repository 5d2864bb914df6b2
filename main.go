package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nativatech/agendo-notifier/config"
	"github.com/nativatech/agendo-notifier/database"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/router"
	"github.com/nativatech/agendo-notifier/utils"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("Warning: .env file not found")
	}

	cfg := config.Load()
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	autoMigrate(db)

	r := router.SetupRouter(db, cfg)

	utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.Academy{},
		&models.UserAcademy{},
		&models.Location{},
		&models.AcademyLocation{},
		&models.Court{},
		&models.Profile{},
		&models.Student{},
		&models.Coach{},
		&models.ClassSession{},
		&models.Booking{},
		&models.Attendance{},
		&models.StudentPlan{},
		&models.Payment{},
		&models.PlanUsage{},
		&models.NotificationEvent{},
		&models.Notification{},
		&models.PushSubscription{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}

	// The ledger's composite unique indexes carry the dedup guarantee;
	// refuse to start without them.
	if err := database.EnsureLedgerIndexes(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to create ledger indexes: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
}
