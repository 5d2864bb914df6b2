package Controllers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nativatech/agendo-notifier/config"
	"github.com/nativatech/agendo-notifier/database"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/router"
)

func setupTestDBForCron() *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:cron_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic("failed to connect database")
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
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
		panic(err)
	}
	if err := database.EnsureLedgerIndexes(db); err != nil {
		panic(err)
	}
	for _, table := range []string{"notifications", "notification_events", "student_plans", "user_academies", "profiles", "students"} {
		db.Exec("DELETE FROM " + table)
	}
	return db
}

func setupCronRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return router.SetupRouter(db, &config.Config{
		Port:           "8080",
		CronSecret:     "s3cret",
		UTCOffsetHours: -3,
	})
}

func TestPing(t *testing.T) {
	db := setupTestDBForCron()
	r := setupCronRouter(db)

	req, _ := http.NewRequest("GET", "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestCronEndpointsRequireSecret(t *testing.T) {
	db := setupTestDBForCron()
	r := setupCronRouter(db)

	req, _ := http.NewRequest("POST", "/cron/payment-pending", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCronPaymentPendingEndToEnd(t *testing.T) {
	db := setupTestDBForCron()
	r := setupCronRouter(db)

	// One academy, one admin, one student, one stale unpaid plan.
	academy := models.Academy{Name: "Academia Central"}
	db.Create(&academy)

	admin := models.Profile{FullName: "Admin", Email: "admin@cron.test"}
	db.Create(&admin)
	db.Create(&models.UserAcademy{UserID: admin.ID, AcademyID: academy.ID, Role: models.RoleAdmin, IsActive: true})

	studentProfile := models.Profile{FullName: "Ana", Email: "ana@cron.test"}
	db.Create(&studentProfile)
	student := models.Student{UserID: studentProfile.ID}
	db.Create(&student)
	db.Create(&models.UserAcademy{UserID: studentProfile.ID, AcademyID: academy.ID, Role: models.RoleStudent, IsActive: true})

	plan := models.StudentPlan{
		StudentID: student.ID, AcademyID: academy.ID,
		PlanName: "Plan Mensual", FinalPrice: 500000,
		PurchasedAt: time.Now().Add(-13 * time.Hour),
	}
	db.Create(&plan)

	req, _ := http.NewRequest("POST", "/cron/payment-pending?secret=s3cret&debug=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var report map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, true, report["ok"])
	assert.EqualValues(t, 1, report["inserted"])
	assert.EqualValues(t, 1, report["notified"])
	assert.NotNil(t, report["debug"])

	// The in-app channel wrote feed rows for student and admin.
	var feedCount int64
	db.Model(&models.Notification{}).Count(&feedCount)
	assert.EqualValues(t, 2, feedCount)

	// Re-trigger: the ledger holds, the feed stays clean.
	req, _ = http.NewRequest("POST", "/cron/payment-pending?secret=s3cret", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.EqualValues(t, 0, report["inserted"])

	db.Model(&models.Notification{}).Count(&feedCount)
	assert.EqualValues(t, 2, feedCount)
}

func TestCronEveryCategoryRoutesExist(t *testing.T) {
	db := setupTestDBForCron()
	r := setupCronRouter(db)

	categories := []string{
		"class-reminder",
		"class-reminder-tomorrow",
		"payment-pending",
		"balance-reminder",
		"birthday-student-today",
		"birthday-admin-tomorrow",
		"attendance-pending",
	}
	for _, category := range categories {
		req, _ := http.NewRequest("GET", "/cron/"+category+"?secret=s3cret", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, category)

		var report map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &report), category)
		assert.Equal(t, true, report["ok"], category)
	}
}
