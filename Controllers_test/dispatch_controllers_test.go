package Controllers_test

import (
	"bytes"
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

type dispatchFixture struct {
	db        *gorm.DB
	router    *gin.Engine
	academyID uint
	userID    uint
	studentID uint
	planID    uint
}

func setupDispatchFixture() dispatchFixture {
	db, err := gorm.Open(sqlite.Open("file:dispatch_test?mode=memory&cache=shared"), &gorm.Config{
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
	for _, table := range []string{"notifications", "notification_events", "student_plans", "user_academies", "profiles", "students", "academies"} {
		db.Exec("DELETE FROM " + table)
	}

	academy := models.Academy{Name: "Academia Central"}
	db.Create(&academy)
	profile := models.Profile{FullName: "Ana", Email: "ana@dispatch.test"}
	db.Create(&profile)
	student := models.Student{UserID: profile.ID}
	db.Create(&student)
	db.Create(&models.UserAcademy{UserID: profile.ID, AcademyID: academy.ID, Role: models.RoleStudent, IsActive: true})

	plan := models.StudentPlan{
		StudentID: student.ID, AcademyID: academy.ID,
		PlanName: "Plan Mensual", FinalPrice: 500000,
		PurchasedAt: time.Now().Add(-24 * time.Hour),
	}
	db.Create(&plan)

	gin.SetMode(gin.TestMode)
	r := router.SetupRouter(db, &config.Config{UTCOffsetHours: -3})

	return dispatchFixture{
		db:        db,
		router:    r,
		academyID: academy.ID,
		userID:    profile.ID,
		studentID: student.ID,
		planID:    plan.ID,
	}
}

func (f dispatchFixture) post(t *testing.T, url string, payload map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	assert.NoError(t, err)
	req, _ := http.NewRequest("POST", url, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestDispatchClassCancelled(t *testing.T) {
	f := setupDispatchFixture()

	w := f.post(t, "/push/class-cancelled", map[string]interface{}{
		"academy_id":  f.academyID,
		"class_id":    42,
		"student_ids": []uint{f.studentID},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp["ok"])

	var feed models.Notification
	assert.NoError(t, f.db.Where("user_id = ?", f.userID).First(&feed).Error)
	assert.Equal(t, "class_cancelled", feed.Type)
	assert.Equal(t, "Clase cancelada", feed.Title)
}

func TestDispatchClassEventValidation(t *testing.T) {
	f := setupDispatchFixture()

	w := f.post(t, "/push/class-created", map[string]interface{}{
		"class_id": 42,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDispatchPaymentPendingRejectsWrongTenant(t *testing.T) {
	f := setupDispatchFixture()

	w := f.post(t, "/push/payment-pending", map[string]interface{}{
		"academy_id":      f.academyID + 1000,
		"student_id":      f.studentID,
		"student_plan_id": f.planID,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var feedCount int64
	f.db.Model(&models.Notification{}).Count(&feedCount)
	assert.EqualValues(t, 0, feedCount)
}

func TestDispatchPaymentRegistered(t *testing.T) {
	f := setupDispatchFixture()

	w := f.post(t, "/push/payment-registered", map[string]interface{}{
		"academy_id":      f.academyID,
		"student_id":      f.studentID,
		"student_plan_id": f.planID,
		"amount":          250000,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var feed models.Notification
	assert.NoError(t, f.db.Where("user_id = ?", f.userID).First(&feed).Error)
	assert.Contains(t, feed.Body, "Gs. 250.000")

	// Missing amount is the caller's mistake.
	w = f.post(t, "/push/payment-registered", map[string]interface{}{
		"academy_id":      f.academyID,
		"student_id":      f.studentID,
		"student_plan_id": f.planID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDispatchSendTest(t *testing.T) {
	f := setupDispatchFixture()

	w := f.post(t, "/push/send-test", map[string]interface{}{
		"user_id": f.userID,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var feed models.Notification
	assert.NoError(t, f.db.Where("user_id = ? AND type = ?", f.userID, "test").First(&feed).Error)
}
