package Controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nativatech/agendo-notifier/controllers"
	"github.com/nativatech/agendo-notifier/models"
)

func setupTestDBForSubscriptions() *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:subs_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic("failed to connect database")
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.PushSubscription{}); err != nil {
		panic(err)
	}
	db.Exec("DELETE FROM push_subscriptions")
	return db
}

func setupSubscriptionRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	subCtrl := controllers.NewPushSubscriptionController(db)
	router.POST("/push/subscribe", subCtrl.Subscribe)
	router.GET("/push/subscriptions/:id", subCtrl.List)
	router.DELETE("/push/subscriptions", subCtrl.Unsubscribe)
	return router
}

func postJSON(router *gin.Engine, url string, payload map[string]interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", url, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubscribeUpsertsByEndpoint(t *testing.T) {
	db := setupTestDBForSubscriptions()
	router := setupSubscriptionRouter(db)

	w := postJSON(router, "/push/subscribe", map[string]interface{}{
		"user_id":  1,
		"endpoint": "https://push.example/device-1",
		"p256dh":   "key-1",
		"auth":     "auth-1",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Same endpoint again with fresh keys: replaced, not duplicated.
	w = postJSON(router, "/push/subscribe", map[string]interface{}{
		"user_id":  2,
		"endpoint": "https://push.example/device-1",
		"p256dh":   "key-2",
		"auth":     "auth-2",
		"platform": "android",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var subs []models.PushSubscription
	db.Find(&subs)
	assert.Len(t, subs, 1)
	assert.EqualValues(t, 2, subs[0].UserID)
	assert.Equal(t, "key-2", subs[0].P256dh)
	assert.Equal(t, models.PlatformAndroid, subs[0].Platform)
}

func TestSubscribeValidation(t *testing.T) {
	db := setupTestDBForSubscriptions()
	router := setupSubscriptionRouter(db)

	w := postJSON(router, "/push/subscribe", map[string]interface{}{
		"user_id": 1,
		"p256dh":  "key",
		"auth":    "auth",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "/push/subscribe", map[string]interface{}{
		"user_id":  1,
		"endpoint": "https://push.example/device-1",
		"p256dh":   "key",
		"auth":     "auth",
		"platform": "blackberry",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndUnsubscribe(t *testing.T) {
	db := setupTestDBForSubscriptions()
	router := setupSubscriptionRouter(db)

	db.Create(&models.PushSubscription{UserID: 7, Endpoint: "https://push.example/a", P256dh: "k", Auth: "a", Platform: models.PlatformWeb})
	db.Create(&models.PushSubscription{UserID: 7, Endpoint: "https://push.example/b", P256dh: "k", Auth: "a", Platform: models.PlatformWeb})
	db.Create(&models.PushSubscription{UserID: 8, Endpoint: "https://push.example/c", P256dh: "k", Auth: "a", Platform: models.PlatformWeb})

	req, _ := http.NewRequest("GET", "/push/subscriptions/7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].([]interface{})
	assert.Len(t, data, 2)

	// Delete one endpoint.
	body, _ := json.Marshal(map[string]interface{}{"endpoint": "https://push.example/a"})
	req, _ = http.NewRequest("DELETE", "/push/subscriptions", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Deleting it again is a 404.
	req, _ = http.NewRequest("DELETE", "/push/subscriptions", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var count int64
	db.Model(&models.PushSubscription{}).Count(&count)
	assert.EqualValues(t, 2, count)
}
