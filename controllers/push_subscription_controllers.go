package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PushSubscriptionController manages device registrations for the
// web-push channel.
type PushSubscriptionController struct {
	DB *gorm.DB
}

func NewPushSubscriptionController(db *gorm.DB) *PushSubscriptionController {
	return &PushSubscriptionController{DB: db}
}

type subscribeRequest struct {
	UserID   uint   `json:"user_id" binding:"required"`
	Endpoint string `json:"endpoint" binding:"required"`
	P256dh   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
	Platform string `json:"platform"`
}

// Subscribe upserts a device registration keyed by endpoint. The same
// browser re-subscribing (or the device changing owner) replaces the
// row rather than stacking duplicates.
func (pc *PushSubscriptionController) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	platform := req.Platform
	switch platform {
	case "":
		platform = models.PlatformWeb
	case models.PlatformWeb, models.PlatformAndroid, models.PlatformIOS:
	default:
		utils.RespondError(c, http.StatusBadRequest, errors.New("unknown platform"))
		return
	}

	sub := models.PushSubscription{
		UserID:   req.UserID,
		Endpoint: req.Endpoint,
		P256dh:   req.P256dh,
		Auth:     req.Auth,
		Platform: platform,
	}

	err := pc.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "platform"}),
	}).Create(&sub).Error
	if err != nil {
		utils.ErrorLogger.Printf("subscribe user %d: %v", req.UserID, err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("failed to save subscription"))
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Subscription saved", sub)
}

// List returns all registered devices of one user.
func (pc *PushSubscriptionController) List(c *gin.Context) {
	userID, err := paramUint(c, "id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid user id"))
		return
	}

	var subs []models.PushSubscription
	if err := pc.DB.Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		utils.ErrorLogger.Printf("list subscriptions for user %d: %v", userID, err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("failed to load subscriptions"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Subscriptions retrieved", subs)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// Unsubscribe removes one device registration by endpoint.
func (pc *PushSubscriptionController) Unsubscribe(c *gin.Context) {
	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res := pc.DB.Where("endpoint = ?", req.Endpoint).Delete(&models.PushSubscription{})
	if res.Error != nil {
		utils.ErrorLogger.Printf("unsubscribe: %v", res.Error)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("failed to delete subscription"))
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("subscription not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Subscription deleted", nil)
}
