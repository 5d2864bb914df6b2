package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/realtime"
	"github.com/nativatech/agendo-notifier/utils"
	"gorm.io/gorm"
)

const feedPageSize = 50

// NotificationController serves the in-app feed: listing, the
// set-once read marker and the unread badge count.
type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

// List returns a user's feed, newest first, paged with ?page=N.
func (nc *NotificationController) List(c *gin.Context) {
	userID, err := paramUint(c, "id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid user id"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	var notifications []models.Notification
	err = nc.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(feedPageSize).
		Offset((page - 1) * feedPageSize).
		Find(&notifications).Error
	if err != nil {
		utils.ErrorLogger.Printf("feed list for user %d: %v", userID, err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("failed to load notifications"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Notifications retrieved", notifications)
}

// MarkRead stamps ReadAt on one feed row. The stamp is set once: a
// second call leaves the original timestamp untouched.
func (nc *NotificationController) MarkRead(c *gin.Context) {
	notifID, err := paramUint(c, "id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid notification id"))
		return
	}

	var notif models.Notification
	if err := nc.DB.First(&notif, notifID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("notification not found"))
		return
	}

	if notif.ReadAt == nil {
		now := time.Now()
		err = nc.DB.Model(&models.Notification{}).
			Where("id = ? AND read_at IS NULL", notifID).
			Update("read_at", now).Error
		if err != nil {
			utils.ErrorLogger.Printf("mark read %d: %v", notifID, err)
			utils.RespondError(c, http.StatusInternalServerError, errors.New("failed to update notification"))
			return
		}
		notif.ReadAt = &now

		var count int64
		if err := nc.unreadCount(notif.UserID, &count); err == nil {
			realtime.BroadcastUnreadCount(notif.UserID, count)
		}
	}

	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", notif)
}

// UnreadCount returns the badge number for a user.
func (nc *NotificationController) UnreadCount(c *gin.Context) {
	userID, err := paramUint(c, "id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid user id"))
		return
	}

	var count int64
	if err := nc.unreadCount(userID, &count); err != nil {
		utils.ErrorLogger.Printf("unread count for user %d: %v", userID, err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("failed to count notifications"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Unread count retrieved", gin.H{"count": count})
}

func (nc *NotificationController) unreadCount(userID uint, count *int64) error {
	return nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(count).Error
}

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Feed upgrades to a websocket and streams new feed rows and unread
// counts for the user named in ?user_id.
func (nc *NotificationController) Feed(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
	if err != nil || userID == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("user_id query param required"))
		return
	}

	conn, err := feedUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("feed upgrade: %v", err)
		return
	}

	realtime.RegisterClient(conn, uint(userID))
	utils.InfoLogger.Printf("feed client connected: user %d", userID)

	go func() {
		defer realtime.UnregisterClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func paramUint(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(v), nil
}
