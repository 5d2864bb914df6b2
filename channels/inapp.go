package channels

import (
	"context"
	"encoding/json"

	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/realtime"
	"github.com/nativatech/agendo-notifier/utils"
	"gorm.io/gorm"
)

// InApp writes one feed row per recipient. There is no per-channel
// opt-out here: preference filtering already happened in the
// resolver, and the in-app feed is always on for resolved users.
type InApp struct {
	DB *gorm.DB
}

func NewInApp(db *gorm.DB) *InApp {
	return &InApp{DB: db}
}

func (ch *InApp) Name() string { return "inapp" }

func (ch *InApp) Enabled() bool { return ch.DB != nil }

func (ch *InApp) Send(ctx context.Context, userIDs []uint, msg Message) Result {
	res := Result{Total: len(userIDs)}

	data := ""
	if payload := ch.payloadData(msg); payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			data = string(b)
		}
	}

	for _, userID := range userIDs {
		notif := models.Notification{
			UserID: userID,
			Type:   msg.Type,
			Title:  msg.Title,
			Body:   msg.Body,
			Data:   data,
		}
		if err := ch.DB.WithContext(ctx).Create(&notif).Error; err != nil {
			utils.ErrorLogger.Printf("inapp: create feed row for user %d: %v", userID, err)
			continue
		}
		res.OK++

		// Best effort: wake up connected clients.
		realtime.BroadcastNotification(notif)
	}

	return res
}

func (ch *InApp) payloadData(msg Message) map[string]interface{} {
	if msg.URL == "" && len(msg.Data) == 0 {
		return nil
	}
	payload := make(map[string]interface{}, len(msg.Data)+1)
	if msg.URL != "" {
		payload["url"] = msg.URL
	}
	for k, v := range msg.Data {
		payload[k] = v
	}
	return payload
}
