package channels

import (
	"context"
	"encoding/json"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
	"gorm.io/gorm"
)

// WebPush delivers to every registered device endpoint of each
// recipient over the Web Push protocol with VAPID keys. Sends run
// concurrently per subscription; a rejection is counted, handed to
// the failure handler, and never blocks siblings.
type WebPush struct {
	DB         *gorm.DB
	PublicKey  string
	PrivateKey string
	Subject    string
	Failures   FailureHandler
}

func NewWebPush(db *gorm.DB, publicKey, privateKey, subject string, failures FailureHandler) *WebPush {
	return &WebPush{
		DB:         db,
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		Subject:    subject,
		Failures:   failures,
	}
}

func (ch *WebPush) Name() string { return "webpush" }

func (ch *WebPush) Enabled() bool {
	return ch.PublicKey != "" && ch.PrivateKey != ""
}

func (ch *WebPush) Send(ctx context.Context, userIDs []uint, msg Message) Result {
	if len(userIDs) == 0 {
		return Result{}
	}

	var subs []models.PushSubscription
	if err := ch.DB.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&subs).Error; err != nil {
		utils.ErrorLogger.Printf("webpush: load subscriptions: %v", err)
		return Result{}
	}

	payload := ch.payload(msg)
	res := Result{Total: len(subs)}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, sub := range subs {
		wg.Add(1)
		go func(sub models.PushSubscription) {
			defer wg.Done()
			if ch.sendOne(ctx, sub, payload) {
				mu.Lock()
				res.OK++
				mu.Unlock()
			}
		}(sub)
	}
	wg.Wait()

	return res
}

// sendOne pushes to a single endpoint. The 30s TTL and per-call
// timeout live in the webpush client options; a hung endpoint only
// costs its own goroutine.
func (ch *WebPush) sendOne(ctx context.Context, sub models.PushSubscription, payload []byte) bool {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      ch.Subject,
		VAPIDPublicKey:  ch.PublicKey,
		VAPIDPrivateKey: ch.PrivateKey,
		TTL:             30,
	})
	if err != nil {
		utils.ErrorLogger.Printf("webpush: send to user %d: %v", sub.UserID, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true
	}

	utils.InfoLogger.Printf("webpush: endpoint rejected with %d (user %d)", resp.StatusCode, sub.UserID)
	if ch.Failures != nil {
		ch.Failures.HandleFailure(sub.Endpoint, resp.StatusCode)
	}
	return false
}

func (ch *WebPush) payload(msg Message) []byte {
	data := map[string]interface{}{}
	if msg.URL != "" {
		data["url"] = msg.URL
	}
	for k, v := range msg.Data {
		data[k] = v
	}
	b, _ := json.Marshal(map[string]interface{}{
		"title": msg.Title,
		"body":  msg.Body,
		"data":  data,
	})
	return b
}
