package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nativatech/agendo-notifier/utils"
)

const oneSignalEndpoint = "https://onesignal.com/api/v1/notifications"

// OneSignal sends one bulk REST call per message, addressed by
// external user ids (our user ids as strings). One call covers the
// whole recipient set; OneSignal expands it to the registered mobile
// devices on its side.
type OneSignal struct {
	AppID  string
	APIKey string

	// Absolute base for the large icon attached to every push.
	BaseURL string

	Client *http.Client
}

func NewOneSignal(appID, apiKey, baseURL string) *OneSignal {
	return &OneSignal{
		AppID:   appID,
		APIKey:  apiKey,
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (ch *OneSignal) Name() string { return "onesignal" }

func (ch *OneSignal) Enabled() bool {
	return ch.AppID != "" && ch.APIKey != ""
}

func (ch *OneSignal) Send(ctx context.Context, userIDs []uint, msg Message) Result {
	if len(userIDs) == 0 {
		return Result{}
	}

	externalIDs := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		externalIDs = append(externalIDs, strconv.FormatUint(uint64(id), 10))
	}

	payload := map[string]interface{}{
		"app_id":                    ch.AppID,
		"include_external_user_ids": externalIDs,
		"headings":                  map[string]string{"en": msg.Title, "es": msg.Title},
		"contents":                  map[string]string{"en": msg.Body, "es": msg.Body},
	}
	if ch.BaseURL != "" {
		payload["large_icon"] = ch.BaseURL + "/icons/icon-192.png"
	}
	if msg.LaunchURL != "" {
		payload["url"] = msg.LaunchURL
	}
	if len(msg.Data) > 0 {
		payload["data"] = msg.Data
	}

	res := Result{Total: len(userIDs)}
	if err := ch.post(ctx, payload); err != nil {
		utils.ErrorLogger.Printf("onesignal: %v", err)
		return res
	}

	res.OK = len(userIDs)
	return res
}

func (ch *OneSignal) post(ctx context.Context, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oneSignalEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Basic "+ch.APIKey)

	resp, err := ch.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("onesignal responded %d: %s", resp.StatusCode, string(text))
	}
	return nil
}
