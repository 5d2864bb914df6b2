package models

import "time"

// Platform tags for push subscriptions.
const (
	PlatformWeb     = "web"
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// PushSubscription is one device endpoint of one user. The endpoint
// is the identity: re-subscribing from the same device replaces the
// keys instead of adding a row. Rows are deleted only when the push
// provider reports the endpoint permanently gone.
type PushSubscription struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    uint   `gorm:"not null;index" json:"user_id"`
	Endpoint  string `gorm:"type:varchar(500);uniqueIndex:idx_subscription_endpoint,length:255;not null" json:"endpoint"`
	P256dh    string `gorm:"type:varchar(255);not null" json:"p256dh"`
	Auth      string `gorm:"type:varchar(255);not null" json:"auth"`
	Platform  string `gorm:"type:varchar(20);not null;default:'web'" json:"platform"`
	CreatedAt time.Time
}
