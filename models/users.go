package models

import "time"

// Profile is the per-user account data the engine cares about.
// NotificationsEnabled is a tri-state on purpose: nil and true both
// mean opted-in, only an explicit false opts the user out.
type Profile struct {
	ID                   uint    `gorm:"primaryKey" json:"id"`
	FullName             string  `gorm:"type:varchar(255)" json:"full_name"`
	Email                string  `gorm:"type:varchar(255);unique" json:"email"`
	NotificationsEnabled *bool   `json:"notifications_enabled,omitempty"`
	BirthDate            *string `gorm:"type:varchar(10)" json:"birth_date,omitempty"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Student struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	UserID    uint `gorm:"not null;index" json:"user_id"`
	CreatedAt time.Time
}

type Coach struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	UserID    uint `gorm:"not null;index" json:"user_id"`
	CreatedAt time.Time
}
