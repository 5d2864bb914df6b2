package models

import "time"

// Role values used in UserAcademy rows.
const (
	RoleStudent    = "student"
	RoleCoach      = "coach"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

type Academy struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time
}

// UserAcademy is the tenant membership row. Every recipient lookup
// goes through it; a user with no active row for an academy must
// never receive anything scoped to that academy.
type UserAcademy struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    uint   `gorm:"not null;index:idx_user_academy,unique" json:"user_id"`
	AcademyID uint   `gorm:"not null;index:idx_user_academy,unique" json:"academy_id"`
	Role      string `gorm:"type:varchar(20);not null" json:"role"`
	// No default tag: gorm omits zero-valued fields that carry one,
	// so an inactive membership could not be persisted with it.
	IsActive  bool   `gorm:"not null" json:"is_active"`
	CreatedAt time.Time
}

type Location struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(255);not null" json:"name"`
}

// AcademyLocation maps a physical location to the academy operating it.
// Class sessions carry no academy id; it is resolved through
// class -> court -> location -> academy.
type AcademyLocation struct {
	ID         uint `gorm:"primaryKey"`
	AcademyID  uint `gorm:"not null;index"`
	LocationID uint `gorm:"not null;index"`
}

type Court struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	LocationID uint   `gorm:"not null;index" json:"location_id"`
	Name       string `gorm:"type:varchar(100)" json:"name"`
}
