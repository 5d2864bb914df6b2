package models

import "time"

// Class session status values.
const (
	SessionScheduled = "scheduled"
	SessionCancelled = "cancelled"
)

// Booking status values.
const (
	BookingReserved  = "reserved"
	BookingCancelled = "cancelled"
)

type ClassSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      time.Time `gorm:"not null;index" json:"date"`
	CourtID   uint      `gorm:"not null;index" json:"court_id"`
	CoachID   *uint     `gorm:"index" json:"coach_id,omitempty"`
	Status    string    `gorm:"type:varchar(20);not null;default:'scheduled'" json:"status"`
	CreatedAt time.Time
}

type Booking struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	StudentID uint   `gorm:"not null;index" json:"student_id"`
	ClassID   uint   `gorm:"not null;index" json:"class_id"`
	Status    string `gorm:"type:varchar(20);not null;default:'reserved'" json:"status"`
	CreatedAt time.Time
}

// Attendance rows exist once a coach marked the class; their mere
// presence is what the attendance-pending detector checks.
type Attendance struct {
	ID        uint `gorm:"primaryKey"`
	ClassID   uint `gorm:"not null;index"`
	StudentID uint `gorm:"not null"`
	Present   bool `gorm:"not null"`
	CreatedAt time.Time
}
