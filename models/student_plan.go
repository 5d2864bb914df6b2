package models

import "time"

// Payment status values.
const (
	PaymentPaid    = "paid"
	PaymentPending = "pending"
)

type StudentPlan struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	StudentID        uint      `gorm:"not null;index" json:"student_id"`
	AcademyID        uint      `gorm:"not null;index" json:"academy_id"`
	PlanName         string    `gorm:"type:varchar(255)" json:"plan_name"`
	FinalPrice       float64   `gorm:"type:decimal(12,2);not null" json:"final_price"`
	RemainingClasses int       `gorm:"not null;default:0" json:"remaining_classes"`
	PurchasedAt      time.Time `gorm:"not null;index" json:"purchased_at"`
	CreatedAt        time.Time
}

type Payment struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	StudentPlanID uint    `gorm:"not null;index" json:"student_plan_id"`
	Amount        float64 `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status        string  `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt     time.Time
}

// PlanUsage records one consumed class from a plan.
type PlanUsage struct {
	ID            uint `gorm:"primaryKey"`
	StudentPlanID uint `gorm:"not null;index"`
	StudentID     uint `gorm:"not null"`
	CreatedAt     time.Time
}
