package models

import "time"

// Event types registered in the dedup ledger.
const (
	EventPaymentPending       = "payment_pending_12h"
	EventBalancePending       = "balance_pending_2_classes"
	EventClassReminderNext    = "class_reminder"
	EventClassReminderTom     = "class_reminder_tomorrow"
	EventBirthdayStudentToday = "birthday_student_today"
	EventBirthdayAdminTom     = "birthday_admin_tomorrow"
	EventAttendancePending    = "attendance_pending"
)

// NotificationEvent is one row in the dedup ledger. The scope key is
// whichever subset of the nullable columns the event type uses plus
// EventType itself; uniqueness lives in the composite indexes created
// by database.EnsureLedgerIndexes. The insert is the dedup gate:
// whoever gets the row in first is the only caller allowed to notify.
type NotificationEvent struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	AcademyID     *uint   `gorm:"index" json:"academy_id,omitempty"`
	UserID        *uint   `json:"user_id,omitempty"`
	StudentID     *uint   `json:"student_id,omitempty"`
	StudentPlanID *uint   `json:"student_plan_id,omitempty"`
	ClassID       *uint   `json:"class_id,omitempty"`
	EventType     string  `gorm:"type:varchar(50);not null" json:"event_type"`
	EventDate     *string `gorm:"type:varchar(10)" json:"event_date,omitempty"`
	CreatedAt     time.Time
}
