package database

import (
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
	"gorm.io/gorm"
)

// One unique index per scope-key shape. AutoMigrate cannot express
// several composite unique indexes sharing the event_type column, so
// they are created here with raw SQL after migration. These indexes
// ARE the dedup guarantee: the ledger insert relies on the conflict.
var ledgerIndexes = []struct {
	name string
	stmt string
}{
	{
		// per-subject-instance: payment / balance reminders
		name: "uniq_notification_events_plan",
		stmt: "CREATE UNIQUE INDEX uniq_notification_events_plan ON notification_events (student_plan_id, event_type)",
	},
	{
		// per-subject-instance: class reminders
		name: "uniq_notification_events_class",
		stmt: "CREATE UNIQUE INDEX uniq_notification_events_class ON notification_events (student_id, class_id, event_type)",
	},
	{
		// per-subject-per-day: birthdays
		name: "uniq_notification_events_user_day",
		stmt: "CREATE UNIQUE INDEX uniq_notification_events_user_day ON notification_events (user_id, event_type, event_date)",
	},
	{
		// per-tenant-per-day: staff broadcasts
		name: "uniq_notification_events_academy_day",
		stmt: "CREATE UNIQUE INDEX uniq_notification_events_academy_day ON notification_events (academy_id, event_type, event_date)",
	},
}

// EnsureLedgerIndexes creates the missing composite unique indexes on
// notification_events. Works for both MySQL and the sqlite test DB.
func EnsureLedgerIndexes(db *gorm.DB) error {
	for _, idx := range ledgerIndexes {
		if db.Migrator().HasIndex(&models.NotificationEvent{}, idx.name) {
			continue
		}
		if err := db.Exec(idx.stmt).Error; err != nil {
			utils.ErrorLogger.Printf("Error creating ledger index %s: %v", idx.name, err)
			return err
		}
		utils.InfoLogger.Printf("Ledger index created: %s", idx.name)
	}
	return nil
}
