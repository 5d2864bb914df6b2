package services

import (
	"context"

	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventLedger is the idempotency store for detected occurrences. Each
// register is a single-row insert that either lands or hits one of
// the scope-key unique indexes; two concurrent callers racing on the
// same key get exactly one true. No read-then-write anywhere.
type EventLedger struct {
	DB *gorm.DB
}

func NewEventLedger(db *gorm.DB) *EventLedger {
	return &EventLedger{DB: db}
}

// Register inserts one ledger row. Returns true only when the row was
// newly created, meaning the caller won the right to notify.
func (l *EventLedger) Register(ctx context.Context, event *models.NotificationEvent) (bool, error) {
	tx := l.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// RegisterAll registers a batch and returns the newly registered
// subset. A write failure drops only the affected key; the rest of
// the batch proceeds.
func (l *EventLedger) RegisterAll(ctx context.Context, events []models.NotificationEvent) []models.NotificationEvent {
	registered := make([]models.NotificationEvent, 0, len(events))
	for i := range events {
		fresh, err := l.Register(ctx, &events[i])
		if err != nil {
			utils.ErrorLogger.Printf("ledger: register %s: %v", events[i].EventType, err)
			continue
		}
		if fresh {
			registered = append(registered, events[i])
		}
	}
	return registered
}
