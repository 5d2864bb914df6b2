package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nativatech/agendo-notifier/models"
	"github.com/stretchr/testify/assert"
)

func TestLedgerRegisterOncePerKey(t *testing.T) {
	db := newTestDB("ledger_once")
	ledger := NewEventLedger(db)
	ctx := context.Background()

	first := models.NotificationEvent{
		StudentPlanID: uintPtr(7),
		EventType:     models.EventPaymentPending,
	}
	fresh, err := ledger.Register(ctx, &first)
	assert.NoError(t, err)
	assert.True(t, fresh)

	duplicate := models.NotificationEvent{
		StudentPlanID: uintPtr(7),
		EventType:     models.EventPaymentPending,
	}
	fresh, err = ledger.Register(ctx, &duplicate)
	assert.NoError(t, err)
	assert.False(t, fresh)

	// Same plan, different category: its own scope key.
	other := models.NotificationEvent{
		StudentPlanID: uintPtr(7),
		EventType:     models.EventBalancePending,
	}
	fresh, err = ledger.Register(ctx, &other)
	assert.NoError(t, err)
	assert.True(t, fresh)

	var count int64
	db.Model(&models.NotificationEvent{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestLedgerPerDayKeys(t *testing.T) {
	db := newTestDB("ledger_days")
	ledger := NewEventLedger(db)
	ctx := context.Background()

	register := func(day string) bool {
		event := models.NotificationEvent{
			UserID:    uintPtr(3),
			EventType: models.EventBirthdayStudentToday,
			EventDate: strPtr(day),
		}
		fresh, err := ledger.Register(ctx, &event)
		assert.NoError(t, err)
		return fresh
	}

	assert.True(t, register("2025-03-15"))
	assert.False(t, register("2025-03-15"))
	// Next year's birthday is a new key.
	assert.True(t, register("2026-03-15"))
}

func TestLedgerConcurrentRegisterSingleWinner(t *testing.T) {
	db := newTestDB("ledger_race")
	ledger := NewEventLedger(db)

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event := models.NotificationEvent{
				StudentID: uintPtr(1),
				ClassID:   uintPtr(42),
				EventType: models.EventClassReminderNext,
			}
			fresh, err := ledger.Register(context.Background(), &event)
			if err != nil {
				return
			}
			if fresh {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)

	var count int64
	db.Model(&models.NotificationEvent{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestLedgerRegisterAllReturnsFreshSubset(t *testing.T) {
	db := newTestDB("ledger_batch")
	ledger := NewEventLedger(db)
	ctx := context.Background()

	seed := models.NotificationEvent{
		StudentPlanID: uintPtr(1),
		EventType:     models.EventPaymentPending,
	}
	_, err := ledger.Register(ctx, &seed)
	assert.NoError(t, err)

	batch := []models.NotificationEvent{
		{StudentPlanID: uintPtr(1), EventType: models.EventPaymentPending}, // dup
		{StudentPlanID: uintPtr(2), EventType: models.EventPaymentPending},
		{StudentPlanID: uintPtr(3), EventType: models.EventPaymentPending},
	}
	fresh := ledger.RegisterAll(ctx, batch)

	assert.Len(t, fresh, 2)
	assert.EqualValues(t, 2, *fresh[0].StudentPlanID)
	assert.EqualValues(t, 3, *fresh[1].StudentPlanID)
}
