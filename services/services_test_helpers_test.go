package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nativatech/agendo-notifier/channels"
	"github.com/nativatech/agendo-notifier/database"
	"github.com/nativatech/agendo-notifier/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a named in-memory database so each test gets its
// own isolated schema while all pooled connections still see it.
func newTestDB(name string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic("failed to connect database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Academy{},
		&models.UserAcademy{},
		&models.Location{},
		&models.AcademyLocation{},
		&models.Court{},
		&models.Profile{},
		&models.Student{},
		&models.Coach{},
		&models.ClassSession{},
		&models.Booking{},
		&models.Attendance{},
		&models.StudentPlan{},
		&models.Payment{},
		&models.PlanUsage{},
		&models.NotificationEvent{},
		&models.Notification{},
		&models.PushSubscription{},
	)
	if err != nil {
		panic(err)
	}
	if err := database.EnsureLedgerIndexes(db); err != nil {
		panic(err)
	}
	return db
}

// recorderChannel captures every dispatched message for assertions.
type recorderChannel struct {
	name string

	mu    sync.Mutex
	sends []recordedSend
}

type recordedSend struct {
	UserIDs []uint
	Msg     channels.Message
}

func newRecorder(name string) *recorderChannel {
	return &recorderChannel{name: name}
}

func (r *recorderChannel) Name() string  { return r.name }
func (r *recorderChannel) Enabled() bool { return true }

func (r *recorderChannel) Send(_ context.Context, userIDs []uint, msg channels.Message) channels.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, recordedSend{UserIDs: append([]uint(nil), userIDs...), Msg: msg})
	return channels.Result{OK: len(userIDs), Total: len(userIDs)}
}

func (r *recorderChannel) recorded() []recordedSend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedSend(nil), r.sends...)
}

// sentTo flattens every recipient across all sends.
func (r *recorderChannel) sentTo() []uint {
	var out []uint
	for _, s := range r.recorded() {
		out = append(out, s.UserIDs...)
	}
	return out
}

func newTestBase(db *gorm.DB, rec *recorderChannel, now time.Time) DetectorBase {
	return DetectorBase{
		DB:             db,
		Ledger:         NewEventLedger(db),
		Resolver:       NewRecipientResolver(db),
		Dispatcher:     NewDispatcher(rec),
		UTCOffsetHours: -3,
		Now:            func() time.Time { return now },
	}
}

// seedTenant creates one academy with its location, court and one
// active admin, returning (academyID, courtID, adminUserID).
func seedTenant(db *gorm.DB, name string) (uint, uint, uint) {
	academy := models.Academy{Name: name}
	db.Create(&academy)
	location := models.Location{Name: name + " Sede"}
	db.Create(&location)
	db.Create(&models.AcademyLocation{AcademyID: academy.ID, LocationID: location.ID})
	court := models.Court{LocationID: location.ID, Name: "Cancha 1"}
	db.Create(&court)

	admin := models.Profile{FullName: name + " Admin", Email: fmt.Sprintf("admin-%d@test.local", time.Now().UnixNano())}
	db.Create(&admin)
	db.Create(&models.UserAcademy{UserID: admin.ID, AcademyID: academy.ID, Role: models.RoleAdmin, IsActive: true})
	return academy.ID, court.ID, admin.ID
}

// seedStudent creates a user profile, its student row and an active
// student membership, returning (userID, studentID).
func seedStudent(db *gorm.DB, academyID uint, name string) (uint, uint) {
	profile := models.Profile{FullName: name, Email: fmt.Sprintf("%s-%d@test.local", name, time.Now().UnixNano())}
	db.Create(&profile)
	student := models.Student{UserID: profile.ID}
	db.Create(&student)
	db.Create(&models.UserAcademy{UserID: profile.ID, AcademyID: academyID, Role: models.RoleStudent, IsActive: true})
	return profile.ID, student.ID
}
