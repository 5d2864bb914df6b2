package services

import (
	"context"
	"time"

	"github.com/nativatech/agendo-notifier/channels"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
)

// bookingCandidate is one reserved booking joined with its session.
type bookingCandidate struct {
	StudentID uint
	ClassID   uint
	Date      time.Time
	CourtID   uint
}

// ClassReminderDetector reminds students about classes starting
// within the next window (default 12h).
type ClassReminderDetector struct {
	DetectorBase
	Window time.Duration
}

func NewClassReminderDetector(base DetectorBase) *ClassReminderDetector {
	return &ClassReminderDetector{DetectorBase: base, Window: 12 * time.Hour}
}

func (d *ClassReminderDetector) Name() string { return "class-reminder" }

func (d *ClassReminderDetector) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	now := d.now()
	windowEnd := now.Add(d.Window)

	rows, err := d.reservedBookingsBetween(ctx, now, windowEnd)
	if err != nil {
		return RunReport{}, err
	}

	report, err := d.notifyEarliestPerStudent(ctx, rows, models.EventClassReminderNext,
		"Tenés una clase en las próximas horas, revisá tu agenda!")
	if err != nil {
		return RunReport{}, err
	}

	report.Candidates = len(rows)
	if opts.Debug {
		report.Debug = map[string]interface{}{
			"window": map[string]string{
				"from": now.UTC().Format(time.RFC3339),
				"to":   windowEnd.UTC().Format(time.RFC3339),
			},
		}
	}
	d.logRun(d.Name(), report)
	return report, nil
}

// ClassReminderTomorrowDetector reminds students about classes on
// tomorrow's civil day at the academy's fixed offset.
type ClassReminderTomorrowDetector struct {
	DetectorBase
}

func NewClassReminderTomorrowDetector(base DetectorBase) *ClassReminderTomorrowDetector {
	return &ClassReminderTomorrowDetector{DetectorBase: base}
}

func (d *ClassReminderTomorrowDetector) Name() string { return "class-reminder-tomorrow" }

func (d *ClassReminderTomorrowDetector) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	start, end := utils.LocalDayRange(d.now(), d.UTCOffsetHours, 1)

	rows, err := d.reservedBookingsBetween(ctx, start, end)
	if err != nil {
		return RunReport{}, err
	}

	report, err := d.notifyEarliestPerStudent(ctx, rows, models.EventClassReminderTom,
		"Tenés clases agendadas para mañana, revisá tu agenda!!")
	if err != nil {
		return RunReport{}, err
	}

	report.Candidates = len(rows)
	if opts.Debug {
		report.Debug = map[string]interface{}{
			"dayRange": map[string]string{
				"from": start.Format(time.RFC3339),
				"to":   end.Format(time.RFC3339),
			},
		}
	}
	d.logRun(d.Name(), report)
	return report, nil
}

func (b *DetectorBase) reservedBookingsBetween(ctx context.Context, from, to time.Time) ([]bookingCandidate, error) {
	var rows []bookingCandidate
	err := b.DB.WithContext(ctx).
		Table("bookings").
		Select("bookings.student_id, bookings.class_id, class_sessions.date, class_sessions.court_id").
		Joins("JOIN class_sessions ON class_sessions.id = bookings.class_id").
		Where("bookings.status = ?", models.BookingReserved).
		Where("class_sessions.status <> ?", models.SessionCancelled).
		Where("class_sessions.date > ? AND class_sessions.date <= ?", from, to).
		Scan(&rows).Error
	return rows, err
}

// notifyEarliestPerStudent is the shared tail of both class reminder
// categories: resolve tenancy through the court hierarchy, keep the
// chronologically earliest class per user, gate on the ledger, then
// resolve and dispatch per recipient.
func (b *DetectorBase) notifyEarliestPerStudent(ctx context.Context, rows []bookingCandidate, eventType, bodyText string) (RunReport, error) {
	report := RunReport{OK: true}
	if len(rows) == 0 {
		return report, nil
	}

	courtIDs := make([]uint, 0, len(rows))
	studentIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		courtIDs = append(courtIDs, row.CourtID)
		studentIDs = append(studentIDs, row.StudentID)
	}

	locByCourt, err := b.locationByCourt(ctx, dedupeIDs(courtIDs))
	if err != nil {
		return RunReport{}, err
	}
	locationIDs := make([]uint, 0, len(locByCourt))
	for _, locID := range locByCourt {
		locationIDs = append(locationIDs, locID)
	}
	academyByLoc, err := b.academyByLocation(ctx, dedupeIDs(locationIDs))
	if err != nil {
		return RunReport{}, err
	}
	userByStudent, err := b.userByStudent(ctx, dedupeIDs(studentIDs))
	if err != nil {
		return RunReport{}, err
	}

	type target struct {
		studentID uint
		userID    uint
		academyID uint
		classID   uint
		date      time.Time
	}

	// Collapse to the earliest class per user; candidates that fail
	// tenant resolution are dropped silently, not retried.
	earliest := make(map[uint]target)
	for _, row := range rows {
		locID, ok := locByCourt[row.CourtID]
		if !ok {
			continue
		}
		academyID, ok := academyByLoc[locID]
		if !ok {
			continue
		}
		userID, ok := userByStudent[row.StudentID]
		if !ok {
			continue
		}

		t := target{
			studentID: row.StudentID,
			userID:    userID,
			academyID: academyID,
			classID:   row.ClassID,
			date:      row.Date,
		}
		if existing, found := earliest[userID]; !found || t.date.Before(existing.date) {
			earliest[userID] = t
		}
	}

	report.Checked = len(earliest)
	for _, t := range earliest {
		event := models.NotificationEvent{
			AcademyID: uintPtr(t.academyID),
			StudentID: uintPtr(t.studentID),
			ClassID:   uintPtr(t.classID),
			EventType: eventType,
		}
		fresh, err := b.Ledger.Register(ctx, &event)
		if err != nil {
			utils.ErrorLogger.Printf("%s: ledger for student %d class %d: %v", eventType, t.studentID, t.classID, err)
			continue
		}
		if !fresh {
			continue
		}
		report.Inserted++

		recipients, err := b.Resolver.ResolveUsers(ctx, t.academyID, []uint{t.userID})
		if err != nil {
			utils.ErrorLogger.Printf("%s: resolve user %d: %v", eventType, t.userID, err)
			continue
		}
		if len(recipients) == 0 {
			continue
		}

		res := b.Dispatcher.Dispatch(ctx, recipients, channels.Message{
			Type:      eventType,
			Title:     "Recordatorio de clase",
			Body:      bodyText,
			URL:       "/schedule",
			LaunchURL: "agendo://schedule",
			Data: map[string]interface{}{
				"classId": t.classID,
				"date":    t.date.UTC().Format(time.RFC3339),
			},
		})
		if res.OK() > 0 {
			report.Notified++
		}
	}

	return report, nil
}
