package services

import (
	"context"
	"time"

	"github.com/nativatech/agendo-notifier/channels"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
)

// sessionLength is the assumed class duration; a session counts as
// finished once start + sessionLength has passed.
const sessionLength = time.Hour

// AttendancePendingDetector tells each academy's admins and coaches
// that finished classes of today still have no attendance marked.
// One broadcast per academy per civil day.
type AttendancePendingDetector struct {
	DetectorBase
}

func NewAttendancePendingDetector(base DetectorBase) *AttendancePendingDetector {
	return &AttendancePendingDetector{DetectorBase: base}
}

func (d *AttendancePendingDetector) Name() string { return "attendance-pending" }

func (d *AttendancePendingDetector) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	report := RunReport{OK: true}
	now := d.now()
	start, end := utils.LocalDayRange(now, d.UTCOffsetHours, 0)
	eventDate := utils.LocalDayString(now, d.UTCOffsetHours)

	var sessions []models.ClassSession
	err := d.DB.WithContext(ctx).
		Where("date >= ? AND date <= ? AND status <> ?", start, end, models.SessionCancelled).
		Find(&sessions).Error
	if err != nil {
		return RunReport{}, err
	}
	report.Candidates = len(sessions)

	// Only classes that already finished can be missing attendance.
	finished := sessions[:0]
	for _, s := range sessions {
		if s.Date.Add(sessionLength).Before(now) || s.Date.Add(sessionLength).Equal(now) {
			finished = append(finished, s)
		}
	}
	if len(finished) == 0 {
		d.logRun(d.Name(), report)
		return report, nil
	}

	classIDs := make([]uint, 0, len(finished))
	for _, s := range finished {
		classIDs = append(classIDs, s.ID)
	}
	var markedIDs []uint
	err = d.DB.WithContext(ctx).
		Model(&models.Attendance{}).
		Where("class_id IN ?", classIDs).
		Distinct().
		Pluck("class_id", &markedIDs).Error
	if err != nil {
		return RunReport{}, err
	}
	marked := make(map[uint]struct{}, len(markedIDs))
	for _, id := range markedIDs {
		marked[id] = struct{}{}
	}

	unmarked := make([]models.ClassSession, 0, len(finished))
	for _, s := range finished {
		if _, has := marked[s.ID]; !has {
			unmarked = append(unmarked, s)
		}
	}
	report.Checked = len(unmarked)
	if len(unmarked) == 0 {
		d.logRun(d.Name(), report)
		return report, nil
	}

	courtIDs := make([]uint, 0, len(unmarked))
	coachIDs := make([]uint, 0, len(unmarked))
	for _, s := range unmarked {
		courtIDs = append(courtIDs, s.CourtID)
		if s.CoachID != nil {
			coachIDs = append(coachIDs, *s.CoachID)
		}
	}

	locByCourt, err := d.locationByCourt(ctx, dedupeIDs(courtIDs))
	if err != nil {
		return RunReport{}, err
	}
	locationIDs := make([]uint, 0, len(locByCourt))
	for _, locID := range locByCourt {
		locationIDs = append(locationIDs, locID)
	}
	academyByLoc, err := d.academyByLocation(ctx, dedupeIDs(locationIDs))
	if err != nil {
		return RunReport{}, err
	}
	coachUsers, err := d.coachUsers(ctx, dedupeIDs(coachIDs))
	if err != nil {
		return RunReport{}, err
	}

	// Group the coaches whose classes are unmarked by academy;
	// sessions that fail tenant resolution are dropped silently.
	coachUsersByAcademy := make(map[uint][]uint)
	for _, s := range unmarked {
		locID, ok := locByCourt[s.CourtID]
		if !ok {
			continue
		}
		academyID, ok := academyByLoc[locID]
		if !ok {
			continue
		}
		if _, seen := coachUsersByAcademy[academyID]; !seen {
			coachUsersByAcademy[academyID] = nil
		}
		if s.CoachID != nil {
			if userID, known := coachUsers[*s.CoachID]; known {
				coachUsersByAcademy[academyID] = append(coachUsersByAcademy[academyID], userID)
			}
		}
	}

	for academyID, coachRecipients := range coachUsersByAcademy {
		event := models.NotificationEvent{
			AcademyID: uintPtr(academyID),
			EventType: models.EventAttendancePending,
			EventDate: strPtr(eventDate),
		}
		fresh, err := d.Ledger.Register(ctx, &event)
		if err != nil {
			utils.ErrorLogger.Printf("attendance-pending: ledger for academy %d: %v", academyID, err)
			continue
		}
		if !fresh {
			continue
		}
		report.Inserted++

		admins, err := d.Resolver.ResolveAdmins(ctx, academyID)
		if err != nil {
			utils.ErrorLogger.Printf("attendance-pending: resolve admins of academy %d: %v", academyID, err)
			continue
		}
		coaches, err := d.Resolver.ResolveUsers(ctx, academyID, coachRecipients)
		if err != nil {
			utils.ErrorLogger.Printf("attendance-pending: resolve coaches of academy %d: %v", academyID, err)
		}

		recipients := dedupeIDs(append(admins, coaches...))
		if len(recipients) == 0 {
			continue
		}

		res := d.Dispatcher.Dispatch(ctx, recipients, channels.Message{
			Type:      models.EventAttendancePending,
			Title:     "Asistencia pendiente",
			Body:      "Hay clases aún sin marcar asistencia, revisá la agenda",
			URL:       "/schedule",
			LaunchURL: "agendo://schedule",
			Data:      map[string]interface{}{"academyId": academyID},
		})
		if res.OK() > 0 {
			report.Notified++
		}
	}

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

func (b *DetectorBase) coachUsers(ctx context.Context, coachIDs []uint) (map[uint]uint, error) {
	out := make(map[uint]uint)
	if len(coachIDs) == 0 {
		return out, nil
	}

	var rows []models.Coach
	if err := b.DB.WithContext(ctx).Where("id IN ?", coachIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.UserID
	}
	return out, nil
}
