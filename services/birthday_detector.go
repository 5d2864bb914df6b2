package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/nativatech/agendo-notifier/channels"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
)

// BirthdayStudentTodayDetector congratulates students on their
// birthday. The stored year is ignored; only day and month have to
// match today's civil date at the academy offset.
type BirthdayStudentTodayDetector struct {
	DetectorBase
}

func NewBirthdayStudentTodayDetector(base DetectorBase) *BirthdayStudentTodayDetector {
	return &BirthdayStudentTodayDetector{DetectorBase: base}
}

func (d *BirthdayStudentTodayDetector) Name() string { return "birthday-student-today" }

func (d *BirthdayStudentTodayDetector) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	report := RunReport{OK: true}
	now := d.now()

	_, month, day := localMonthDay(d.DetectorBase, 0)
	eventDate := utils.LocalDayString(now, d.UTCOffsetHours)

	memberships, err := d.activeStudentMemberships(ctx)
	if err != nil {
		return RunReport{}, err
	}
	report.Candidates = len(memberships)
	if len(memberships) == 0 {
		d.logRun(d.Name(), report)
		return report, nil
	}

	academyByUser := make(map[uint]uint)
	userIDs := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		if _, seen := academyByUser[m.UserID]; !seen {
			academyByUser[m.UserID] = m.AcademyID
			userIDs = append(userIDs, m.UserID)
		}
	}

	birthdayUsers, err := d.usersWithBirthday(ctx, userIDs, day, month)
	if err != nil {
		return RunReport{}, err
	}
	report.Checked = len(birthdayUsers)

	// The scope key is per user per day. The academy must stay out of
	// the row: it would collide on the per-tenant-per-day index and
	// silently drop every same-day celebrant after the first.
	events := make([]models.NotificationEvent, 0, len(birthdayUsers))
	for _, userID := range birthdayUsers {
		events = append(events, models.NotificationEvent{
			UserID:    uintPtr(userID),
			EventType: models.EventBirthdayStudentToday,
			EventDate: strPtr(eventDate),
		})
	}

	for _, event := range d.Ledger.RegisterAll(ctx, events) {
		userID := *event.UserID
		academyID := academyByUser[userID]
		report.Inserted++

		recipients, err := d.Resolver.ResolveUsers(ctx, academyID, []uint{userID})
		if err != nil {
			utils.ErrorLogger.Printf("birthday-student: resolve user %d: %v", userID, err)
			continue
		}
		if len(recipients) == 0 {
			continue
		}

		res := d.Dispatcher.Dispatch(ctx, recipients, channels.Message{
			Type:      models.EventBirthdayStudentToday,
			Title:     "¡Feliz cumpleaños! 🎉",
			Body:      "Todo el equipo de la academia te desea un excelente día!",
			URL:       "/",
			LaunchURL: "agendo://",
		})
		if res.OK() > 0 {
			report.Notified++
		}
	}

	if opts.Debug {
		report.Debug = map[string]interface{}{"eventDate": eventDate}
	}
	d.logRun(d.Name(), report)
	return report, nil
}

// BirthdayAdminTomorrowDetector gives each academy's admins a heads
// up that students celebrate a birthday tomorrow. One broadcast per
// academy per day, gated on the per-tenant-per-day scope key.
type BirthdayAdminTomorrowDetector struct {
	DetectorBase
}

func NewBirthdayAdminTomorrowDetector(base DetectorBase) *BirthdayAdminTomorrowDetector {
	return &BirthdayAdminTomorrowDetector{DetectorBase: base}
}

func (d *BirthdayAdminTomorrowDetector) Name() string { return "birthday-admin-tomorrow" }

func (d *BirthdayAdminTomorrowDetector) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	report := RunReport{OK: true}
	now := d.now()

	_, month, day := localMonthDay(d.DetectorBase, 1)
	eventDate := utils.LocalDayString(now.AddDate(0, 0, 1), d.UTCOffsetHours)

	memberships, err := d.activeStudentMemberships(ctx)
	if err != nil {
		return RunReport{}, err
	}
	if len(memberships) == 0 {
		d.logRun(d.Name(), report)
		return report, nil
	}

	usersByAcademy := make(map[uint][]uint)
	allUserIDs := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		usersByAcademy[m.AcademyID] = append(usersByAcademy[m.AcademyID], m.UserID)
		allUserIDs = append(allUserIDs, m.UserID)
	}

	birthdayUsers, err := d.usersWithBirthday(ctx, dedupeIDs(allUserIDs), day, month)
	if err != nil {
		return RunReport{}, err
	}
	report.Candidates = len(birthdayUsers)
	if len(birthdayUsers) == 0 {
		d.logRun(d.Name(), report)
		return report, nil
	}

	birthdaySet := make(map[uint]struct{}, len(birthdayUsers))
	for _, id := range birthdayUsers {
		birthdaySet[id] = struct{}{}
	}
	names, err := d.fullNames(ctx, birthdayUsers)
	if err != nil {
		return RunReport{}, err
	}

	for academyID, members := range usersByAcademy {
		var celebrating []string
		for _, userID := range dedupeIDs(members) {
			if _, hit := birthdaySet[userID]; !hit {
				continue
			}
			name := names[userID]
			if name == "" {
				name = "Alumno"
			}
			celebrating = append(celebrating, name)
		}
		if len(celebrating) == 0 {
			continue
		}
		report.Checked++

		event := models.NotificationEvent{
			AcademyID: uintPtr(academyID),
			EventType: models.EventBirthdayAdminTom,
			EventDate: strPtr(eventDate),
		}
		fresh, err := d.Ledger.Register(ctx, &event)
		if err != nil {
			utils.ErrorLogger.Printf("birthday-admins: ledger for academy %d: %v", academyID, err)
			continue
		}
		if !fresh {
			continue
		}
		report.Inserted++

		admins, err := d.Resolver.ResolveAdmins(ctx, academyID)
		if err != nil {
			utils.ErrorLogger.Printf("birthday-admins: resolve academy %d: %v", academyID, err)
			continue
		}
		if len(admins) == 0 {
			continue
		}

		res := d.Dispatcher.Dispatch(ctx, admins, channels.Message{
			Type:      models.EventBirthdayAdminTom,
			Title:     "Cumpleaños mañana 🎂",
			Body:      fmt.Sprintf("Mañana cumplen años: %s", strings.Join(celebrating, ", ")),
			URL:       "/students",
			LaunchURL: "agendo://students",
		})
		if res.OK() > 0 {
			report.Notified++
		}
	}

	if opts.Debug {
		report.Debug = map[string]interface{}{"eventDate": eventDate}
	}
	d.logRun(d.Name(), report)
	return report, nil
}

// localMonthDay returns the civil month/day addDays days ahead.
func localMonthDay(b DetectorBase, addDays int) (year, month, day int) {
	y, m, d := utils.LocalYMD(b.now().AddDate(0, 0, addDays), b.UTCOffsetHours)
	return y, int(m), d
}

// activeStudentMemberships lists every active student membership row.
func (b *DetectorBase) activeStudentMemberships(ctx context.Context) ([]models.UserAcademy, error) {
	var rows []models.UserAcademy
	err := b.DB.WithContext(ctx).
		Where("role = ? AND is_active = ?", models.RoleStudent, true).
		Find(&rows).Error
	return rows, err
}

// usersWithBirthday filters the given users down to those whose
// stored birth date matches day/month, any year, either date format.
func (b *DetectorBase) usersWithBirthday(ctx context.Context, userIDs []uint, day, month int) ([]uint, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	var profiles []models.Profile
	err := b.DB.WithContext(ctx).
		Where("id IN ? AND birth_date IS NOT NULL", userIDs).
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}

	var out []uint
	for _, p := range profiles {
		if p.BirthDate == nil {
			continue
		}
		d, m, _, ok := utils.ParseBirthDate(strings.TrimSpace(*p.BirthDate))
		if !ok {
			continue
		}
		if d == day && m == month {
			out = append(out, p.ID)
		}
	}
	return out, nil
}
