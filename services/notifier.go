package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nativatech/agendo-notifier/channels"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
)

// Event types produced by transactional flows. These are not ledger
// gated: the calling flow fires them exactly once per domain action.
const (
	EventClassCreated      = "class_created"
	EventClassCancelled    = "class_cancelled"
	EventClassRescheduled  = "class_rescheduled"
	EventPaymentRegistered = "payment_registered"
	EventTest              = "test"
)

var (
	ErrStudentHasNoUser = errors.New("student has no user account")
	ErrNotAMember       = errors.New("student does not belong to this academy")
	ErrPlanNotFound     = errors.New("student plan not found")
)

// Notifier serves the internal dispatch endpoints: transactional
// flows (a booking change, a registered payment) that already know
// their occurrence happened and only need resolution plus fan-out.
type Notifier struct {
	DetectorBase

	// Email addressing for billing categories.
	AppBaseURL string
}

func NewNotifier(base DetectorBase, appBaseURL string) *Notifier {
	return &Notifier{DetectorBase: base, AppBaseURL: appBaseURL}
}

// ClassEvent notifies the affected students of a created, cancelled
// or rescheduled class.
func (n *Notifier) ClassEvent(ctx context.Context, eventType string, academyID, classID uint, studentIDs []uint, title, body string) (DispatchReport, error) {
	userByStudent, err := n.userByStudent(ctx, dedupeIDs(studentIDs))
	if err != nil {
		return DispatchReport{}, err
	}

	userIDs := make([]uint, 0, len(userByStudent))
	for _, uid := range userByStudent {
		userIDs = append(userIDs, uid)
	}

	recipients, err := n.Resolver.ResolveUsers(ctx, academyID, userIDs)
	if err != nil {
		return DispatchReport{}, err
	}
	if len(recipients) == 0 {
		return DispatchReport{Channels: map[string]channels.Result{}}, nil
	}

	report := n.Dispatcher.Dispatch(ctx, recipients, channels.Message{
		Type:      eventType,
		Title:     title,
		Body:      body,
		URL:       "/schedule",
		LaunchURL: "agendo://schedule",
		Data: map[string]interface{}{
			"academyId": academyID,
			"classId":   classID,
		},
	})
	return report, nil
}

// ClassReminder pushes the reminder for one student's class, used by
// flows that already picked the class (and by manual re-sends).
func (n *Notifier) ClassReminder(ctx context.Context, studentID, classID uint, date time.Time, body string) (DispatchReport, error) {
	userByStudent, err := n.userByStudent(ctx, []uint{studentID})
	if err != nil {
		return DispatchReport{}, err
	}
	userID, ok := userByStudent[studentID]
	if !ok {
		return DispatchReport{}, ErrStudentHasNoUser
	}

	academyID, err := n.academyOfClass(ctx, classID)
	if err != nil {
		return DispatchReport{}, err
	}

	recipients, err := n.Resolver.ResolveUsers(ctx, academyID, []uint{userID})
	if err != nil {
		return DispatchReport{}, err
	}
	if len(recipients) == 0 {
		return DispatchReport{Channels: map[string]channels.Result{}}, nil
	}

	if body == "" {
		body = "Tenés una clase próximamente, revisá tu agenda!"
	}
	report := n.Dispatcher.Dispatch(ctx, recipients, channels.Message{
		Type:      models.EventClassReminderNext,
		Title:     "Recordatorio de clase",
		Body:      body,
		URL:       "/schedule",
		LaunchURL: "agendo://schedule",
		Data: map[string]interface{}{
			"classId": classID,
			"date":    date.UTC().Format(time.RFC3339),
		},
	})
	return report, nil
}

// PaymentPending fans out the pending-payment warning for one plan,
// after verifying the student really belongs to the academy.
func (n *Notifier) PaymentPending(ctx context.Context, academyID, studentID, planID uint) (DispatchReport, error) {
	plan, err := n.loadPlan(ctx, academyID, studentID, planID)
	if err != nil {
		return DispatchReport{}, err
	}

	report := n.notifyPlanReport(ctx, plan, paymentPendingTexts)
	return report, nil
}

// BalanceReminder fans out the low-classes-with-balance warning.
func (n *Notifier) BalanceReminder(ctx context.Context, academyID, studentID, planID uint, balance float64) (DispatchReport, error) {
	plan, err := n.loadPlan(ctx, academyID, studentID, planID)
	if err != nil {
		return DispatchReport{}, err
	}

	report := n.notifyPlanReport(ctx, plan, balanceReminderTexts(balance))
	return report, nil
}

// PaymentRegistered confirms a registered payment to the student and
// the admins. Billing contract: the admins also get an email copy
// with the fixed operational addresses CC'd, so the money trail is
// visible even if push fails silently.
func (n *Notifier) PaymentRegistered(ctx context.Context, academyID, studentID, planID uint, amount float64) (DispatchReport, error) {
	plan, err := n.loadPlan(ctx, academyID, studentID, planID)
	if err != nil {
		return DispatchReport{}, err
	}

	amountText := utils.FormatGuarani(amount)
	data := map[string]interface{}{
		"academyId":     academyID,
		"studentId":     studentID,
		"studentPlanId": planID,
	}

	var studentName string
	userByStudent, err := n.userByStudent(ctx, []uint{studentID})
	if err != nil {
		return DispatchReport{}, err
	}
	report := DispatchReport{Channels: map[string]channels.Result{}}

	if userID, ok := userByStudent[studentID]; ok {
		names, nameErr := n.fullNames(ctx, []uint{userID})
		if nameErr == nil {
			studentName = names[userID]
		}

		recipients, resErr := n.Resolver.ResolveUsers(ctx, academyID, []uint{userID})
		if resErr != nil {
			return DispatchReport{}, resErr
		}
		if len(recipients) > 0 {
			report = n.Dispatcher.Dispatch(ctx, recipients, channels.Message{
				Type:      EventPaymentRegistered + "_student",
				Title:     "Pago registrado",
				Body:      fmt.Sprintf("Se registró tu pago de %s del plan “%s”. Gracias!", amountText, plan.PlanName),
				URL:       "/finance",
				LaunchURL: "agendo://finance",
				Data:      data,
			})
		}
	}

	admins, err := n.Resolver.ResolveAdmins(ctx, academyID)
	if err != nil {
		return DispatchReport{}, err
	}
	if len(admins) > 0 {
		who := ""
		if studentName != "" {
			who = studentName + ": "
		}
		body := fmt.Sprintf("%sse registró un pago de %s del plan “%s”.", who, amountText, plan.PlanName)

		adminEmails, emailErr := n.emailsOf(ctx, admins)
		if emailErr != nil {
			utils.ErrorLogger.Printf("payment-registered: load admin emails: %v", emailErr)
		}

		adminReport := n.Dispatcher.Dispatch(ctx, admins, channels.Message{
			Type:      EventPaymentRegistered + "_admin",
			Title:     "Pago registrado",
			Body:      body,
			URL:       "/finance",
			LaunchURL: "agendo://finance",
			Data:      data,
			Email: &channels.EmailContent{
				Subject: "Pago registrado",
				HTML:    billingEmailHTML("Pago registrado", body, n.AppBaseURL+"/finance"),
				To:      adminEmails,
			},
		})
		report = mergeReports(report, adminReport)
	}

	return report, nil
}

// BirthdayStudent pushes the birthday greeting to one member, after
// the tenant check. Manual re-sends land here; the scheduled path has
// its own ledger gate.
func (n *Notifier) BirthdayStudent(ctx context.Context, academyID, userID uint) (DispatchReport, error) {
	member, err := n.Resolver.IsActiveMember(ctx, academyID, userID)
	if err != nil {
		return DispatchReport{}, err
	}
	if !member {
		return DispatchReport{}, ErrNotAMember
	}

	recipients, err := n.Resolver.ResolveUsers(ctx, academyID, []uint{userID})
	if err != nil {
		return DispatchReport{}, err
	}
	if len(recipients) == 0 {
		return DispatchReport{Channels: map[string]channels.Result{}}, nil
	}

	report := n.Dispatcher.Dispatch(ctx, recipients, channels.Message{
		Type:      models.EventBirthdayStudentToday,
		Title:     "¡Feliz cumpleaños! 🎉",
		Body:      "Todo el equipo de la academia te desea un excelente día!",
		URL:       "/",
		LaunchURL: "agendo://",
	})
	return report, nil
}

// BirthdayAdmins broadcasts tomorrow's birthday list to an academy's
// admin tier.
func (n *Notifier) BirthdayAdmins(ctx context.Context, academyID uint, names []string) (DispatchReport, error) {
	admins, err := n.Resolver.ResolveAdmins(ctx, academyID)
	if err != nil {
		return DispatchReport{}, err
	}
	if len(admins) == 0 {
		return DispatchReport{Channels: map[string]channels.Result{}}, nil
	}

	report := n.Dispatcher.Dispatch(ctx, admins, channels.Message{
		Type:      models.EventBirthdayAdminTom,
		Title:     "Cumpleaños mañana 🎂",
		Body:      fmt.Sprintf("Mañana cumplen años: %s", strings.Join(names, ", ")),
		URL:       "/students",
		LaunchURL: "agendo://students",
		Data:      map[string]interface{}{"academyId": academyID},
	})
	return report, nil
}

// AttendancePending broadcasts the unmarked-attendance nudge to an
// academy's admins plus the named coach users.
func (n *Notifier) AttendancePending(ctx context.Context, academyID uint, coachUserIDs []uint) (DispatchReport, error) {
	admins, err := n.Resolver.ResolveAdmins(ctx, academyID)
	if err != nil {
		return DispatchReport{}, err
	}
	coaches, err := n.Resolver.ResolveUsers(ctx, academyID, coachUserIDs)
	if err != nil {
		return DispatchReport{}, err
	}

	recipients := dedupeIDs(append(admins, coaches...))
	if len(recipients) == 0 {
		return DispatchReport{Channels: map[string]channels.Result{}}, nil
	}

	report := n.Dispatcher.Dispatch(ctx, recipients, channels.Message{
		Type:      models.EventAttendancePending,
		Title:     "Asistencia pendiente",
		Body:      "Hay clases aún sin marcar asistencia, revisá la agenda",
		URL:       "/schedule",
		LaunchURL: "agendo://schedule",
		Data:      map[string]interface{}{"academyId": academyID},
	})
	return report, nil
}

// SendTest pushes a test message to every device of one user,
// bypassing resolution. Used to verify a device registration.
func (n *Notifier) SendTest(ctx context.Context, userID uint) (DispatchReport, error) {
	report := n.Dispatcher.Dispatch(ctx, []uint{userID}, channels.Message{
		Type:  EventTest,
		Title: "Notificación de prueba",
		Body:  "Si ves esto, las notificaciones están funcionando.",
		URL:   "/",
	})
	return report, nil
}

// notifyPlanReport is notifyPlan with the aggregated report kept.
func (n *Notifier) notifyPlanReport(ctx context.Context, plan models.StudentPlan, texts planTexts) DispatchReport {
	report := DispatchReport{Channels: map[string]channels.Result{}}
	data := map[string]interface{}{
		"academyId":     plan.AcademyID,
		"studentId":     plan.StudentID,
		"studentPlanId": plan.ID,
	}

	userByStudent, err := n.userByStudent(ctx, []uint{plan.StudentID})
	if err != nil {
		utils.ErrorLogger.Printf("%s: resolve student %d: %v", texts.eventType, plan.StudentID, err)
		return report
	}

	var studentName string
	if userID, ok := userByStudent[plan.StudentID]; ok {
		names, nameErr := n.fullNames(ctx, []uint{userID})
		if nameErr == nil {
			studentName = names[userID]
		}

		recipients, resErr := n.Resolver.ResolveUsers(ctx, plan.AcademyID, []uint{userID})
		if resErr != nil {
			utils.ErrorLogger.Printf("%s: resolve user %d: %v", texts.eventType, userID, resErr)
		} else if len(recipients) > 0 {
			report = n.Dispatcher.Dispatch(ctx, recipients, channels.Message{
				Type:      texts.eventType + "_student",
				Title:     texts.title,
				Body:      texts.studentBody,
				URL:       "/finance",
				LaunchURL: "agendo://finance",
				Data:      data,
			})
		}
	}

	admins, err := n.Resolver.ResolveAdmins(ctx, plan.AcademyID)
	if err != nil {
		utils.ErrorLogger.Printf("%s: resolve admins of academy %d: %v", texts.eventType, plan.AcademyID, err)
		return report
	}
	if len(admins) > 0 {
		adminReport := n.Dispatcher.Dispatch(ctx, admins, channels.Message{
			Type:      texts.eventType + "_admin",
			Title:     texts.title,
			Body:      texts.adminBody(studentName, plan.PlanName),
			URL:       "/finance",
			LaunchURL: "agendo://finance",
			Data:      data,
		})
		report = mergeReports(report, adminReport)
	}

	return report
}

// loadPlan fetches the plan and enforces the tenant boundary before
// anything is sent.
func (n *Notifier) loadPlan(ctx context.Context, academyID, studentID, planID uint) (models.StudentPlan, error) {
	var plan models.StudentPlan
	err := n.DB.WithContext(ctx).
		Where("id = ? AND student_id = ? AND academy_id = ?", planID, studentID, academyID).
		First(&plan).Error
	if err != nil {
		return models.StudentPlan{}, ErrPlanNotFound
	}

	userByStudent, err := n.userByStudent(ctx, []uint{studentID})
	if err != nil {
		return models.StudentPlan{}, err
	}
	userID, ok := userByStudent[studentID]
	if !ok {
		return models.StudentPlan{}, ErrStudentHasNoUser
	}

	member, err := n.Resolver.IsActiveMember(ctx, academyID, userID)
	if err != nil {
		return models.StudentPlan{}, err
	}
	if !member {
		return models.StudentPlan{}, ErrNotAMember
	}
	return plan, nil
}

// academyOfClass resolves a class session's academy via the resource
// hierarchy (class -> court -> location -> academy).
func (n *Notifier) academyOfClass(ctx context.Context, classID uint) (uint, error) {
	var session models.ClassSession
	if err := n.DB.WithContext(ctx).First(&session, classID).Error; err != nil {
		return 0, err
	}

	locByCourt, err := n.locationByCourt(ctx, []uint{session.CourtID})
	if err != nil {
		return 0, err
	}
	locID, ok := locByCourt[session.CourtID]
	if !ok {
		return 0, fmt.Errorf("class %d has no location mapping", classID)
	}

	academyByLoc, err := n.academyByLocation(ctx, []uint{locID})
	if err != nil {
		return 0, err
	}
	academyID, ok := academyByLoc[locID]
	if !ok {
		return 0, fmt.Errorf("location %d is not assigned to an academy", locID)
	}
	return academyID, nil
}

func (n *Notifier) emailsOf(ctx context.Context, userIDs []uint) ([]string, error) {
	var profiles []models.Profile
	err := n.DB.WithContext(ctx).Where("id IN ?", userIDs).Find(&profiles).Error
	if err != nil {
		return nil, err
	}

	var out []string
	for _, p := range profiles {
		if p.Email != "" {
			out = append(out, p.Email)
		}
	}
	return out, nil
}

func mergeReports(a, b DispatchReport) DispatchReport {
	merged := DispatchReport{Channels: make(map[string]channels.Result)}
	for name, res := range a.Channels {
		merged.Channels[name] = res
	}
	for name, res := range b.Channels {
		prev := merged.Channels[name]
		merged.Channels[name] = channels.Result{OK: prev.OK + res.OK, Total: prev.Total + res.Total}
	}
	merged.Skipped = append(merged.Skipped, a.Skipped...)
	for _, name := range b.Skipped {
		found := false
		for _, existing := range merged.Skipped {
			if existing == name {
				found = true
				break
			}
		}
		if !found {
			merged.Skipped = append(merged.Skipped, name)
		}
	}
	return merged
}

// billingEmailHTML is the shared shell of the billing emails.
func billingEmailHTML(title, body, ctaHref string) string {
	cta := ""
	if ctaHref != "" {
		cta = fmt.Sprintf(`<div style="margin:18px 0;text-align:center;">
  <a href="%s" style="display:inline-block;padding:10px 20px;border-radius:999px;background:#3cadaf;color:#ffffff;font-weight:600;text-decoration:none;">Abrir Finanzas</a>
</div>`, ctaHref)
	}
	return fmt.Sprintf(`<div style="font-family:system-ui,sans-serif;padding:24px;">
  <h1 style="font-size:20px;">%s</h1>
  <p style="font-size:14px;line-height:1.6;">%s</p>
  %s
</div>`, title, body, cta)
}
