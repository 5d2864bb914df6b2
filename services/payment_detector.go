package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nativatech/agendo-notifier/channels"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
)

// planAge is how long after assignment a plan may sit before the
// payment reminders start looking at it, so nobody gets nagged the
// minute an admin assigns a plan.
const planAge = 12 * time.Hour

// PaymentPendingDetector finds plans assigned long enough ago that
// still have no paid payment, and tells the student plus the academy
// admins once per plan.
type PaymentPendingDetector struct {
	DetectorBase
}

func NewPaymentPendingDetector(base DetectorBase) *PaymentPendingDetector {
	return &PaymentPendingDetector{DetectorBase: base}
}

func (d *PaymentPendingDetector) Name() string { return "payment-pending" }

func (d *PaymentPendingDetector) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	report := RunReport{OK: true}
	now := d.now()

	cutoff := now.Add(-planAge)
	if opts.Force {
		cutoff = now
	}

	var plans []models.StudentPlan
	if err := d.DB.WithContext(ctx).Where("purchased_at <= ?", cutoff).Find(&plans).Error; err != nil {
		return RunReport{}, err
	}
	report.Candidates = len(plans)
	if len(plans) == 0 {
		d.logRun(d.Name(), report)
		return report, nil
	}

	planIDs := make([]uint, 0, len(plans))
	for _, p := range plans {
		planIDs = append(planIDs, p.ID)
	}

	var paidIDs []uint
	err := d.DB.WithContext(ctx).
		Model(&models.Payment{}).
		Where("student_plan_id IN ? AND status = ?", planIDs, models.PaymentPaid).
		Distinct().
		Pluck("student_plan_id", &paidIDs).Error
	if err != nil {
		return RunReport{}, err
	}
	paid := make(map[uint]struct{}, len(paidIDs))
	for _, id := range paidIDs {
		paid[id] = struct{}{}
	}

	for _, plan := range plans {
		if _, has := paid[plan.ID]; has {
			continue
		}
		report.Checked++

		event := models.NotificationEvent{
			AcademyID:     uintPtr(plan.AcademyID),
			StudentID:     uintPtr(plan.StudentID),
			StudentPlanID: uintPtr(plan.ID),
			EventType:     models.EventPaymentPending,
		}
		fresh, err := d.Ledger.Register(ctx, &event)
		if err != nil {
			utils.ErrorLogger.Printf("payment-pending: ledger for plan %d: %v", plan.ID, err)
			continue
		}
		if !fresh {
			continue
		}
		report.Inserted++

		if d.notifyPlan(ctx, plan, paymentPendingTexts) {
			report.Notified++
		}
	}

	if opts.Debug {
		report.Debug = map[string]interface{}{"force": opts.Force, "cutoff": cutoff.UTC().Format(time.RFC3339)}
	}
	d.logRun(d.Name(), report)
	return report, nil
}

// BalanceReminderDetector fires when a plan is down to exactly two
// remaining classes while money is still owed on it.
type BalanceReminderDetector struct {
	DetectorBase
}

func NewBalanceReminderDetector(base DetectorBase) *BalanceReminderDetector {
	return &BalanceReminderDetector{DetectorBase: base}
}

func (d *BalanceReminderDetector) Name() string { return "balance-reminder" }

func (d *BalanceReminderDetector) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	report := RunReport{OK: true}
	now := d.now()

	cutoff := now.Add(-planAge)
	if opts.Force {
		cutoff = now
	}

	var plans []models.StudentPlan
	if err := d.DB.WithContext(ctx).Where("purchased_at <= ?", cutoff).Find(&plans).Error; err != nil {
		return RunReport{}, err
	}
	report.Candidates = len(plans)

	for _, plan := range plans {
		remaining, balance, err := d.planStanding(ctx, plan)
		if err != nil {
			return RunReport{}, err
		}
		if remaining != 2 || balance <= 0 {
			continue
		}
		report.Checked++

		event := models.NotificationEvent{
			AcademyID:     uintPtr(plan.AcademyID),
			StudentID:     uintPtr(plan.StudentID),
			StudentPlanID: uintPtr(plan.ID),
			EventType:     models.EventBalancePending,
		}
		fresh, err := d.Ledger.Register(ctx, &event)
		if err != nil {
			utils.ErrorLogger.Printf("balance-reminder: ledger for plan %d: %v", plan.ID, err)
			continue
		}
		if !fresh {
			continue
		}
		report.Inserted++

		texts := balanceReminderTexts(balance)
		if d.notifyPlan(ctx, plan, texts) {
			report.Notified++
		}
	}

	if opts.Debug {
		report.Debug = map[string]interface{}{"force": opts.Force}
	}
	d.logRun(d.Name(), report)
	return report, nil
}

// planStanding computes real remaining classes (stored remaining
// minus recorded usages, floored at zero) and the outstanding balance
// (final price minus paid amounts, floored at zero).
func (d *BalanceReminderDetector) planStanding(ctx context.Context, plan models.StudentPlan) (int, float64, error) {
	var used int64
	err := d.DB.WithContext(ctx).
		Model(&models.PlanUsage{}).
		Where("student_plan_id = ? AND student_id = ?", plan.ID, plan.StudentID).
		Count(&used).Error
	if err != nil {
		return 0, 0, err
	}

	remaining := plan.RemainingClasses - int(used)
	if remaining < 0 {
		remaining = 0
	}

	var totalPaid float64
	err = d.DB.WithContext(ctx).
		Model(&models.Payment{}).
		Where("student_plan_id = ? AND status = ?", plan.ID, models.PaymentPaid).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&totalPaid).Error
	if err != nil {
		return 0, 0, err
	}

	balance := plan.FinalPrice - totalPaid
	if balance < 0 {
		balance = 0
	}
	return remaining, balance, nil
}

// planTexts are the student/admin message pair of one plan category.
type planTexts struct {
	eventType   string
	title       string
	studentBody string
	adminBody   func(studentName, planName string) string
}

var paymentPendingTexts = planTexts{
	eventType:   models.EventPaymentPending,
	title:       "Pago pendiente",
	studentBody: "Se asignó tu plan y aún no se registró el pago. Si ya pagaste, avisá al admin para que lo registre.",
	adminBody: func(studentName, planName string) string {
		who := ""
		if studentName != "" {
			who = studentName + ": "
		}
		return fmt.Sprintf("%sPlan “%s” asignado y aún no se registró ningún pago.", who, planName)
	},
}

func balanceReminderTexts(balance float64) planTexts {
	amount := utils.FormatGuarani(balance)
	return planTexts{
		eventType:   models.EventBalancePending,
		title:       "Saldo pendiente",
		studentBody: fmt.Sprintf("Te quedan 2 clases y tenés un saldo pendiente de %s. Acercate a regularizarlo!", amount),
		adminBody: func(studentName, planName string) string {
			who := ""
			if studentName != "" {
				who = studentName + ": "
			}
			return fmt.Sprintf("%squedan 2 clases del plan “%s” con saldo pendiente de %s.", who, planName, amount)
		},
	}
}

// notifyPlan fans a plan event out to the student and the academy's
// admin tier, with distinct bodies. Returns true when anything was
// delivered anywhere.
func (b *DetectorBase) notifyPlan(ctx context.Context, plan models.StudentPlan, texts planTexts) bool {
	data := map[string]interface{}{
		"academyId":     plan.AcademyID,
		"studentId":     plan.StudentID,
		"studentPlanId": plan.ID,
	}
	notified := false

	userByStudent, err := b.userByStudent(ctx, []uint{plan.StudentID})
	if err != nil {
		utils.ErrorLogger.Printf("%s: resolve student %d: %v", texts.eventType, plan.StudentID, err)
		return false
	}

	var studentName string
	studentUserID, hasUser := userByStudent[plan.StudentID]
	if hasUser {
		names, err := b.fullNames(ctx, []uint{studentUserID})
		if err == nil {
			studentName = names[studentUserID]
		}

		recipients, err := b.Resolver.ResolveUsers(ctx, plan.AcademyID, []uint{studentUserID})
		if err != nil {
			utils.ErrorLogger.Printf("%s: resolve user %d: %v", texts.eventType, studentUserID, err)
		} else if len(recipients) > 0 {
			res := b.Dispatcher.Dispatch(ctx, recipients, channels.Message{
				Type:      texts.eventType + "_student",
				Title:     texts.title,
				Body:      texts.studentBody,
				URL:       "/finance",
				LaunchURL: "agendo://finance",
				Data:      data,
			})
			notified = notified || res.OK() > 0
		}
	}

	admins, err := b.Resolver.ResolveAdmins(ctx, plan.AcademyID)
	if err != nil {
		utils.ErrorLogger.Printf("%s: resolve admins of academy %d: %v", texts.eventType, plan.AcademyID, err)
		return notified
	}
	if len(admins) > 0 {
		res := b.Dispatcher.Dispatch(ctx, admins, channels.Message{
			Type:      texts.eventType + "_admin",
			Title:     texts.title,
			Body:      texts.adminBody(studentName, plan.PlanName),
			URL:       "/finance",
			LaunchURL: "agendo://finance",
			Data:      data,
		})
		notified = notified || res.OK() > 0
	}

	return notified
}
