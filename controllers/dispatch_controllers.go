package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nativatech/agendo-notifier/services"
	"github.com/nativatech/agendo-notifier/utils"
)

// DispatchController serves the internal push endpoints: transactional
// flows in other backend services call these when a domain action
// already happened and the affected people need to hear about it.
type DispatchController struct {
	Notifier *services.Notifier
}

func NewDispatchController(notifier *services.Notifier) *DispatchController {
	return &DispatchController{Notifier: notifier}
}

type classEventRequest struct {
	AcademyID  uint   `json:"academy_id" binding:"required"`
	ClassID    uint   `json:"class_id" binding:"required"`
	StudentIDs []uint `json:"student_ids" binding:"required"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

func (dc *DispatchController) ClassCreated(c *gin.Context) {
	dc.classEvent(c, services.EventClassCreated, "Nueva clase", "Tenés una nueva clase agendada. Revisá tu agenda!")
}

func (dc *DispatchController) ClassCancelled(c *gin.Context) {
	dc.classEvent(c, services.EventClassCancelled, "Clase cancelada", "Una de tus clases fue cancelada. Revisá tu agenda!")
}

func (dc *DispatchController) ClassRescheduled(c *gin.Context) {
	dc.classEvent(c, services.EventClassRescheduled, "Clase reprogramada", "Una de tus clases cambió de horario. Revisá tu agenda!")
}

func (dc *DispatchController) classEvent(c *gin.Context, eventType, defaultTitle, defaultBody string) {
	var req classEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	title := req.Title
	if title == "" {
		title = defaultTitle
	}
	body := req.Body
	if body == "" {
		body = defaultBody
	}

	report, err := dc.Notifier.ClassEvent(c.Request.Context(), eventType, req.AcademyID, req.ClassID, req.StudentIDs, title, body)
	if err != nil {
		utils.ErrorLogger.Printf("dispatch %s: %v", eventType, err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("dispatch failed"))
		return
	}
	respondReport(c, report)
}

type classReminderRequest struct {
	StudentID uint   `json:"student_id" binding:"required"`
	ClassID   uint   `json:"class_id" binding:"required"`
	DateISO   string `json:"date_iso" binding:"required"`
	Body      string `json:"body"`
}

func (dc *DispatchController) ClassReminder(c *gin.Context) {
	var req classReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	date, err := time.Parse(time.RFC3339, req.DateISO)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("date_iso must be RFC3339"))
		return
	}

	report, err := dc.Notifier.ClassReminder(c.Request.Context(), req.StudentID, req.ClassID, date, req.Body)
	if err != nil {
		dc.respondDispatchError(c, "class-reminder", err)
		return
	}
	respondReport(c, report)
}

type planEventRequest struct {
	AcademyID     uint    `json:"academy_id" binding:"required"`
	StudentID     uint    `json:"student_id" binding:"required"`
	StudentPlanID uint    `json:"student_plan_id" binding:"required"`
	Amount        float64 `json:"amount"`
	Balance       float64 `json:"balance"`
}

func (dc *DispatchController) PaymentPending(c *gin.Context) {
	var req planEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	report, err := dc.Notifier.PaymentPending(c.Request.Context(), req.AcademyID, req.StudentID, req.StudentPlanID)
	if err != nil {
		dc.respondDispatchError(c, "payment-pending", err)
		return
	}
	respondReport(c, report)
}

func (dc *DispatchController) PaymentRegistered(c *gin.Context) {
	var req planEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Amount <= 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("amount must be positive"))
		return
	}

	report, err := dc.Notifier.PaymentRegistered(c.Request.Context(), req.AcademyID, req.StudentID, req.StudentPlanID, req.Amount)
	if err != nil {
		dc.respondDispatchError(c, "payment-registered", err)
		return
	}
	respondReport(c, report)
}

func (dc *DispatchController) BalanceReminder(c *gin.Context) {
	var req planEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Balance <= 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("balance must be positive"))
		return
	}

	report, err := dc.Notifier.BalanceReminder(c.Request.Context(), req.AcademyID, req.StudentID, req.StudentPlanID, req.Balance)
	if err != nil {
		dc.respondDispatchError(c, "balance-reminder", err)
		return
	}
	respondReport(c, report)
}

type birthdayStudentRequest struct {
	AcademyID uint `json:"academy_id" binding:"required"`
	UserID    uint `json:"user_id" binding:"required"`
}

func (dc *DispatchController) BirthdayStudent(c *gin.Context) {
	var req birthdayStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	report, err := dc.Notifier.BirthdayStudent(c.Request.Context(), req.AcademyID, req.UserID)
	if err != nil {
		dc.respondDispatchError(c, "birthday-student", err)
		return
	}
	respondReport(c, report)
}

type birthdayAdminsRequest struct {
	AcademyID uint     `json:"academy_id" binding:"required"`
	Names     []string `json:"names" binding:"required,min=1"`
}

func (dc *DispatchController) BirthdayAdmins(c *gin.Context) {
	var req birthdayAdminsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	report, err := dc.Notifier.BirthdayAdmins(c.Request.Context(), req.AcademyID, req.Names)
	if err != nil {
		dc.respondDispatchError(c, "birthday-admins", err)
		return
	}
	respondReport(c, report)
}

type attendancePendingRequest struct {
	AcademyID    uint   `json:"academy_id" binding:"required"`
	CoachUserIDs []uint `json:"coach_user_ids"`
}

func (dc *DispatchController) AttendancePending(c *gin.Context) {
	var req attendancePendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	report, err := dc.Notifier.AttendancePending(c.Request.Context(), req.AcademyID, req.CoachUserIDs)
	if err != nil {
		dc.respondDispatchError(c, "attendance-pending", err)
		return
	}
	respondReport(c, report)
}

type sendTestRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

func (dc *DispatchController) SendTest(c *gin.Context) {
	var req sendTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	report, err := dc.Notifier.SendTest(c.Request.Context(), req.UserID)
	if err != nil {
		dc.respondDispatchError(c, "send-test", err)
		return
	}
	respondReport(c, report)
}

// respondDispatchError maps the notifier's sentinel errors onto the
// client/server boundary: bad references are the caller's fault.
func (dc *DispatchController) respondDispatchError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, services.ErrPlanNotFound),
		errors.Is(err, services.ErrStudentHasNoUser):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrNotAMember):
		utils.RespondError(c, http.StatusForbidden, err)
	default:
		utils.ErrorLogger.Printf("dispatch %s: %v", op, err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("dispatch failed"))
	}
}

func respondReport(c *gin.Context, report services.DispatchReport) {
	c.JSON(http.StatusOK, gin.H{
		"ok":       report.OK(),
		"total":    report.Total(),
		"channels": report.Channels,
		"skipped":  report.Skipped,
	})
}
