package router

import (
	"github.com/gin-gonic/gin"
	"github.com/nativatech/agendo-notifier/channels"
	"github.com/nativatech/agendo-notifier/config"
	"github.com/nativatech/agendo-notifier/controllers"
	"github.com/nativatech/agendo-notifier/middlewares"
	"github.com/nativatech/agendo-notifier/services"
	"gorm.io/gorm"
)

// SetupRouter wires the whole engine: channels behind the dispatcher,
// the detectors behind the cron group and the feed/subscription
// surface around them.
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.NewRateLimiter(50, 100).RateLimit())

	reconciler := services.NewSubscriptionReconciler(db)
	dispatcher := services.NewDispatcher(
		channels.NewInApp(db),
		channels.NewWebPush(db, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject, reconciler),
		channels.NewOneSignal(cfg.OneSignalAppID, cfg.OneSignalAPIKey, cfg.AppBaseURL),
		channels.NewEmail(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.NotifyCCEmails),
	)

	base := services.DetectorBase{
		DB:             db,
		Ledger:         services.NewEventLedger(db),
		Resolver:       services.NewRecipientResolver(db),
		Dispatcher:     dispatcher,
		UTCOffsetHours: cfg.UTCOffsetHours,
	}

	cronController := controllers.NewCronController(
		services.NewClassReminderDetector(base),
		services.NewClassReminderTomorrowDetector(base),
		services.NewPaymentPendingDetector(base),
		services.NewBalanceReminderDetector(base),
		services.NewBirthdayStudentTodayDetector(base),
		services.NewBirthdayAdminTomorrowDetector(base),
		services.NewAttendancePendingDetector(base),
	)
	dispatchController := controllers.NewDispatchController(
		services.NewNotifier(base, cfg.AppBaseURL),
	)
	notificationController := controllers.NewNotificationController(db)
	subscriptionController := controllers.NewPushSubscriptionController(db)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	cron := r.Group("/cron")
	cron.Use(middlewares.SchedulerAuth(cfg.CronSecret))
	{
		for _, det := range cronController.Detectors {
			handler := cronController.Handler(det)
			cron.POST("/"+det.Name(), handler)
			cron.GET("/"+det.Name(), handler)
		}
	}

	push := r.Group("/push")
	{
		push.POST("/subscribe", middlewares.NewStrictRateLimiter(), subscriptionController.Subscribe)
		push.GET("/subscriptions/:id", subscriptionController.List)
		push.DELETE("/subscriptions", subscriptionController.Unsubscribe)
		push.POST("/send-test", dispatchController.SendTest)

		push.POST("/class-created", dispatchController.ClassCreated)
		push.POST("/class-cancelled", dispatchController.ClassCancelled)
		push.POST("/class-rescheduled", dispatchController.ClassRescheduled)
		push.POST("/class-reminder", dispatchController.ClassReminder)
		push.POST("/payment-pending", dispatchController.PaymentPending)
		push.POST("/payment-registered", dispatchController.PaymentRegistered)
		push.POST("/balance-reminder", dispatchController.BalanceReminder)
		push.POST("/birthday-student", dispatchController.BirthdayStudent)
		push.POST("/birthday-admins", dispatchController.BirthdayAdmins)
		push.POST("/attendance-pending", dispatchController.AttendancePending)
	}

	notifications := r.Group("/notifications")
	{
		notifications.GET("/ws", notificationController.Feed)
		notifications.GET("/:id", notificationController.List)
		notifications.GET("/:id/unread-count", notificationController.UnreadCount)
		notifications.PATCH("/:id/read", notificationController.MarkRead)
	}

	return r
}
