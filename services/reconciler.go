package services

import (
	"net/http"

	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
	"gorm.io/gorm"
)

// SubscriptionReconciler removes dead push endpoints. Only a
// permanent-gone status deletes the row; every other failure is left
// alone, because the next event targeting the same user is the retry.
type SubscriptionReconciler struct {
	DB *gorm.DB
}

func NewSubscriptionReconciler(db *gorm.DB) *SubscriptionReconciler {
	return &SubscriptionReconciler{DB: db}
}

// HandleFailure implements channels.FailureHandler. The delete is a
// single row keyed by endpoint; sibling subscriptions of the same
// user are untouched.
func (r *SubscriptionReconciler) HandleFailure(endpoint string, statusCode int) {
	if statusCode != http.StatusNotFound && statusCode != http.StatusGone {
		return
	}

	if err := r.DB.Where("endpoint = ?", endpoint).Delete(&models.PushSubscription{}).Error; err != nil {
		utils.ErrorLogger.Printf("reconciler: delete endpoint: %v", err)
		return
	}
	utils.InfoLogger.Printf("reconciler: removed permanently-gone endpoint (status %d)", statusCode)
}
