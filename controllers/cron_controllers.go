package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nativatech/agendo-notifier/services"
	"github.com/nativatech/agendo-notifier/utils"
)

// CronController exposes one trigger endpoint per detector category.
// The scheduler hits these; the endpoints are idempotent because all
// dedup lives in the event ledger, so an overlapping or repeated
// trigger only costs a scan.
type CronController struct {
	Detectors []services.Detector
}

func NewCronController(detectors ...services.Detector) *CronController {
	return &CronController{Detectors: detectors}
}

// Handler returns the gin handler of one category. Query params:
// debug=1 attaches the debug payload, force=1 bypasses age thresholds.
func (cc *CronController) Handler(det services.Detector) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := services.RunOptions{
			Debug: c.Query("debug") == "1",
			Force: c.Query("force") == "1",
		}

		report, err := det.Run(c.Request.Context(), opts)
		if err != nil {
			utils.ErrorLogger.Printf("cron %s: %v", det.Name(), err)
			utils.RespondError(c, http.StatusInternalServerError, errors.New("detector run failed"))
			return
		}

		c.JSON(http.StatusOK, report)
	}
}
