package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nativatech/agendo-notifier/models"
	"github.com/nativatech/agendo-notifier/utils"
	"gorm.io/gorm"
)

// RunOptions are the per-invocation flags of a detector run. Force
// bypasses age thresholds (manual testing); Debug attaches the debug
// payload to the report.
type RunOptions struct {
	Debug bool
	Force bool
}

// RunReport is the run-level outcome handed back to the scheduler.
// A zero-candidate run is a normal result, not an error.
type RunReport struct {
	OK         bool                   `json:"ok"`
	Checked    int                    `json:"checked"`
	Candidates int                    `json:"candidates"`
	Inserted   int                    `json:"inserted"`
	Notified   int                    `json:"notified"`
	Debug      map[string]interface{} `json:"debug,omitempty"`
}

// Detector is one notification category. Runs are stateless units of
// work: all cross-run state lives in the ledger and the domain
// tables, so concurrent runs of the same category are safe.
type Detector interface {
	Name() string
	Run(ctx context.Context, opts RunOptions) (RunReport, error)
}

// DetectorBase carries the collaborators every category shares. Now
// is swappable so day-boundary behavior is testable at fixed instants.
type DetectorBase struct {
	DB         *gorm.DB
	Ledger     *EventLedger
	Resolver   *RecipientResolver
	Dispatcher *Dispatcher

	// Fixed UTC offset for civil-day arithmetic.
	UTCOffsetHours int

	Now func() time.Time
}

func (b *DetectorBase) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// logRun emits the structured run-level line with a fresh correlation id.
func (b *DetectorBase) logRun(name string, report RunReport) {
	utils.InfoLogger.Printf("detector %s run %s: checked=%d candidates=%d inserted=%d notified=%d",
		name, uuid.NewString()[:8], report.Checked, report.Candidates, report.Inserted, report.Notified)
}

// academyByLocation resolves location ids to academy ids. Locations
// with no mapping are simply absent from the result; candidates that
// hit them are dropped silently by the callers.
func (b *DetectorBase) academyByLocation(ctx context.Context, locationIDs []uint) (map[uint]uint, error) {
	out := make(map[uint]uint)
	if len(locationIDs) == 0 {
		return out, nil
	}

	var rows []models.AcademyLocation
	if err := b.DB.WithContext(ctx).Where("location_id IN ?", locationIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, dup := out[row.LocationID]; !dup {
			out[row.LocationID] = row.AcademyID
		}
	}
	return out, nil
}

// locationByCourt resolves court ids to their location.
func (b *DetectorBase) locationByCourt(ctx context.Context, courtIDs []uint) (map[uint]uint, error) {
	out := make(map[uint]uint)
	if len(courtIDs) == 0 {
		return out, nil
	}

	var rows []models.Court
	if err := b.DB.WithContext(ctx).Where("id IN ?", courtIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.LocationID
	}
	return out, nil
}

// userByStudent resolves student ids to their user account.
func (b *DetectorBase) userByStudent(ctx context.Context, studentIDs []uint) (map[uint]uint, error) {
	out := make(map[uint]uint)
	if len(studentIDs) == 0 {
		return out, nil
	}

	var rows []models.Student
	if err := b.DB.WithContext(ctx).Where("id IN ?", studentIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.UserID
	}
	return out, nil
}

// fullNames resolves user ids to profile names for message bodies.
func (b *DetectorBase) fullNames(ctx context.Context, userIDs []uint) (map[uint]string, error) {
	out := make(map[uint]string)
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []models.Profile
	if err := b.DB.WithContext(ctx).Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.FullName != "" {
			out[row.ID] = row.FullName
		}
	}
	return out, nil
}

func uintPtr(v uint) *uint    { return &v }
func strPtr(v string) *string { return &v }
