package services

import (
	"context"

	"github.com/nativatech/agendo-notifier/models"
	"gorm.io/gorm"
)

// RecipientResolver turns (academy, users-or-role) into the
// preference-filtered recipient set. The academy boundary is a hard
// invariant: a user without an active membership row for the academy
// never comes back, whatever their role or preference says.
type RecipientResolver struct {
	DB *gorm.DB
}

func NewRecipientResolver(db *gorm.DB) *RecipientResolver {
	return &RecipientResolver{DB: db}
}

// ResolveUsers narrows candidate user ids to active members of the
// academy who have not opted out. Order of filters matters: the
// membership check short-circuits to empty before preferences are
// even read.
func (r *RecipientResolver) ResolveUsers(ctx context.Context, academyID uint, userIDs []uint) ([]uint, error) {
	userIDs = dedupeIDs(userIDs)
	if len(userIDs) == 0 {
		return nil, nil
	}

	var active []uint
	err := r.DB.WithContext(ctx).
		Model(&models.UserAcademy{}).
		Where("academy_id = ? AND user_id IN ? AND is_active = ?", academyID, userIDs, true).
		Distinct().
		Pluck("user_id", &active).Error
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}

	return r.filterEnabled(ctx, active)
}

// ResolveAdmins returns the admin-tier recipients of an academy for
// staff broadcast categories.
func (r *RecipientResolver) ResolveAdmins(ctx context.Context, academyID uint) ([]uint, error) {
	var admins []uint
	err := r.DB.WithContext(ctx).
		Model(&models.UserAcademy{}).
		Where("academy_id = ? AND is_active = ? AND role IN ?",
			academyID, true, []string{models.RoleAdmin, models.RoleSuperAdmin}).
		Distinct().
		Pluck("user_id", &admins).Error
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		return nil, nil
	}

	return r.filterEnabled(ctx, admins)
}

// IsActiveMember reports whether the user holds an active membership
// for the academy. Dispatch endpoints check this before any send.
func (r *RecipientResolver) IsActiveMember(ctx context.Context, academyID, userID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&models.UserAcademy{}).
		Where("academy_id = ? AND user_id = ? AND is_active = ?", academyID, userID, true).
		Count(&count).Error
	return count > 0, err
}

// filterEnabled drops users whose profile explicitly disables
// notifications. A missing profile or a nil flag means opted-in.
func (r *RecipientResolver) filterEnabled(ctx context.Context, userIDs []uint) ([]uint, error) {
	var disabled []uint
	err := r.DB.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id IN ? AND notifications_enabled = ?", userIDs, false).
		Pluck("id", &disabled).Error
	if err != nil {
		return nil, err
	}

	if len(disabled) == 0 {
		return userIDs, nil
	}

	disabledSet := make(map[uint]struct{}, len(disabled))
	for _, id := range disabled {
		disabledSet[id] = struct{}{}
	}

	kept := userIDs[:0]
	for _, id := range userIDs {
		if _, off := disabledSet[id]; !off {
			kept = append(kept, id)
		}
	}
	return kept, nil
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
