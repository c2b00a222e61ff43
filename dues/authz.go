package dues

import (
	"context"
	"errors"

	"bandroom/database"
	"bandroom/models"

	"gorm.io/gorm"
)

// IsTreasurerEquivalent reports whether the user holds treasurer authority in
// the band: either their ACTIVE membership carries the treasurer flag, or no
// member carries it at all and the user is the ACTIVE founder. Once any
// treasurer is designated, the founder fallback no longer applies.
func IsTreasurerEquivalent(ctx context.Context, bandID, userID uint) (bool, error) {
	var m models.Membership
	err := database.DB.WithContext(ctx).
		Where("band_id = ? AND user_id = ? AND status = ?", bandID, userID, models.MembershipActive).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if m.IsTreasurer {
		return true, nil
	}

	var treasurers int64
	err = database.DB.WithContext(ctx).Model(&models.Membership{}).
		Where("band_id = ? AND status = ? AND is_treasurer = ?", bandID, models.MembershipActive, true).
		Count(&treasurers).Error
	if err != nil {
		return false, err
	}
	if treasurers > 0 {
		return false, nil
	}
	return m.Role == models.RoleFounder, nil
}

// IsGovernorEquivalent reports whether the user has an ACTIVE membership with
// role Founder or Governor. This is the sole authority for dispute resolution.
func IsGovernorEquivalent(ctx context.Context, bandID, userID uint) (bool, error) {
	var count int64
	err := database.DB.WithContext(ctx).Model(&models.Membership{}).
		Where("band_id = ? AND user_id = ? AND status = ? AND role IN ?",
			bandID, userID, models.MembershipActive, []string{models.RoleFounder, models.RoleGovernor}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// TreasurerSet returns every ACTIVE member with the treasurer flag, or the
// ACTIVE founder as a singleton fallback when none is designated. Used for
// notification routing only; permission gating goes through the per-user
// checks above.
func TreasurerSet(ctx context.Context, bandID uint) ([]models.Membership, error) {
	var treasurers []models.Membership
	err := database.DB.WithContext(ctx).
		Where("band_id = ? AND status = ? AND is_treasurer = ?", bandID, models.MembershipActive, true).
		Find(&treasurers).Error
	if err != nil {
		return nil, err
	}
	if len(treasurers) > 0 {
		return treasurers, nil
	}

	var founder models.Membership
	err = database.DB.WithContext(ctx).
		Where("band_id = ? AND status = ? AND role = ?", bandID, models.MembershipActive, models.RoleFounder).
		First(&founder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []models.Membership{}, nil
		}
		return nil, err
	}
	return []models.Membership{founder}, nil
}

// GovernorSet returns every ACTIVE member with Founder or Governor role.
func GovernorSet(ctx context.Context, bandID uint) ([]models.Membership, error) {
	var governors []models.Membership
	err := database.DB.WithContext(ctx).
		Where("band_id = ? AND status = ? AND role IN ?",
			bandID, models.MembershipActive, []string{models.RoleFounder, models.RoleGovernor}).
		Find(&governors).Error
	if err != nil {
		return nil, err
	}
	return governors, nil
}
