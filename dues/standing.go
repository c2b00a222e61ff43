package dues

import (
	"context"
	"errors"
	"time"

	"bandroom/database"
	"bandroom/models"

	"gorm.io/gorm"
)

// User-facing reasons for failing a standing check.
const (
	reasonNotMember = "You are not a member of this band."
	reasonUnpaid    = "You have not paid your dues yet."
	reasonPastDue   = "Your dues payment is past due."
	reasonCanceled  = "Your dues subscription was canceled."
)

type PlanInfo struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
}

type Standing struct {
	InGoodStanding bool      `json:"in_good_standing"`
	Exempt         bool      `json:"exempt"`
	Reason         string    `json:"reason,omitempty"`
	Plan           *PlanInfo `json:"dues_plan,omitempty"`
}

// standingState carries everything the rule chain accumulates while walking
// toward a verdict. "now" is captured once so every grace-window comparison
// in a single evaluation sees the same instant.
type standingState struct {
	ctx        context.Context
	bandID     uint
	userID     uint
	now        time.Time
	band       models.Band
	plan       *models.DuesPlan
	settings   models.FinanceSettings
	membership *models.Membership
	exempt     bool
}

func (s *standingState) planInfo() *PlanInfo {
	if s.plan == nil {
		return nil
	}
	return &PlanInfo{AmountCents: s.plan.AmountCents, Currency: s.plan.Currency, Interval: s.plan.Interval}
}

type standingRule struct {
	name string
	eval func(*standingState) (*Standing, error)
}

// standingRules is the ordered short-circuit chain: the first rule returning
// a verdict wins. Order matters and mirrors enforcement precedence, from
// band-wide freezes down to the individual billing record.
var standingRules = []standingRule{
	{"dissolution freeze", ruleDissolutionFreeze},
	{"no active plan", ruleActivePlan},
	{"zero-amount plan", ruleZeroAmountPlan},
	{"enforcement disabled", ruleEnforcementToggle},
	{"membership required", ruleMembership},
	{"exemption", ruleExemption},
	{"new-member grace", ruleNewMemberGrace},
	{"billing record", ruleBillingRecord},
}

// Evaluate computes the dues standing of a user within a band. It is a pure
// read: no writes, idempotent for unchanged state.
func Evaluate(ctx context.Context, bandID, userID uint) (Standing, error) {
	st := &standingState{ctx: ctx, bandID: bandID, userID: userID, now: time.Now().UTC()}

	if err := database.DB.WithContext(ctx).First(&st.band, bandID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Standing{}, notFound("Band not found")
		}
		return Standing{}, err
	}

	for _, rule := range standingRules {
		verdict, err := rule.eval(st)
		if err != nil {
			return Standing{}, err
		}
		if verdict != nil {
			return *verdict, nil
		}
	}
	// The billing-record rule always returns a verdict; this is unreachable.
	return Standing{InGoodStanding: true, Exempt: st.exempt, Plan: st.planInfo()}, nil
}

// InGoodStanding is the boolean convenience wrapper around Evaluate.
func InGoodStanding(ctx context.Context, bandID, userID uint) (bool, error) {
	standing, err := Evaluate(ctx, bandID, userID)
	if err != nil {
		return false, err
	}
	return standing.InGoodStanding, nil
}

// RequireGoodStanding is the guard variant: it fails with a DUES_REQUIRED
// error carrying the evaluator's reason when the user is not in good
// standing. Write paths call this before permitting an action.
func RequireGoodStanding(ctx context.Context, bandID, userID uint) error {
	standing, err := Evaluate(ctx, bandID, userID)
	if err != nil {
		return err
	}
	if !standing.InGoodStanding {
		return duesRequired(standing.Reason)
	}
	return nil
}

// Dues enforcement freezes while a dissolution vote is open.
func ruleDissolutionFreeze(s *standingState) (*Standing, error) {
	var open int64
	err := database.DB.WithContext(s.ctx).Model(&models.Vote{}).
		Where("band_id = ? AND kind = ? AND status = ?", s.bandID, models.VoteKindDissolution, models.VoteOpen).
		Count(&open).Error
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return &Standing{InGoodStanding: true}, nil
	}
	return nil, nil
}

func ruleActivePlan(s *standingState) (*Standing, error) {
	var plan models.DuesPlan
	err := database.DB.WithContext(s.ctx).
		Where("band_id = ? AND active = ?", s.bandID, true).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Standing{InGoodStanding: true}, nil
		}
		return nil, err
	}
	s.plan = &plan
	return nil, nil
}

func ruleZeroAmountPlan(s *standingState) (*Standing, error) {
	if s.plan.AmountCents == 0 {
		return &Standing{InGoodStanding: true, Plan: s.planInfo()}, nil
	}
	return nil, nil
}

func ruleEnforcementToggle(s *standingState) (*Standing, error) {
	var settings models.FinanceSettings
	err := database.DB.WithContext(s.ctx).
		Where("band_id = ?", s.bandID).
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Absent settings imply the defaults: enforcement on.
			s.settings = models.FinanceSettings{
				DuesEnforcementEnabled: true,
				NewMemberGraceDays:     models.DefaultNewMemberGraceDays,
				LapsedMemberGraceDays:  models.DefaultLapsedMemberGraceDays,
			}
			return nil, nil
		}
		return nil, err
	}
	s.settings = settings
	if !settings.DuesEnforcementEnabled {
		return &Standing{InGoodStanding: true, Plan: s.planInfo()}, nil
	}
	return nil, nil
}

func ruleMembership(s *standingState) (*Standing, error) {
	var m models.Membership
	err := database.DB.WithContext(s.ctx).
		Where("band_id = ? AND user_id = ?", s.bandID, s.userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Standing{InGoodStanding: false, Reason: reasonNotMember, Plan: s.planInfo()}, nil
		}
		return nil, err
	}
	s.membership = &m
	return nil, nil
}

// Exemption never short-circuits; it is recorded here and consulted only as
// the billing-record fallback.
func ruleExemption(s *standingState) (*Standing, error) {
	s.exempt = s.band.BillingOwnerUserID == s.userID || s.membership.IsTreasurer
	return nil, nil
}

func ruleNewMemberGrace(s *standingState) (*Standing, error) {
	if s.membership.Status != models.MembershipActive {
		return nil, nil
	}
	graceEnd := s.membership.ActivatedAt.AddDate(0, 0, s.settings.NewMemberGraceDays)
	if s.now.Before(graceEnd) {
		return &Standing{InGoodStanding: true, Exempt: s.exempt, Plan: s.planInfo()}, nil
	}
	return nil, nil
}

func ruleBillingRecord(s *standingState) (*Standing, error) {
	var record models.BillingRecord
	err := database.DB.WithContext(s.ctx).
		Where("band_id = ? AND user_id = ?", s.bandID, s.userID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if s.exempt {
				return &Standing{InGoodStanding: true, Exempt: true, Plan: s.planInfo()}, nil
			}
			return &Standing{InGoodStanding: false, Reason: reasonUnpaid, Plan: s.planInfo()}, nil
		}
		return nil, err
	}

	switch record.Status {
	case models.BillingActive:
		return &Standing{InGoodStanding: true, Exempt: s.exempt, Plan: s.planInfo()}, nil
	case models.BillingPastDue:
		graceEnd := record.UpdatedAt.AddDate(0, 0, s.settings.LapsedMemberGraceDays)
		if s.now.Before(graceEnd) {
			return &Standing{InGoodStanding: true, Exempt: s.exempt, Plan: s.planInfo()}, nil
		}
	}
	if s.exempt {
		return &Standing{InGoodStanding: true, Exempt: true, Plan: s.planInfo()}, nil
	}
	return &Standing{InGoodStanding: false, Reason: billingReason(record.Status), Plan: s.planInfo()}, nil
}

func billingReason(status string) string {
	switch status {
	case models.BillingPastDue:
		return reasonPastDue
	case models.BillingCanceled:
		return reasonCanceled
	default:
		// UNPAID and anything unrecognized.
		return reasonUnpaid
	}
}
