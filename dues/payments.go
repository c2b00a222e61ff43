package dues

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bandroom/database"
	"bandroom/models"
	"bandroom/notify"

	"gorm.io/gorm"
)

const autoConfirmWindow = 7 * 24 * time.Hour

type RecordPaymentInput struct {
	BandID            uint
	RecordingUserID   uint
	PayerMembershipID uint
	AmountCents       int64
	Currency          string
	Method            string
	MethodOther       string
	PaymentDate       time.Time
	Note              string
}

func validMethod(method string) bool {
	for _, m := range models.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// RecordPayment creates a PENDING manual payment. The recorder must be the
// payer themself or treasurer-equivalent for the band; a treasurer recording
// on someone else's behalf marks the payment TREASURER-initiated and the
// payer becomes the counterparty, and vice versa.
func RecordPayment(ctx context.Context, in RecordPaymentInput) (*models.ManualPayment, error) {
	if in.AmountCents <= 0 {
		return nil, validation("amount must be a positive number of cents")
	}
	if in.Currency == "" {
		return nil, validation("currency is required")
	}
	if !validMethod(in.Method) {
		return nil, validation(fmt.Sprintf("unknown payment method %q", in.Method))
	}
	if in.Method == "OTHER" && in.MethodOther == "" {
		return nil, validation("method OTHER requires a description")
	}
	if in.PaymentDate.IsZero() {
		return nil, validation("payment date is required")
	}

	var recorder models.Membership
	err := database.DB.WithContext(ctx).
		Where("band_id = ? AND user_id = ? AND status = ?", in.BandID, in.RecordingUserID, models.MembershipActive).
		First(&recorder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, forbidden("recording user is not an active member of this band")
		}
		return nil, err
	}

	var payer models.Membership
	err = database.DB.WithContext(ctx).First(&payer, in.PayerMembershipID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Payer membership not found")
		}
		return nil, err
	}
	if payer.BandID != in.BandID {
		return nil, notFound("Payer membership not found in this band")
	}

	isTreasurer, err := IsTreasurerEquivalent(ctx, in.BandID, in.RecordingUserID)
	if err != nil {
		return nil, err
	}
	isSelf := payer.UserID == in.RecordingUserID
	if !isSelf && !isTreasurer {
		return nil, forbidden("only the payer or a treasurer can record this payment")
	}

	initiatedBy := models.InitiatedByMember
	if isTreasurer && !isSelf {
		initiatedBy = models.InitiatedByTreasurer
	}

	token, err := newConfirmationToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payment := models.ManualPayment{
		BandID:            in.BandID,
		PayerMembershipID: payer.ID,
		PayerUserID:       payer.UserID,
		AmountCents:       in.AmountCents,
		Currency:          strings.ToLower(in.Currency),
		Method:            in.Method,
		MethodOther:       in.MethodOther,
		PaymentDate:       in.PaymentDate.UTC(),
		Note:              in.Note,
		InitiatorUserID:   in.RecordingUserID,
		InitiatedByRole:   initiatedBy,
		Status:            models.PaymentPending,
		ConfirmationToken: token,
		AutoConfirmAt:     now.Add(autoConfirmWindow),
	}
	if err := database.DB.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}

	notifyPaymentReported(ctx, &payment)
	return &payment, nil
}

// requireCounterparty enforces the confirmation symmetry: whoever did not
// initiate must act. Member-initiated payments are acted on by a
// treasurer-equivalent; treasurer-initiated payments by the payer.
func requireCounterparty(ctx context.Context, p *models.ManualPayment, actingUserID uint) error {
	switch p.InitiatedByRole {
	case models.InitiatedByMember:
		ok, err := IsTreasurerEquivalent(ctx, p.BandID, actingUserID)
		if err != nil {
			return err
		}
		if !ok {
			return forbidden("only a treasurer can act on a member-reported payment")
		}
	case models.InitiatedByTreasurer:
		if actingUserID != p.PayerUserID {
			return forbidden("only the payer can act on a treasurer-reported payment")
		}
	default:
		return forbidden("payment has an unknown initiator role")
	}
	return nil
}

func loadPayment(ctx context.Context, paymentID uint) (*models.ManualPayment, error) {
	var p models.ManualPayment
	if err := database.DB.WithContext(ctx).First(&p, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Payment not found")
		}
		return nil, err
	}
	return &p, nil
}

// staleStatusError reports why a conditional transition matched no rows: the
// payment either vanished or is no longer in the expected pre-state. This is
// the definitive answer the loser of a confirm/dispute race receives.
func staleStatusError(tx *gorm.DB, paymentID uint) error {
	var p models.ManualPayment
	if err := tx.First(&p, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("Payment not found")
		}
		return err
	}
	return conflict(fmt.Sprintf("payment is already %s", p.Status))
}

// upsertBillingRecord marks the payer's billing record ACTIVE. LastPaymentAt
// is the reported payment date: the ledger reflects when the money moved,
// not when it was attested.
func upsertBillingRecord(tx *gorm.DB, bandID, userID uint, paymentDate time.Time) error {
	var record models.BillingRecord
	err := tx.Where("band_id = ? AND user_id = ?", bandID, userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record = models.BillingRecord{
			BandID:        bandID,
			UserID:        userID,
			Status:        models.BillingActive,
			LastPaymentAt: paymentDate,
		}
		return tx.Create(&record).Error
	}
	if err != nil {
		return err
	}
	record.Status = models.BillingActive
	record.LastPaymentAt = paymentDate
	return tx.Save(&record).Error
}

// ConfirmPayment is the identified-user confirmation path.
func ConfirmPayment(ctx context.Context, paymentID, actingUserID uint) (*models.ManualPayment, error) {
	p, err := loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := requireCounterparty(ctx, p, actingUserID); err != nil {
		return nil, err
	}

	var confirmed models.ManualPayment
	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&models.ManualPayment{}).
			Where("id = ? AND status = ?", paymentID, models.PaymentPending).
			Updates(map[string]interface{}{
				"status":               models.PaymentConfirmed,
				"confirmed_by_user_id": actingUserID,
				"confirmed_at":         now,
				"confirmation_token":   "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return staleStatusError(tx, paymentID)
		}
		if err := tx.First(&confirmed, paymentID).Error; err != nil {
			return err
		}
		return upsertBillingRecord(tx, confirmed.BandID, confirmed.PayerUserID, confirmed.PaymentDate)
	})
	if err != nil {
		return nil, err
	}

	notifyPaymentConfirmed(&confirmed)
	return &confirmed, nil
}

// ConfirmPaymentWithToken is the anonymous link-based path: presenting the
// exact stored token stands in for identity. The token is invalidated in the
// same atomic update as the status change, so it is single-use even under
// concurrent submissions.
func ConfirmPaymentWithToken(ctx context.Context, paymentID uint, token string) (*models.ManualPayment, error) {
	p, err := loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PaymentPending {
		return nil, conflict(fmt.Sprintf("payment is already %s", p.Status))
	}
	if !tokenMatches(p.ConfirmationToken, token) {
		return nil, forbidden("invalid confirmation token")
	}

	var confirmed models.ManualPayment
	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&models.ManualPayment{}).
			Where("id = ? AND status = ? AND confirmation_token = ?", paymentID, models.PaymentPending, token).
			Updates(map[string]interface{}{
				"status":               models.PaymentConfirmed,
				"confirmed_by_user_id": p.PayerUserID,
				"confirmed_at":         now,
				"confirmation_token":   "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return staleStatusError(tx, paymentID)
		}
		if err := tx.First(&confirmed, paymentID).Error; err != nil {
			return err
		}
		return upsertBillingRecord(tx, confirmed.BandID, confirmed.PayerUserID, confirmed.PaymentDate)
	})
	if err != nil {
		return nil, err
	}

	notifyPaymentConfirmed(&confirmed)
	return &confirmed, nil
}

// DisputePayment moves a PENDING payment to DISPUTED. Disputes are resolved
// only by a governor (see ResolvePayment).
func DisputePayment(ctx context.Context, paymentID, actingUserID uint, reason string) (*models.ManualPayment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validation("a dispute reason is required")
	}

	p, err := loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := requireCounterparty(ctx, p, actingUserID); err != nil {
		return nil, err
	}

	var disputed models.ManualPayment
	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&models.ManualPayment{}).
			Where("id = ? AND status = ?", paymentID, models.PaymentPending).
			Updates(map[string]interface{}{
				"status":              models.PaymentDisputed,
				"disputed_by_user_id": actingUserID,
				"disputed_at":         now,
				"dispute_reason":      reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return staleStatusError(tx, paymentID)
		}
		return tx.First(&disputed, paymentID).Error
	})
	if err != nil {
		return nil, err
	}

	notifyPaymentDisputed(ctx, &disputed)
	return &disputed, nil
}

// ResolvePayment settles a DISPUTED payment with outcome CONFIRMED or
// REJECTED. Governor authority required; treasurer status alone is not
// enough. A CONFIRMED outcome performs the same ledger upsert as a direct
// confirmation, with the resolver recorded as confirmer.
func ResolvePayment(ctx context.Context, paymentID, actingUserID uint, outcome, note string) (*models.ManualPayment, error) {
	if outcome != models.PaymentConfirmed && outcome != models.PaymentRejected {
		return nil, validation("resolution outcome must be CONFIRMED or REJECTED")
	}

	p, err := loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	isGovernor, err := IsGovernorEquivalent(ctx, p.BandID, actingUserID)
	if err != nil {
		return nil, err
	}
	if !isGovernor {
		return nil, forbidden("only a founder or governor can resolve a disputed payment")
	}

	var resolved models.ManualPayment
	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":              outcome,
			"resolved_by_user_id": actingUserID,
			"resolved_at":         now,
			"resolution_outcome":  outcome,
			"resolution_note":     note,
			"confirmation_token":  "",
		}
		if outcome == models.PaymentConfirmed {
			updates["confirmed_by_user_id"] = actingUserID
			updates["confirmed_at"] = now
		}
		res := tx.Model(&models.ManualPayment{}).
			Where("id = ? AND status = ?", paymentID, models.PaymentDisputed).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return staleStatusError(tx, paymentID)
		}
		if err := tx.First(&resolved, paymentID).Error; err != nil {
			return err
		}
		if outcome == models.PaymentConfirmed {
			return upsertBillingRecord(tx, resolved.BandID, resolved.PayerUserID, resolved.PaymentDate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyPaymentResolved(&resolved)
	return &resolved, nil
}

type ListPaymentsFilter struct {
	Status      string
	PayerUserID uint
}

// ListPayments applies the visibility rules: treasurer- or
// governor-equivalent callers see the whole band, everyone else only their
// own payments.
func ListPayments(ctx context.Context, bandID, callerUserID uint, filter ListPaymentsFilter) ([]models.ManualPayment, error) {
	isTreasurer, err := IsTreasurerEquivalent(ctx, bandID, callerUserID)
	if err != nil {
		return nil, err
	}
	isGovernor, err := IsGovernorEquivalent(ctx, bandID, callerUserID)
	if err != nil {
		return nil, err
	}

	q := database.DB.WithContext(ctx).Where("band_id = ?", bandID)
	if !isTreasurer && !isGovernor {
		q = q.Where("payer_user_id = ?", callerUserID)
	} else if filter.PayerUserID != 0 {
		q = q.Where("payer_user_id = ?", filter.PayerUserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var payments []models.ManualPayment
	if err := q.Order("created_at desc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func notifyPaymentReported(ctx context.Context, p *models.ManualPayment) {
	meta := map[string]string{"payment_id": fmt.Sprint(p.ID), "band_id": fmt.Sprint(p.BandID)}

	if p.InitiatedByRole == models.InitiatedByTreasurer {
		// The payer confirms via an authentication-free token link.
		notify.Emit(notify.Notification{
			UserID:    p.PayerUserID,
			Type:      notify.TypePaymentReported,
			Title:     "A dues payment was recorded for you",
			Message:   fmt.Sprintf("A treasurer recorded a %s payment of %d cents. Please confirm or dispute it.", p.Method, p.AmountCents),
			TargetURL: fmt.Sprintf("/payments/%d/confirm_token?token=%s", p.ID, p.ConfirmationToken),
			Priority:  notify.PriorityHigh,
			Metadata:  meta,
		})
		return
	}

	treasurers, err := TreasurerSet(ctx, p.BandID)
	if err != nil {
		// Notification routing is best-effort; the payment is already saved.
		log.Printf("dues: failed to resolve treasurer set for band %d: %v", p.BandID, err)
		return
	}
	for _, t := range treasurers {
		notify.Emit(notify.Notification{
			UserID:    t.UserID,
			Type:      notify.TypePaymentReported,
			Title:     "A member reported a dues payment",
			Message:   fmt.Sprintf("A member reported a %s payment of %d cents. Please confirm or dispute it.", p.Method, p.AmountCents),
			TargetURL: fmt.Sprintf("/bands/%d/payments", p.BandID),
			Metadata:  meta,
		})
	}
}

func notifyPaymentConfirmed(p *models.ManualPayment) {
	notify.Emit(notify.Notification{
		UserID:   p.InitiatorUserID,
		Type:     notify.TypePaymentConfirmed,
		Title:    "Dues payment confirmed",
		Message:  fmt.Sprintf("The %s payment of %d cents was confirmed.", p.Method, p.AmountCents),
		Metadata: map[string]string{"payment_id": fmt.Sprint(p.ID)},
	})
}

func notifyPaymentDisputed(ctx context.Context, p *models.ManualPayment) {
	meta := map[string]string{"payment_id": fmt.Sprint(p.ID)}
	notify.Emit(notify.Notification{
		UserID:   p.InitiatorUserID,
		Type:     notify.TypePaymentDisputed,
		Title:    "Dues payment disputed",
		Message:  fmt.Sprintf("The %s payment of %d cents was disputed: %s", p.Method, p.AmountCents, p.DisputeReason),
		Priority: notify.PriorityHigh,
		Metadata: meta,
	})

	governors, err := GovernorSet(ctx, p.BandID)
	if err != nil {
		log.Printf("dues: failed to resolve governor set for band %d: %v", p.BandID, err)
		return
	}
	for _, g := range governors {
		if p.DisputedByUserID != nil && g.UserID == *p.DisputedByUserID {
			continue
		}
		notify.Emit(notify.Notification{
			UserID:   g.UserID,
			Type:     notify.TypePaymentDisputed,
			Title:    "A disputed dues payment needs resolution",
			Message:  fmt.Sprintf("Payment %d is disputed and needs a governor to resolve it.", p.ID),
			Priority: notify.PriorityHigh,
			Metadata: meta,
		})
	}
}

func notifyPaymentResolved(p *models.ManualPayment) {
	meta := map[string]string{"payment_id": fmt.Sprint(p.ID), "outcome": p.ResolutionOutcome}
	targets := []uint{p.InitiatorUserID}
	if p.PayerUserID != p.InitiatorUserID {
		targets = append(targets, p.PayerUserID)
	}
	for _, userID := range targets {
		notify.Emit(notify.Notification{
			UserID:   userID,
			Type:     notify.TypePaymentResolved,
			Title:    "Disputed dues payment resolved",
			Message:  fmt.Sprintf("The disputed payment of %d cents was resolved as %s.", p.AmountCents, p.ResolutionOutcome),
			Metadata: meta,
		})
	}
}
