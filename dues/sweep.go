package dues

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bandroom/database"
	"bandroom/models"
	"bandroom/notify"

	"gorm.io/gorm"
)

var errLostSweepRace = errors.New("payment was acted on before the sweep claimed it")

// AutoConfirmSweep transitions PENDING payments past their auto-confirm
// deadline to AUTO_CONFIRMED and applies the ledger upsert. Each record is
// claimed with the same status compare-and-swap as a human confirmation, so
// the sweep loses cleanly to a racing confirm or dispute. Idempotent: a
// second run finds nothing left to do. Returns the number of payments swept.
func AutoConfirmSweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	var stale []models.ManualPayment
	err := database.DB.WithContext(ctx).
		Where("status = ? AND auto_confirm_at <= ?", models.PaymentPending, now).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range stale {
		p := &stale[i]
		err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.ManualPayment{}).
				Where("id = ? AND status = ?", p.ID, models.PaymentPending).
				Updates(map[string]interface{}{
					"status":             models.PaymentAutoConfirmed,
					"confirmed_at":       now,
					"confirmation_token": "",
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errLostSweepRace
			}
			return upsertBillingRecord(tx, p.BandID, p.PayerUserID, p.PaymentDate)
		})
		if errors.Is(err, errLostSweepRace) {
			continue
		}
		if err != nil {
			return swept, err
		}
		swept++
		notifyAutoConfirmed(p)
	}

	if swept > 0 {
		log.Printf("dues: auto-confirmed %d stale pending payments", swept)
	}
	return swept, nil
}

func notifyAutoConfirmed(p *models.ManualPayment) {
	meta := map[string]string{"payment_id": fmt.Sprint(p.ID)}
	targets := []uint{p.PayerUserID}
	if p.InitiatorUserID != p.PayerUserID {
		targets = append(targets, p.InitiatorUserID)
	}
	for _, userID := range targets {
		notify.Emit(notify.Notification{
			UserID:   userID,
			Type:     notify.TypePaymentAutoConfirmed,
			Title:    "Dues payment auto-confirmed",
			Message:  fmt.Sprintf("The %s payment of %d cents went unconfirmed for 7 days and was automatically confirmed.", p.Method, p.AmountCents),
			Metadata: meta,
		})
	}
}
