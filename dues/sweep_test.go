package dues

import (
	"context"
	"testing"
	"time"

	"bandroom/models"

	"github.com/stretchr/testify/assert"
)

func TestAutoConfirmSweep(t *testing.T) {
	f := newFixture(t)

	stale := f.record(t, f.member, f.memberM)
	fresh := f.record(t, f.treasurer, f.memberM)

	assert.NoError(t, f.db.Model(stale).
		UpdateColumn("auto_confirm_at", time.Now().UTC().Add(-time.Hour)).Error)

	swept, err := AutoConfirmSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, swept)

	var reloaded models.ManualPayment
	assert.NoError(t, f.db.First(&reloaded, stale.ID).Error)
	assert.Equal(t, models.PaymentAutoConfirmed, reloaded.Status)
	assert.Empty(t, reloaded.ConfirmationToken)

	// The fresh payment is untouched.
	reloaded = models.ManualPayment{}
	assert.NoError(t, f.db.First(&reloaded, fresh.ID).Error)
	assert.Equal(t, models.PaymentPending, reloaded.Status)

	// Auto-confirmation upserts the ledger like a human confirmation.
	var record models.BillingRecord
	assert.NoError(t, f.db.Where("band_id = ? AND user_id = ?", f.band.ID, f.member.ID).First(&record).Error)
	assert.Equal(t, models.BillingActive, record.Status)
	assert.WithinDuration(t, stale.PaymentDate, record.LastPaymentAt, time.Second)
}

func TestAutoConfirmSweepIdempotent(t *testing.T) {
	f := newFixture(t)

	stale := f.record(t, f.member, f.memberM)
	assert.NoError(t, f.db.Model(stale).
		UpdateColumn("auto_confirm_at", time.Now().UTC().Add(-time.Hour)).Error)

	swept, err := AutoConfirmSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, swept)

	swept, err = AutoConfirmSweep(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, swept, "a second pass finds nothing left to do")
}

func TestAutoConfirmSweepSkipsActedOnPayments(t *testing.T) {
	f := newFixture(t)

	p := f.record(t, f.member, f.memberM)
	_, err := DisputePayment(context.Background(), p.ID, f.treasurer.ID, "never received")
	assert.NoError(t, err)
	assert.NoError(t, f.db.Model(p).
		UpdateColumn("auto_confirm_at", time.Now().UTC().Add(-time.Hour)).Error)

	swept, err := AutoConfirmSweep(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, swept)

	var reloaded models.ManualPayment
	assert.NoError(t, f.db.First(&reloaded, p.ID).Error)
	assert.Equal(t, models.PaymentDisputed, reloaded.Status, "a dispute beats the sweep")
}

func TestAutoConfirmSweepEmptyDatabase(t *testing.T) {
	setupTestDB(t)

	swept, err := AutoConfirmSweep(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, swept)
}
