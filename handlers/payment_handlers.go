package handlers

import (
	"net/http"
	"strconv"
	"time"

	"bandroom/dues"

	"github.com/gin-gonic/gin"
)

type RecordPaymentRequest struct {
	BandID            uint      `json:"band_id" binding:"required"`
	PayerMembershipID uint      `json:"payer_membership_id" binding:"required"`
	AmountCents       int64     `json:"amount_cents" binding:"required,gt=0"`
	Currency          string    `json:"currency" binding:"required"`
	Method            string    `json:"method" binding:"required"`
	MethodOther       string    `json:"method_other"`
	PaymentDate       time.Time `json:"payment_date" binding:"required"`
	Note              string    `json:"note"`
}

func RecordPayment(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "RecordPayment")
	defer span.End()

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(map[string]interface{}{
		"band_id":             req.BandID,
		"payer_membership_id": req.PayerMembershipID,
		"amount_cents":        req.AmountCents,
	})

	callerUserID := uint(c.GetUint64("callerUserID"))

	payment, err := dues.RecordPayment(c.Request.Context(), dues.RecordPaymentInput{
		BandID:            req.BandID,
		RecordingUserID:   callerUserID,
		PayerMembershipID: req.PayerMembershipID,
		AmountCents:       req.AmountCents,
		Currency:          req.Currency,
		Method:            req.Method,
		MethodOther:       req.MethodOther,
		PaymentDate:       req.PaymentDate,
		Note:              req.Note,
	})
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":           "Payment recorded successfully",
		"payment_id":        payment.ID,
		"status":            payment.Status,
		"initiated_by_role": payment.InitiatedByRole,
		"auto_confirm_at":   payment.AutoConfirmAt,
	})
}

func ConfirmPayment(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "ConfirmPayment")
	defer span.End()

	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID"})
		return
	}
	span.SetAttributes(map[string]interface{}{"payment_id": paymentID})

	callerUserID := uint(c.GetUint64("callerUserID"))

	payment, err := dues.ConfirmPayment(c.Request.Context(), uint(paymentID), callerUserID)
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment confirmed successfully", "status": payment.Status})
}

// ConfirmPaymentByToken is the unauthenticated link-based confirmation
// endpoint. The token alone authorizes the action.
func ConfirmPaymentByToken(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "ConfirmPaymentByToken")
	defer span.End()

	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID"})
		return
	}

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing confirmation token"})
		return
	}

	payment, err := dues.ConfirmPaymentWithToken(c.Request.Context(), uint(paymentID), token)
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment confirmed successfully", "status": payment.Status})
}

type DisputePaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func DisputePayment(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "DisputePayment")
	defer span.End()

	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID"})
		return
	}

	var req DisputePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	callerUserID := uint(c.GetUint64("callerUserID"))

	payment, err := dues.DisputePayment(c.Request.Context(), uint(paymentID), callerUserID, req.Reason)
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment disputed successfully", "status": payment.Status})
}

type ResolvePaymentRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Note    string `json:"note"`
}

func ResolvePayment(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "ResolvePayment")
	defer span.End()

	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID"})
		return
	}

	var req ResolvePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	callerUserID := uint(c.GetUint64("callerUserID"))

	payment, err := dues.ResolvePayment(c.Request.Context(), uint(paymentID), callerUserID, req.Outcome, req.Note)
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment resolved successfully", "status": payment.Status, "outcome": payment.ResolutionOutcome})
}

func ListBandPayments(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "ListBandPayments")
	defer span.End()

	bandID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid band ID"})
		return
	}

	filter := dues.ListPaymentsFilter{Status: c.Query("status")}
	if payerStr := c.Query("payer_user_id"); payerStr != "" {
		payerID, err := strconv.ParseUint(payerStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payer user ID"})
			return
		}
		filter.PayerUserID = uint(payerID)
	}

	callerUserID := uint(c.GetUint64("callerUserID"))

	payments, err := dues.ListPayments(c.Request.Context(), uint(bandID), callerUserID, filter)
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, payments)
}
