package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bandroom/database"
	"bandroom/dues"
	"bandroom/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateBandRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateBand creates a band with the caller as its ACTIVE founder and
// billing owner.
func CreateBand(c *gin.Context) {
	var req CreateBandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	callerUserID := uint(c.GetUint64("callerUserID"))

	var existingBand models.Band
	if err := database.DB.Where("name = ?", req.Name).First(&existingBand).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Band with this name already exists"})
		return
	} else if err != gorm.ErrRecordNotFound {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check for existing band"})
		return
	}

	band := models.Band{
		Name:               req.Name,
		BillingOwnerUserID: callerUserID,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&band).Error; err != nil {
			return err
		}
		founder := models.Membership{
			BandID:      band.ID,
			UserID:      callerUserID,
			Role:        models.RoleFounder,
			Status:      models.MembershipActive,
			ActivatedAt: time.Now().UTC(),
		}
		return tx.Create(&founder).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create band"})
		return
	}

	c.JSON(http.StatusCreated, band)
}

type AddMemberRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

func validRole(role string) bool {
	switch role {
	case models.RoleFounder, models.RoleGovernor, models.RoleModerator,
		models.RoleConductor, models.RoleVotingMember, models.RoleObserver:
		return true
	}
	return false
}

func AddMember(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "AddMember")
	defer span.End()

	bandID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid band ID"})
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = models.RoleVotingMember
	}
	if !validRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}

	callerUserID := uint(c.GetUint64("callerUserID"))
	isGovernor, err := dues.IsGovernorEquivalent(c.Request.Context(), uint(bandID), callerUserID)
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}
	if !isGovernor {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only a founder or governor can add members"})
		return
	}

	var user models.User
	if err := database.DB.First(&user, req.UserID).Error; err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var existing models.Membership
	if err := database.DB.Where("band_id = ? AND user_id = ?", bandID, req.UserID).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already a member of this band"})
		return
	} else if err != gorm.ErrRecordNotFound {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check for existing membership"})
		return
	}

	membership := models.Membership{
		BandID:      uint(bandID),
		UserID:      req.UserID,
		Role:        req.Role,
		Status:      models.MembershipActive,
		ActivatedAt: time.Now().UTC(),
	}
	if err := database.DB.Create(&membership).Error; err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create membership"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Member added successfully", "membership_id": membership.ID})
}

type SetMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func SetMemberRole(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "SetMemberRole")
	defer span.End()

	bandID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid band ID"})
		return
	}
	targetUserID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var req SetMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}

	callerUserID := uint(c.GetUint64("callerUserID"))
	isGovernor, err := dues.IsGovernorEquivalent(c.Request.Context(), uint(bandID), callerUserID)
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}
	if !isGovernor {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only a founder or governor can change roles"})
		return
	}

	var membership models.Membership
	if err := database.DB.Where("band_id = ? AND user_id = ?", bandID, targetUserID).First(&membership).Error; err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusNotFound, gin.H{"error": "Membership not found"})
		return
	}

	membership.Role = req.Role
	if err := database.DB.Save(&membership).Error; err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update role"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Role updated successfully"})
}

type SetTreasurerRequest struct {
	IsTreasurer *bool `json:"is_treasurer" binding:"required"`
}

func SetTreasurer(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "SetTreasurer")
	defer span.End()

	bandID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid band ID"})
		return
	}
	targetUserID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var req SetTreasurerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	callerUserID := uint(c.GetUint64("callerUserID"))
	isGovernor, err := dues.IsGovernorEquivalent(c.Request.Context(), uint(bandID), callerUserID)
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}
	if !isGovernor {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only a founder or governor can designate treasurers"})
		return
	}

	var membership models.Membership
	if err := database.DB.Where("band_id = ? AND user_id = ?", bandID, targetUserID).First(&membership).Error; err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusNotFound, gin.H{"error": "Membership not found"})
		return
	}

	membership.IsTreasurer = *req.IsTreasurer
	if err := database.DB.Save(&membership).Error; err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update treasurer flag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Treasurer flag updated successfully"})
}

type UpsertFinanceSettingsRequest struct {
	DuesEnforcementEnabled *bool `json:"dues_enforcement_enabled" binding:"required"`
	NewMemberGraceDays     *int  `json:"new_member_grace_days"`
	LapsedMemberGraceDays  *int  `json:"lapsed_member_grace_days"`
}

func UpsertFinanceSettings(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "UpsertFinanceSettings")
	defer span.End()

	bandID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid band ID"})
		return
	}

	var req UpsertFinanceSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.NewMemberGraceDays != nil && *req.NewMemberGraceDays < 0) ||
		(req.LapsedMemberGraceDays != nil && *req.LapsedMemberGraceDays < 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Grace days cannot be negative"})
		return
	}

	callerUserID := uint(c.GetUint64("callerUserID"))
	isTreasurer, err := dues.IsTreasurerEquivalent(c.Request.Context(), uint(bandID), callerUserID)
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}
	if !isTreasurer {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only a treasurer can change finance settings"})
		return
	}

	var settings models.FinanceSettings
	err = database.DB.Where("band_id = ?", bandID).First(&settings).Error
	if err == gorm.ErrRecordNotFound {
		settings = models.FinanceSettings{
			BandID:                 uint(bandID),
			DuesEnforcementEnabled: true,
			NewMemberGraceDays:     models.DefaultNewMemberGraceDays,
			LapsedMemberGraceDays:  models.DefaultLapsedMemberGraceDays,
		}
	} else if err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load finance settings"})
		return
	}

	settings.DuesEnforcementEnabled = *req.DuesEnforcementEnabled
	if req.NewMemberGraceDays != nil {
		settings.NewMemberGraceDays = *req.NewMemberGraceDays
	}
	if req.LapsedMemberGraceDays != nil {
		settings.LapsedMemberGraceDays = *req.LapsedMemberGraceDays
	}

	if err := database.DB.Save(&settings).Error; err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save finance settings"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

type CreateDuesPlanRequest struct {
	AmountCents *int64 `json:"amount_cents" binding:"required"`
	Currency    string `json:"currency" binding:"required"`
	Interval    string `json:"interval"`
}

// CreateDuesPlan replaces the band's active plan: any prior active plan is
// deactivated in the same transaction so at most one stays active.
func CreateDuesPlan(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "CreateDuesPlan")
	defer span.End()

	bandID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid band ID"})
		return
	}

	var req CreateDuesPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.AmountCents < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount cannot be negative"})
		return
	}
	if req.Interval == "" {
		req.Interval = "monthly"
	}

	callerUserID := uint(c.GetUint64("callerUserID"))
	isTreasurer, err := dues.IsTreasurerEquivalent(c.Request.Context(), uint(bandID), callerUserID)
	if err != nil {
		span.SetError(err.Error(), "")
		respondError(c, err)
		return
	}
	if !isTreasurer {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only a treasurer can manage the dues plan"})
		return
	}

	var band models.Band
	if err := database.DB.First(&band, bandID).Error; err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusNotFound, gin.H{"error": "Band not found"})
		return
	}

	plan := models.DuesPlan{
		BandID:      uint(bandID),
		AmountCents: *req.AmountCents,
		Currency:    strings.ToLower(req.Currency),
		Interval:    req.Interval,
		Active:      true,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DuesPlan{}).
			Where("band_id = ? AND active = ?", bandID, true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(&plan).Error
	})
	if err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create dues plan"})
		return
	}

	c.JSON(http.StatusCreated, plan)
}

type BandDuesSummaryResponse struct {
	BandName         string                 `json:"band_name"`
	TotalMembers     int64                  `json:"total_members"`
	PaidUpMembers    int64                  `json:"paid_up_members"`
	PendingPayments  int64                  `json:"pending_payments"`
	DisputedPayments int64                  `json:"disputed_payments"`
	RecentPayments   []models.ManualPayment `json:"recent_payments"`
}

func GetBandDuesSummary(c *gin.Context) {
	bandID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid band ID"})
		return
	}

	callerUserID := uint(c.GetUint64("callerUserID"))
	isTreasurer, err := dues.IsTreasurerEquivalent(c.Request.Context(), uint(bandID), callerUserID)
	if err != nil {
		respondError(c, err)
		return
	}
	isGovernor, err := dues.IsGovernorEquivalent(c.Request.Context(), uint(bandID), callerUserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !isTreasurer && !isGovernor {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only a treasurer, founder or governor can view the dues summary"})
		return
	}

	var band models.Band
	if err := database.DB.First(&band, bandID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Band not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve band"})
		return
	}

	var totalMembers int64
	database.DB.Model(&models.Membership{}).Where("band_id = ? AND status = ?", bandID, models.MembershipActive).Count(&totalMembers)

	var paidUp int64
	database.DB.Model(&models.BillingRecord{}).Where("band_id = ? AND status = ?", bandID, models.BillingActive).Count(&paidUp)

	var pending int64
	database.DB.Model(&models.ManualPayment{}).Where("band_id = ? AND status = ?", bandID, models.PaymentPending).Count(&pending)

	var disputed int64
	database.DB.Model(&models.ManualPayment{}).Where("band_id = ? AND status = ?", bandID, models.PaymentDisputed).Count(&disputed)

	var recent []models.ManualPayment
	database.DB.Where("band_id = ?", bandID).Order("created_at desc").Limit(5).Find(&recent)

	response := BandDuesSummaryResponse{
		BandName:         band.Name,
		TotalMembers:     totalMembers,
		PaidUpMembers:    paidUp,
		PendingPayments:  pending,
		DisputedPayments: disputed,
		RecentPayments:   recent,
	}

	c.JSON(http.StatusOK, response)
}
