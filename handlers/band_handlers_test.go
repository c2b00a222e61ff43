package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"bandroom/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func adminRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.Default()
	r.POST("/users", CreateUser)

	authRequired := r.Group("/")
	authRequired.Use(AuthMiddleware())
	{
		authRequired.POST("/bands", CreateBand)
		authRequired.POST("/bands/:id/members", AddMember)
		authRequired.PUT("/bands/:id/members/:user_id/role", SetMemberRole)
		authRequired.PUT("/bands/:id/members/:user_id/treasurer", SetTreasurer)
		authRequired.PUT("/bands/:id/finance_settings", UpsertFinanceSettings)
		authRequired.POST("/bands/:id/dues_plan", CreateDuesPlan)
		authRequired.GET("/bands/:id/dues_summary", GetBandDuesSummary)
		authRequired.POST("/bands/:id/votes", RequireGoodStanding("id"), CreateVote)
		authRequired.POST("/bands/:id/votes/:vote_id/close", CloseVote)
	}
	return r
}

func TestCreateUser(t *testing.T) {
	setupHandlersTestDB(t)
	r := adminRouter()

	w := doJSON(r, "POST", "/users", gin.H{
		"username": "ringo",
		"email":    "ringo@test.org",
		"password": "password123",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Duplicate username is rejected.
	w = doJSON(r, "POST", "/users", gin.H{
		"username": "ringo",
		"email":    "other@test.org",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateBandMakesCallerFounder(t *testing.T) {
	db := setupHandlersTestDB(t)
	r := adminRouter()

	user := testUser(t, db, "paul")

	w := doJSON(r, "POST", fmt.Sprintf("/bands?caller_user_id=%d", user.ID), gin.H{"name": "The Quavers"})
	assert.Equal(t, http.StatusCreated, w.Code)

	var band models.Band
	assert.NoError(t, db.Where("name = ?", "The Quavers").First(&band).Error)
	assert.Equal(t, user.ID, band.BillingOwnerUserID)

	var membership models.Membership
	assert.NoError(t, db.Where("band_id = ? AND user_id = ?", band.ID, user.ID).First(&membership).Error)
	assert.Equal(t, models.RoleFounder, membership.Role)
	assert.Equal(t, models.MembershipActive, membership.Status)

	w = doJSON(r, "POST", fmt.Sprintf("/bands?caller_user_id=%d", user.ID), gin.H{"name": "The Quavers"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMemberAdminRequiresGovernor(t *testing.T) {
	db := setupHandlersTestDB(t)
	r := adminRouter()

	founder := testUser(t, db, "founder")
	member := testUser(t, db, "member")
	newcomer := testUser(t, db, "newcomer")

	band := models.Band{Name: "The Quavers", BillingOwnerUserID: founder.ID}
	assert.NoError(t, db.Create(&band).Error)
	testMembership(t, db, band, founder, models.RoleFounder, false)
	testMembership(t, db, band, member, models.RoleVotingMember, false)

	w := doJSON(r, "POST", fmt.Sprintf("/bands/%d/members?caller_user_id=%d", band.ID, member.ID), gin.H{
		"user_id": newcomer.ID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, "POST", fmt.Sprintf("/bands/%d/members?caller_user_id=%d", band.ID, founder.ID), gin.H{
		"user_id": newcomer.ID,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Adding the same user twice conflicts.
	w = doJSON(r, "POST", fmt.Sprintf("/bands/%d/members?caller_user_id=%d", band.ID, founder.ID), gin.H{
		"user_id": newcomer.ID,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, "PUT", fmt.Sprintf("/bands/%d/members/%d/treasurer?caller_user_id=%d", band.ID, newcomer.ID, founder.ID), gin.H{
		"is_treasurer": true,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var m models.Membership
	assert.NoError(t, db.Where("band_id = ? AND user_id = ?", band.ID, newcomer.ID).First(&m).Error)
	assert.True(t, m.IsTreasurer)
}

func TestCreateDuesPlanDeactivatesPrior(t *testing.T) {
	db := setupHandlersTestDB(t)
	r := adminRouter()

	founder := testUser(t, db, "founder")
	band := models.Band{Name: "The Quavers", BillingOwnerUserID: founder.ID}
	assert.NoError(t, db.Create(&band).Error)
	testMembership(t, db, band, founder, models.RoleFounder, false)

	w := doJSON(r, "POST", fmt.Sprintf("/bands/%d/dues_plan?caller_user_id=%d", band.ID, founder.ID), gin.H{
		"amount_cents": 500,
		"currency":     "USD",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"currency":"usd"`)

	w = doJSON(r, "POST", fmt.Sprintf("/bands/%d/dues_plan?caller_user_id=%d", band.ID, founder.ID), gin.H{
		"amount_cents": 800,
		"currency":     "usd",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var active []models.DuesPlan
	assert.NoError(t, db.Where("band_id = ? AND active = ?", band.ID, true).Find(&active).Error)
	assert.Len(t, active, 1)
	assert.Equal(t, int64(800), active[0].AmountCents)
}

func TestUpsertFinanceSettings(t *testing.T) {
	db := setupHandlersTestDB(t)
	r := adminRouter()

	founder := testUser(t, db, "founder")
	member := testUser(t, db, "member")
	band := models.Band{Name: "The Quavers", BillingOwnerUserID: founder.ID}
	assert.NoError(t, db.Create(&band).Error)
	testMembership(t, db, band, founder, models.RoleFounder, false)
	testMembership(t, db, band, member, models.RoleVotingMember, false)

	w := doJSON(r, "PUT", fmt.Sprintf("/bands/%d/finance_settings?caller_user_id=%d", band.ID, member.ID), gin.H{
		"dues_enforcement_enabled": false,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, "PUT", fmt.Sprintf("/bands/%d/finance_settings?caller_user_id=%d", band.ID, founder.ID), gin.H{
		"dues_enforcement_enabled": true,
		"new_member_grace_days":    14,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var settings models.FinanceSettings
	assert.NoError(t, db.Where("band_id = ?", band.ID).First(&settings).Error)
	assert.Equal(t, 14, settings.NewMemberGraceDays)
	assert.Equal(t, models.DefaultLapsedMemberGraceDays, settings.LapsedMemberGraceDays)

	w = doJSON(r, "PUT", fmt.Sprintf("/bands/%d/finance_settings?caller_user_id=%d", band.ID, founder.ID), gin.H{
		"dues_enforcement_enabled": true,
		"new_member_grace_days":    -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateVoteRequiresGoodStanding(t *testing.T) {
	db := setupHandlersTestDB(t)
	r := adminRouter()

	founder := testUser(t, db, "founder")
	member := testUser(t, db, "member")
	band := models.Band{Name: "The Quavers", BillingOwnerUserID: founder.ID}
	assert.NoError(t, db.Create(&band).Error)
	testMembership(t, db, band, founder, models.RoleFounder, false)
	testMembership(t, db, band, member, models.RoleVotingMember, false)

	plan := models.DuesPlan{BandID: band.ID, AmountCents: 500, Currency: "usd", Interval: "monthly", Active: true}
	assert.NoError(t, db.Create(&plan).Error)

	// An unpaid member is blocked with a payment-required status.
	w := doJSON(r, "POST", fmt.Sprintf("/bands/%d/votes?caller_user_id=%d", band.ID, member.ID), gin.H{
		"subject": "Pick the setlist",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "not paid your dues")

	// Once the member's billing record is active, the vote goes through.
	record := models.BillingRecord{
		BandID: band.ID,
		UserID: member.ID,
		Status: models.BillingActive,
	}
	assert.NoError(t, db.Create(&record).Error)

	w = doJSON(r, "POST", fmt.Sprintf("/bands/%d/votes?caller_user_id=%d", band.ID, member.ID), gin.H{
		"subject": "Pick the setlist",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// A plain member cannot open a dissolution vote.
	w = doJSON(r, "POST", fmt.Sprintf("/bands/%d/votes?caller_user_id=%d", band.ID, member.ID), gin.H{
		"kind":    models.VoteKindDissolution,
		"subject": "Wind down the band",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOpenDissolutionVoteFreezesEnforcement(t *testing.T) {
	db := setupHandlersTestDB(t)
	r := adminRouter()

	founder := testUser(t, db, "founder")
	member := testUser(t, db, "member")
	band := models.Band{Name: "The Quavers", BillingOwnerUserID: founder.ID}
	assert.NoError(t, db.Create(&band).Error)
	testMembership(t, db, band, founder, models.RoleFounder, false)
	testMembership(t, db, band, member, models.RoleVotingMember, false)

	plan := models.DuesPlan{BandID: band.ID, AmountCents: 500, Currency: "usd", Interval: "monthly", Active: true}
	assert.NoError(t, db.Create(&plan).Error)

	// The founder is exempt as billing owner, so their dissolution vote
	// passes the standing gate.
	w := doJSON(r, "POST", fmt.Sprintf("/bands/%d/votes?caller_user_id=%d", band.ID, founder.ID), gin.H{
		"kind":    models.VoteKindDissolution,
		"subject": "Wind down the band",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// With the dissolution vote open, the unpaid member is no longer blocked.
	w = doJSON(r, "POST", fmt.Sprintf("/bands/%d/votes?caller_user_id=%d", band.ID, member.ID), gin.H{
		"subject": "Pick the setlist",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Closing the vote restores enforcement.
	var vote models.Vote
	assert.NoError(t, db.Where("band_id = ? AND kind = ?", band.ID, models.VoteKindDissolution).First(&vote).Error)

	w = doJSON(r, "POST", fmt.Sprintf("/bands/%d/votes/%d/close?caller_user_id=%d", band.ID, vote.ID, founder.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Closing again conflicts.
	w = doJSON(r, "POST", fmt.Sprintf("/bands/%d/votes/%d/close?caller_user_id=%d", band.ID, vote.ID, founder.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, "POST", fmt.Sprintf("/bands/%d/votes?caller_user_id=%d", band.ID, member.ID), gin.H{
		"subject": "Pick another setlist",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestBandDuesSummaryAccess(t *testing.T) {
	db := setupHandlersTestDB(t)
	r := adminRouter()

	founder := testUser(t, db, "founder")
	member := testUser(t, db, "member")
	band := models.Band{Name: "The Quavers", BillingOwnerUserID: founder.ID}
	assert.NoError(t, db.Create(&band).Error)
	testMembership(t, db, band, founder, models.RoleFounder, false)
	testMembership(t, db, band, member, models.RoleVotingMember, false)

	record := models.BillingRecord{
		BandID: band.ID,
		UserID: member.ID,
		Status: models.BillingActive,
	}
	assert.NoError(t, db.Create(&record).Error)

	w := doJSON(r, "GET", fmt.Sprintf("/bands/%d/dues_summary?caller_user_id=%d", band.ID, member.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, "GET", fmt.Sprintf("/bands/%d/dues_summary?caller_user_id=%d", band.ID, founder.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_members":2`)
	assert.Contains(t, w.Body.String(), `"paid_up_members":1`)
}
