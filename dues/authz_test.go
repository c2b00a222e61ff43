package dues

import (
	"context"
	"testing"

	"bandroom/models"

	"github.com/stretchr/testify/assert"
)

func TestTreasurerEquivalentFlagged(t *testing.T) {
	db := setupTestDB(t)
	founder := createUser(t, db, "founder")
	treasurer := createUser(t, db, "treasurer")
	band := createBand(t, db, "The Quavers", founder)
	createMembership(t, db, band, founder, models.RoleFounder, false, longAgo)
	createMembership(t, db, band, treasurer, models.RoleVotingMember, true, longAgo)

	ok, err := IsTreasurerEquivalent(context.Background(), band.ID, treasurer.ID)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestTreasurerEquivalentFounderFallback(t *testing.T) {
	db := setupTestDB(t)
	founder := createUser(t, db, "founder")
	member := createUser(t, db, "member")
	band := createBand(t, db, "The Quavers", founder)
	createMembership(t, db, band, founder, models.RoleFounder, false, longAgo)
	createMembership(t, db, band, member, models.RoleVotingMember, false, longAgo)

	// No designated treasurer: authority defaults to the founder.
	ok, err := IsTreasurerEquivalent(context.Background(), band.ID, founder.ID)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsTreasurerEquivalent(context.Background(), band.ID, member.ID)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTreasurerFallbackEndsWhenTreasurerExists(t *testing.T) {
	db := setupTestDB(t)
	founder := createUser(t, db, "founder")
	treasurer := createUser(t, db, "treasurer")
	band := createBand(t, db, "The Quavers", founder)
	createMembership(t, db, band, founder, models.RoleFounder, false, longAgo)
	createMembership(t, db, band, treasurer, models.RoleVotingMember, true, longAgo)

	// Once any treasurer is designated, the founder loses the fallback.
	ok, err := IsTreasurerEquivalent(context.Background(), band.ID, founder.ID)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTreasurerEquivalentIgnoresInactive(t *testing.T) {
	db := setupTestDB(t)
	founder := createUser(t, db, "founder")
	suspended := createUser(t, db, "suspended")
	band := createBand(t, db, "The Quavers", founder)
	createMembership(t, db, band, founder, models.RoleFounder, false, longAgo)
	m := createMembership(t, db, band, suspended, models.RoleVotingMember, true, longAgo)
	assert.NoError(t, db.Model(&m).Update("status", models.MembershipSuspended).Error)

	// A suspended treasurer neither holds authority nor blocks the fallback.
	ok, err := IsTreasurerEquivalent(context.Background(), band.ID, suspended.ID)
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsTreasurerEquivalent(context.Background(), band.ID, founder.ID)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestTreasurerEquivalentNonMember(t *testing.T) {
	db := setupTestDB(t)
	founder := createUser(t, db, "founder")
	stranger := createUser(t, db, "stranger")
	band := createBand(t, db, "The Quavers", founder)
	createMembership(t, db, band, founder, models.RoleFounder, false, longAgo)

	ok, err := IsTreasurerEquivalent(context.Background(), band.ID, stranger.ID)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestGovernorEquivalent(t *testing.T) {
	db := setupTestDB(t)
	founder := createUser(t, db, "founder")
	governor := createUser(t, db, "governor")
	moderator := createUser(t, db, "moderator")
	band := createBand(t, db, "The Quavers", founder)
	createMembership(t, db, band, founder, models.RoleFounder, false, longAgo)
	createMembership(t, db, band, governor, models.RoleGovernor, false, longAgo)
	createMembership(t, db, band, moderator, models.RoleModerator, false, longAgo)

	ok, err := IsGovernorEquivalent(context.Background(), band.ID, founder.ID)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsGovernorEquivalent(context.Background(), band.ID, governor.ID)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsGovernorEquivalent(context.Background(), band.ID, moderator.ID)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestGovernorEquivalentInactive(t *testing.T) {
	db := setupTestDB(t)
	founder := createUser(t, db, "founder")
	governor := createUser(t, db, "governor")
	band := createBand(t, db, "The Quavers", founder)
	m := createMembership(t, db, band, governor, models.RoleGovernor, false, longAgo)
	assert.NoError(t, db.Model(&m).Update("status", models.MembershipLeft).Error)

	ok, err := IsGovernorEquivalent(context.Background(), band.ID, governor.ID)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTreasurerSet(t *testing.T) {
	db := setupTestDB(t)
	founder := createUser(t, db, "founder")
	t1 := createUser(t, db, "treasurer1")
	t2 := createUser(t, db, "treasurer2")
	band := createBand(t, db, "The Quavers", founder)
	createMembership(t, db, band, founder, models.RoleFounder, false, longAgo)
	createMembership(t, db, band, t1, models.RoleVotingMember, true, longAgo)
	createMembership(t, db, band, t2, models.RoleConductor, true, longAgo)

	set, err := TreasurerSet(context.Background(), band.ID)
	assert.NoError(t, err)
	assert.Len(t, set, 2)
}

func TestTreasurerSetFounderFallback(t *testing.T) {
	db := setupTestDB(t)
	founder := createUser(t, db, "founder")
	band := createBand(t, db, "The Quavers", founder)
	createMembership(t, db, band, founder, models.RoleFounder, false, longAgo)

	set, err := TreasurerSet(context.Background(), band.ID)
	assert.NoError(t, err)
	assert.Len(t, set, 1)
	assert.Equal(t, founder.ID, set[0].UserID)
}

func TestTreasurerSetEmpty(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "owner")
	band := createBand(t, db, "The Quavers", owner)

	set, err := TreasurerSet(context.Background(), band.ID)
	assert.NoError(t, err)
	assert.Empty(t, set)
}

func TestGovernorSet(t *testing.T) {
	db := setupTestDB(t)
	founder := createUser(t, db, "founder")
	governor := createUser(t, db, "governor")
	member := createUser(t, db, "member")
	band := createBand(t, db, "The Quavers", founder)
	createMembership(t, db, band, founder, models.RoleFounder, false, longAgo)
	createMembership(t, db, band, governor, models.RoleGovernor, false, longAgo)
	createMembership(t, db, band, member, models.RoleVotingMember, false, longAgo)

	set, err := GovernorSet(context.Background(), band.ID)
	assert.NoError(t, err)
	assert.Len(t, set, 2)
}
