package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"bandroom/database"
	"bandroom/dues"
	"bandroom/models"

	"github.com/gin-gonic/gin"
)

type CreateVoteRequest struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject" binding:"required"`
}

// CreateVote opens a vote. The route is guarded by RequireGoodStanding, so
// only paid-up (or exempt/grace-covered) members get here. While a
// DISSOLUTION vote stays open, dues enforcement is frozen band-wide.
func CreateVote(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "CreateVote")
	defer span.End()

	bandID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid band ID"})
		return
	}

	var req CreateVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Kind == "" {
		req.Kind = models.VoteKindGeneral
	}
	if req.Kind != models.VoteKindGeneral && req.Kind != models.VoteKindDissolution {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown vote kind"})
		return
	}

	callerUserID := uint(c.GetUint64("callerUserID"))

	if req.Kind == models.VoteKindDissolution {
		isGovernor, err := dues.IsGovernorEquivalent(c.Request.Context(), uint(bandID), callerUserID)
		if err != nil {
			span.SetError(err.Error(), "")
			respondError(c, err)
			return
		}
		if !isGovernor {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only a founder or governor can open a dissolution vote"})
			return
		}
	}

	vote := models.Vote{
		BandID:          uint(bandID),
		Kind:            req.Kind,
		Subject:         req.Subject,
		Status:          models.VoteOpen,
		CreatedByUserID: callerUserID,
	}
	if err := database.DB.Create(&vote).Error; err != nil {
		span.SetError(err.Error(), "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create vote"})
		return
	}

	c.JSON(http.StatusCreated, vote)
}

func CloseVote(c *gin.Context) {
	_, span := Tracer.StartSpan(c.Request.Context(), "CloseVote")
	defer span.End()

	bandID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid band ID"})
		return
	}
	voteID, err := strconv.ParseUint(c.Param("vote_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vote ID"})
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
		c.JSON(http.StatusForbidden, gin.H{"error": "Only a founder or governor can close a vote"})
		return
	}

	res := database.DB.Model(&models.Vote{}).
		Where("id = ? AND band_id = ? AND status = ?", voteID, bandID, models.VoteOpen).
		Update("status", models.VoteClosed)
	if res.Error != nil {
		span.SetError(res.Error.Error(), "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close vote"})
		return
	}
	if res.RowsAffected == 0 {
		var vote models.Vote
		if err := database.DB.Where("id = ? AND band_id = ?", voteID, bandID).First(&vote).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vote not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("vote is already %s", vote.Status)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Vote closed successfully"})
}
